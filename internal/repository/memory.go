package repository

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/lunchdraw/internal/model"
)

// MemoryStore はインメモリのデータストア。開発およびテスト用。
// PostgreSQL実装と同じ直列化保証を単一ミューテックスで提供する。
// 条件付き更新（CloseIfOpen / ReopenIfClosed）はロック内で判定と書き込みを行うため、
// 同時実行の抽選でも成功するのは厳密に1件となる。
type MemoryStore struct {
	mu           sync.Mutex
	users        map[string]*model.User
	sessions     map[int64]*model.Session
	invited      map[int64]map[string]bool
	restaurants  []*model.Restaurant
	restaurantID int64
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*model.User),
		sessions: make(map[int64]*model.Session),
		invited:  make(map[int64]map[string]bool),
	}
}

// MemoryUserRepo はUserRepositoryのインメモリ実装
type MemoryUserRepo struct {
	store *MemoryStore
}

// MemorySessionRepo はSessionRepositoryのインメモリ実装
type MemorySessionRepo struct {
	store *MemoryStore
}

// MemoryRestaurantRepo はRestaurantRepositoryのインメモリ実装
type MemoryRestaurantRepo struct {
	store *MemoryStore
}

var (
	_ UserRepository       = (*MemoryUserRepo)(nil)
	_ SessionRepository    = (*MemorySessionRepo)(nil)
	_ RestaurantRepository = (*MemoryRestaurantRepo)(nil)
)

// NewMemoryUserRepo は指定ストアを使うMemoryUserRepoを生成する。
func NewMemoryUserRepo(store *MemoryStore) *MemoryUserRepo {
	return &MemoryUserRepo{store: store}
}

// NewMemorySessionRepo は指定ストアを使うMemorySessionRepoを生成する。
func NewMemorySessionRepo(store *MemoryStore) *MemorySessionRepo {
	return &MemorySessionRepo{store: store}
}

// NewMemoryRestaurantRepo は指定ストアを使うMemoryRestaurantRepoを生成する。
func NewMemoryRestaurantRepo(store *MemoryStore) *MemoryRestaurantRepo {
	return &MemoryRestaurantRepo{store: store}
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[username]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

// FindAllByUsernames は指定ユーザー名群のうち存在するユーザーを返す。
func (r *MemoryUserRepo) FindAllByUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	found := []*model.User{}
	for _, username := range usernames {
		if user, ok := r.store.users[username]; ok {
			copied := *user
			found = append(found, &copied)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Username < found[j].Username })
	return found, nil
}

// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateKeyを返す。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.users[user.Username]; exists {
		return fmt.Errorf("user %q: %w", user.Username, ErrDuplicateKey)
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.store.users[user.Username] = &copied
	return nil
}

// FindByID は指定IDのセッションを招待ユーザーとレストラン候補込みで取得する。
// 見つからない場合はnilを返す。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id int64) (*model.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, nil
	}
	return r.store.copySession(session), nil
}

// Create は指定IDでセッションを作成する。IDが重複する場合はErrDuplicateKeyを返す。
func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.sessions[session.ID]; exists {
		return fmt.Errorf("session %d: %w", session.ID, ErrDuplicateKey)
	}

	now := time.Now()
	session.IsClosed = false
	session.SelectedRestaurant = nil
	session.CreatedAt = now
	session.UpdatedAt = now
	session.InvitedUsers = []string{}
	copied := *session
	r.store.sessions[session.ID] = &copied
	r.store.invited[session.ID] = make(map[string]bool)
	return nil
}

// CloseIfOpen はオープン状態のセッションに限りクローズし選定結果を記録する。
func (r *MemorySessionRepo) CloseIfOpen(ctx context.Context, id int64, selectedRestaurant string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok || session.IsClosed {
		return false, nil
	}
	session.IsClosed = true
	session.SelectedRestaurant = &selectedRestaurant
	session.UpdatedAt = time.Now()
	return true, nil
}

// ReopenIfClosed はクローズ状態のセッションに限り再オープンし選定結果を消去する。
func (r *MemorySessionRepo) ReopenIfClosed(ctx context.Context, id int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[id]
	if !ok || !session.IsClosed {
		return false, nil
	}
	session.IsClosed = false
	session.SelectedRestaurant = nil
	session.UpdatedAt = time.Now()
	return true, nil
}

// AddInvitedUsers は招待ユーザーを冪等に追加する。
func (r *MemorySessionRepo) AddInvitedUsers(ctx context.Context, id int64, usernames []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[id]; !ok {
		return fmt.Errorf("session %d not found", id)
	}
	set := r.store.invited[id]
	if set == nil {
		set = make(map[string]bool)
		r.store.invited[id] = set
	}
	for _, username := range usernames {
		set[username] = true
	}
	r.store.sessions[id].UpdatedAt = time.Now()
	return nil
}

// List は全セッションをID昇順で、招待ユーザーとレストラン候補込みで返す。
func (r *MemorySessionRepo) List(ctx context.Context) ([]*model.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sessions := make([]*model.Session, 0, len(r.store.sessions))
	for _, session := range r.store.sessions {
		sessions = append(sessions, r.store.copySession(session))
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

// copySession はロック保持中にセッションのスナップショットを作る。
func (s *MemoryStore) copySession(session *model.Session) *model.Session {
	copied := *session
	if session.SelectedRestaurant != nil {
		name := *session.SelectedRestaurant
		copied.SelectedRestaurant = &name
	}

	copied.InvitedUsers = []string{}
	for username := range s.invited[session.ID] {
		copied.InvitedUsers = append(copied.InvitedUsers, username)
	}
	sort.Strings(copied.InvitedUsers)

	copied.Restaurants = []*model.Restaurant{}
	for _, restaurant := range s.restaurants {
		if restaurant.SessionID == session.ID {
			r := *restaurant
			copied.Restaurants = append(copied.Restaurants, &r)
		}
	}
	return &copied
}

// Create はレストラン候補を作成しIDを採番する。
func (r *MemoryRestaurantRepo) Create(ctx context.Context, restaurant *model.Restaurant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.restaurantID++
	restaurant.ID = r.store.restaurantID
	restaurant.CreatedAt = time.Now()
	copied := *restaurant
	r.store.restaurants = append(r.store.restaurants, &copied)
	return nil
}

// FindRandomBySession はセッション内の候補から一様ランダムに1件取得する。
// 候補が存在しない場合はnilを返す。
func (r *MemoryRestaurantRepo) FindRandomBySession(ctx context.Context, sessionID int64) (*model.Restaurant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	candidates := []*model.Restaurant{}
	for _, restaurant := range r.store.restaurants {
		if restaurant.SessionID == sessionID {
			candidates = append(candidates, restaurant)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	copied := *candidates[rand.Intn(len(candidates))]
	return &copied, nil
}

// ListBySession はセッション内の候補一覧をID昇順で返す。
func (r *MemoryRestaurantRepo) ListBySession(ctx context.Context, sessionID int64) ([]*model.Restaurant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	restaurants := []*model.Restaurant{}
	for _, restaurant := range r.store.restaurants {
		if restaurant.SessionID == sessionID {
			copied := *restaurant
			restaurants = append(restaurants, &copied)
		}
	}
	sort.Slice(restaurants, func(i, j int) bool { return restaurants[i].ID < restaurants[j].ID })
	return restaurants, nil
}
