package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/lunchdraw/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// クローズ・再オープンはis_closedを条件に含む1文のUPDATEで行い、
// 行レベルの直列化により「クローズは1サイクルにつき1回だけ」を保証する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindByID は指定IDのセッションを招待ユーザー込みで取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id int64) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_closed, selected_restaurant, created_by, created_at, updated_at
		 FROM session WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.Name, &session.IsClosed, &session.SelectedRestaurant,
		&session.CreatedBy, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session by ID: %w", err)
	}

	invited, err := r.findInvitedUsers(ctx, id)
	if err != nil {
		return nil, err
	}
	session.InvitedUsers = invited

	return session, nil
}

// Create は指定IDでセッションを作成する。
// IDが重複する場合はErrDuplicateKeyを返す（作成競合の敗者検出に使う）。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO session (id, name, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		session.ID, session.Name, session.CreatedBy,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session %d: %w", session.ID, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	session.IsClosed = false
	session.SelectedRestaurant = nil
	session.InvitedUsers = []string{}
	return nil
}

// CloseIfOpen はオープン状態のセッションに限りクローズし、選出レストラン名を記録する。
// 更新できた場合はtrueを返す。falseはセッションが存在しないかクローズ済みであることを示す。
func (r *PostgresSessionRepo) CloseIfOpen(ctx context.Context, id int64, selectedRestaurant string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE session
		 SET is_closed = TRUE, selected_restaurant = $2, updated_at = now()
		 WHERE id = $1 AND is_closed = FALSE`,
		id, selectedRestaurant,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ReopenIfClosed はクローズ状態のセッションに限り再オープンし、選出レストランをクリアする。
// 更新できた場合はtrueを返す。
func (r *PostgresSessionRepo) ReopenIfClosed(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE session
		 SET is_closed = FALSE, selected_restaurant = NULL, updated_at = now()
		 WHERE id = $1 AND is_closed = TRUE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reopen session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// AddInvitedUsers は招待ユーザーを追加する。既存の招待は冪等に無視する。
// 追加とupdated_atの更新を同一トランザクションで行う。
func (r *PostgresSessionRepo) AddInvitedUsers(ctx context.Context, id int64, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_invited_user (session_id, username)
		 SELECT $1, unnest($2::text[])
		 ON CONFLICT (session_id, username) DO NOTHING`,
		id, pq.Array(usernames),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invited users: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE session SET updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List は全セッションをID昇順で、招待ユーザーとレストラン候補込みで返す。
func (r *PostgresSessionRepo) List(ctx context.Context) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, is_closed, selected_restaurant, created_by, created_at, updated_at
		 FROM session ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.Session{}
	byID := map[int64]*model.Session{}
	for rows.Next() {
		session := &model.Session{InvitedUsers: []string{}, Restaurants: []*model.Restaurant{}}
		if err := rows.Scan(&session.ID, &session.Name, &session.IsClosed, &session.SelectedRestaurant,
			&session.CreatedBy, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
		byID[session.ID] = session
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	if err := r.attachInvitedUsers(ctx, byID); err != nil {
		return nil, err
	}
	if err := r.attachRestaurants(ctx, byID); err != nil {
		return nil, err
	}

	return sessions, nil
}

// findInvitedUsers はセッションの招待ユーザー名一覧を返す。
func (r *PostgresSessionRepo) findInvitedUsers(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username FROM session_invited_user WHERE session_id = $1 ORDER BY username`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find invited users: %w", err)
	}
	defer rows.Close()

	usernames := []string{}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan invited user: %w", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invited users: %w", err)
	}

	return usernames, nil
}

// attachInvitedUsers は全セッションの招待ユーザーを1クエリでまとめて紐付ける。
func (r *PostgresSessionRepo) attachInvitedUsers(ctx context.Context, byID map[int64]*model.Session) error {
	if len(byID) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, username FROM session_invited_user ORDER BY session_id, username`,
	)
	if err != nil {
		return fmt.Errorf("failed to list invited users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID int64
		var username string
		if err := rows.Scan(&sessionID, &username); err != nil {
			return fmt.Errorf("failed to scan invited user: %w", err)
		}
		if session, ok := byID[sessionID]; ok {
			session.InvitedUsers = append(session.InvitedUsers, username)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate invited users: %w", err)
	}

	return nil
}

// attachRestaurants は全セッションのレストラン候補を1クエリでまとめて紐付ける。
func (r *PostgresSessionRepo) attachRestaurants(ctx context.Context, byID map[int64]*model.Session) error {
	if len(byID) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, session_id, created_by, created_at FROM restaurant ORDER BY id`,
	)
	if err != nil {
		return fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		restaurant := &model.Restaurant{}
		if err := rows.Scan(&restaurant.ID, &restaurant.Name, &restaurant.SessionID,
			&restaurant.CreatedBy, &restaurant.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan restaurant: %w", err)
		}
		if session, ok := byID[restaurant.SessionID]; ok {
			session.Restaurants = append(session.Restaurants, restaurant)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate restaurants: %w", err)
	}

	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
