// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/lunchdraw/internal/model"
)

// ErrDuplicateKey は一意制約違反を表す。
// 同一セッションIDの同時作成競合の検出に使用する。敗者は勝者のセッションを再取得すること。
var ErrDuplicateKey = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindAllByUsernames は指定ユーザー名群のうち存在するユーザーを返す。
	// 未知のユーザー名は黙って除外する。空入力には空スライスを返す。
	FindAllByUsernames(ctx context.Context, usernames []string) ([]*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッション行が排他制御の単位であり、状態遷移はすべて条件付きUPDATEで直列化する。
type SessionRepository interface {
	// FindByID は指定IDのセッションを招待ユーザー込みで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Session, error)

	// Create は指定IDでセッションを作成する。
	// IDが重複する場合はErrDuplicateKeyを返す（作成競合の敗者検出に使う）。
	Create(ctx context.Context, session *model.Session) error

	// CloseIfOpen はオープン状態のセッションに限りクローズし、選出レストラン名を記録する。
	// 更新できた場合はtrueを返す。falseはセッションが存在しないかクローズ済みであることを示す。
	CloseIfOpen(ctx context.Context, id int64, selectedRestaurant string) (bool, error)

	// ReopenIfClosed はクローズ状態のセッションに限り再オープンし、選出レストランをクリアする。
	// 更新できた場合はtrueを返す。
	ReopenIfClosed(ctx context.Context, id int64) (bool, error)

	// AddInvitedUsers は招待ユーザーを追加する。既存の招待は冪等に無視する。
	AddInvitedUsers(ctx context.Context, id int64, usernames []string) error

	// List は全セッションをID昇順で、招待ユーザーとレストラン候補込みで返す。
	List(ctx context.Context) ([]*model.Session, error)
}

// RestaurantRepository はレストラン候補の永続化インターフェース。
type RestaurantRepository interface {
	// Create はレストラン候補を作成し、採番されたIDと作成日時をrestaurantに書き戻す。
	Create(ctx context.Context, restaurant *model.Restaurant) error

	// FindRandomBySession はセッション内の候補から一様ランダムに1件取得する。
	// 候補が存在しない場合はnilを返す。
	FindRandomBySession(ctx context.Context, sessionID int64) (*model.Restaurant, error)

	// ListBySession はセッション内の候補一覧をID昇順で返す。
	ListBySession(ctx context.Context, sessionID int64) ([]*model.Restaurant, error)
}
