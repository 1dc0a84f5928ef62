package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/lunchdraw/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pqUniqueViolation = "23505"

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT username, can_initiate_session, created_by, created_at, updated_at
		 FROM app_user WHERE username = $1`,
		username,
	).Scan(&user.Username, &user.CanInitiateSession, &user.CreatedBy, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	return user, nil
}

// FindAllByUsernames は指定ユーザー名群のうち存在するユーザーを返す。
// 未知のユーザー名は黙って除外する。空入力には空スライスを返す。
func (r *PostgresUserRepo) FindAllByUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	if len(usernames) == 0 {
		return []*model.User{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT username, can_initiate_session, created_by, created_at, updated_at
		 FROM app_user WHERE username = ANY($1) ORDER BY username`,
		pq.Array(usernames),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find users by usernames: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.Username, &user.CanInitiateSession, &user.CreatedBy, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateKeyを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO app_user (username, can_initiate_session, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		user.Username, user.CanInitiateSession, user.CreatedBy,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Username, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
