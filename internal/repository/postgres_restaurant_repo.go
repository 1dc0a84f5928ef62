package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lunchdraw/internal/model"
)

// PostgresRestaurantRepo はPostgreSQLを使用したレストラン候補リポジトリ。
type PostgresRestaurantRepo struct {
	db *sql.DB
}

// NewPostgresRestaurantRepo はPostgresRestaurantRepoを生成する。
func NewPostgresRestaurantRepo(db *sql.DB) *PostgresRestaurantRepo {
	return &PostgresRestaurantRepo{db: db}
}

// Create はレストラン候補を作成し、採番されたIDと作成日時をrestaurantに書き戻す。
func (r *PostgresRestaurantRepo) Create(ctx context.Context, restaurant *model.Restaurant) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO restaurant (name, session_id, created_by)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		restaurant.Name, restaurant.SessionID, restaurant.CreatedBy,
	).Scan(&restaurant.ID, &restaurant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert restaurant: %w", err)
	}
	return nil
}

// FindRandomBySession はセッション内の候補から一様ランダムに1件取得する。
// 候補が存在しない場合はnilを返す。
func (r *PostgresRestaurantRepo) FindRandomBySession(ctx context.Context, sessionID int64) (*model.Restaurant, error) {
	restaurant := &model.Restaurant{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, session_id, created_by, created_at
		 FROM restaurant
		 WHERE session_id = $1
		 ORDER BY RANDOM()
		 LIMIT 1`,
		sessionID,
	).Scan(&restaurant.ID, &restaurant.Name, &restaurant.SessionID, &restaurant.CreatedBy, &restaurant.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find random restaurant: %w", err)
	}

	return restaurant, nil
}

// ListBySession はセッション内の候補一覧をID昇順で返す。
func (r *PostgresRestaurantRepo) ListBySession(ctx context.Context, sessionID int64) ([]*model.Restaurant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, session_id, created_by, created_at
		 FROM restaurant WHERE session_id = $1 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants by session: %w", err)
	}
	defer rows.Close()

	restaurants := []*model.Restaurant{}
	for rows.Next() {
		restaurant := &model.Restaurant{}
		if err := rows.Scan(&restaurant.ID, &restaurant.Name, &restaurant.SessionID,
			&restaurant.CreatedBy, &restaurant.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, restaurant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate restaurants: %w", err)
	}

	return restaurants, nil
}

// compile-time interface check
var _ RestaurantRepository = (*PostgresRestaurantRepo)(nil)
