// Package user はユーザーディレクトリのドメインロジックを提供する。
package user

import (
	"context"
	"fmt"

	"github.com/hitoshi/lunchdraw/internal/model"
	"github.com/hitoshi/lunchdraw/internal/repository"
)

// Service はユーザーディレクトリのサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// GetUser は指定ユーザー名のユーザーを返す。
// 見つからない場合はUSER_NOT_FOUNDを返す。
func (s *Service) GetUser(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(username)
	}
	return user, nil
}

// GetUsers は指定ユーザー名群のうち存在するユーザーを返す。
// 未知のユーザー名は黙って除外する。空入力には空スライスを返し、エラーにはしない。
func (s *Service) GetUsers(ctx context.Context, usernames []string) ([]*model.User, error) {
	users, err := s.userRepo.FindAllByUsernames(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// CanInitiateSessions は指定ユーザーのセッション作成権限フラグを返す。
// フラグはデータモデル上に存在するが、ライフサイクル規則からは参照されない。
func (s *Service) CanInitiateSessions(ctx context.Context, username string) (bool, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return false, err
	}
	return user.CanInitiateSession, nil
}
