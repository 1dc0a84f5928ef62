// Package restaurant はレストラン候補の提出ロジックを提供する。
package restaurant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/lunchdraw/internal/model"
	"github.com/hitoshi/lunchdraw/internal/repository"
	"github.com/hitoshi/lunchdraw/internal/security"
)

// SessionAuthorizer は提出先セッションの解決と提出権限の検証に必要なインターフェース。
// session.Serviceの部分集合として定義する。
type SessionAuthorizer interface {
	GetOrCreate(ctx context.Context, sessionID int64, sessionName, requester string) (*model.Session, error)
	ValidateSubmission(session *model.Session, username string) error
}

// MetricsRecorder は提出数の記録に必要なインターフェース。
type MetricsRecorder interface {
	RecordSubmission()
}

// Service はレストラン提出のサービス層。
type Service struct {
	restaurantRepo repository.RestaurantRepository
	sessions       SessionAuthorizer
	metrics        MetricsRecorder
	sanitizer      security.NameSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilでもよい（記録をスキップする）。
func NewService(restaurantRepo repository.RestaurantRepository, sessions SessionAuthorizer, metrics MetricsRecorder, sanitizer security.NameSanitizerService) *Service {
	return &Service{
		restaurantRepo: restaurantRepo,
		sessions:       sessions,
		metrics:        metrics,
		sanitizer:      sanitizer,
	}
}

// Submit はレストラン候補をセッションに提出する。
// セッションが未知の場合は要求されたIDで作成され、提出者が作成者となる。
// 提出者の権限検証はライフサイクルエンジンに委譲する。
// 名前はHTMLタグを除去したうえで保存する。除去後に空になる名前はINVALID_REQUEST。
func (s *Service) Submit(ctx context.Context, sessionID int64, sessionName, restaurantName, username string) (*model.Restaurant, error) {
	name := s.sanitizer.Sanitize(restaurantName)
	if name == "" {
		return nil, model.NewInvalidRequestError("レストラン名が空です")
	}
	cleanSessionName := s.sanitizer.Sanitize(sessionName)

	session, err := s.sessions.GetOrCreate(ctx, sessionID, cleanSessionName, username)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.ValidateSubmission(session, username); err != nil {
		return nil, err
	}

	restaurant := &model.Restaurant{
		Name:      name,
		SessionID: session.ID,
		CreatedBy: username,
	}
	if err := s.restaurantRepo.Create(ctx, restaurant); err != nil {
		return nil, fmt.Errorf("failed to submit restaurant to session %d: %w", session.ID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordSubmission()
	}
	slog.Info("restaurant submitted",
		slog.Int64("session_id", session.ID),
		slog.String("restaurant", restaurant.Name),
		slog.String("submitted_by", username),
	)

	return restaurant, nil
}
