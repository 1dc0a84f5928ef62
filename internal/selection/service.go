// Package selection は「一様ランダムに1件選んでセッションをクローズする」抽選エンジンを提供する。
package selection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/lunchdraw/internal/model"
	"github.com/hitoshi/lunchdraw/internal/repository"
)

// SessionCloser はライフサイクルエンジンのクローズ操作に必要なインターフェース。
type SessionCloser interface {
	// Close はオープン状態のセッションに限りクローズする。クローズできた場合はtrueを返す。
	Close(ctx context.Context, sessionID int64, selectedRestaurant string) (bool, error)
}

// SessionFinder はセッション解決に必要なインターフェース。
type SessionFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Session, error)
}

// MetricsRecorder は抽選結果の記録に必要なインターフェース。
type MetricsRecorder interface {
	RecordPick(result string)
}

// 抽選結果のメトリクスラベル値。
const (
	PickResultSuccess      = "success"
	PickResultConflict     = "conflict"
	PickResultNoCandidates = "no_candidates"
)

// Service は抽選エンジンのサービス層。
type Service struct {
	sessionFinder  SessionFinder
	restaurantRepo repository.RestaurantRepository
	closer         SessionCloser
	metrics        MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilでもよい（記録をスキップする）。
func NewService(sessionFinder SessionFinder, restaurantRepo repository.RestaurantRepository, closer SessionCloser, metrics MetricsRecorder) *Service {
	return &Service{
		sessionFinder:  sessionFinder,
		restaurantRepo: restaurantRepo,
		closer:         closer,
		metrics:        metrics,
	}
}

// PickRandomAndClose はセッション内の候補から一様ランダムに1件選び、
// そのセッションをクローズする。
//
// セッションが存在しない、またはクローズ済みの場合はSESSION_CLOSED
// （「すでに抽選済み」のセマンティクス）。候補が0件の場合はNO_CANDIDATES。
//
// 候補の読み取りとクローズの2段階のうち、線形化ポイントは条件付きクローズの
// 1文のUPDATEである。同一セッションへの抽選が競合した場合、UPDATEに成功するのは
// 厳密に1リクエストであり、敗者はSESSION_CLOSEDで失敗する。セッションが
// 2つの異なる選出結果を持つことはない。
func (s *Service) PickRandomAndClose(ctx context.Context, sessionID int64) (*model.Restaurant, error) {
	session, err := s.sessionFinder.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %d for pick: %w", sessionID, err)
	}
	if session == nil || session.IsClosed {
		return nil, model.NewSessionClosedError(sessionID)
	}

	candidate, err := s.restaurantRepo.FindRandomBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to pick random restaurant for session %d: %w", sessionID, err)
	}
	if candidate == nil {
		s.record(PickResultNoCandidates)
		return nil, model.NewNoCandidatesError(sessionID)
	}

	closed, err := s.closer.Close(ctx, sessionID, candidate.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to close session %d after pick: %w", sessionID, err)
	}
	if !closed {
		// 競合の敗者: 別のリクエストが先にクローズした
		s.record(PickResultConflict)
		slog.Warn("pick lost close race",
			slog.Int64("session_id", sessionID),
		)
		return nil, model.NewSessionClosedError(sessionID)
	}

	s.record(PickResultSuccess)
	slog.Info("restaurant selected",
		slog.Int64("session_id", sessionID),
		slog.String("restaurant", candidate.Name),
	)
	return candidate, nil
}

func (s *Service) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordPick(result)
	}
}
