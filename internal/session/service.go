// Package session はセッションライフサイクルのドメインロジックを提供する。
//
// セッションはOPEN/CLOSEDの2状態の状態機械であり、遷移は次の2つに限られる。
//
//	OPEN → CLOSED: 抽選エンジンによるクローズ（Close）
//	CLOSED → OPEN: リセット（Reset）
//
// セッション行が排他制御の単位であり、作成はID一意制約＋競合時再取得、
// 遷移は条件付きUPDATEで直列化する。異なるセッション同士が待ち合うことはない。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/lunchdraw/internal/model"
	"github.com/hitoshi/lunchdraw/internal/repository"
)

// MetricsRecorder はセッション作成数の記録に必要なインターフェース。
type MetricsRecorder interface {
	RecordSessionCreated()
}

// UserDirectory は招待対象ユーザーの解決に必要なインターフェース。
// user.Serviceが実装する。
type UserDirectory interface {
	// GetUsers は指定ユーザー名群のうち存在するユーザーを返す。
	GetUsers(ctx context.Context, usernames []string) ([]*model.User, error)
}

// Config はライフサイクルエンジンの設定。
type Config struct {
	// GlobalSessionID は常時利用可能なGLOBALセッションのID。
	GlobalSessionID int64
	// GlobalSessionName はGLOBALセッションの表示名。
	GlobalSessionName string
}

// Service はセッションライフサイクルのサービス層。
type Service struct {
	sessionRepo repository.SessionRepository
	users       UserDirectory
	metrics     MetricsRecorder
	cfg         Config
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilでもよい（記録をスキップする）。
func NewService(sessionRepo repository.SessionRepository, users UserDirectory, metrics MetricsRecorder, cfg Config) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		users:       users,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// IsGlobal は指定IDがGLOBALセッションかどうかを返す。
func (s *Service) IsGlobal(sessionID int64) bool {
	return sessionID == s.cfg.GlobalSessionID
}

// GetOrCreate は指定IDのセッションを取得し、存在しなければ要求されたIDで作成する。
// 既存セッションがクローズ済みの場合はSESSION_CLOSEDを返す（提出の受け皿にならないため）。
// 同一の未知IDへの同時初回提出が競合した場合、敗者は勝者のセッションを観測する。
// GLOBALセッションはレコードが存在しなくても常に解決でき、作成者はSYSTEMとなる。
func (s *Service) GetOrCreate(ctx context.Context, sessionID int64, sessionName, requester string) (*model.Session, error) {
	found, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %d: %w", sessionID, err)
	}
	if found != nil {
		if found.IsClosed {
			return nil, model.NewSessionClosedError(sessionID)
		}
		return found, nil
	}

	newSession := &model.Session{
		ID:        sessionID,
		Name:      sessionName,
		CreatedBy: requester,
	}
	if s.IsGlobal(sessionID) {
		newSession.Name = s.cfg.GlobalSessionName
		newSession.CreatedBy = model.SystemUsername
	}

	err = s.sessionRepo.Create(ctx, newSession)
	if err == nil {
		slog.Info("session created",
			slog.Int64("session_id", newSession.ID),
			slog.String("name", newSession.Name),
			slog.String("created_by", newSession.CreatedBy),
		)
		if s.metrics != nil {
			s.metrics.RecordSessionCreated()
		}
		return newSession, nil
	}
	if !errors.Is(err, repository.ErrDuplicateKey) {
		return nil, fmt.Errorf("failed to create session %d: %w", sessionID, err)
	}

	// 作成競合の敗者: 勝者のセッションを再取得する
	winner, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch session %d after create conflict: %w", sessionID, err)
	}
	if winner == nil {
		return nil, fmt.Errorf("session %d vanished after create conflict: %w", sessionID, model.NewConflictError(sessionID))
	}
	if winner.IsClosed {
		return nil, model.NewSessionClosedError(sessionID)
	}
	return winner, nil
}

// ValidateSubmission はユーザーがセッションへ候補を提出できるかを検証する。
// 規則は順に評価する:
//  1. GLOBALセッションは常に許可（招待ゲートなし）
//  2. クローズ済みならSESSION_CLOSED
//  3. 作成者でも招待済みでもなければNOT_INVITED
func (s *Service) ValidateSubmission(session *model.Session, username string) error {
	if session == nil {
		return nil
	}
	if s.IsGlobal(session.ID) {
		return nil
	}
	if session.IsClosed {
		return model.NewSessionClosedError(session.ID)
	}
	if !session.IsUserInvited(username) {
		return model.NewNotInvitedError(username, session.Name, session.ID)
	}
	return nil
}

// Invite はセッションの作成者がユーザーを招待する。
// ユーザー名は重複を除去し、1人でも未知のユーザーがいればバッチ全体を中断する
// （部分的な招待はコミットしない）。招待済みユーザーの再招待は冪等に成功する。
func (s *Service) Invite(ctx context.Context, sessionID int64, inviterUsername string, usernames []string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %d: %w", sessionID, err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	// 作成者チェックが最優先。招待者がディレクトリに存在するかどうかは問わない。
	if !session.IsCreator(inviterUsername) {
		return nil, model.NewNotCreatorError(sessionID)
	}
	if session.IsClosed {
		return nil, model.NewSessionClosedError(sessionID)
	}

	deduped := dedupe(usernames)

	users, err := s.users.GetUsers(ctx, deduped)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invitees for session %d: %w", sessionID, err)
	}
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.Username] = true
	}
	for _, username := range deduped {
		if !known[username] {
			return nil, model.NewUserNotFoundError(username)
		}
	}

	if err := s.sessionRepo.AddInvitedUsers(ctx, sessionID, deduped); err != nil {
		return nil, fmt.Errorf("failed to add invited users to session %d: %w", sessionID, err)
	}

	slog.Info("users invited",
		slog.Int64("session_id", sessionID),
		slog.String("inviter", inviterUsername),
		slog.Int("count", len(deduped)),
	)

	updated, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch session %d: %w", sessionID, err)
	}
	if updated == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return updated, nil
}

// Reset はクローズ済みセッションをオープン状態に戻す。
// 選出レストランはクリアされ、作成者と招待ユーザーは維持される。
// オープン状態のセッションへのリセットはSESSION_ALREADY_OPENを返す。
func (s *Service) Reset(ctx context.Context, sessionID int64) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session %d: %w", sessionID, err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	reopened, err := s.sessionRepo.ReopenIfClosed(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset session %d: %w", sessionID, err)
	}
	if !reopened {
		return nil, model.NewSessionAlreadyOpenError(sessionID)
	}

	slog.Info("session reset", slog.Int64("session_id", sessionID))

	updated, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch session %d: %w", sessionID, err)
	}
	if updated == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return updated, nil
}

// List は全セッション（GLOBAL含む）をID昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close はオープン状態のセッションに限りクローズし、選出レストラン名を記録する。
// クローズできた場合はtrueを返す。抽選エンジン専用のOPEN→CLOSED遷移。
func (s *Service) Close(ctx context.Context, sessionID int64, selectedRestaurant string) (bool, error) {
	closed, err := s.sessionRepo.CloseIfOpen(ctx, sessionID, selectedRestaurant)
	if err != nil {
		return false, fmt.Errorf("failed to close session %d: %w", sessionID, err)
	}
	if closed {
		slog.Info("session closed",
			slog.Int64("session_id", sessionID),
			slog.String("selected_restaurant", selectedRestaurant),
		)
	}
	return closed, nil
}

// EnsureGlobal はGLOBALセッションのレコードを必要なら作成する。
// サーバ起動時に呼び出し、listSessionsが常にGLOBALを含むことを保証する。
// すでに存在する場合（クローズ済みでも）は何もしない。
func (s *Service) EnsureGlobal(ctx context.Context) error {
	found, err := s.sessionRepo.FindByID(ctx, s.cfg.GlobalSessionID)
	if err != nil {
		return fmt.Errorf("failed to resolve global session: %w", err)
	}
	if found != nil {
		return nil
	}

	global := &model.Session{
		ID:        s.cfg.GlobalSessionID,
		Name:      s.cfg.GlobalSessionName,
		CreatedBy: model.SystemUsername,
	}
	err = s.sessionRepo.Create(ctx, global)
	if err != nil && !errors.Is(err, repository.ErrDuplicateKey) {
		return fmt.Errorf("failed to create global session: %w", err)
	}
	if err == nil {
		slog.Info("global session created", slog.Int64("session_id", global.ID))
	}
	return nil
}

// dedupe はユーザー名の重複を初出順を保って除去する。
func dedupe(usernames []string) []string {
	seen := make(map[string]bool, len(usernames))
	result := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if seen[u] {
			continue
		}
		seen[u] = true
		result = append(result, u)
	}
	return result
}
