package restaurant

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/lunchdraw/internal/model"
	"github.com/hitoshi/lunchdraw/internal/security"
)

// --- モック ---

type mockRestaurantRepo struct {
	createFn func(ctx context.Context, restaurant *model.Restaurant) error
}

func (m *mockRestaurantRepo) Create(ctx context.Context, restaurant *model.Restaurant) error {
	if m.createFn != nil {
		return m.createFn(ctx, restaurant)
	}
	restaurant.ID = 1
	return nil
}
func (m *mockRestaurantRepo) FindRandomBySession(ctx context.Context, sessionID int64) (*model.Restaurant, error) {
	return nil, nil
}
func (m *mockRestaurantRepo) ListBySession(ctx context.Context, sessionID int64) ([]*model.Restaurant, error) {
	return nil, nil
}

type mockSessionAuthorizer struct {
	getOrCreateFn        func(ctx context.Context, sessionID int64, sessionName, requester string) (*model.Session, error)
	validateSubmissionFn func(session *model.Session, username string) error
}

func (m *mockSessionAuthorizer) GetOrCreate(ctx context.Context, sessionID int64, sessionName, requester string) (*model.Session, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, sessionID, sessionName, requester)
	}
	return &model.Session{ID: sessionID, Name: sessionName, CreatedBy: requester}, nil
}
func (m *mockSessionAuthorizer) ValidateSubmission(session *model.Session, username string) error {
	if m.validateSubmissionFn != nil {
		return m.validateSubmissionFn(session, username)
	}
	return nil
}

type mockMetrics struct {
	submissionCount int
}

func (m *mockMetrics) RecordSubmission() {
	m.submissionCount++
}

// --- テスト ---

// TestSubmit_Success は提出が成功し、候補が永続化されることを検証する。
func TestSubmit_Success(t *testing.T) {
	var created *model.Restaurant
	repo := &mockRestaurantRepo{
		createFn: func(ctx context.Context, restaurant *model.Restaurant) error {
			restaurant.ID = 10
			created = restaurant
			return nil
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(repo, &mockSessionAuthorizer{}, metrics, security.NewNameSanitizer())

	got, err := svc.Submit(context.Background(), 7, "金曜ランチ", "ラーメン二郎", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("restaurant should be persisted")
	}
	if got.ID != 10 || got.Name != "ラーメン二郎" || got.SessionID != 7 || got.CreatedBy != "alice" {
		t.Errorf("submitted restaurant = %+v", got)
	}
	if metrics.submissionCount != 1 {
		t.Errorf("submission metric = %d, want 1", metrics.submissionCount)
	}
}

// TestSubmit_SanitizesNames は提出されるレストラン名とセッション名から
// HTMLタグが除去されることを検証する。
func TestSubmit_SanitizesNames(t *testing.T) {
	var gotSessionName string
	auth := &mockSessionAuthorizer{
		getOrCreateFn: func(ctx context.Context, sessionID int64, sessionName, requester string) (*model.Session, error) {
			gotSessionName = sessionName
			return &model.Session{ID: sessionID, Name: sessionName, CreatedBy: requester}, nil
		},
	}
	svc := NewService(&mockRestaurantRepo{}, auth, nil, security.NewNameSanitizer())

	got, err := svc.Submit(context.Background(), 7, `<b>会議</b>`, `<script>alert(1)</script>すし屋`, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "すし屋" {
		t.Errorf("restaurant name = %q, want すし屋", got.Name)
	}
	if gotSessionName != "会議" {
		t.Errorf("session name = %q, want 会議", gotSessionName)
	}
}

// TestSubmit_EmptyNameAfterSanitize はタグ除去後に空になる名前がINVALID_REQUESTで
// 拒否されることを検証する。
func TestSubmit_EmptyNameAfterSanitize(t *testing.T) {
	auth := &mockSessionAuthorizer{
		getOrCreateFn: func(ctx context.Context, sessionID int64, sessionName, requester string) (*model.Session, error) {
			t.Fatal("session resolution should not happen for empty names")
			return nil, nil
		},
	}
	svc := NewService(&mockRestaurantRepo{}, auth, nil, security.NewNameSanitizer())

	tests := []string{"", "   ", "<script></script>"}
	for _, input := range tests {
		_, err := svc.Submit(context.Background(), 7, "", input, "alice")
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
			t.Errorf("Submit(%q) error = %v, want INVALID_REQUEST", input, err)
		}
	}
}

// TestSubmit_AuthorizationFailure はライフサイクルエンジンの拒否がそのまま
// 伝播し、候補が永続化されないことを検証する。
func TestSubmit_AuthorizationFailure(t *testing.T) {
	auth := &mockSessionAuthorizer{
		validateSubmissionFn: func(session *model.Session, username string) error {
			return model.NewNotInvitedError(username, session.Name, session.ID)
		},
	}
	repo := &mockRestaurantRepo{
		createFn: func(ctx context.Context, restaurant *model.Restaurant) error {
			t.Fatal("restaurant should not be persisted when submission is rejected")
			return nil
		},
	}
	svc := NewService(repo, auth, nil, security.NewNameSanitizer())

	_, err := svc.Submit(context.Background(), 7, "", "焼肉屋", "stranger")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotInvited {
		t.Errorf("error = %v, want NOT_INVITED", err)
	}
}

// TestSubmit_SessionResolutionFailure はセッション解決の失敗（クローズ済み等）で
// 提出全体が失敗することを検証する。
func TestSubmit_SessionResolutionFailure(t *testing.T) {
	auth := &mockSessionAuthorizer{
		getOrCreateFn: func(ctx context.Context, sessionID int64, sessionName, requester string) (*model.Session, error) {
			return nil, model.NewSessionClosedError(sessionID)
		},
	}
	svc := NewService(&mockRestaurantRepo{}, auth, nil, security.NewNameSanitizer())

	_, err := svc.Submit(context.Background(), 7, "", "定食屋", "alice")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSessionClosed {
		t.Errorf("error = %v, want SESSION_CLOSED", err)
	}
}
