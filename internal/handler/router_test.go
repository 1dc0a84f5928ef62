package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/lunchdraw/internal/middleware"
	"github.com/hitoshi/lunchdraw/internal/model"
	"github.com/hitoshi/lunchdraw/internal/repository"
	"github.com/hitoshi/lunchdraw/internal/restaurant"
	"github.com/hitoshi/lunchdraw/internal/security"
	"github.com/hitoshi/lunchdraw/internal/selection"
	"github.com/hitoshi/lunchdraw/internal/session"
	"github.com/hitoshi/lunchdraw/internal/user"
)

// newTestRouter はインメモリストアと実サービスを配線したルーターを組み立てる。
func newTestRouter(t *testing.T) (http.Handler, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	userRepo := repository.NewMemoryUserRepo(store)
	sessionRepo := repository.NewMemorySessionRepo(store)
	restaurantRepo := repository.NewMemoryRestaurantRepo(store)

	sessionService := session.NewService(sessionRepo, user.NewService(userRepo), nil, session.Config{
		GlobalSessionID:   0,
		GlobalSessionName: "GLOBAL",
	})
	restaurantService := restaurant.NewService(restaurantRepo, sessionService, nil, security.NewNameSanitizer())
	selectionService := selection.NewService(sessionRepo, restaurantRepo, sessionService, nil)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rateLimiter.Stop)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	router := NewRouter(&RouterDeps{
		Logger:              logger,
		RateLimiter:         rateLimiter,
		RestaurantSubmitter: restaurantService,
		RandomPicker:        selectionService,
		SessionService:      sessionService,
		DefaultSessionID:    0,
	})
	return router, store
}

func seedUsers(t *testing.T, store *repository.MemoryStore, usernames ...string) {
	t.Helper()
	userRepo := repository.NewMemoryUserRepo(store)
	for _, username := range usernames {
		if err := userRepo.Create(context.Background(), &model.User{
			Username:  username,
			CreatedBy: model.SystemUsername,
		}); err != nil {
			t.Fatalf("failed to seed user %q: %v", username, err)
		}
	}
}

func doRequest(router http.Handler, method, target, body, username string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if username != "" {
		req.Header.Set(middleware.HeaderXUsername, username)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestRouter_SubmitAndPickFlow は提出から抽選、リセット、再抽選までの
// 一連のフローをルーター越しに検証する。
func TestRouter_SubmitAndPickFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	// aliceが未知のセッション7へ提出 → セッションが作成されaliceが作成者になる
	rec := doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"ラーメン二郎","sessionId":7,"sessionName":"金曜ランチ"}`, "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// 作成者は続けて提出できる
	rec = doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"カレー屋","sessionId":7}`, "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("second submit status = %d, want 201", rec.Code)
	}

	// 抽選 → 200、選出候補が返る
	rec = doRequest(router, http.MethodGet, "/restaurant/random?sessionId=7", "", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("pick status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var picked model.Restaurant
	if err := json.NewDecoder(rec.Body).Decode(&picked); err != nil {
		t.Fatalf("failed to decode pick response: %v", err)
	}
	if picked.Name != "ラーメン二郎" && picked.Name != "カレー屋" {
		t.Errorf("picked %q, want a submitted restaurant", picked.Name)
	}

	// クローズ済みセッションへの提出は409
	rec = doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"すし屋","sessionId":7}`, "alice")
	if rec.Code != http.StatusConflict {
		t.Fatalf("submit to closed session status = %d, want 409", rec.Code)
	}

	// 再抽選も409
	rec = doRequest(router, http.MethodGet, "/restaurant/random?sessionId=7", "", "alice")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second pick status = %d, want 409", rec.Code)
	}

	// リセットで再オープン（X-Username不要）
	rec = doRequest(router, http.MethodPatch, "/session/7/reset", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var reopened model.Session
	if err := json.NewDecoder(rec.Body).Decode(&reopened); err != nil {
		t.Fatalf("failed to decode reset response: %v", err)
	}
	if reopened.IsClosed || reopened.SelectedRestaurant != nil {
		t.Errorf("session after reset = %+v, want open with no selection", reopened)
	}

	// 再抽選は同じ候補プールから成功する
	rec = doRequest(router, http.MethodGet, "/restaurant/random?sessionId=7", "", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("pick after reset status = %d, want 200", rec.Code)
	}
}

// TestRouter_InviteGate は招待ゲートの挙動をルーター越しに検証する。
// 同じ未知IDに2人目が提出するとNOT_INVITED、招待後は提出できる。
func TestRouter_InviteGate(t *testing.T) {
	router, store := newTestRouter(t)
	seedUsers(t, store, "bob")

	// aliceがセッション7を作成
	rec := doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"とんかつ屋","sessionId":7,"sessionName":"火曜ランチ"}`, "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201", rec.Code)
	}

	// 未招待のbobは同じセッションに提出できない
	rec = doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"そば屋","sessionId":7}`, "bob")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("uninvited submit status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	var errBody apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errBody.Code != model.ErrCodeNotInvited {
		t.Errorf("error code = %q, want NOT_INVITED", errBody.Code)
	}

	// bob自身は招待を実行できない（作成者ではない）
	rec = doRequest(router, http.MethodPost, "/session/invite",
		`{"sessionId":7,"usernames":["bob"]}`, "bob")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-creator invite status = %d, want 403", rec.Code)
	}

	// aliceがbobを招待
	rec = doRequest(router, http.MethodPost, "/session/invite",
		`{"sessionId":7,"usernames":["bob"]}`, "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("invite status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	// 招待後のbobは提出できる
	rec = doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"そば屋","sessionId":7}`, "bob")
	if rec.Code != http.StatusCreated {
		t.Fatalf("invited submit status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

// TestRouter_GlobalSessionOpenToEveryone はGLOBALセッションが招待なしで
// 誰でも提出できることを検証する。
func TestRouter_GlobalSessionOpenToEveryone(t *testing.T) {
	router, _ := newTestRouter(t)

	// sessionId省略はGLOBAL扱い
	rec := doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"ラーメン屋","sessionId":0}`, "alice")
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// 別ユーザーも招待なしで提出できる
	rec = doRequest(router, http.MethodPost, "/restaurant/submit",
		`{"name":"カレー屋","sessionId":0}`, "stranger")
	if rec.Code != http.StatusCreated {
		t.Fatalf("stranger submit status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// GLOBALセッションの名前は提出時の指定に関わらずGLOBAL
	rec = doRequest(router, http.MethodGet, "/session", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var sessions []*model.Session
	if err := json.NewDecoder(rec.Body).Decode(&sessions); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Name != "GLOBAL" || sessions[0].CreatedBy != model.SystemUsername {
		t.Errorf("sessions = %+v, want single GLOBAL session created by SYSTEM", sessions)
	}
}

// TestRouter_MissingUsernameHeader はX-Usernameヘッダー欠落が400になることを検証する。
func TestRouter_MissingUsernameHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "提出", method: http.MethodPost, target: "/restaurant/submit", body: `{"name":"すし屋"}`},
		{name: "抽選", method: http.MethodGet, target: "/restaurant/random", body: ""},
		{name: "招待", method: http.MethodPost, target: "/session/invite", body: `{"sessionId":7,"usernames":["bob"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, tt.method, tt.target, tt.body, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var errBody apiErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if errBody.Code != model.ErrCodeMissingUsername {
				t.Errorf("error code = %q, want MISSING_USERNAME", errBody.Code)
			}
		})
	}
}

// TestRouter_HealthEndpoint は/healthがX-Usernameなしで200を返すことを検証する。
func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

// TestRouter_RequestIDHeader は全レスポンスにX-Request-IDが付与されることを検証する。
func TestRouter_RequestIDHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/session", "", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}
}
