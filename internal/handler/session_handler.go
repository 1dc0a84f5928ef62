package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lunchdraw/internal/middleware"
	"github.com/hitoshi/lunchdraw/internal/model"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	// List は全セッション（GLOBAL含む）をID昇順で返す。
	List(ctx context.Context) ([]*model.Session, error)
	// Reset はクローズ済みセッションをオープン状態に戻す。
	Reset(ctx context.Context, sessionID int64) (*model.Session, error)
	// Invite はセッション作成者がユーザーを招待する。
	Invite(ctx context.Context, sessionID int64, inviterUsername string, usernames []string) (*model.Session, error)
}

// SessionHandler はセッション操作のHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// inviteUsersRequest はユーザー招待リクエストのボディ。
type inviteUsersRequest struct {
	SessionID int64    `json:"sessionId"`
	Usernames []string `json:"usernames"`
}

// List は全セッションの一覧を返す。
// GET /session
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// Reset はクローズ済みセッションを再オープンする。
// PATCH /session/{sessionId}/reset
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "sessionId")
	sessionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("sessionIdが数値ではありません"))
		return
	}

	session, err := h.service.Reset(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Invite はセッションへのユーザー招待を処理する。作成者のみが実行できる。
// POST /session/invite
func (h *SessionHandler) Invite(w http.ResponseWriter, r *http.Request) {
	inviter, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		middleware.WriteMissingUsernameResponse(w)
		return
	}

	var req inviteUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if len(req.Usernames) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("招待するユーザー名が指定されていません"))
		return
	}

	session, err := h.service.Invite(r.Context(), req.SessionID, inviter, req.Usernames)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
