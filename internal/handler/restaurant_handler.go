package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/lunchdraw/internal/middleware"
	"github.com/hitoshi/lunchdraw/internal/model"
)

// RestaurantSubmitter はレストラン提出ハンドラーが必要とするサービスインターフェース。
type RestaurantSubmitter interface {
	// Submit はレストラン候補をセッションに提出する。
	Submit(ctx context.Context, sessionID int64, sessionName, restaurantName, username string) (*model.Restaurant, error)
}

// RandomPicker は抽選ハンドラーが必要とするサービスインターフェース。
type RandomPicker interface {
	// PickRandomAndClose は候補から一様ランダムに1件選び、セッションをクローズする。
	PickRandomAndClose(ctx context.Context, sessionID int64) (*model.Restaurant, error)
}

// RestaurantHandler はレストラン提出・抽選のHTTPハンドラー。
type RestaurantHandler struct {
	submitter RestaurantSubmitter
	picker    RandomPicker
	// DefaultSessionID はsessionIdクエリパラメータ省略時のセッションID（GLOBAL）。
	defaultSessionID int64
}

// NewRestaurantHandler はRestaurantHandlerを生成する。
func NewRestaurantHandler(submitter RestaurantSubmitter, picker RandomPicker, defaultSessionID int64) *RestaurantHandler {
	return &RestaurantHandler{
		submitter:        submitter,
		picker:           picker,
		defaultSessionID: defaultSessionID,
	}
}

// submitRestaurantRequest はレストラン提出リクエストのボディ。
type submitRestaurantRequest struct {
	Name        string `json:"name"`
	SessionID   int64  `json:"sessionId"`
	SessionName string `json:"sessionName"`
}

// Submit はレストラン提出を処理する。
// POST /restaurant/submit
func (h *RestaurantHandler) Submit(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		middleware.WriteMissingUsernameResponse(w)
		return
	}

	var req submitRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("レストラン名が空です"))
		return
	}

	restaurant, err := h.submitter.Submit(r.Context(), req.SessionID, req.SessionName, req.Name, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, restaurant)
}

// PickRandom は抽選を処理する。成功するとセッションはクローズされる。
// GET /restaurant/random?sessionId=N（省略時はGLOBAL）
func (h *RestaurantHandler) PickRandom(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UsernameFromContext(r.Context()); err != nil {
		middleware.WriteMissingUsernameResponse(w)
		return
	}

	sessionID := h.defaultSessionID
	if raw := r.URL.Query().Get("sessionId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("sessionIdが数値ではありません"))
			return
		}
		sessionID = parsed
	}

	restaurant, err := h.picker.PickRandomAndClose(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, restaurant)
}
