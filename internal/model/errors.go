// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し元に返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, session, user, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSessionClosed      = "SESSION_CLOSED"
	ErrCodeNotInvited         = "NOT_INVITED"
	ErrCodeNotCreator         = "NOT_CREATOR"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeSessionAlreadyOpen = "SESSION_ALREADY_OPEN"
	ErrCodeNoCandidates       = "NO_CANDIDATES"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingUsername    = "MISSING_USERNAME"
)

// NewSessionClosedError はクローズ済みセッションへの操作エラーを生成する。
// 提出とピックの両方で使用する（「すでに抽選済み」のセマンティクス）。
func NewSessionClosedError(sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeSessionClosed,
		Message:  fmt.Sprintf("セッション %d はクローズ済みです。抽選はすでに実行されています。", sessionID),
		Category: "session",
		Action:   "リセットAPIでセッションを再オープンするか、別のセッションを使用してください。",
	}
}

// NewNotInvitedError は未招待ユーザーの提出エラーを生成する。
func NewNotInvitedError(username, sessionName string, sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeNotInvited,
		Message:  fmt.Sprintf("ユーザー '%s' はセッション '%s'（ID: %d）に招待されていません。", username, sessionName, sessionID),
		Category: "session",
		Action:   "セッション作成者に招待を依頼してください。",
	}
}

// NewNotCreatorError は作成者以外による招待エラーを生成する。
func NewNotCreatorError(sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeNotCreator,
		Message:  fmt.Sprintf("セッション %d への招待は作成者のみが実行できます。", sessionID),
		Category: "session",
		Action:   "セッション作成者として招待を実行してください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %d", sessionID),
		Category: "session",
		Action:   "セッションIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", username),
		Category: "user",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewSessionAlreadyOpenError はオープン状態のセッションへのリセットエラーを生成する。
func NewSessionAlreadyOpenError(sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeSessionAlreadyOpen,
		Message:  fmt.Sprintf("セッション %d はすでにオープンしています。", sessionID),
		Category: "session",
		Action:   "リセットはクローズ済みセッションに対してのみ実行できます。",
	}
}

// NewNoCandidatesError は候補0件での抽選エラーを生成する。
func NewNoCandidatesError(sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeNoCandidates,
		Message:  fmt.Sprintf("セッション %d にレストラン候補がありません。", sessionID),
		Category: "session",
		Action:   "先にレストランを提出してから抽選してください。",
	}
}

// NewConflictError はセッション作成の同時実行競合エラーを生成する。
// ライフサイクルエンジン内部で再取得のトリガーとして使用し、原則として呼び出し元には漏らさない。
func NewConflictError(sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("セッション %d の作成が競合しました。", sessionID),
		Category: "session",
		Action:   "再試行してください。",
	}
}

// NewInvalidRequestError はリクエスト形式の検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト形式を確認してください。",
	}
}

// NewMissingUsernameError はX-Usernameヘッダー欠落エラーを生成する。
func NewMissingUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingUsername,
		Message:  "X-Usernameヘッダーが指定されていません。",
		Category: "validation",
		Action:   "X-Usernameヘッダーにユーザー名を指定してください。",
	}
}
