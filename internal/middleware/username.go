// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HeaderXUsername は提出者・招待者のユーザー名を運ぶリクエストヘッダー名。
// ユーザー名は呼び出し元の申告をそのまま信頼する（認証は範囲外）。
const HeaderXUsername = "X-Username"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// usernameContextKey はリクエストコンテキストにユーザー名を格納するためのキー。
var usernameContextKey = contextKey("username")

// NewUsernameMiddleware はX-Usernameヘッダーを読み取り、
// ユーザー名をリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーが欠落しているリクエストには400 Bad Requestを返す。
func NewUsernameMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get(HeaderXUsername))
			if username == "" {
				WriteMissingUsernameResponse(w)
				return
			}

			ctx := context.WithValue(r.Context(), usernameContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext はリクエストコンテキストからユーザー名を取得する。
// ユーザー名ミドルウェアを通過したリクエストでのみ有効。
func UsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameContextKey).(string)
	if !ok || username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// ContextWithUsername はコンテキストにユーザー名を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameContextKey, username)
}
