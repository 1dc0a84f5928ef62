// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizerService はユーザーが入力する表示名（レストラン名・セッション名）を
// サニタイズし、XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicyを使用し、HTMLタグと属性を全て除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名サニタイズ機能のインターフェースを定義する。
// レストラン候補およびセッションの保存前に使用される。
type NameSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去し、前後の空白を削った名前を返す。
	// タグ除去後に何も残らない入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
// 表示名にマークアップは不要なため、許可タグを一切持たないStrictPolicyを使う。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去し前後の空白を削る。
func (s *nameSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
