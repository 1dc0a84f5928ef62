// Package model はドメインモデルを定義する。
package model

import "time"

// SystemUsername はシステム操作（デフォルトユーザー投入、GLOBALセッションの遅延作成）の
// 実行者として記録される予約ユーザー名。
const SystemUsername = "SYSTEM"

// User はランチ投票に参加するユーザーを表す。ユーザー名が不変の主キー。
// CanInitiateSessionは権限フラグとして保持するが、現行のライフサイクル規則では
// どこからも参照されない（セッション作成は全ユーザーに開放されている）。
type User struct {
	Username           string    `json:"username"`
	CanInitiateSession bool      `json:"canInitiateSession"`
	CreatedBy          string    `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
