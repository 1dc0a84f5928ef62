// Package model はドメインモデルを定義する。
package model

import "time"

// Restaurant はセッションに提出された1件のレストラン候補を表す。
// 提出後に変更されることはない。CreatedByは提出者のユーザー名。
type Restaurant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SessionID int64     `json:"sessionId"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}
