// Package model はドメインモデルを定義する。
package model

import "time"

// Session はランチ投票の1ラウンドを表す。
// 状態はOPEN/CLOSEDの2値で、SelectedRestaurantはCLOSEDのときに限り非nil（不変条件）。
// CreatedByはこのセッションを最初に参照した提出者（= 作成者）のユーザー名。
type Session struct {
	ID                 int64         `json:"id"`
	Name               string        `json:"name"`
	IsClosed           bool          `json:"isClosed"`
	SelectedRestaurant *string       `json:"selectedRestaurant"`
	InvitedUsers       []string      `json:"invitedUsers"`
	Restaurants        []*Restaurant `json:"restaurants"`
	CreatedBy          string        `json:"createdBy"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// IsCreator は指定ユーザー名がこのセッションの作成者かどうかを返す。
func (s *Session) IsCreator(username string) bool {
	return s.CreatedBy != "" && s.CreatedBy == username
}

// IsUserInvited は指定ユーザー名が招待済み、または作成者本人かどうかを返す。
func (s *Session) IsUserInvited(username string) bool {
	if s.IsCreator(username) {
		return true
	}
	for _, u := range s.InvitedUsers {
		if u == username {
			return true
		}
	}
	return false
}
