package model

import "time"

// Session はユーザーのログインセッションを表す。
// 発行は外部のアイデンティティサービスが行い、本エンジンは検証のみ行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
