package models

import "time"

// User is a local account linked to a Kakao identity.
type User struct {
	ID              int64
	KakaoID         string
	Email           string
	Nickname        string
	ProfileImageURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
