package models

import "time"

// User is the credential record plus the profile fields collected at
// registration. PasswordHash is always hex(key) + "." + hex(salt).
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	Email        *string
	Phone        *string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID        string
	UserID    int64
	TokenHash []byte
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
