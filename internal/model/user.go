package model

import "time"

// User links a Telegram account to an identity-provider account.
type User struct {
	ID             uint  `gorm:"primaryKey"`
	TelegramID     int64 `gorm:"uniqueIndex"`
	FirstName      string
	Username       string
	AuthUID        string `gorm:"index"`
	Email          string
	IDToken        string
	RefreshToken   string
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SignedIn reports whether the user has a stored provider session.
func (u User) SignedIn() bool {
	return u.AuthUID != "" && u.RefreshToken != ""
}
