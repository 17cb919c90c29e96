package models

import "time"

// VerificationCode — one row per sent code. Only the bcrypt hash of the
// 6-digit code is stored; the newest row by sent_at is the active one.
type VerificationCode struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	CodeHash  string    `json:"-"`
	SentAt    time.Time `json:"sent_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Confirmed bool      `json:"confirmed"`
	Attempts  int       `json:"attempts"`
}
