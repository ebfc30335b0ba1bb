package domain

import "time"

// User represents a verified, persisted account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingRegistration holds a registration submission between the register
// step and a successful email verification. The password is kept as
// submitted; it is hashed only when the account is created.
type PendingRegistration struct {
	Username string
	Email    string
	Password string
}
