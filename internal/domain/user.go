package domain

import "time"

// User is the identity record for anyone who can log in. The single IsAdmin
// flag is the only role distinction in the system.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsAdmin      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
