// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// PasswordHash carries the `json:"-"` tag, so encoding/json never writes it.
// Services also call ClearPassword before handing a User to a caller, which
// keeps the hash from leaking through logs or other encoders.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// ClearPassword drops the password hash from the value.
func (u *User) ClearPassword() {
	u.PasswordHash = ""
}

// UserInfo is the public profile of a User. ID always equals the owning User.ID.
type UserInfo struct {
	ID          string `json:"id"          db:"id"`
	DisplayName string `json:"displayName" db:"display_name"`
	Bio         string `json:"bio"         db:"bio"`
}

// Session is handed back after a successful login. It is never stored
// server-side: Token is a self-contained JWT.
type Session struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// OrphanedUser records a User whose profile creation failed and whose
// compensating delete failed as well. The reconciler retries the delete.
type OrphanedUser struct {
	UserID    string    `db:"user_id"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}
