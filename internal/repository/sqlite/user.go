package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/courier/internal/apperror"
	"github.com/sakif/courier/internal/model"
)

// CreateUser inserts a new account.
//
// ID GENERATION WITH xid:
// xid generates globally unique IDs that are 20 chars, URL-safe and sortable
// by creation time. Example: "cv37rs3pp9olc6atsptg"
//
// The email column is UNIQUE, so a second account with the same address
// fails with apperror.ErrConflict instead of a raw driver error.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	return db.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO users (id, email, password_hash, created_at)
			 VALUES (?, ?, ?, ?)`,
			user.ID,
			user.Email,
			user.PasswordHash,
			user.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("sqlite: inserting user: %w", apperror.Conflict("user", user.Email))
			}
			return fmt.Errorf("sqlite: inserting user: %w", err)
		}
		return nil
	})
}

// GetUserByEmail retrieves a user, password hash included, by email.
// Returns apperror.ErrNotFound if no user has that email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email", email)
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

// getUser is shared by the two lookups. column is never user input.
func (db *DB) getUser(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User

	err := db.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`SELECT id, email, password_hash, created_at
			 FROM users WHERE `+column+` = ?`,
			value,
		).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	return &u, nil
}

// DeleteUser removes a user. ON DELETE CASCADE removes the profile too.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
		}
		return nil
	})
}
