package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/courier/internal/apperror"
	"github.com/sakif/courier/internal/model"
)

// CreateUserInfo inserts the profile for an existing user. info.ID must be
// the owning user's ID; the foreign key rejects anything else.
func (db *DB) CreateUserInfo(ctx context.Context, info *model.UserInfo) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO user_infos (id, display_name, bio) VALUES (?, ?, ?)`,
			info.ID,
			info.DisplayName,
			info.Bio,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("sqlite: inserting user info: %w", apperror.Conflict("user info", info.ID))
			}
			return fmt.Errorf("sqlite: inserting user info %s: %w", info.ID, err)
		}
		return nil
	})
}

// GetUserInfoByID retrieves a profile.
// Returns apperror.ErrNotFound if the user has no profile.
func (db *DB) GetUserInfoByID(ctx context.Context, id string) (*model.UserInfo, error) {
	var info model.UserInfo

	err := db.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`SELECT id, display_name, bio FROM user_infos WHERE id = ?`,
			id,
		).Scan(&info.ID, &info.DisplayName, &info.Bio)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user info", id)
		}
		return nil, fmt.Errorf("sqlite: getting user info %s: %w", id, err)
	}

	return &info, nil
}
