package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"github.com/sakif/courier/internal/apperror"
	"github.com/sakif/courier/internal/model"
)

// CreateUser inserts a new account; a duplicate email is apperror.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, created_at)
			 VALUES ($1, $2, $3, $4)`,
			user.ID, user.Email, user.PasswordHash, user.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("postgres: inserting user: %w", apperror.Conflict("user", user.Email))
			}
			return fmt.Errorf("postgres: inserting user: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (s *Store) getUser(ctx context.Context, query, key string) (*model.User, error) {
	var u model.User

	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, query, key).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("postgres: getting user: %w", err)
	}

	return &u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("postgres: deleting user %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) CreateUserInfo(ctx context.Context, info *model.UserInfo) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT INTO user_infos (id, display_name, bio) VALUES ($1, $2, $3)`,
			info.ID, info.DisplayName, info.Bio,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("postgres: inserting user info: %w", apperror.Conflict("user info", info.ID))
			}
			return fmt.Errorf("postgres: inserting user info %s: %w", info.ID, err)
		}
		return nil
	})
}

func (s *Store) GetUserInfoByID(ctx context.Context, id string) (*model.UserInfo, error) {
	var info model.UserInfo

	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT id, display_name, bio FROM user_infos WHERE id = $1`, id,
		).Scan(&info.ID, &info.DisplayName, &info.Bio)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user info", id)
		}
		return nil, fmt.Errorf("postgres: getting user info %s: %w", id, err)
	}

	return &info, nil
}
