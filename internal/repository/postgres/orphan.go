package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/courier/internal/model"
)

func (s *Store) RecordOrphan(ctx context.Context, orphan *model.OrphanedUser) error {
	if orphan.CreatedAt.IsZero() {
		orphan.CreatedAt = time.Now().UTC()
	}

	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT INTO orphaned_users (user_id, reason, created_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_id) DO NOTHING`,
			orphan.UserID, orphan.Reason, orphan.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: recording orphan %s: %w", orphan.UserID, err)
		}
		return nil
	})
}

// ListOrphans returns up to limit entries, oldest first.
func (s *Store) ListOrphans(ctx context.Context, limit int) ([]model.OrphanedUser, error) {
	if limit <= 0 {
		limit = 100
	}

	var orphans []model.OrphanedUser
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT user_id, reason, created_at FROM orphaned_users
			 ORDER BY created_at ASC LIMIT $1`,
			limit,
		)
		if err != nil {
			return err
		}
		orphans, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.OrphanedUser])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: listing orphans: %w", err)
	}
	if orphans == nil {
		orphans = []model.OrphanedUser{}
	}

	return orphans, nil
}

func (s *Store) DeleteOrphan(ctx context.Context, userID string) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, `DELETE FROM orphaned_users WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("postgres: deleting orphan %s: %w", userID, err)
		}
		return nil
	})
}
