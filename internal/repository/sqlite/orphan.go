package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/courier/internal/model"
)

// RecordOrphan stores a reconciliation entry. Recording the same user twice
// keeps the first entry.
func (db *DB) RecordOrphan(ctx context.Context, orphan *model.OrphanedUser) error {
	if orphan.CreatedAt.IsZero() {
		orphan.CreatedAt = time.Now().UTC()
	}

	return db.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO orphaned_users (user_id, reason, created_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT(user_id) DO NOTHING`,
			orphan.UserID,
			orphan.Reason,
			orphan.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: recording orphan %s: %w", orphan.UserID, err)
		}
		return nil
	})
}

// ListOrphans returns up to limit entries, oldest first.
//
// ALWAYS CLOSE ROWS:
// sql.Rows holds the connection until closed. The deferred rows.Close()
// runs before withConn hands the connection back.
func (db *DB) ListOrphans(ctx context.Context, limit int) ([]model.OrphanedUser, error) {
	if limit <= 0 {
		limit = 100
	}

	orphans := []model.OrphanedUser{}
	err := db.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT user_id, reason, created_at FROM orphaned_users
			 ORDER BY created_at ASC LIMIT ?`,
			limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var o model.OrphanedUser
			if err := rows.Scan(&o.UserID, &o.Reason, &o.CreatedAt); err != nil {
				return err
			}
			orphans = append(orphans, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing orphans: %w", err)
	}

	return orphans, nil
}

// DeleteOrphan clears the entry for userID.
func (db *DB) DeleteOrphan(ctx context.Context, userID string) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM orphaned_users WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("sqlite: deleting orphan %s: %w", userID, err)
		}
		return nil
	})
}
