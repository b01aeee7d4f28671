package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		path       string
		wantPrefix string
	}{
		{":memory:", ":memory:?_pragma="},
		{"data/courier.db", "data/courier.db?_pragma="},
		{"file:courier.db?mode=rwc", "file:courier.db?mode=rwc&_pragma="},
	}

	for _, tt := range tests {
		got := dsn(tt.path)
		if !strings.HasPrefix(got, tt.wantPrefix) {
			t.Errorf("dsn(%q) = %q, want prefix %q", tt.path, got, tt.wantPrefix)
		}
		for _, p := range []string{"foreign_keys%281%29", "busy_timeout%285000%29", "journal_mode%28WAL%29"} {
			if !strings.Contains(got, p) {
				t.Errorf("dsn(%q) = %q, missing %s", tt.path, got, p)
			}
		}
	}
}

func queryPragma(t *testing.T, ctx context.Context, conn *sql.Conn, name string) string {
	t.Helper()
	var v string
	if err := conn.QueryRowContext(ctx, "PRAGMA "+name).Scan(&v); err != nil {
		t.Fatalf("PRAGMA %s: %v", name, err)
	}
	return v
}

func TestNew_PragmasApplied(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.withConn(ctx, func(conn *sql.Conn) error {
		if got := queryPragma(t, ctx, conn, "foreign_keys"); got != "1" {
			t.Errorf("foreign_keys = %s, want 1", got)
		}
		if got := queryPragma(t, ctx, conn, "busy_timeout"); got != "5000" {
			t.Errorf("busy_timeout = %s, want 5000", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withConn: %v", err)
	}
}

// Every pooled connection gets the pragmas, not just the first one.
func TestDSN_PragmasOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pragmas.db")

	// Create the file and schema through New first.
	db, err := New(ctx, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	db.Close()

	pool, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pool.Close()

	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		conn, err := pool.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}

	for i, conn := range conns {
		if got := queryPragma(t, ctx, conn, "foreign_keys"); got != "1" {
			t.Errorf("conn %d: foreign_keys = %s, want 1", i, got)
		}
		if got := queryPragma(t, ctx, conn, "busy_timeout"); got != "5000" {
			t.Errorf("conn %d: busy_timeout = %s, want 5000", i, got)
		}
		if got := queryPragma(t, ctx, conn, "journal_mode"); got != "wal" {
			t.Errorf("conn %d: journal_mode = %s, want wal", i, got)
		}
	}
}
