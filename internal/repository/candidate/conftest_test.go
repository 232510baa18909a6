package candidate

import (
	"context"
	"testing"

	"github.com/kailas-cloud/taskctx/internal/db/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	ctx := context.Background()

	d, err := sqlite.Open(ctx, sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func exec(t *testing.T, d *sqlite.DB, query string, args ...any) {
	t.Helper()
	if _, err := d.Conn().ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func seedWorkspace(t *testing.T, d *sqlite.DB, id, owner string, members ...string) {
	t.Helper()
	exec(t, d, "INSERT INTO workspaces (id, name, owner_id, created_at) VALUES (?, ?, ?, 0)", id, id, owner)
	for _, m := range members {
		exec(t, d, "INSERT INTO workspace_members (workspace_id, user_id, joined_at) VALUES (?, ?, 0)", id, m)
	}
}

func seedTask(t *testing.T, d *sqlite.DB, id, ws, title, desc, createdBy, assignee string, createdAt int64) {
	t.Helper()
	exec(t, d, `INSERT INTO tasks (id, workspace_id, title, description, created_by, assignee, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, id, ws, title, desc, createdBy, assignee, createdAt)
}

func seedTranscript(t *testing.T, d *sqlite.DB, id, ws, title, summary, content, createdBy string, createdAt int64) {
	t.Helper()
	exec(t, d, `INSERT INTO transcripts (id, workspace_id, meeting_title, summary, content, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, id, ws, title, summary, content, createdBy, createdAt)
}
