package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/internal/storage/storagetest"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

var memDBSeq atomic.Int64

// openMemory uses in-memory SQLite with shared cache so each subtest gets
// an isolated database that lives as long as its pool.
func openMemory(t *testing.T) storage.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memDBSeq.Add(1))
	store, err := New(dsn)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func TestSQLiteStore(t *testing.T) {
	storagetest.RunStoreTests(t, openMemory)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sketchd.db")

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sess := session.New("gpt-4o")
	sess.ID = "sess_durable"
	sess.Name = "Durable design"
	sess.Status = session.StatusCompleted
	sess.Diagram = diagram.New()
	sess.Diagram.Nodes = []diagram.Node{{ID: "node_1", Type: "service", Label: "API"}}

	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := store.AddMessage(context.Background(), "sess_durable", session.NewMessage(session.RoleUser, "hello")); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() after close error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetSession(context.Background(), "sess_durable")
	if err != nil {
		t.Fatalf("GetSession() after reopen error = %v", err)
	}
	if got.Name != "Durable design" {
		t.Errorf("Name = %q, want Durable design", got.Name)
	}
	if len(got.Diagram.Nodes) != 1 {
		t.Errorf("Diagram nodes = %d, want 1", len(got.Diagram.Nodes))
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hello" {
		t.Errorf("Messages = %+v, want the persisted hello", got.Messages)
	}
}

func TestSQLiteStore_NilDiagramRoundTrip(t *testing.T) {
	store := openMemory(t)
	defer store.Close()

	sess := session.New("gpt-4o")
	sess.ID = "sess_pending"

	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := store.GetSession(context.Background(), "sess_pending")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Diagram != nil {
		t.Errorf("Diagram = %+v, want nil while generation is pending", got.Diagram)
	}
	if got.Status != session.StatusGenerating {
		t.Errorf("Status = %q, want %q", got.Status, session.StatusGenerating)
	}

	summaries, err := store.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("ListSessions() count = %d, want 1", len(summaries))
	}
	if summaries[0].NodeCount != 0 || summaries[0].EdgeCount != 0 {
		t.Errorf("summary counts = %d/%d, want 0/0 for nil diagram", summaries[0].NodeCount, summaries[0].EdgeCount)
	}
}
