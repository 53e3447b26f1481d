package memory

import (
	"context"
	"testing"

	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/internal/storage/storagetest"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

func TestMemoryStore(t *testing.T) {
	storagetest.RunStoreTests(t, func(t *testing.T) storage.Store {
		return New()
	})
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := New()

	sess := session.New("gpt-4o")
	sess.ID = "sess_copy"
	sess.Status = session.StatusCompleted
	sess.Diagram = diagram.New()
	sess.Diagram.Nodes = []diagram.Node{{ID: "node_1", Type: "service", Label: "API"}}

	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	first, err := store.GetSession(context.Background(), "sess_copy")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	first.Name = "mutated"
	first.Diagram.Nodes[0].Label = "mutated"

	second, err := store.GetSession(context.Background(), "sess_copy")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if second.Name == "mutated" {
		t.Error("stored session name aliased to caller copy")
	}
	if second.Diagram.Nodes[0].Label == "mutated" {
		t.Error("stored diagram aliased to caller copy")
	}
}

func TestMemoryStore_CreateDoesNotAliasInput(t *testing.T) {
	store := New()

	sess := session.New("gpt-4o")
	sess.ID = "sess_alias"
	sess.Diagram = diagram.New()
	sess.Diagram.Nodes = []diagram.Node{{ID: "node_1", Type: "service", Label: "API"}}

	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	sess.Diagram.Nodes[0].Label = "mutated"

	got, err := store.GetSession(context.Background(), "sess_alias")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Diagram.Nodes[0].Label == "mutated" {
		t.Error("stored diagram aliased to input")
	}
}
