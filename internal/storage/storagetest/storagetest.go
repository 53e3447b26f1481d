// Package storagetest holds the conformance suite every storage.Store
// adapter must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

// Factory opens a fresh, empty store for one subtest. The suite closes it.
type Factory func(t *testing.T) storage.Store

// RunStoreTests exercises the storage.Store contract against the adapter
// produced by open.
func RunStoreTests(t *testing.T, open Factory) {
	t.Run("CreateAndGet", func(t *testing.T) {
		st := openStore(t, open)

		sess := testSession("sess_roundtrip")
		if err := st.CreateSession(context.Background(), sess); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}

		got, err := st.GetSession(context.Background(), "sess_roundtrip")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}

		if got.ID != sess.ID {
			t.Errorf("ID = %q, want %q", got.ID, sess.ID)
		}
		if got.Name != "Payment flow" {
			t.Errorf("Name = %q, want %q", got.Name, "Payment flow")
		}
		if !got.NameGenerated {
			t.Error("NameGenerated = false, want true")
		}
		if got.Model != "gpt-4o" {
			t.Errorf("Model = %q, want %q", got.Model, "gpt-4o")
		}
		if got.Status != session.StatusCompleted {
			t.Errorf("Status = %q, want %q", got.Status, session.StatusCompleted)
		}
		if got.DurationSeconds != 2.5 {
			t.Errorf("DurationSeconds = %v, want 2.5", got.DurationSeconds)
		}
		if got.DesignDocStatus != session.DesignDocCompleted {
			t.Errorf("DesignDocStatus = %q, want %q", got.DesignDocStatus, session.DesignDocCompleted)
		}
		if got.DesignDoc != "# Payment flow\n\nTwo services." {
			t.Errorf("DesignDoc = %q", got.DesignDoc)
		}
		if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
			t.Errorf("timestamps not stamped: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
		}
		if len(got.Messages) != 0 {
			t.Errorf("Messages count = %d, want 0", len(got.Messages))
		}

		if got.Diagram == nil {
			t.Fatal("Diagram = nil")
		}
		if len(got.Diagram.Nodes) != 2 || len(got.Diagram.Edges) != 1 {
			t.Fatalf("Diagram shape = %d nodes / %d edges, want 2/1", len(got.Diagram.Nodes), len(got.Diagram.Edges))
		}
		if got.Diagram.Version != 4 {
			t.Errorf("Diagram.Version = %d, want 4", got.Diagram.Version)
		}
		api := got.Diagram.NodeByID("node_api")
		if api == nil {
			t.Fatal("node_api missing after round trip")
		}
		if api.Position.X != 120 || api.Position.Y != 80 {
			t.Errorf("node_api position = %+v", api.Position)
		}
		if v := api.Metadata.GetString("runtime"); v != "go" {
			t.Errorf("node_api metadata runtime = %q, want go", v)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		st := openStore(t, open)

		_, err := st.GetSession(context.Background(), "sess_missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("GetSession() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdatePreservesTranscript", func(t *testing.T) {
		st := openStore(t, open)

		sess := testSession("sess_update")
		if err := st.CreateSession(context.Background(), sess); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
		for _, content := range []string{"first", "second"} {
			if err := st.AddMessage(context.Background(), "sess_update", session.NewMessage(session.RoleUser, content)); err != nil {
				t.Fatalf("AddMessage(%q) error = %v", content, err)
			}
		}

		before, err := st.GetSession(context.Background(), "sess_update")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}

		changed := before.Clone()
		changed.Name = "Renamed"
		changed.Status = session.StatusFailed
		changed.GenerationError = "model returned garbage"
		changed.Diagram.Version = 9
		changed.Messages = nil
		if err := st.UpdateSession(context.Background(), changed); err != nil {
			t.Fatalf("UpdateSession() error = %v", err)
		}

		got, err := st.GetSession(context.Background(), "sess_update")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if got.Name != "Renamed" {
			t.Errorf("Name = %q, want Renamed", got.Name)
		}
		if got.Status != session.StatusFailed {
			t.Errorf("Status = %q, want %q", got.Status, session.StatusFailed)
		}
		if got.GenerationError != "model returned garbage" {
			t.Errorf("GenerationError = %q", got.GenerationError)
		}
		if got.Diagram.Version != 9 {
			t.Errorf("Diagram.Version = %d, want 9", got.Diagram.Version)
		}
		if len(got.Messages) != 2 {
			t.Fatalf("Messages count = %d, want 2 (update must not touch transcript)", len(got.Messages))
		}
		if got.Messages[0].Content != "first" || got.Messages[1].Content != "second" {
			t.Errorf("transcript altered: %q, %q", got.Messages[0].Content, got.Messages[1].Content)
		}
		if !got.CreatedAt.Equal(before.CreatedAt) {
			t.Errorf("CreatedAt changed on update: %v -> %v", before.CreatedAt, got.CreatedAt)
		}
		if got.UpdatedAt.Before(before.UpdatedAt) {
			t.Errorf("UpdatedAt went backwards: %v -> %v", before.UpdatedAt, got.UpdatedAt)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		st := openStore(t, open)

		err := st.UpdateSession(context.Background(), testSession("sess_ghost"))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("UpdateSession() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("AddMessageOrder", func(t *testing.T) {
		st := openStore(t, open)

		sess := testSession("sess_chat")
		if err := st.CreateSession(context.Background(), sess); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}

		created, err := st.GetSession(context.Background(), "sess_chat")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}

		turns := []session.Message{
			session.NewMessage(session.RoleUser, "add a cache"),
			session.NewMessage(session.RoleAssistant, "Added a Redis cache."),
			session.NewMessage(session.RoleUser, "now a queue"),
		}
		for _, msg := range turns {
			if err := st.AddMessage(context.Background(), "sess_chat", msg); err != nil {
				t.Fatalf("AddMessage() error = %v", err)
			}
		}

		got, err := st.GetSession(context.Background(), "sess_chat")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if len(got.Messages) != 3 {
			t.Fatalf("Messages count = %d, want 3", len(got.Messages))
		}
		for i, msg := range got.Messages {
			if msg.ID != turns[i].ID {
				t.Errorf("message %d ID = %q, want %q", i, msg.ID, turns[i].ID)
			}
			if msg.Role != turns[i].Role {
				t.Errorf("message %d Role = %q, want %q", i, msg.Role, turns[i].Role)
			}
			if msg.Content != turns[i].Content {
				t.Errorf("message %d Content = %q, want %q", i, msg.Content, turns[i].Content)
			}
			if msg.CreatedAt.IsZero() {
				t.Errorf("message %d CreatedAt is zero", i)
			}
		}
		if got.UpdatedAt.Before(created.UpdatedAt) {
			t.Errorf("AddMessage did not bump UpdatedAt: %v -> %v", created.UpdatedAt, got.UpdatedAt)
		}
	})

	t.Run("AddMessageMissing", func(t *testing.T) {
		st := openStore(t, open)

		err := st.AddMessage(context.Background(), "sess_nope", session.NewMessage(session.RoleUser, "hello"))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("AddMessage() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		st := openStore(t, open)

		first := testSession("sess_a")
		if err := st.CreateSession(context.Background(), first); err != nil {
			t.Fatalf("CreateSession(a) error = %v", err)
		}

		second := session.New("gpt-4o")
		second.ID = "sess_b"
		second.Name = "Blank canvas"
		second.Status = session.StatusCompleted
		if err := st.CreateSession(context.Background(), second); err != nil {
			t.Fatalf("CreateSession(b) error = %v", err)
		}

		// Touching the first session moves it back to the top.
		if err := st.UpdateSession(context.Background(), first); err != nil {
			t.Fatalf("UpdateSession(a) error = %v", err)
		}

		summaries, err := st.ListSessions(context.Background())
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(summaries) != 2 {
			t.Fatalf("ListSessions() count = %d, want 2", len(summaries))
		}
		if summaries[0].ID != "sess_a" || summaries[1].ID != "sess_b" {
			t.Fatalf("order = [%s %s], want [sess_a sess_b]", summaries[0].ID, summaries[1].ID)
		}

		a := summaries[0]
		if a.Name != "Payment flow" {
			t.Errorf("summary name = %q", a.Name)
		}
		if a.NodeCount != 2 || a.EdgeCount != 1 {
			t.Errorf("summary counts = %d nodes / %d edges, want 2/1", a.NodeCount, a.EdgeCount)
		}
		if a.Model != "gpt-4o" {
			t.Errorf("summary model = %q", a.Model)
		}
		if !a.HasDesignDoc {
			t.Error("summary a HasDesignDoc = false, want true")
		}

		b := summaries[1]
		if b.NodeCount != 0 || b.EdgeCount != 0 {
			t.Errorf("blank summary counts = %d/%d, want 0/0", b.NodeCount, b.EdgeCount)
		}
		if b.HasDesignDoc {
			t.Error("blank summary HasDesignDoc = true, want false")
		}
	})

	t.Run("ListEmpty", func(t *testing.T) {
		st := openStore(t, open)

		summaries, err := st.ListSessions(context.Background())
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(summaries) != 0 {
			t.Errorf("ListSessions() count = %d, want 0", len(summaries))
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		st := openStore(t, open)

		sess := testSession("sess_del")
		if err := st.CreateSession(context.Background(), sess); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
		if err := st.AddMessage(context.Background(), "sess_del", session.NewMessage(session.RoleUser, "bye")); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}

		if err := st.DeleteSession(context.Background(), "sess_del"); err != nil {
			t.Fatalf("DeleteSession() error = %v", err)
		}

		if _, err := st.GetSession(context.Background(), "sess_del"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("GetSession() after delete error = %v, want ErrNotFound", err)
		}
		if err := st.DeleteSession(context.Background(), "sess_del"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("second DeleteSession() error = %v, want ErrNotFound", err)
		}
	})
}

func openStore(t *testing.T, open Factory) storage.Store {
	t.Helper()
	st := open(t)
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return st
}

// testSession builds a completed session with a small two-service diagram
// and a finished design doc.
func testSession(id string) *session.Session {
	d := diagram.New()
	d.Version = 4
	d.Nodes = []diagram.Node{
		{
			ID:       "node_api",
			Type:     "service",
			Label:    "API",
			Inputs:   []string{"HTTP"},
			Outputs:  []string{"SQL"},
			Metadata: diagram.Metadata{"runtime": "go"},
			Position: diagram.Position{X: 120, Y: 80},
		},
		{
			ID:       "node_db",
			Type:     "database",
			Label:    "Postgres",
			Position: diagram.Position{X: 120, Y: 240},
		},
	}
	d.Edges = []diagram.Edge{
		{ID: "edge_api_db", Source: "node_api", Target: "node_db", Label: "queries"},
	}

	sess := session.New("gpt-4o")
	sess.ID = id
	sess.Name = "Payment flow"
	sess.NameGenerated = true
	sess.Status = session.StatusCompleted
	sess.DurationSeconds = 2.5
	sess.Diagram = d
	sess.DesignDoc = "# Payment flow\n\nTwo services."
	sess.DesignDocStatus = session.DesignDocCompleted
	sess.DesignDocDuration = 4.25
	return sess
}
