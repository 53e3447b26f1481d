package session

import (
	"strings"
	"testing"
	"time"

	"github.com/infrasketch/sketchd/pkg/diagram"
)

func testSession() *Session {
	return &Session{
		ID:            "sess_1",
		Name:          "Payment flow",
		NameGenerated: true,
		Model:         "gpt-4o",
		Status:        StatusCompleted,
		Diagram: &diagram.Diagram{
			Nodes: []diagram.Node{
				{ID: "api", Type: "service", Label: "API Gateway"},
				{ID: "db", Type: "database", Label: "Postgres"},
			},
			Edges:   []diagram.Edge{{ID: "e1", Source: "api", Target: "db"}},
			Version: 2,
		},
		Messages: []Message{
			NewMessage(RoleUser, "design a payment system"),
			NewMessage(RoleAssistant, "Here is a two-tier design."),
		},
		DesignDocStatus: DesignDocNone,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

func TestStoreLoadAndRead(t *testing.T) {
	st := NewStore()
	if st.Active() {
		t.Fatal("fresh store reports active")
	}
	if st.Session() != nil || st.Diagram() != nil || st.Messages() != nil {
		t.Fatal("fresh store leaks non-nil state")
	}

	st.Load(testSession())
	if !st.Active() {
		t.Fatal("store inactive after Load")
	}
	if got := st.SessionID(); got != "sess_1" {
		t.Errorf("SessionID = %q", got)
	}
	name, generated := st.Name()
	if name != "Payment flow" || !generated {
		t.Errorf("Name = %q generated=%v", name, generated)
	}
	if got := st.DiagramVersion(); got != 2 {
		t.Errorf("DiagramVersion = %d, want 2", got)
	}
	if msgs := st.Messages(); len(msgs) != 2 {
		t.Errorf("Messages len = %d, want 2", len(msgs))
	}
}

func TestStoreReadsAreCopies(t *testing.T) {
	st := NewStore()
	st.Load(testSession())

	d := st.Diagram()
	d.RemoveNode("api")
	if got := st.Diagram(); len(got.Nodes) != 2 {
		t.Error("mutating a returned diagram changed store state")
	}

	msgs := st.Messages()
	msgs[0].Content = "tampered"
	if st.Messages()[0].Content == "tampered" {
		t.Error("mutating returned messages changed store state")
	}

	sess := st.Session()
	sess.Name = "tampered"
	if name, _ := st.Name(); name == "tampered" {
		t.Error("mutating returned session changed store state")
	}
}

func TestStoreLoadReplacesWholesale(t *testing.T) {
	st := NewStore()
	st.Load(testSession())
	st.Select("api")

	other := testSession()
	other.ID = "sess_2"
	other.Messages = nil
	st.Load(other)

	if got := st.SessionID(); got != "sess_2" {
		t.Errorf("SessionID after reload = %q", got)
	}
	if msgs := st.Messages(); len(msgs) != 0 {
		t.Errorf("transcript carried over across Load: %d entries", len(msgs))
	}
	if st.Selection() != "" {
		t.Error("selection survived Load")
	}
}

func TestStoreReset(t *testing.T) {
	st := NewStore()
	st.Load(testSession())
	st.Select("api")
	st.Reset()

	if st.Active() {
		t.Error("store active after Reset")
	}
	if st.SessionID() != "" || st.Selection() != "" {
		t.Error("state survived Reset")
	}
	if _, status := st.DesignDoc(); status != DesignDocNone {
		t.Errorf("design doc status after Reset = %s", status)
	}
}

func TestSelectAppendsSystemMessage(t *testing.T) {
	st := NewStore()
	st.Load(testSession())
	before := len(st.Messages())

	st.Select("api")
	msgs := st.Messages()
	if len(msgs) != before+1 {
		t.Fatalf("transcript len = %d, want %d", len(msgs), before+1)
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleSystem {
		t.Errorf("focus entry role = %s, want system", last.Role)
	}
	if !strings.Contains(last.Content, "API Gateway") {
		t.Errorf("focus entry %q does not name the node label", last.Content)
	}

	// Same node again: no new entry.
	st.Select("api")
	if got := len(st.Messages()); got != before+1 {
		t.Errorf("re-selecting appended an entry: len = %d", got)
	}

	// Different node: one more entry.
	st.Select("db")
	if got := len(st.Messages()); got != before+2 {
		t.Errorf("selecting a second node: len = %d, want %d", got, before+2)
	}
	if st.Selection() != "db" {
		t.Errorf("Selection = %q, want db", st.Selection())
	}
}

func TestSelectUnknownNodeUsesID(t *testing.T) {
	st := NewStore()
	st.Load(testSession())
	st.Select("ghost")

	msgs := st.Messages()
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Content, "ghost") {
		t.Errorf("focus entry %q does not fall back to the node id", last.Content)
	}
}

func TestClearSelection(t *testing.T) {
	st := NewStore()
	st.Load(testSession())
	st.Select("api")
	before := len(st.Messages())

	st.ClearSelection()
	if st.Selection() != "" {
		t.Error("selection not cleared")
	}
	if len(st.Messages()) != before {
		t.Error("ClearSelection touched the transcript")
	}

	// Selecting after clearing the same node appends again: the focus
	// actually changed from nothing to the node.
	st.Select("api")
	if len(st.Messages()) != before+1 {
		t.Error("re-focus after clear did not append")
	}
}

func TestSelectOnEmptyStore(t *testing.T) {
	st := NewStore()
	st.Select("api")
	if st.Selection() != "" {
		t.Error("selection set with no active session")
	}
}

func TestApplyDiagramReplacesNotMerges(t *testing.T) {
	st := NewStore()
	st.Load(testSession())

	replacement := &diagram.Diagram{
		Nodes:   []diagram.Node{{ID: "solo", Type: "service", Label: "Solo"}},
		Edges:   []diagram.Edge{},
		Version: 3,
	}
	st.ApplyDiagram(replacement)

	got := st.Diagram()
	if len(got.Nodes) != 1 || got.Nodes[0].ID != "solo" {
		t.Errorf("diagram after apply = %+v, want only solo", got.Nodes)
	}
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}

	// The store must not alias the caller's diagram.
	replacement.Nodes[0].Label = "tampered"
	if st.Diagram().Nodes[0].Label == "tampered" {
		t.Error("store aliases the applied diagram")
	}
}

func TestAppendMessageOrder(t *testing.T) {
	st := NewStore()
	st.Load(testSession())
	before := len(st.Messages())

	st.AppendMessage(NewMessage(RoleUser, "first"))
	st.AppendMessage(NewMessage(RoleAssistant, "second"))

	msgs := st.Messages()
	if len(msgs) != before+2 {
		t.Fatalf("len = %d, want %d", len(msgs), before+2)
	}
	if msgs[len(msgs)-2].Content != "first" || msgs[len(msgs)-1].Content != "second" {
		t.Error("messages out of order")
	}
}

func TestSetNameAndDesignDoc(t *testing.T) {
	st := NewStore()
	st.Load(testSession())

	st.SetName("My design", false)
	name, generated := st.Name()
	if name != "My design" || generated {
		t.Errorf("Name = %q generated=%v", name, generated)
	}

	st.SetDesignDoc("# Design", DesignDocCompleted)
	doc, status := st.DesignDoc()
	if doc != "# Design" || status != DesignDocCompleted {
		t.Errorf("DesignDoc = %q status=%s", doc, status)
	}
}

func TestWritesOnEmptyStoreAreNoOps(t *testing.T) {
	st := NewStore()
	st.ApplyDiagram(diagram.New())
	st.AppendMessage(NewMessage(RoleUser, "hello"))
	st.SetName("x", false)
	st.SetDesignDoc("y", DesignDocCompleted)

	if st.Active() {
		t.Error("writes on an empty store created a session")
	}
}

func TestSummarize(t *testing.T) {
	s := testSession()
	s.DesignDoc = "# Doc"
	s.DesignDocStatus = DesignDocCompleted

	sum := s.Summarize()
	if sum.ID != "sess_1" || sum.NodeCount != 2 || sum.EdgeCount != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !sum.HasDesignDoc {
		t.Error("HasDesignDoc = false with a completed doc")
	}

	s.DesignDocStatus = DesignDocGenerating
	if s.Summarize().HasDesignDoc {
		t.Error("HasDesignDoc = true while still generating")
	}
}

func TestSessionCloneIndependence(t *testing.T) {
	s := testSession()
	c := s.Clone()

	c.Diagram.RemoveNode("api")
	c.Messages[0].Content = "tampered"
	c.Name = "other"

	if len(s.Diagram.Nodes) != 2 {
		t.Error("clone shares diagram with original")
	}
	if s.Messages[0].Content == "tampered" {
		t.Error("clone shares transcript with original")
	}
	if s.Name != "Payment flow" {
		t.Error("clone shares scalar state")
	}

	var nilSess *Session
	if nilSess.Clone() != nil {
		t.Error("nil Clone must return nil")
	}
}
