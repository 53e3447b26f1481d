package diagram

import (
	"encoding/json"
	"reflect"
	"testing"
)

func testDiagram() *Diagram {
	return &Diagram{
		Nodes: []Node{
			{ID: "api", Type: "service", Label: "API Gateway", Position: Position{X: 100, Y: 50}},
			{ID: "db", Type: "database", Label: "Postgres", Position: Position{X: 300, Y: 200}},
			{ID: "cache", Type: "cache", Label: "Redis", Position: Position{X: 300, Y: 50}},
			{ID: "grp1", Type: "group", Label: "Data Tier", IsGroup: true, IsCollapsed: true, ChildIDs: []string{"db", "cache"}, Position: Position{X: 300, Y: 125}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "api", Target: "db", Label: "reads/writes"},
			{ID: "e2", Source: "api", Target: "cache"},
		},
		Version: 3,
	}
}

func TestNewEmptyJSON(t *testing.T) {
	d := New()
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"nodes":[],"edges":[],"version":1}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestNodeByID(t *testing.T) {
	d := testDiagram()
	if n := d.NodeByID("db"); n == nil || n.Label != "Postgres" {
		t.Errorf("NodeByID(db) = %+v, want Postgres node", n)
	}
	if n := d.NodeByID("missing"); n != nil {
		t.Errorf("NodeByID(missing) = %+v, want nil", n)
	}
}

func TestGroupOf(t *testing.T) {
	d := testDiagram()
	if g := d.GroupOf("db"); g == nil || g.ID != "grp1" {
		t.Errorf("GroupOf(db) = %+v, want grp1", g)
	}
	if g := d.GroupOf("api"); g != nil {
		t.Errorf("GroupOf(api) = %+v, want nil for top-level node", g)
	}
}

func TestEdgesTouching(t *testing.T) {
	d := testDiagram()
	edges := d.EdgesTouching("api")
	if len(edges) != 2 {
		t.Fatalf("EdgesTouching(api) returned %d edges, want 2", len(edges))
	}
	edges = d.EdgesTouching("db")
	if len(edges) != 1 || edges[0].ID != "e1" {
		t.Errorf("EdgesTouching(db) = %+v, want [e1]", edges)
	}
}

func TestRemoveNodeCascades(t *testing.T) {
	d := testDiagram()
	if !d.RemoveNode("db") {
		t.Fatal("RemoveNode(db) returned false")
	}

	if d.NodeByID("db") != nil {
		t.Error("node db still present after removal")
	}
	for _, e := range d.Edges {
		if e.Source == "db" || e.Target == "db" {
			t.Errorf("edge %s still references removed node", e.ID)
		}
	}
	if len(d.Edges) != 1 || d.Edges[0].ID != "e2" {
		t.Errorf("edges after removal = %+v, want only e2", d.Edges)
	}

	grp := d.NodeByID("grp1")
	if grp == nil {
		t.Fatal("group disappeared")
	}
	if !reflect.DeepEqual(grp.ChildIDs, []string{"cache"}) {
		t.Errorf("group children after removal = %v, want [cache]", grp.ChildIDs)
	}

	if err := d.Validate(); err != nil {
		t.Errorf("diagram invalid after cascade: %v", err)
	}
}

func TestRemoveNodeMissing(t *testing.T) {
	d := testDiagram()
	if d.RemoveNode("nope") {
		t.Error("RemoveNode(nope) returned true")
	}
	if len(d.Nodes) != 4 || len(d.Edges) != 2 {
		t.Error("diagram mutated by failed removal")
	}
}

func TestRemoveEdge(t *testing.T) {
	d := testDiagram()
	if !d.RemoveEdge("e1") {
		t.Fatal("RemoveEdge(e1) returned false")
	}
	if d.EdgeByID("e1") != nil {
		t.Error("edge e1 still present")
	}
	if d.NodeByID("api") == nil || d.NodeByID("db") == nil {
		t.Error("removing an edge must not touch its endpoints")
	}
	if d.RemoveEdge("e1") {
		t.Error("second RemoveEdge(e1) returned true")
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := testDiagram()
	d.Nodes[0].Metadata = Metadata{"region": "us-east-1"}

	c := d.Clone()
	c.Nodes[0].Metadata["region"] = "eu-west-1"
	c.Nodes[3].ChildIDs[0] = "other"
	c.Edges[0].Label = "changed"
	c.RemoveNode("cache")

	if d.Nodes[0].Metadata["region"] != "us-east-1" {
		t.Error("clone shares metadata map with original")
	}
	if d.Nodes[3].ChildIDs[0] != "db" {
		t.Error("clone shares child id slice with original")
	}
	if d.Edges[0].Label != "reads/writes" {
		t.Error("clone shares edge storage with original")
	}
	if d.NodeByID("cache") == nil {
		t.Error("mutating clone affected original nodes")
	}
}

func TestMetadataAccessors(t *testing.T) {
	m := Metadata{"name": "api", "replicas": float64(3), "public": true}
	if got := m.GetString("name"); got != "api" {
		t.Errorf("GetString = %q", got)
	}
	if got := m.GetNumber("replicas"); got != 3 {
		t.Errorf("GetNumber = %v", got)
	}
	if !m.GetBool("public") {
		t.Error("GetBool returned false")
	}
	if got := m.GetString("replicas"); got != "" {
		t.Errorf("GetString on number = %q, want empty", got)
	}
	var nilMeta Metadata
	if nilMeta.GetString("x") != "" || nilMeta.GetNumber("x") != 0 || nilMeta.GetBool("x") {
		t.Error("nil metadata accessors must return zero values")
	}
}

func TestNodePatchApply(t *testing.T) {
	n := Node{
		ID:       "api",
		Type:     "service",
		Label:    "API",
		Metadata: Metadata{"region": "us-east-1", "replicas": float64(2)},
		Position: Position{X: 10, Y: 20},
	}

	label := "API Gateway"
	collapsed := true
	p := NodePatch{
		Label:       &label,
		Metadata:    Metadata{"replicas": float64(5), "tier": "edge"},
		Position:    &Position{X: 50, Y: 60},
		IsCollapsed: &collapsed,
	}
	p.Apply(&n)

	if n.Label != "API Gateway" {
		t.Errorf("label = %q", n.Label)
	}
	if n.Type != "service" {
		t.Errorf("unpatched type changed to %q", n.Type)
	}
	if n.Metadata["region"] != "us-east-1" {
		t.Error("metadata merge dropped existing key")
	}
	if n.Metadata["replicas"] != float64(5) || n.Metadata["tier"] != "edge" {
		t.Errorf("metadata merge = %v", n.Metadata)
	}
	if n.Position.X != 50 || n.Position.Y != 60 {
		t.Errorf("position = %+v", n.Position)
	}
	if !n.IsCollapsed {
		t.Error("is_collapsed not applied")
	}
}

func TestNodePatchApplyToEmptyMetadata(t *testing.T) {
	n := Node{ID: "n1", Label: "N"}
	p := NodePatch{Metadata: Metadata{"k": "v"}}
	p.Apply(&n)
	if n.Metadata["k"] != "v" {
		t.Errorf("metadata = %v", n.Metadata)
	}
}

func TestNodePatchIsZero(t *testing.T) {
	if !(NodePatch{}).IsZero() {
		t.Error("empty patch reported non-zero")
	}
	s := "x"
	if (NodePatch{Label: &s}).IsZero() {
		t.Error("patch with label reported zero")
	}
}

func TestNodePatchUnmarshal(t *testing.T) {
	var p NodePatch
	if err := json.Unmarshal([]byte(`{"label":"New","position":{"x":1,"y":2}}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Label == nil || *p.Label != "New" {
		t.Errorf("label = %v", p.Label)
	}
	if p.Position == nil || p.Position.X != 1 {
		t.Errorf("position = %v", p.Position)
	}
	if p.Type != nil || p.IsCollapsed != nil {
		t.Error("absent fields must stay nil")
	}
}
