package diagram

import (
	"strings"
	"testing"
)

func TestValidateOK(t *testing.T) {
	if err := testDiagram().Validate(); err != nil {
		t.Errorf("valid diagram rejected: %v", err)
	}
	if err := New().Validate(); err != nil {
		t.Errorf("empty diagram rejected: %v", err)
	}
}

func TestValidateProblems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Diagram)
		wantMsg string
	}{
		{
			name: "duplicate node id",
			mutate: func(d *Diagram) {
				d.Nodes = append(d.Nodes, Node{ID: "api", Type: "service", Label: "Dup"})
			},
			wantMsg: `duplicate node id "api"`,
		},
		{
			name: "empty node id",
			mutate: func(d *Diagram) {
				d.Nodes = append(d.Nodes, Node{Label: "Anon"})
			},
			wantMsg: "node with empty id",
		},
		{
			name: "missing label",
			mutate: func(d *Diagram) {
				d.Nodes[0].Label = ""
			},
			wantMsg: `node "api" has no label`,
		},
		{
			name: "dangling edge source",
			mutate: func(d *Diagram) {
				d.Edges = append(d.Edges, Edge{ID: "e9", Source: "ghost", Target: "db"})
			},
			wantMsg: `edge "e9" references unknown source "ghost"`,
		},
		{
			name: "dangling edge target",
			mutate: func(d *Diagram) {
				d.Edges = append(d.Edges, Edge{ID: "e9", Source: "api", Target: "ghost"})
			},
			wantMsg: `edge "e9" references unknown target "ghost"`,
		},
		{
			name: "duplicate edge id",
			mutate: func(d *Diagram) {
				d.Edges = append(d.Edges, Edge{ID: "e1", Source: "api", Target: "cache"})
			},
			wantMsg: `duplicate edge id "e1"`,
		},
		{
			name: "children on non-group",
			mutate: func(d *Diagram) {
				d.Nodes[0].ChildIDs = []string{"db"}
			},
			wantMsg: `node "api" has child_ids but is not a group`,
		},
		{
			name: "unknown group child",
			mutate: func(d *Diagram) {
				g := d.NodeByID("grp1")
				g.ChildIDs = append(g.ChildIDs, "ghost")
			},
			wantMsg: `group "grp1" references unknown child "ghost"`,
		},
		{
			name: "nested group",
			mutate: func(d *Diagram) {
				d.Nodes = append(d.Nodes, Node{ID: "grp2", Type: "group", Label: "Outer", IsGroup: true, ChildIDs: []string{"grp1"}})
			},
			wantMsg: `group "grp2" contains group "grp1"`,
		},
		{
			name: "node in two groups",
			mutate: func(d *Diagram) {
				d.Nodes = append(d.Nodes, Node{ID: "grp2", Type: "group", Label: "Other", IsGroup: true, ChildIDs: []string{"db"}})
			},
			wantMsg: `node "db" belongs to both group "grp1" and group "grp2"`,
		},
		{
			name: "non-scalar metadata",
			mutate: func(d *Diagram) {
				d.Nodes[0].Metadata = Metadata{"nested": map[string]any{"a": 1}}
			},
			wantMsg: `node "api" metadata "nested" is not a scalar value`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDiagram()
			tt.mutate(d)
			err := d.Validate()
			if err == nil {
				t.Fatal("Validate returned nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateCollectsMultipleProblems(t *testing.T) {
	d := testDiagram()
	d.Nodes[0].Label = ""
	d.Edges = append(d.Edges, Edge{ID: "e9", Source: "ghost", Target: "db"})

	err := d.Validate()
	if err == nil {
		t.Fatal("Validate returned nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, `node "api" has no label`) || !strings.Contains(msg, `unknown source "ghost"`) {
		t.Errorf("expected both problems in one error, got %q", msg)
	}
}

func TestValidateSelfContainingGroup(t *testing.T) {
	d := New()
	d.Nodes = append(d.Nodes, Node{ID: "g", Type: "group", Label: "G", IsGroup: true, ChildIDs: []string{"g"}})

	err := d.Validate()
	if err == nil {
		t.Fatal("self-containing group accepted")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention cycle", err.Error())
	}
}

func TestWouldCreateGroupCycle(t *testing.T) {
	d := testDiagram()

	if d.WouldCreateGroupCycle("grp1", []string{"api"}) {
		t.Error("adding top-level node reported as cycle")
	}
	if !d.WouldCreateGroupCycle("grp1", []string{"grp1"}) {
		t.Error("group containing itself not reported as cycle")
	}

	// grp2 contains grp1; putting grp2 under grp1 closes the loop.
	d.Nodes = append(d.Nodes, Node{ID: "grp2", Type: "group", Label: "Outer", IsGroup: true, ChildIDs: []string{"grp1"}})
	if !d.WouldCreateGroupCycle("grp1", []string{"grp2"}) {
		t.Error("transitive containment cycle not detected")
	}
}
