// Package diagram defines the node/edge/group model for architecture
// diagrams and the invariant checks every mutation must pass.
package diagram

// Position holds x,y coordinates. Layout is owned by the rendering layer;
// the service only stores and returns it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Metadata is an open string-keyed map of scalar values (string, number,
// or bool). Non-scalar values are rejected by Validate.
type Metadata map[string]any

// GetString returns a string value; empty if missing or not a string.
func (m Metadata) GetString(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// GetNumber returns a numeric value; 0 if missing or not a number.
func (m Metadata) GetNumber(key string) float64 {
	if m == nil {
		return 0
	}
	switch n := m[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// GetBool returns a bool value; false if missing or not a bool.
func (m Metadata) GetBool(key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

// Node represents a single component in the diagram. A node with IsGroup
// set is a collapsible container; IsCollapsed and ChildIDs are meaningful
// only for group nodes.
type Node struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Inputs      []string `json:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
	Position    Position `json:"position"`
	IsGroup     bool     `json:"is_group,omitempty"`
	IsCollapsed bool     `json:"is_collapsed,omitempty"`
	ChildIDs    []string `json:"child_ids,omitempty"`
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Diagram is the node/edge graph for one session. Version is a monotonic
// counter bumped by the server on every successful mutation; clients may
// pin it to detect concurrent edits.
type Diagram struct {
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
	Version int64  `json:"version,omitempty"`
}

// New returns an empty diagram at version 1. Slices are non-nil so the
// JSON form is {"nodes": [], "edges": []}, which blank sessions rely on.
func New() *Diagram {
	return &Diagram{
		Nodes:   []Node{},
		Edges:   []Edge{},
		Version: 1,
	}
}

// NodeByID returns the node with the given id, or nil.
func (d *Diagram) NodeByID(id string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// EdgeByID returns the edge with the given id, or nil.
func (d *Diagram) EdgeByID(id string) *Edge {
	for i := range d.Edges {
		if d.Edges[i].ID == id {
			return &d.Edges[i]
		}
	}
	return nil
}

// HasNode reports whether a node with the given id exists.
func (d *Diagram) HasNode(id string) bool {
	return d.NodeByID(id) != nil
}

// GroupOf returns the group node containing the given node id, or nil if
// the node is top-level.
func (d *Diagram) GroupOf(nodeID string) *Node {
	for i := range d.Nodes {
		n := &d.Nodes[i]
		if !n.IsGroup {
			continue
		}
		for _, child := range n.ChildIDs {
			if child == nodeID {
				return n
			}
		}
	}
	return nil
}

// EdgesTouching returns every edge whose source or target is the given
// node id. These are the edges a delete must cascade away.
func (d *Diagram) EdgesTouching(nodeID string) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.Source == nodeID || e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// RemoveNode deletes a node and enforces the cascade invariant: every
// edge touching the node is deleted and the node id is stripped from any
// group's child list. Returns false if the node does not exist.
func (d *Diagram) RemoveNode(id string) bool {
	idx := -1
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	d.Nodes = append(d.Nodes[:idx], d.Nodes[idx+1:]...)

	kept := d.Edges[:0]
	for _, e := range d.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	d.Edges = kept

	for i := range d.Nodes {
		n := &d.Nodes[i]
		if !n.IsGroup {
			continue
		}
		children := n.ChildIDs[:0]
		for _, child := range n.ChildIDs {
			if child != id {
				children = append(children, child)
			}
		}
		n.ChildIDs = children
	}

	return true
}

// RemoveEdge deletes an edge by id. Returns false if the edge does not
// exist.
func (d *Diagram) RemoveEdge(id string) bool {
	for i := range d.Edges {
		if d.Edges[i].ID == id {
			d.Edges = append(d.Edges[:i], d.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy. The copy shares no slices or metadata maps
// with the original, so callers can hand it out without aliasing risk.
func (d *Diagram) Clone() *Diagram {
	if d == nil {
		return nil
	}
	out := &Diagram{
		Nodes:   make([]Node, len(d.Nodes)),
		Edges:   make([]Edge, len(d.Edges)),
		Version: d.Version,
	}
	for i, n := range d.Nodes {
		out.Nodes[i] = cloneNode(n)
	}
	copy(out.Edges, d.Edges)
	return out
}

func cloneNode(n Node) Node {
	c := n
	if n.Inputs != nil {
		c.Inputs = append([]string(nil), n.Inputs...)
	}
	if n.Outputs != nil {
		c.Outputs = append([]string(nil), n.Outputs...)
	}
	if n.ChildIDs != nil {
		c.ChildIDs = append([]string(nil), n.ChildIDs...)
	}
	if n.Metadata != nil {
		c.Metadata = make(Metadata, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
