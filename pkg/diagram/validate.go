package diagram

import (
	"fmt"
	"strings"
)

// Validate checks every structural invariant of the diagram:
//
//   - node and edge ids are non-empty and unique
//   - every node has a label
//   - edges reference existing nodes
//   - child_ids appear only on group nodes
//   - group children exist, are not themselves groups, and belong to at
//     most one group
//   - group membership contains no cycles
//   - metadata values are scalars (string, number, bool)
//
// All problems are collected and reported in one error so a caller can
// fix a bad diagram in a single pass.
func (d *Diagram) Validate() error {
	var problems []string

	nodeIDs := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			problems = append(problems, "node with empty id")
			continue
		}
		if nodeIDs[n.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		nodeIDs[n.ID] = true

		if n.Label == "" {
			problems = append(problems, fmt.Sprintf("node %q has no label", n.ID))
		}
		if !n.IsGroup && len(n.ChildIDs) > 0 {
			problems = append(problems, fmt.Sprintf("node %q has child_ids but is not a group", n.ID))
		}
		for key, val := range n.Metadata {
			if !scalar(val) {
				problems = append(problems, fmt.Sprintf("node %q metadata %q is not a scalar value", n.ID, key))
			}
		}
	}

	edgeIDs := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		if e.ID == "" {
			problems = append(problems, "edge with empty id")
			continue
		}
		if edgeIDs[e.ID] {
			problems = append(problems, fmt.Sprintf("duplicate edge id %q", e.ID))
			continue
		}
		edgeIDs[e.ID] = true

		if !nodeIDs[e.Source] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown source %q", e.ID, e.Source))
		}
		if !nodeIDs[e.Target] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown target %q", e.ID, e.Target))
		}
	}

	memberOf := make(map[string]string)
	for _, n := range d.Nodes {
		if !n.IsGroup {
			continue
		}
		for _, child := range n.ChildIDs {
			if !nodeIDs[child] {
				problems = append(problems, fmt.Sprintf("group %q references unknown child %q", n.ID, child))
				continue
			}
			if c := d.NodeByID(child); c != nil && c.IsGroup {
				problems = append(problems, fmt.Sprintf("group %q contains group %q: groups cannot be nested", n.ID, child))
			}
			if prev, ok := memberOf[child]; ok && prev != n.ID {
				problems = append(problems, fmt.Sprintf("node %q belongs to both group %q and group %q", child, prev, n.ID))
			}
			memberOf[child] = n.ID
		}
	}

	if cycle := d.groupCycle(); len(cycle) > 0 {
		problems = append(problems, fmt.Sprintf("group membership cycle: %s", strings.Join(cycle, " -> ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid diagram: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WouldCreateGroupCycle reports whether making the given nodes children
// of groupID would produce a membership cycle. groupID containing itself,
// directly or through nested containment, counts as a cycle.
func (d *Diagram) WouldCreateGroupCycle(groupID string, childIDs []string) bool {
	var reaches func(from string, seen map[string]bool) bool
	reaches = func(from string, seen map[string]bool) bool {
		if from == groupID {
			return true
		}
		if seen[from] {
			return false
		}
		seen[from] = true
		n := d.NodeByID(from)
		if n == nil || !n.IsGroup {
			return false
		}
		for _, c := range n.ChildIDs {
			if reaches(c, seen) {
				return true
			}
		}
		return false
	}

	seen := make(map[string]bool)
	for _, child := range childIDs {
		if reaches(child, seen) {
			return true
		}
	}
	return false
}

// groupCycle walks group membership depth-first and returns the first
// cycle found as a path of node ids, or nil.
func (d *Diagram) groupCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(d.Nodes))

	var walk func(id string, path []string) []string
	walk = func(id string, path []string) []string {
		switch state[id] {
		case visiting:
			return append(path, id)
		case visited:
			return nil
		}
		state[id] = visiting
		path = append(path, id)
		if n := d.NodeByID(id); n != nil {
			for _, child := range n.ChildIDs {
				if cycle := walk(child, path); cycle != nil {
					return cycle
				}
			}
		}
		state[id] = visited
		return nil
	}

	for _, n := range d.Nodes {
		if !n.IsGroup {
			continue
		}
		if cycle := walk(n.ID, nil); cycle != nil {
			return cycle
		}
	}
	return nil
}

func scalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
