package studio

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/infrasketch/sketchd/internal/events"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

// mutateSession runs one serialized diagram mutation: lock, load, check
// the version pin, apply, validate the whole diagram, bump the version,
// persist, publish. Pin 0 means the caller did not pin and accepts
// last-write-wins.
func (s *Service) mutateSession(ctx context.Context, sessionID string, pin int64, operation string, apply func(sess *session.Session) error) (*diagram.Diagram, error) {
	release := s.locks.Lock(sessionID)
	defer release()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, mapStoreErr(err, sessionID)
	}
	if sess.Diagram == nil {
		return nil, session.ErrInvalidRequest("session %s has no diagram to edit", sessionID)
	}
	if pin > 0 && sess.Diagram.Version != pin {
		return nil, session.ErrConflict("diagram is at version %d, not %d", sess.Diagram.Version, pin)
	}

	if err := apply(sess); err != nil {
		return nil, err
	}
	if err := sess.Diagram.Validate(); err != nil {
		return nil, session.ErrInvalidRequest("%v", err)
	}

	sess.Diagram.Version++
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, mapStoreErr(err, sessionID)
	}

	s.publish(ctx, events.New(events.TypeDiagramUpdated, sessionID, map[string]any{
		"operation": operation,
		"version":   sess.Diagram.Version,
	}))
	return sess.Diagram, nil
}

func (s *Service) mutate(ctx context.Context, sessionID string, pin int64, operation string, apply func(d *diagram.Diagram) error) (*diagram.Diagram, error) {
	return s.mutateSession(ctx, sessionID, pin, operation, func(sess *session.Session) error {
		return apply(sess.Diagram)
	})
}

// AddNode appends a node, assigning an id when the caller left it blank.
func (s *Service) AddNode(ctx context.Context, sessionID string, node diagram.Node, pin int64) (*diagram.Diagram, error) {
	return s.mutate(ctx, sessionID, pin, "add_node", func(d *diagram.Diagram) error {
		if node.ID == "" {
			node.ID = "node_" + uuid.New().String()
		} else if d.HasNode(node.ID) {
			return session.ErrInvalidRequest("node %s already exists", node.ID)
		}
		d.Nodes = append(d.Nodes, node)
		return nil
	})
}

// UpdateNode merges a patch into an existing node. An empty patch is
// rejected rather than bumping the version for nothing.
func (s *Service) UpdateNode(ctx context.Context, sessionID, nodeID string, patch diagram.NodePatch, pin int64) (*diagram.Diagram, error) {
	if patch.IsZero() {
		return nil, session.ErrInvalidRequest("patch must change at least one field")
	}
	return s.mutate(ctx, sessionID, pin, "update_node", func(d *diagram.Diagram) error {
		n := d.NodeByID(nodeID)
		if n == nil {
			return session.ErrNotFound("node %s not found", nodeID)
		}
		patch.Apply(n)
		return nil
	})
}

// DeleteNode removes a node with the full cascade: its edges go with it
// and it is stripped from any group. Deleting a group node dissolves the
// group; the children stay.
func (s *Service) DeleteNode(ctx context.Context, sessionID, nodeID string, pin int64) (*diagram.Diagram, error) {
	return s.mutate(ctx, sessionID, pin, "delete_node", func(d *diagram.Diagram) error {
		if !d.RemoveNode(nodeID) {
			return session.ErrNotFound("node %s not found", nodeID)
		}
		return nil
	})
}

// AddEdge appends an edge between two existing nodes.
func (s *Service) AddEdge(ctx context.Context, sessionID string, edge diagram.Edge, pin int64) (*diagram.Diagram, error) {
	return s.mutate(ctx, sessionID, pin, "add_edge", func(d *diagram.Diagram) error {
		if edge.ID == "" {
			edge.ID = "edge_" + uuid.New().String()
		} else if d.EdgeByID(edge.ID) != nil {
			return session.ErrInvalidRequest("edge %s already exists", edge.ID)
		}
		if !d.HasNode(edge.Source) {
			return session.ErrInvalidRequest("edge source %s does not exist", edge.Source)
		}
		if !d.HasNode(edge.Target) {
			return session.ErrInvalidRequest("edge target %s does not exist", edge.Target)
		}
		d.Edges = append(d.Edges, edge)
		return nil
	})
}

// DeleteEdge removes an edge by id.
func (s *Service) DeleteEdge(ctx context.Context, sessionID, edgeID string, pin int64) (*diagram.Diagram, error) {
	return s.mutate(ctx, sessionID, pin, "delete_edge", func(d *diagram.Diagram) error {
		if !d.RemoveEdge(edgeID) {
			return session.ErrNotFound("edge %s not found", edgeID)
		}
		return nil
	})
}

// CreateGroup builds a collapsed group node around existing, ungrouped,
// non-group children and returns its id alongside the diagram.
func (s *Service) CreateGroup(ctx context.Context, sessionID string, childIDs []string, pin int64) (*diagram.Diagram, string, error) {
	var groupID string
	d, err := s.mutate(ctx, sessionID, pin, "create_group", func(d *diagram.Diagram) error {
		if len(childIDs) == 0 {
			return session.ErrInvalidRequest("child_node_ids must not be empty")
		}

		groups := 0
		for i := range d.Nodes {
			if d.Nodes[i].IsGroup {
				groups++
			}
		}

		var sumX, sumY float64
		seen := make(map[string]bool, len(childIDs))
		for _, id := range childIDs {
			if seen[id] {
				return session.ErrInvalidRequest("child node %s listed twice", id)
			}
			seen[id] = true

			child := d.NodeByID(id)
			if child == nil {
				return session.ErrInvalidRequest("child node %s does not exist", id)
			}
			if child.IsGroup {
				return session.ErrInvalidRequest("groups cannot be nested: %s is a group", id)
			}
			if g := d.GroupOf(id); g != nil {
				return session.ErrInvalidRequest("node %s already belongs to group %s", id, g.ID)
			}
			sumX += child.Position.X
			sumY += child.Position.Y
		}

		group := diagram.Node{
			ID:    "group_" + uuid.New().String(),
			Type:  "group",
			Label: fmt.Sprintf("Group %d", groups+1),
			Position: diagram.Position{
				X: sumX / float64(len(childIDs)),
				Y: sumY / float64(len(childIDs)),
			},
			IsGroup:     true,
			IsCollapsed: true,
			ChildIDs:    append([]string(nil), childIDs...),
		}
		d.Nodes = append(d.Nodes, group)
		groupID = group.ID
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return d, groupID, nil
}

// Ungroup dissolves a group: the group node and its edges go away, the
// children keep their ids and positions.
func (s *Service) Ungroup(ctx context.Context, sessionID, groupID string, pin int64) (*diagram.Diagram, error) {
	return s.mutate(ctx, sessionID, pin, "ungroup", func(d *diagram.Diagram) error {
		n := d.NodeByID(groupID)
		if n == nil || !n.IsGroup {
			return session.ErrNotFound("group %s not found", groupID)
		}
		d.RemoveNode(groupID)
		return nil
	})
}

// ToggleCollapse flips a group's collapsed state.
func (s *Service) ToggleCollapse(ctx context.Context, sessionID, groupID string, pin int64) (*diagram.Diagram, error) {
	return s.mutate(ctx, sessionID, pin, "toggle_collapse", func(d *diagram.Diagram) error {
		n := d.NodeByID(groupID)
		if n == nil || !n.IsGroup {
			return session.ErrNotFound("group %s not found", groupID)
		}
		n.IsCollapsed = !n.IsCollapsed
		return nil
	})
}
