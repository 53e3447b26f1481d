package diagram

// NodePatch carries a partial node update. Nil fields are left untouched;
// metadata merges per key rather than replacing the whole map. Identity
// and group structure (id, is_group, child_ids) are not patchable and
// change only through the dedicated group operations.
type NodePatch struct {
	Type        *string   `json:"type,omitempty"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Inputs      *[]string `json:"inputs,omitempty"`
	Outputs     *[]string `json:"outputs,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	Position    *Position `json:"position,omitempty"`
	IsCollapsed *bool     `json:"is_collapsed,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p NodePatch) IsZero() bool {
	return p.Type == nil && p.Label == nil && p.Description == nil &&
		p.Inputs == nil && p.Outputs == nil && len(p.Metadata) == 0 &&
		p.Position == nil && p.IsCollapsed == nil
}

// Apply merges the patch into the node in place.
func (p NodePatch) Apply(n *Node) {
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Inputs != nil {
		n.Inputs = append([]string(nil), (*p.Inputs)...)
	}
	if p.Outputs != nil {
		n.Outputs = append([]string(nil), (*p.Outputs)...)
	}
	if len(p.Metadata) > 0 {
		if n.Metadata == nil {
			n.Metadata = make(Metadata, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			n.Metadata[k] = v
		}
	}
	if p.Position != nil {
		n.Position = *p.Position
	}
	if p.IsCollapsed != nil {
		n.IsCollapsed = *p.IsCollapsed
	}
}
