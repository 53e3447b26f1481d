package assistant

import (
	"encoding/json"
	"fmt"

	"github.com/infrasketch/sketchd/pkg/diagram"
)

const generateSystemPrompt = `You are an infrastructure architect. Given a description of a system, design its architecture as a diagram of nodes and edges.

Respond with a single JSON object:
{"name": "<short title for the design>", "summary": "<2-4 sentence description of the architecture and your key choices>", "diagram": {"nodes": [...], "edges": [...]}}

Each node: {"id": "<unique snake_case id>", "type": "<api|service|database|cache|queue|storage|cdn|client|external>", "label": "<display name>", "description": "<one sentence>", "inputs": [<ids of nodes feeding this one>], "outputs": [<ids this one feeds>], "metadata": {<scalar values only>}, "position": {"x": <number>, "y": <number>}}

Each edge: {"id": "<unique id>", "source": "<node id>", "target": "<node id>", "label": "<short verb phrase, optional>"}

Rules: every edge must reference existing node ids. Spread positions over a 1200x800 canvas, data flowing left to right. Do not emit group nodes.`

const chatSystemPrompt = `You are an infrastructure architect discussing an existing architecture diagram with the user. The first user message carries the current diagram as JSON context.

Respond with a single JSON object: {"reply": "<your answer>", "diagram": <full updated diagram or null>}.

Set "diagram" only when the user asked for a change; return the complete diagram with the change applied, keeping every unchanged node and edge exactly as given, including ids and positions. When nothing changes, set "diagram" to null. Never return a partial diagram.`

const describeSystemPrompt = `You write concise technical descriptions of components in an architecture diagram. Respond with 1-3 plain sentences describing the component's responsibility and its interactions with its neighbors. No markdown, no preamble.`

const designDocSystemPrompt = `You write design documents for system architectures. Given a diagram, produce a markdown document with these sections: Overview, Components (one subsection per node), Data Flow, and Operational Considerations. Be specific about the responsibilities and interactions shown in the diagram. Respond with the markdown only.`

func diagramJSON(d *diagram.Diagram) string {
	if d == nil {
		return `{"nodes":[],"edges":[]}`
	}
	data, err := json.Marshal(d)
	if err != nil {
		return `{"nodes":[],"edges":[]}`
	}
	return string(data)
}

func chatContext(d *diagram.Diagram, focusedNodeID string) string {
	ctx := "Current diagram:\n" + diagramJSON(d)
	if focusedNodeID == "" {
		return ctx
	}
	label := focusedNodeID
	if d != nil {
		if n := d.NodeByID(focusedNodeID); n != nil && n.Label != "" {
			label = n.Label
		}
	}
	return ctx + fmt.Sprintf("\n\nThe user currently has the node %q (id %s) selected; interpret the conversation in that context.", label, focusedNodeID)
}

func describePrompt(d *diagram.Diagram, nodeID string) string {
	return fmt.Sprintf("Diagram:\n%s\n\nDescribe the node with id %q.", diagramJSON(d), nodeID)
}

func designDocPrompt(name string, d *diagram.Diagram) string {
	if name == "" {
		name = "Untitled design"
	}
	return fmt.Sprintf("Design name: %s\n\nDiagram:\n%s\n\nWrite the design document.", name, diagramJSON(d))
}
