package assistant

import (
	"context"
	"os"
	"testing"

	"github.com/infrasketch/sketchd/internal/testutil"
)

// TestGenerateDiagramLive exercises the real API through the VCR
// recorder. Record a cassette with VCR_MODE=record and OPENAI_API_KEY
// set; until one exists the test skips.
func TestGenerateDiagramLive(t *testing.T) {
	if os.Getenv("VCR_MODE") == "record" && os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY required to record")
	}

	replay := testutil.ReplayClient(t, "generate_diagram")

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = "test-key" // replay never validates the key
	}

	c := NewClient(apiKey, WithHTTPClient(replay))
	result, err := c.GenerateDiagram(context.Background(), "a URL shortener with a cache in front of its database", "")
	if err != nil {
		t.Fatalf("GenerateDiagram: %v", err)
	}
	if len(result.Diagram.Nodes) == 0 {
		t.Error("live generation returned an empty diagram")
	}
	if err := result.Diagram.Validate(); err != nil {
		t.Errorf("live diagram invalid: %v", err)
	}
}
