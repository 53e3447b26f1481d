package tokens

import "github.com/infrasketch/sketchd/pkg/session"

// TrimTranscript drops the oldest messages until the transcript fits the
// token budget. The newest message always survives even when it alone
// exceeds the budget, so the user's latest turn is never silently
// dropped. A budget of zero or less disables trimming.
func (c *Counter) TrimTranscript(model string, msgs []session.Message, budget int) []session.Message {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := c.CountMessage(model, msgs[i].Content)
		if total+cost > budget && start < len(msgs) {
			break
		}
		total += cost
		start = i
	}

	return msgs[start:]
}
