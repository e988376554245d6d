package interview

import (
	"fmt"
	"strings"
)

const (
	maxTranscriptTurns = 16
	maxTranscriptChars = 6000
)

// renderTranscript flattens the most recent topic turns into a prompt block.
// Older turns fall off first; a single oversized turn is truncated rather
// than dropped so the oracle always sees the latest exchange.
func renderTranscript(msgs []TopicMessage) string {
	if len(msgs) > maxTranscriptTurns {
		msgs = msgs[len(msgs)-maxTranscriptTurns:]
	}

	var b strings.Builder
	for _, m := range msgs {
		label := "Candidate"
		if m.Role == "assistant" {
			label = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, m.Content)
	}
	out := b.String()
	if len(out) > maxTranscriptChars {
		out = out[len(out)-maxTranscriptChars:]
		if i := strings.IndexByte(out, '\n'); i >= 0 {
			out = out[i+1:]
		}
	}
	return out
}

// renderInfoPoints summarizes what the topic has collected so far, for the
// assessment prompt.
func renderInfoPoints(points []CollectedInfoPoint) string {
	if len(points) == 0 {
		return "(nothing collected yet)"
	}
	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "- [%s, depth %d] %s\n", p.Type, p.Depth, p.Summary)
	}
	return b.String()
}
