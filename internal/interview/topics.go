package interview

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Topic is a candidate subject for the next round of questions.
type Topic struct {
	Name            string
	OpeningQuestion string
	TargetSkills    []string
}

// TopicSource supplies position-specific topics, typically backed by the
// question bank. Excluded names must not be returned.
type TopicSource interface {
	TopicsFor(ctx context.Context, position string, exclude []string, n int) ([]Topic, error)
}

// builtinTopics is the fallback curriculum when no source is configured or
// the source comes back empty. Ordered from broad to deep.
var builtinTopics = []Topic{
	{
		Name:            "Self Introduction",
		OpeningQuestion: "To get us started, give me a quick introduction: your background and what draws you to this position.",
		TargetSkills:    []string{"communication"},
	},
	{
		Name:            "Project Deep Dive",
		OpeningQuestion: "Tell me about a project you're proud of. What was it, and what was your role in it?",
		TargetSkills:    []string{"ownership", "technical depth"},
	},
	{
		Name:            "Technical Challenge",
		OpeningQuestion: "Describe the hardest technical problem you've faced recently. How did you approach it?",
		TargetSkills:    []string{"problem solving", "technical depth"},
	},
	{
		Name:            "Collaboration and Conflict",
		OpeningQuestion: "Tell me about a time you disagreed with a teammate on a technical decision. What happened?",
		TargetSkills:    []string{"collaboration", "communication"},
	},
	{
		Name:            "Learning and Growth",
		OpeningQuestion: "What's something you learned recently that changed how you work?",
		TargetSkills:    []string{"learning", "self-awareness"},
	},
	{
		Name:            "Failure and Recovery",
		OpeningQuestion: "Tell me about a time something you shipped went wrong. How did you handle it?",
		TargetSkills:    []string{"ownership", "resilience"},
	},
}

// Selector chooses the next topic for a session, never repeating a name the
// session has already seen.
type Selector struct {
	source TopicSource
	logger *zap.Logger
}

// NewSelector creates a selector. source may be nil; builtins then cover
// everything.
func NewSelector(source TopicSource, logger *zap.Logger) *Selector {
	return &Selector{source: source, logger: logger}
}

// Next picks the next topic for the position, skipping names in history.
// Returns nil when the curriculum is exhausted, which ends the session.
func (s *Selector) Next(ctx context.Context, position string, history []string) *Topic {
	seen := make(map[string]bool, len(history))
	for _, n := range history {
		seen[normalizeTopicName(n)] = true
	}

	if s.source != nil {
		topics, err := s.source.TopicsFor(ctx, position, history, 3)
		if err != nil {
			s.logger.Warn("topic source failed, falling back to builtins", zap.Error(err))
		}
		for _, t := range topics {
			if !seen[normalizeTopicName(t.Name)] {
				return &t
			}
		}
	}

	for _, t := range builtinTopics {
		if !seen[normalizeTopicName(t.Name)] {
			picked := t
			return &picked
		}
	}
	return nil
}

func normalizeTopicName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
