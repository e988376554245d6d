package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParsedStep is the structured form of one oracle reply.
type ParsedStep struct {
	Thought     string
	Action      *Action
	FinalAnswer string
	IsFinal     bool
}

// Reply grammar markers, matched at line starts, case-insensitive.
var (
	thoughtRe     = regexp.MustCompile(`(?im)^\s*thought\s*:`)
	actionRe      = regexp.MustCompile(`(?im)^\s*action\s*:`)
	actionInputRe = regexp.MustCompile(`(?im)^\s*action\s+input\s*:`)
	finalRe       = regexp.MustCompile(`(?im)^\s*final\s+answer\s*:`)
	anyMarkerRe   = regexp.MustCompile(`(?im)^\s*(thought|action|action\s+input|final\s+answer)\s*:`)
	fenceRe       = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ParseStep extracts the thought, optional action, or final answer from one
// oracle reply.
//
// Rules, in order of precedence:
//   - A Final Answer marker always wins: any action in the same reply is
//     discarded, even if superficially well formed.
//   - An Action requires both markers; Action Input must decode as a JSON
//     object. A malformed input drops the action but keeps the thought, so
//     the loop can nudge the oracle instead of executing garbage.
//   - A reply with no markers at all is treated as a bare thought.
func ParseStep(text string) ParsedStep {
	var p ParsedStep
	p.Thought = section(text, thoughtRe)

	if loc := finalRe.FindStringIndex(text); loc != nil {
		p.IsFinal = true
		p.FinalAnswer = strings.TrimSpace(text[loc[1]:])
		return p
	}

	if p.Thought == "" && !anyMarkerRe.MatchString(text) {
		p.Thought = strings.TrimSpace(text)
		return p
	}

	name := actionName(text)
	if name == "" {
		return p
	}
	params, ok := actionParams(text)
	if !ok {
		return p
	}
	p.Action = &Action{Tool: name, Params: params}
	return p
}

// section returns the text after the first match of marker up to the next
// marker (or end of text), trimmed.
func section(text string, marker *regexp.Regexp) string {
	loc := marker.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if next := anyMarkerRe.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return strings.TrimSpace(rest)
}

// actionName extracts the tool name from the Action line. The name is the
// first token; surrounding backticks and quotes are stripped.
func actionName(text string) string {
	loc := actionRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	line := text[loc[1]:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	name := strings.Trim(strings.TrimSpace(line), "`'\"")
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// actionParams decodes the Action Input section into a parameter map.
func actionParams(text string) (map[string]interface{}, bool) {
	raw := section(text, actionInputRe)
	if raw == "" {
		// An action with no declared input is a valid zero-parameter call.
		return map[string]interface{}{}, true
	}
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, false
	}
	return params, true
}
