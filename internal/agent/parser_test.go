package agent

import "testing"

func TestParseStepFinalAnswer(t *testing.T) {
	p := ParseStep("Thought: I have enough information.\nFinal Answer: The candidate shows strong depth.")
	if !p.IsFinal {
		t.Fatal("expected final step")
	}
	if p.FinalAnswer != "The candidate shows strong depth." {
		t.Errorf("unexpected final answer: %q", p.FinalAnswer)
	}
	if p.Thought != "I have enough information." {
		t.Errorf("unexpected thought: %q", p.Thought)
	}
}

func TestParseStepAction(t *testing.T) {
	text := "Thought: need more context\nAction: search_questions\nAction Input: {\"topic\": \"goroutines\", \"count\": 3}"
	p := ParseStep(text)
	if p.IsFinal {
		t.Fatal("unexpected final step")
	}
	if p.Action == nil {
		t.Fatal("expected action")
	}
	if p.Action.Tool != "search_questions" {
		t.Errorf("tool = %q", p.Action.Tool)
	}
	if p.Action.Params["topic"] != "goroutines" {
		t.Errorf("params = %v", p.Action.Params)
	}
}

func TestParseStepFinalWinsOverAction(t *testing.T) {
	text := "Thought: done\nAction: search_questions\nAction Input: {\"topic\": \"x\"}\nFinal Answer: all set"
	p := ParseStep(text)
	if !p.IsFinal {
		t.Fatal("expected final step")
	}
	if p.Action != nil {
		t.Error("action should be discarded when a final answer is present")
	}
	if p.FinalAnswer != "all set" {
		t.Errorf("final answer = %q", p.FinalAnswer)
	}
}

func TestParseStepMalformed(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantThink  string
		wantAction bool
	}{
		{
			name:      "no markers is a bare thought",
			text:      "Let me consider the tradeoffs here.",
			wantThink: "Let me consider the tradeoffs here.",
		},
		{
			name:       "malformed json drops action keeps thought",
			text:       "Thought: try the tool\nAction: lookup\nAction Input: {not json}",
			wantThink:  "try the tool",
			wantAction: false,
		},
		{
			name:       "missing input is a zero-param call",
			text:       "Thought: go\nAction: list_topics",
			wantThink:  "go",
			wantAction: true,
		},
		{
			name:      "empty string",
			text:      "",
			wantThink: "",
		},
		{
			name:       "fenced json input",
			text:       "Thought: ok\nAction: lookup\nAction Input: ```json\n{\"id\": \"q1\"}\n```",
			wantThink:  "ok",
			wantAction: true,
		},
		{
			name:       "backticked tool name",
			text:       "Thought: ok\nAction: `lookup`\nAction Input: {}",
			wantThink:  "ok",
			wantAction: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseStep(tt.text)
			if p.IsFinal {
				t.Fatal("unexpected final step")
			}
			if p.Thought != tt.wantThink {
				t.Errorf("thought = %q, want %q", p.Thought, tt.wantThink)
			}
			if (p.Action != nil) != tt.wantAction {
				t.Errorf("action = %v, want present=%v", p.Action, tt.wantAction)
			}
		})
	}
}

func TestParseStepCaseInsensitive(t *testing.T) {
	p := ParseStep("thought: lower case\nFINAL ANSWER: shouting")
	if !p.IsFinal || p.FinalAnswer != "shouting" {
		t.Errorf("got %+v", p)
	}
}
