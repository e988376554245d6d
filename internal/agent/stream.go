package agent

import (
	"sync"
	"time"
)

// EventType tags a stream event.
type EventType string

const (
	EventAgentStart     EventType = "agent_start"
	EventStepStart      EventType = "step_start"
	EventThought        EventType = "thought"
	EventActionStart    EventType = "action_start"
	EventActionComplete EventType = "action_complete"
	EventStepComplete   EventType = "step_complete"
	EventAgentComplete  EventType = "agent_complete"
	EventError          EventType = "error"
)

// Event is one progress frame emitted by the reasoning loop. Events are
// emitted in strict causal order: an event never describes a state the loop
// has not reached yet.
type Event struct {
	Type    EventType   `json:"type"`
	Agent   string      `json:"agent"`
	Step    int         `json:"step,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Time    time.Time   `json:"time"`
}

// Emitter fans events out to subscribers in emission order. The emitter
// knows nothing about transports; an SSE handler and a logger can both
// subscribe to the same run.
//
// Emit blocks when a subscriber's buffer is full rather than dropping:
// within one run no event is ever dropped, duplicated, or reordered.
// Subscribers must drain their channel until it closes.
type Emitter struct {
	agent  string
	subs   []chan Event
	closed bool
	mu     sync.Mutex
}

// NewEmitter creates an emitter for the named agent.
func NewEmitter(agent string) *Emitter {
	return &Emitter{agent: agent}
}

// Subscribe registers a consumer and returns its event channel. The channel
// closes after the terminal event is emitted. Subscribe after Close returns
// an already-closed channel.
func (e *Emitter) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch
	}
	e.subs = append(e.subs, ch)
	return ch
}

// Emit delivers an event to every subscriber. Safe on a nil emitter so the
// loop can run unobserved.
func (e *Emitter) Emit(typ EventType, step int, payload interface{}) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	subs := e.subs
	e.mu.Unlock()

	ev := Event{Type: typ, Agent: e.agent, Step: step, Payload: payload, Time: time.Now()}
	for _, ch := range subs {
		ch <- ev
	}
}

// Close closes all subscriber channels. Further Emit calls are no-ops.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}
