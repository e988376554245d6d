package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/session"
	"go.uber.org/zap"
)

// Boundary errors surfaced directly to the caller, never retried.
var (
	ErrSessionNotFound = session.ErrNotFound
	ErrForbidden       = errors.New("session belongs to another user")
	ErrSessionEnded    = errors.New("session already ended")
)

// StartResult is the response to starting a session.
type StartResult struct {
	SessionID      string `json:"session_id"`
	Topic          string `json:"topic"`
	OpeningMessage string `json:"opening_message"`
}

// MessageResult is the response to one user message.
type MessageResult struct {
	Response      string               `json:"response"`
	TopicStatus   TopicStatus          `json:"topic_status"`
	UserIntent    IntentResult         `json:"user_intent"`
	Feedback      *TopicFeedback       `json:"feedback,omitempty"`
	CollectedInfo []CollectedInfoPoint `json:"collected_info,omitempty"`
	SessionOver   bool                 `json:"session_over,omitempty"`
}

// Archiver persists ended sessions durably. Best effort: archive failures
// never fail the session end.
type Archiver interface {
	ArchiveSession(ctx context.Context, sess *PracticeSession, report *SessionReport) error
}

// Recorder tracks long-term per-user progress, such as a skill graph.
type Recorder interface {
	RecordSession(ctx context.Context, sess *PracticeSession) error
}

// Manager owns the session lifecycle: start, message, end. It is the single
// writer of session state; per-session locks serialize mutations so
// unrelated sessions progress independently.
type Manager struct {
	store    session.Store
	machine  *Machine
	selector *Selector
	feedback *Generator
	archiver Archiver
	recorder Recorder
	logger   *zap.Logger

	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

// NewManager creates a session manager.
func NewManager(store session.Store, machine *Machine, selector *Selector, feedback *Generator, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		machine:  machine,
		selector: selector,
		feedback: feedback,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetArchiver wires durable archival of ended sessions.
func (m *Manager) SetArchiver(a Archiver) { m.archiver = a }

// SetRecorder wires long-term progress tracking.
func (m *Manager) SetRecorder(r Recorder) { m.recorder = r }

func (m *Manager) lock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}

func (m *Manager) dropLock(sessionID string) {
	m.mu.Lock()
	delete(m.locks, sessionID)
	m.mu.Unlock()
}

// dropLockIfMissing keeps the lock table from growing on probes of IDs
// that have no session behind them.
func (m *Manager) dropLockIfMissing(sessionID string, err error) {
	if errors.Is(err, ErrSessionNotFound) {
		m.dropLock(sessionID)
	}
}

// StartSession creates a session with its first topic.
func (m *Manager) StartSession(ctx context.Context, userID, targetPosition string) (*StartResult, error) {
	sess := NewPracticeSession(userID, targetPosition)
	topic := m.selector.Next(ctx, targetPosition, nil)
	if topic == nil {
		return nil, fmt.Errorf("no topics available for position %s", targetPosition)
	}

	tc := NewTopicContext(topic.Name, topic.TargetSkills)
	opening := fmt.Sprintf("Welcome! We'll practice for the %s position. First topic: %s. %s",
		targetPosition, topic.Name, topic.OpeningQuestion)
	tc.Append("assistant", opening)
	sess.StartTopic(tc)

	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	m.logger.Info("session started",
		zap.String("session", sess.ID), zap.String("user", userID),
		zap.String("topic", topic.Name))
	return &StartResult{SessionID: sess.ID, Topic: topic.Name, OpeningMessage: opening}, nil
}

// SendMessage processes one user turn. The user always gets a conversational
// response; only missing sessions and ownership mismatches are hard errors.
func (m *Manager) SendMessage(ctx context.Context, sessionID, userID, message string) (*MessageResult, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.load(ctx, sessionID, userID)
	if err != nil {
		m.dropLockIfMissing(sessionID, err)
		return nil, err
	}
	if sess.Ended || sess.CurrentTopic == nil {
		return nil, ErrSessionEnded
	}

	step, err := m.machine.Step(ctx, sess, message)
	if err != nil {
		return nil, err
	}

	res := &MessageResult{
		Response:      step.Response,
		TopicStatus:   step.Status,
		UserIntent:    step.Intent,
		CollectedInfo: step.NewInfoPoints,
	}

	if step.Intent.Intent == IntentViewFeedback {
		res.Response = m.feedbackDigest(sess)
		res.TopicStatus = sess.CurrentTopic.Status
		// The digest is part of the conversation the assessor sees next turn.
		sess.CurrentTopic.Append("assistant", res.Response)
	}

	if step.Status.Terminal() {
		sealed := sess.SealCurrentTopic(step.Status)
		fb := m.feedback.ForTopic(ctx, sess.TargetPosition, sealed)
		sess.Feedbacks = append(sess.Feedbacks, fb)
		res.Feedback = &fb

		if step.Intent.Intent == IntentEndInterview {
			sess.Ended = true
			res.SessionOver = true
		} else if next := m.selector.Next(ctx, sess.TargetPosition, sess.TopicHistory); next != nil {
			tc := NewTopicContext(next.Name, next.TargetSkills)
			opening := fmt.Sprintf("Next topic: %s. %s", next.Name, next.OpeningQuestion)
			tc.Append("assistant", opening)
			sess.StartTopic(tc)
			res.Response = strings.TrimSpace(res.Response + "\n\n" + opening)
		} else {
			sess.Ended = true
			res.SessionOver = true
			res.Response = strings.TrimSpace(res.Response +
				"\n\nThat covers all our topics. End the session whenever you're ready for your full report.")
		}
	}

	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	return res, nil
}

// EndSession seals any active topic, produces the full report, and removes
// the session from the store.
func (m *Manager) EndSession(ctx context.Context, sessionID, userID string) (*SessionReport, error) {
	return m.endSession(ctx, sessionID, userID, nil)
}

// EndSessionStream is EndSession with recommendation agent progress fanned
// out to the emitter, for SSE transports. The emitter closes after the
// agent's terminal event.
func (m *Manager) EndSessionStream(ctx context.Context, sessionID, userID string, emit *agent.Emitter) (*SessionReport, error) {
	return m.endSession(ctx, sessionID, userID, emit)
}

func (m *Manager) endSession(ctx context.Context, sessionID, userID string, emit *agent.Emitter) (*SessionReport, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	sess, err := m.load(ctx, sessionID, userID)
	if err != nil {
		m.dropLockIfMissing(sessionID, err)
		emit.Close()
		return nil, err
	}

	if sess.CurrentTopic != nil {
		status := StatusAbandoned
		if len(sess.CurrentTopic.CollectedInfo) > 0 {
			status = StatusCollected
		}
		sess.SealCurrentTopic(status)
	}

	report := m.feedback.ReportStream(ctx, sess, emit)

	if m.archiver != nil {
		if err := m.archiver.ArchiveSession(ctx, sess, report); err != nil {
			m.logger.Warn("session archive failed",
				zap.String("session", sessionID), zap.Error(err))
		}
	}
	if m.recorder != nil {
		if err := m.recorder.RecordSession(ctx, sess); err != nil {
			m.logger.Warn("session progress recording failed",
				zap.String("session", sessionID), zap.Error(err))
		}
	}

	if err := m.store.Delete(ctx, sessionID); err != nil {
		m.logger.Warn("failed to delete ended session",
			zap.String("session", sessionID), zap.Error(err))
	}
	m.dropLock(sessionID)

	m.logger.Info("session ended",
		zap.String("session", sessionID),
		zap.Int("topics", len(sess.CompletedTopics)),
		zap.Duration("duration", time.Since(sess.CreatedAt)))
	return report, nil
}

// GetSession returns a consistent snapshot of the session state.
func (m *Manager) GetSession(ctx context.Context, sessionID, userID string) (*PracticeSession, error) {
	l := m.lock(sessionID)
	l.Lock()
	defer l.Unlock()
	sess, err := m.load(ctx, sessionID, userID)
	if err != nil {
		m.dropLockIfMissing(sessionID, err)
		return nil, err
	}
	return sess, nil
}

func (m *Manager) load(ctx context.Context, sessionID, userID string) (*PracticeSession, error) {
	data, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var sess PracticeSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if sess.UserID != userID {
		return nil, ErrForbidden
	}
	return &sess, nil
}

func (m *Manager) save(ctx context.Context, sess *PracticeSession) error {
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := m.store.Put(ctx, sess.ID, data); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

func (m *Manager) feedbackDigest(sess *PracticeSession) string {
	if len(sess.Feedbacks) == 0 {
		return "No topic feedback yet. Finish a topic first and I'll score it for you."
	}
	var b strings.Builder
	b.WriteString("Feedback so far:\n")
	for _, fb := range sess.Feedbacks {
		fmt.Fprintf(&b, "- %s: %d/10. %s\n", fb.TopicName, fb.Score, fb.Suggestion)
	}
	return b.String()
}
