package interview

import (
	"time"

	"github.com/google/uuid"
)

// TopicStatus is the conversational state of one topic.
type TopicStatus string

const (
	// StatusCollecting means the topic is active and gathering information.
	StatusCollecting TopicStatus = "collecting"
	// StatusCollected means the topic is fully explored and sealed.
	StatusCollected TopicStatus = "collected"
	// StatusAbandoned means the topic ended before full exploration.
	StatusAbandoned TopicStatus = "abandoned"
	// StatusEngaged is a soft sub-state of collecting: the user is highly
	// engaged past the turn threshold. It never blocks further collection.
	StatusEngaged TopicStatus = "engaged"
)

// Terminal reports whether the status closes the topic.
func (s TopicStatus) Terminal() bool {
	return s == StatusCollected || s == StatusAbandoned
}

// InfoType categorizes one extracted information point.
type InfoType string

const (
	InfoSkillClaim        InfoType = "skill_claim"
	InfoProjectExperience InfoType = "project_experience"
	InfoQuantifiedResult  InfoType = "quantified_result"
	InfoChallengeSolution InfoType = "challenge_solution"
	InfoLearning          InfoType = "learning"
	InfoOther             InfoType = "other"
)

// CollectedInfoPoint is one fact extracted from a user utterance. Points
// accumulate within a topic and are never removed.
type CollectedInfoPoint struct {
	Type          InfoType `json:"type"`
	Summary       string   `json:"summary"`
	Depth         int      `json:"depth"` // 1..5
	NeedsFollowUp bool     `json:"needs_follow_up"`
}

// TopicMessage is one turn inside a topic.
type TopicMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TopicContext is one topic of conversation. It mutates only by appending
// messages and info points, and becomes immutable once sealed into a
// session's completed topics.
type TopicContext struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Status        TopicStatus          `json:"status"`
	StartedAt     time.Time            `json:"started_at"`
	EndedAt       *time.Time           `json:"ended_at,omitempty"`
	Messages      []TopicMessage       `json:"messages"`
	CollectedInfo []CollectedInfoPoint `json:"collected_info"`
	TargetSkills  []string             `json:"target_skills,omitempty"`
}

// NewTopicContext starts a topic in the collecting state.
func NewTopicContext(name string, targetSkills []string) *TopicContext {
	return &TopicContext{
		ID:           uuid.New().String(),
		Name:         name,
		Status:       StatusCollecting,
		StartedAt:    time.Now(),
		TargetSkills: targetSkills,
	}
}

// Append records one turn.
func (t *TopicContext) Append(role, content string) {
	t.Messages = append(t.Messages, TopicMessage{Role: role, Content: content, Timestamp: time.Now()})
}

// UserTurns counts the user's turns in this topic.
func (t *TopicContext) UserTurns() int {
	n := 0
	for _, m := range t.Messages {
		if m.Role == "user" {
			n++
		}
	}
	return n
}

// TopicFeedback is the per-topic feedback artifact generated when a topic
// seals.
type TopicFeedback struct {
	TopicName    string   `json:"topic_name"`
	Score        int      `json:"score"` // 1..10
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Suggestion   string   `json:"suggestion"`
}

// Recommendation is one job or practice recommendation in the end-of-session
// report.
type Recommendation struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
	URL    string `json:"url,omitempty"`
}

// SessionReport is the result of ending a session.
type SessionReport struct {
	SessionID       string           `json:"session_id"`
	Feedbacks       []TopicFeedback  `json:"feedbacks"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         string           `json:"summary"`
}

// PracticeSession is the full per-conversation state. At most one topic is
// active at a time; a topic lives either in CurrentTopic or in
// CompletedTopics, never both.
type PracticeSession struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	TargetPosition  string          `json:"target_position"`
	CurrentTopic    *TopicContext   `json:"current_topic,omitempty"`
	CompletedTopics []*TopicContext `json:"completed_topics"`
	TopicHistory    []string        `json:"topic_history"`
	Feedbacks       []TopicFeedback `json:"feedbacks"`
	Ended           bool            `json:"ended"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPracticeSession creates an empty session for a user and position.
func NewPracticeSession(userID, targetPosition string) *PracticeSession {
	now := time.Now()
	return &PracticeSession{
		ID:             uuid.New().String(),
		UserID:         userID,
		TargetPosition: targetPosition,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SeenTopic reports whether a topic name was already used in this session.
func (s *PracticeSession) SeenTopic(name string) bool {
	for _, n := range s.TopicHistory {
		if n == name {
			return true
		}
	}
	if s.CurrentTopic != nil && s.CurrentTopic.Name == name {
		return true
	}
	return false
}

// StartTopic installs a new current topic and records its name so it is
// never proposed again in this session.
func (s *PracticeSession) StartTopic(t *TopicContext) {
	s.CurrentTopic = t
	s.TopicHistory = append(s.TopicHistory, t.Name)
	s.UpdatedAt = time.Now()
}

// SealCurrentTopic closes the active topic with a terminal status and moves
// it into the completed list.
func (s *PracticeSession) SealCurrentTopic(status TopicStatus) *TopicContext {
	t := s.CurrentTopic
	if t == nil {
		return nil
	}
	now := time.Now()
	t.Status = status
	t.EndedAt = &now
	s.CompletedTopics = append(s.CompletedTopics, t)
	s.CurrentTopic = nil
	s.UpdatedAt = now
	return t
}
