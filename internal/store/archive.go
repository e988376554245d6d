package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/interview"
)

// ArchivedSession is one completed practice session as stored long term.
type ArchivedSession struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	TargetPosition string    `json:"target_position"`
	Summary        string    `json:"summary"`
	TopicCount     int       `json:"topic_count"`
	CreatedAt      time.Time `json:"created_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// ArchiveSession persists a finished session and its report. Live session
// state lives in the session store; this is the durable history behind
// progress tracking.
func (s *Store) ArchiveSession(ctx context.Context, sess *interview.PracticeSession, report *interview.SessionReport) error {
	topicsJSON, err := json.Marshal(sess.CompletedTopics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO archived_sessions (id, user_id, target_position, summary, topics, report, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		sess.ID, sess.UserID, sess.TargetPosition, report.Summary, topicsJSON, reportJSON, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", sess.ID, err)
	}
	return nil
}

// ListUserSessions returns a user's archived sessions, newest first.
func (s *Store) ListUserSessions(ctx context.Context, userID string, limit int) ([]ArchivedSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, target_position, summary,
		       jsonb_array_length(topics), created_at, ended_at
		FROM archived_sessions
		WHERE user_id = $1
		ORDER BY ended_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []ArchivedSession
	for rows.Next() {
		var a ArchivedSession
		if err := rows.Scan(&a.ID, &a.UserID, &a.TargetPosition, &a.Summary,
			&a.TopicCount, &a.CreatedAt, &a.EndedAt); err != nil {
			return nil, fmt.Errorf("scan archived session: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetReport returns the stored report for one archived session.
func (s *Store) GetReport(ctx context.Context, sessionID, userID string) (*interview.SessionReport, error) {
	var reportJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT report FROM archived_sessions
		WHERE id = $1 AND user_id = $2`,
		sessionID, userID,
	).Scan(&reportJSON)
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", sessionID, err)
	}

	var report interview.SessionReport
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", sessionID, err)
	}
	return &report, nil
}
