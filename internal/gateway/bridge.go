package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/parleyhq/parley/internal/interview"
	"go.uber.org/zap"
)

const defaultPosition = "Software Engineer"

// Bridge maps platform conversations to practice sessions. Each
// platform:channel:user triple owns at most one session; "start <position>"
// opens one, "report" closes it and delivers the full report, anything else
// flows through the interview manager.
type Bridge struct {
	manager  *interview.Manager
	sessions map[string]string // platform:channel:user -> sessionID
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewBridge creates a bridge over the interview manager.
func NewBridge(manager *interview.Manager, logger *zap.Logger) *Bridge {
	return &Bridge{
		manager:  manager,
		sessions: make(map[string]string),
		logger:   logger,
	}
}

// Attach wires the bridge as the gateway's inbound handler. Replies go back
// through the gateway to the originating channel.
func (b *Bridge) Attach(gw *Gateway) {
	gw.SetHandler(func(msg *InboundMessage) {
		reply := b.Handle(context.Background(), msg)
		if reply == "" {
			return
		}
		out := &OutboundMessage{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			Content:   reply,
			ReplyTo:   msg.ReplyTo,
		}
		if err := gw.Send(context.Background(), out); err != nil {
			b.logger.Error("bridge reply failed",
				zap.String("platform", msg.Platform),
				zap.String("channel", msg.ChannelID), zap.Error(err))
		}
	})
}

// Handle processes one inbound platform message and returns the reply text.
func (b *Bridge) Handle(ctx context.Context, msg *InboundMessage) string {
	key := fmt.Sprintf("%s:%s:%s", msg.Platform, msg.ChannelID, msg.UserID)
	content := strings.TrimSpace(msg.Content)

	b.mu.Lock()
	sessionID, active := b.sessions[key]
	b.mu.Unlock()

	if !active {
		position, ok := parseStart(content)
		if !ok {
			return "Hi! Say \"start <position>\" (for example: start Backend Engineer) to begin a practice interview."
		}
		res, err := b.manager.StartSession(ctx, bridgeUserID(msg), position)
		if err != nil {
			b.logger.Error("bridge start session failed", zap.Error(err))
			return "Sorry, I couldn't start a session right now. Try again in a moment."
		}
		b.mu.Lock()
		b.sessions[key] = res.SessionID
		b.mu.Unlock()
		return res.OpeningMessage
	}

	if strings.EqualFold(content, "report") {
		report, err := b.manager.EndSession(ctx, sessionID, bridgeUserID(msg))
		b.mu.Lock()
		delete(b.sessions, key)
		b.mu.Unlock()
		if err != nil {
			b.logger.Error("bridge end session failed", zap.Error(err))
			return "Sorry, I couldn't produce your report."
		}
		return renderReport(report)
	}

	res, err := b.manager.SendMessage(ctx, sessionID, bridgeUserID(msg), content)
	if errors.Is(err, interview.ErrSessionEnded) || errors.Is(err, interview.ErrSessionNotFound) {
		b.mu.Lock()
		delete(b.sessions, key)
		b.mu.Unlock()
		return "That session is over. Start a new one with \"start <position>\"."
	}
	if err != nil {
		b.logger.Error("bridge send message failed", zap.Error(err))
		return "Sorry, something went wrong processing that. Try again."
	}

	reply := res.Response
	if res.SessionOver {
		reply += "\n\nSay \"report\" to get your full session report."
	}
	return reply
}

func bridgeUserID(msg *InboundMessage) string {
	return msg.Platform + ":" + msg.UserID
}

func parseStart(content string) (string, bool) {
	lower := strings.ToLower(content)
	if !strings.HasPrefix(lower, "start") {
		return "", false
	}
	position := strings.TrimSpace(content[len("start"):])
	if position == "" {
		position = defaultPosition
	}
	return position, true
}

func renderReport(report *interview.SessionReport) string {
	var sb strings.Builder
	sb.WriteString("Session report\n")
	for _, fb := range report.Feedbacks {
		fmt.Fprintf(&sb, "\n%s: %d/10\n", fb.TopicName, fb.Score)
		for _, s := range fb.Strengths {
			fmt.Fprintf(&sb, "  + %s\n", s)
		}
		for _, s := range fb.Improvements {
			fmt.Fprintf(&sb, "  - %s\n", s)
		}
	}
	sb.WriteString("\nRecommendations:\n")
	for _, r := range report.Recommendations {
		fmt.Fprintf(&sb, "  * %s: %s\n", r.Title, r.Reason)
	}
	sb.WriteString("\n" + report.Summary)
	return sb.String()
}
