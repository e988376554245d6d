package interview

import (
	"context"
	"sync/atomic"

	"github.com/parleyhq/parley/internal/provider"
	"go.uber.org/zap"
)

// scriptedProvider replays fixed replies and counts calls.
type scriptedProvider struct {
	replies []string
	calls   int64
}

func (s *scriptedProvider) ID() string   { return "scripted" }
func (s *scriptedProvider) Name() string { return "Scripted" }

func (s *scriptedProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := atomic.AddInt64(&s.calls, 1)
	reply := ""
	if int(n) <= len(s.replies) {
		reply = s.replies[n-1]
	}
	return &provider.ChatResponse{Content: reply}, nil
}

func (s *scriptedProvider) ChatStream(ctx context.Context, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	ch := make(chan *provider.StreamChunk)
	close(ch)
	return ch, nil
}

func (s *scriptedProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	return nil, nil
}

func (s *scriptedProvider) HealthCheck(ctx context.Context) error { return nil }

func (s *scriptedProvider) callCount() int {
	return int(atomic.LoadInt64(&s.calls))
}

func scriptedRouter(p provider.Provider) *provider.Router {
	r := provider.NewRouter(zap.NewNop())
	r.Register(p)
	return r
}
