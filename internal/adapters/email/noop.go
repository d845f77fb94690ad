package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NoopSender logs sends without delivering them. It keeps the last messages
// so development tooling and tests can inspect what would have gone out.
type NoopSender struct {
	mu   sync.Mutex
	sent []SendRequest
}

// noopKeep bounds the messages a NoopSender remembers.
const noopKeep = 100

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the email but does not deliver it.
// PRE: req is a valid SendRequest
// POST: Returns a noop result without actual delivery
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, req)
	if len(s.sent) > noopKeep {
		s.sent = s.sent[len(s.sent)-noopKeep:]
	}
	s.mu.Unlock()

	slog.Info("noop_email_send", "to", req.To, "subject", req.Subject)
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}

// SendBatch logs each email but does not deliver.
func (s *NoopSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	results := make([]SendResult, 0, len(reqs))
	for _, req := range reqs {
		res, _ := s.Send(ctx, req)
		results = append(results, res)
	}
	return results, nil
}

// Sent returns a copy of the remembered messages, oldest first.
func (s *NoopSender) Sent() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SendRequest(nil), s.sent...)
}
