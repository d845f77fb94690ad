package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"

	"carimport/internal/adapters/http/perf"
)

// resendBatchSize is the most emails Resend accepts in one batch call.
const resendBatchSize = 100

// ResendSender sends emails via the Resend API. It is the alternate provider
// when Brevo is not configured.
type ResendSender struct {
	client    *resend.Client
	from      string
	collector *perf.Collector
}

// NewResendSender creates a new ResendSender with the given API key and default from address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
// POST: Returns a ready-to-use sender; collector may be nil
func NewResendSender(apiKey, from string, collector *perf.Collector) *ResendSender {
	return &ResendSender{
		client:    resend.NewClient(apiKey),
		from:      from,
		collector: collector,
	}
}

func (s *ResendSender) params(req SendRequest) *resend.SendEmailRequest {
	from := req.From
	if from == "" {
		from = s.from
	}
	p := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	if req.ReplyTo != "" {
		p.ReplyTo = req.ReplyTo
	}
	return p
}

// Send sends a single email via Resend.
// PRE: req has at least one recipient and a subject
// POST: Email is queued for delivery; returns the Resend message ID
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	start := time.Now()
	sent, err := s.client.Emails.SendWithContext(ctx, s.params(req))
	s.collector.ObserveCall("email.resend", start, err)
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to_count", len(req.To), "subject", req.Subject)
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "to_count", len(req.To), "subject", req.Subject)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}

// SendBatch sends emails via Resend's batch API in chunks of resendBatchSize.
// PRE: len(reqs) > 0
// POST: All emails are queued; returns results in the same order as requests
func (s *ResendSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	var results []SendResult
	for i := 0; i < len(reqs); i += resendBatchSize {
		end := min(i+resendBatchSize, len(reqs))
		chunk := reqs[i:end]

		batch := make([]*resend.SendEmailRequest, 0, len(chunk))
		for _, req := range chunk {
			batch = append(batch, s.params(req))
		}

		start := time.Now()
		resp, err := s.client.Batch.SendWithContext(ctx, batch)
		s.collector.ObserveCall("email.resend_batch", start, err)
		if err != nil {
			slog.Error("resend_batch_failed", "error", err, "batch_size", len(chunk))
			return results, fmt.Errorf("resend batch send failed: %w", err)
		}
		for _, item := range resp.Data {
			results = append(results, SendResult{MessageID: item.Id, SentAt: time.Now()})
		}
		slog.Info("resend_batch_sent", "count", len(chunk), "total_sent", len(results))
	}
	return results, nil
}
