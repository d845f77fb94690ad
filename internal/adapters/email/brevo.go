package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"

	"carimport/internal/adapters/http/perf"
)

// DefaultBrevoURL is the Brevo v3 API base path.
const DefaultBrevoURL = "https://api.brevo.com/v3"

// BrevoSender sends emails through the Brevo transactional API.
type BrevoSender struct {
	from      string
	client    *brevo.APIClient
	collector *perf.Collector
}

type brevoConfig struct {
	endpoint  string
	client    *http.Client
	collector *perf.Collector
}

// BrevoOption customises a BrevoSender.
type BrevoOption func(*brevoConfig)

// WithBrevoEndpoint points the sender at another API base path (tests, proxies).
func WithBrevoEndpoint(url string) BrevoOption {
	return func(c *brevoConfig) { c.endpoint = url }
}

// WithBrevoCollector records call timings.
func WithBrevoCollector(collector *perf.Collector) BrevoOption {
	return func(c *brevoConfig) { c.collector = collector }
}

// NewBrevoSender creates a sender with the given API key and default from address.
// PRE: apiKey is a Brevo v3 API key; from is "Name <address>" or an address
// POST: Returns a ready-to-use sender with a 15s HTTP timeout
func NewBrevoSender(apiKey, from string, opts ...BrevoOption) *BrevoSender {
	c := brevoConfig{
		endpoint: DefaultBrevoURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(&c)
	}
	cfg := brevo.NewConfiguration()
	cfg.BasePath = strings.TrimRight(c.endpoint, "/")
	cfg.HTTPClient = c.client
	cfg.AddDefaultHeader("api-key", apiKey)
	return &BrevoSender{from: from, client: brevo.NewAPIClient(cfg), collector: c.collector}
}

func parseAddress(s string) (*mail.Address, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

// buildMessage converts req into the Brevo payload.
func (s *BrevoSender) buildMessage(req SendRequest) (brevo.SendSmtpEmail, error) {
	from := req.From
	if from == "" {
		from = s.from
	}
	sender, err := parseAddress(from)
	if err != nil {
		return brevo.SendSmtpEmail{}, err
	}
	msg := brevo.SendSmtpEmail{
		Sender:      &brevo.SendSmtpEmailSender{Name: sender.Name, Email: sender.Address},
		Subject:     req.Subject,
		HtmlContent: req.HTML,
	}
	for _, to := range req.To {
		addr, err := parseAddress(to)
		if err != nil {
			return brevo.SendSmtpEmail{}, err
		}
		msg.To = append(msg.To, brevo.SendSmtpEmailTo{Name: addr.Name, Email: addr.Address})
	}
	if req.ReplyTo != "" {
		addr, err := parseAddress(req.ReplyTo)
		if err != nil {
			return brevo.SendSmtpEmail{}, err
		}
		msg.ReplyTo = &brevo.SendSmtpEmailReplyTo{Name: addr.Name, Email: addr.Address}
	}
	return msg, nil
}

// Send sends a single email via Brevo.
// PRE: req has at least one recipient and a subject
// POST: Email is accepted for delivery; returns the Brevo message ID
func (s *BrevoSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	msg, err := s.buildMessage(req)
	if err != nil {
		return SendResult{}, err
	}

	start := time.Now()
	created, resp, err := s.client.TransactionalEmailsApi.SendTransacEmail(ctx, msg)
	err = brevoError(resp, err)
	s.collector.ObserveCall("email.brevo", start, err)
	if err != nil {
		slog.Error("brevo_send_failed", "error", err, "to_count", len(req.To), "subject", req.Subject)
		return SendResult{}, fmt.Errorf("brevo send failed: %w", err)
	}
	slog.Info("brevo_sent", "message_id", created.MessageId, "to_count", len(req.To), "subject", req.Subject)
	return SendResult{MessageID: created.MessageId, SentAt: time.Now()}, nil
}

// brevoError adds the HTTP status and the API error body to a failed call.
func brevoError(resp *http.Response, err error) error {
	if err == nil {
		return nil
	}
	var apiErr brevo.GenericSwaggerError
	if errors.As(err, &apiErr) && resp != nil {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(apiErr.Body())))
	}
	return err
}

// SendBatch sends each email in turn and stops at the first failure.
// PRE: len(reqs) > 0
// POST: Returns results for the emails sent so far, in request order
func (s *BrevoSender) SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error) {
	results := make([]SendResult, 0, len(reqs))
	for i, req := range reqs {
		res, err := s.Send(ctx, req)
		if err != nil {
			return results, fmt.Errorf("batch item %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}
