package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "carimport/internal/adapters/email"
	domainOutbox "carimport/internal/domain/outbox"
)

// Notifier renders transactional email and queues it on the outbox.
// The worker delivers it through EmailExecutor.
type Notifier struct {
	Renderer   *emailAdapter.Renderer
	Outbox     OutboxWriter
	AdminInbox string // receives AdminNewRequest and OfferAnswered
	GenerateID func() string
	Now        func() time.Time
}

// Queue renders m for one recipient and stores it as a pending email entry.
// PRE: to is a valid address
// POST: one outbox entry with action "email" exists; nil Notifier is a no-op
func (n *Notifier) Queue(ctx context.Context, to string, m emailAdapter.Message) error {
	if n == nil || n.Renderer == nil || n.Outbox == nil {
		slog.Debug("email_not_queued", "reason", "notifier_not_configured", "to", to)
		return nil
	}
	if to == "" {
		return errors.New("email recipient is required")
	}
	rendered, err := n.Renderer.Render(m)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	req := emailAdapter.SendRequest{
		To:      []string{to},
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
	}
	entry, err := domainOutbox.NewEntry(newID(n.GenerateID), domainOutbox.ActionTypeEmail, req, nowFrom(n.Now))
	if err != nil {
		return err
	}
	if err := n.Outbox.Save(ctx, entry); err != nil {
		return fmt.Errorf("queue email: %w", err)
	}
	slog.Info("email_queued", "entry_id", entry.ID, "subject", rendered.Subject)
	return nil
}

// QueueAdmin sends m to the admin inbox, when one is configured.
func (n *Notifier) QueueAdmin(ctx context.Context, m emailAdapter.Message) error {
	if n == nil || n.AdminInbox == "" {
		return nil
	}
	return n.Queue(ctx, n.AdminInbox, m)
}

// queueOrLog queues an email after the main change is already saved; failure is logged only.
func queueOrLog(ctx context.Context, n *Notifier, to string, m emailAdapter.Message) {
	if err := n.Queue(ctx, to, m); err != nil {
		slog.Error("email_queue_failed", "to", to, "error", err)
	}
}

func queueAdminOrLog(ctx context.Context, n *Notifier, m emailAdapter.Message) {
	if err := n.QueueAdmin(ctx, m); err != nil {
		slog.Error("email_queue_failed", "to", "admin", "error", err)
	}
}

// EmailExecutor delivers queued email entries.
type EmailExecutor struct {
	Sender emailAdapter.Sender
}

// Execute sends the email described by payload.
// PRE: payload is a JSON SendRequest
// POST: returns the provider message ID
// INVARIANT: outbox entry status managed by caller
func (e *EmailExecutor) Execute(ctx context.Context, entry domainOutbox.Entry) (string, error) {
	var req emailAdapter.SendRequest
	if err := entry.Decode(&req); err != nil {
		return "", err
	}
	res, err := e.Sender.Send(ctx, req)
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}
