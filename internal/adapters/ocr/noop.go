package ocr

import (
	"context"
	"log/slog"
)

// NoopProvider is used in development. It recognises nothing, so documents
// go straight to manual review with empty fields.
type NoopProvider struct{}

// NewNoopProvider creates a NoopProvider.
func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

// Name identifies the provider on stored documents.
func (NoopProvider) Name() string { return "noop" }

// Extract returns an empty result.
func (NoopProvider) Extract(_ context.Context, in Input) (Result, error) {
	slog.Info("noop_ocr_extract", "kind", in.Kind, "content_type", in.ContentType, "size", len(in.Data))
	return Result{Provider: "noop"}, nil
}
