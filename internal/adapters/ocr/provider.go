// Package ocr extracts identity-document fields from uploaded images and PDFs
// through hosted vision APIs.
package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"carimport/internal/domain/document"
)

// Errors returned by providers.
var (
	ErrNoDocument     = errors.New("ocr: no document recognised")
	ErrUnsupported    = errors.New("ocr: content type not supported by provider")
	ErrNotConfigured  = errors.New("ocr: provider not configured")
	ErrUnknownBackend = errors.New("ocr: unknown provider")
)

// Input is the file to analyse.
type Input struct {
	Data        []byte
	ContentType string
	Kind        string // passport, id_card or driving_license
}

// Result is what a provider extracted.
type Result struct {
	Fields   document.Fields
	RawText  string
	Provider string
}

// Provider is a hosted OCR backend.
type Provider interface {
	Name() string
	Extract(ctx context.Context, in Input) (Result, error)
}

// Chain tries providers in order and returns the first success.
type Chain []Provider

// Name lists the chained providers.
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, p := range c {
		names[i] = p.Name()
	}
	return strings.Join(names, ",")
}

// Extract returns the first provider result that succeeds.
// PRE: len(c) > 0
// POST: Result.Provider names the provider that answered; all errors joined on failure
func (c Chain) Extract(ctx context.Context, in Input) (Result, error) {
	var errs []error
	for _, p := range c {
		res, err := p.Extract(ctx, in)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		slog.Warn("ocr_provider_failed", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if len(errs) == 0 {
		return Result{}, ErrNotConfigured
	}
	return Result{}, errors.Join(errs...)
}

// Config selects and configures providers. Provider is a comma-separated
// preference list, e.g. "azure,openai".
type Config struct {
	Provider string

	AzureEndpoint string
	AzureKey      string

	OpenAIKey   string
	OpenAIModel string

	GeminiKey   string
	GeminiModel string
}

// New builds the provider or chain named by cfg.Provider.
// PRE: keys for each named provider are set
// POST: Returns a single Provider, a Chain, or an error naming the bad entry
func New(ctx context.Context, cfg Config, opts ...Option) (Provider, error) {
	names := strings.Split(cfg.Provider, ",")
	var chain Chain
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		var (
			p   Provider
			err error
		)
		switch name {
		case "", "noop":
			p = NewNoopProvider()
		case "azure":
			p, err = NewAzureProvider(cfg.AzureEndpoint, cfg.AzureKey, opts...)
		case "openai":
			p, err = NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel, opts...)
		case "gemini":
			p, err = NewGeminiProvider(ctx, cfg.GeminiKey, cfg.GeminiModel, opts...)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownBackend, name)
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// normalizeFields trims values, converts dates to YYYY-MM-DD and uppercases
// nationality codes. Unparseable dates are dropped so review can fill them in.
func normalizeFields(f document.Fields) document.Fields {
	f.DocumentType = strings.TrimSpace(f.DocumentType)
	f.FullName = strings.Join(strings.Fields(f.FullName), " ")
	f.DocumentNumber = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(f.DocumentNumber), " ", ""))
	f.DateOfBirth = document.NormalizeBirthDate(f.DateOfBirth, time.Now())
	f.ExpiryDate = document.NormalizeDate(f.ExpiryDate)
	f.Nationality = strings.ToUpper(strings.TrimSpace(f.Nationality))
	f.Address = strings.Join(strings.Fields(f.Address), " ")
	if f.Confidence < 0 {
		f.Confidence = 0
	}
	if f.Confidence > 1 {
		f.Confidence = 1
	}
	return f
}

// extractionPrompt is shared by the language-model providers.
const extractionPrompt = `You read identity documents (passports, national ID cards, driving licences).
Extract the fields below from the attached document and answer with a single JSON object, no prose:
{"document_type": "", "full_name": "", "document_number": "", "date_of_birth": "YYYY-MM-DD",
 "expiry_date": "YYYY-MM-DD", "nationality": "ISO 3166 alpha-3", "address": "", "confidence": 0.0}
Use "" for anything not visible. confidence is your certainty between 0 and 1.`

// parseFieldsJSON decodes a model answer, tolerating a markdown code fence.
func parseFieldsJSON(text string) (document.Fields, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	var f document.Fields
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &f); err != nil {
		return document.Fields{}, fmt.Errorf("decode model answer: %w", err)
	}
	if f.IsEmpty() {
		return document.Fields{}, ErrNoDocument
	}
	return normalizeFields(f), nil
}
