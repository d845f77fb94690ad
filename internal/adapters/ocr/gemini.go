package ocr

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiProvider reads documents with a Gemini model through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
	opts   options
}

// NewGeminiProvider creates the genai client. An empty model uses gemini-2.5-flash.
func NewGeminiProvider(ctx context.Context, apiKey, model string, opts ...Option) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", ErrNotConfigured)
	}
	if model == "" {
		model = geminiModel
	}
	o := buildOptions(opts)
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.client,
	}
	if o.endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: o.endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, opts: o}, nil
}

// Name identifies the provider on stored documents.
func (p *GeminiProvider) Name() string { return "gemini" }

// Extract sends the file inline with the extraction prompt and asks for JSON.
// PRE: in.ContentType is an image type or application/pdf
// POST: Returns normalized fields parsed from the model answer
func (p *GeminiProvider) Extract(ctx context.Context, in Input) (Result, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(extractionPrompt + "\nDocument kind declared by the customer: " + in.Kind),
		genai.NewPartFromBytes(in.Data, in.ContentType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	})
	p.opts.collector.ObserveCall("ocr.gemini", start, err)
	if err != nil {
		return Result{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return Result{}, ErrNoDocument
	}
	fields, err := parseFieldsJSON(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Fields: fields, RawText: text, Provider: p.Name()}, nil
}
