package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	openaiModel = "gpt-4o-mini"
	// openaiMaxRetries counts retries after the first call. The client retries
	// 408, 409, 429 and 5xx answers and connection errors on its own.
	openaiMaxRetries = 2
)

// OpenAIProvider asks a vision chat model to read the document.
type OpenAIProvider struct {
	client openai.Client
	model  string
	opts   options
}

// NewOpenAIProvider creates a provider. An empty model uses gpt-4o-mini.
func NewOpenAIProvider(apiKey, model string, opts ...Option) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", ErrNotConfigured)
	}
	if model == "" {
		model = openaiModel
	}
	o := buildOptions(opts)
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.client),
		option.WithMaxRetries(openaiMaxRetries),
	}
	if o.endpoint != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(strings.TrimRight(o.endpoint, "/")+"/"))
	}
	return &OpenAIProvider{client: openai.NewClient(clientOpts...), model: model, opts: o}, nil
}

// Name identifies the provider on stored documents.
func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) buildParams(in Input) openai.ChatCompletionNewParams {
	dataURL := "data:" + in.ContentType + ";base64," + base64.StdEncoding.EncodeToString(in.Data)
	var attachment openai.ChatCompletionContentPartUnionParam
	if in.ContentType == "application/pdf" {
		attachment = openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			Filename: openai.String("document.pdf"),
			FileData: openai.String(dataURL),
		})
	} else {
		attachment = openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    dataURL,
			Detail: "high",
		})
	}
	return openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("Document kind declared by the customer: " + in.Kind),
				attachment,
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0),
	}
}

// Extract sends the document inline and parses the JSON answer.
// PRE: in.ContentType is an image type or application/pdf
// POST: Returns normalized fields; API and decode errors are returned as is so
// the outbox retries them, an empty answer is ErrNoDocument
func (p *OpenAIProvider) Extract(ctx context.Context, in Input) (Result, error) {
	if in.ContentType == "image/heic" {
		return Result{}, ErrUnsupported
	}

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(in))
	p.opts.collector.ObserveCall("ocr.openai", start, err)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Result{}, fmt.Errorf("openai API error (%d): %w", apiErr.StatusCode, err)
		}
		return Result{}, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return Result{}, ErrNoDocument
	}
	content := completion.Choices[0].Message.Content
	fields, err := parseFieldsJSON(content)
	if err != nil {
		return Result{}, err
	}
	return Result{Fields: fields, RawText: content, Provider: p.Name()}, nil
}
