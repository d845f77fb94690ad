package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carimport/internal/domain/document"
)

type stubProvider struct {
	name  string
	res   Result
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Extract(context.Context, Input) (Result, error) {
	s.calls++
	return s.res, s.err
}

func TestChain_FallsBackToNextProvider(t *testing.T) {
	first := &stubProvider{name: "azure", err: errors.New("503")}
	second := &stubProvider{name: "openai", res: Result{Provider: "openai", Fields: document.Fields{FullName: "JANE DOE"}}}
	third := &stubProvider{name: "gemini"}

	res, err := Chain{first, second, third}.Extract(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, third.calls)
}

func TestChain_AllFail(t *testing.T) {
	c := Chain{
		&stubProvider{name: "azure", err: ErrNoDocument},
		&stubProvider{name: "openai", err: errors.New("quota")},
	}
	_, err := c.Extract(context.Background(), Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Contains(t, err.Error(), "openai: quota")
	assert.Equal(t, "azure,openai", c.Name())
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, "noop", p.Name())

	p, err = New(ctx, Config{Provider: "azure, openai", AzureEndpoint: "https://x.cognitiveservices.azure.com", AzureKey: "k", OpenAIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, "azure,openai", p.Name())

	_, err = New(ctx, Config{Provider: "tesseract"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = New(ctx, Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseFieldsJSON(t *testing.T) {
	answer := "```json\n" + `{"document_type":"passport","full_name":" Jane   Doe ","document_number":"c01x 00t47",
		"date_of_birth":"12.08.1985","expiry_date":"2031-02-01","nationality":"deu","confidence":1.4}` + "\n```"
	f, err := parseFieldsJSON(answer)
	require.NoError(t, err)
	assert.Equal(t, document.Fields{
		DocumentType:   "passport",
		FullName:       "Jane Doe",
		DocumentNumber: "C01X00T47",
		DateOfBirth:    "1985-08-12",
		ExpiryDate:     "2031-02-01",
		Nationality:    "DEU",
		Confidence:     1,
	}, f)

	_, err = parseFieldsJSON(`{"full_name":""}`)
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = parseFieldsJSON("I cannot read this document.")
	assert.Error(t, err)
}

func TestNoopProvider(t *testing.T) {
	res, err := NewNoopProvider().Extract(context.Background(), Input{Kind: "passport"})
	require.NoError(t, err)
	assert.Equal(t, "noop", res.Provider)
	assert.True(t, res.Fields.IsEmpty())
}
