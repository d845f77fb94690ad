package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"carimport/internal/domain/document"
)

const azureAPIVersion = "2024-11-30"

// AzureProvider calls the Azure Document Intelligence prebuilt-idDocument model.
type AzureProvider struct {
	endpoint string
	key      string
	opts     options
}

// NewAzureProvider configures the provider for a resource endpoint such as
// https://<name>.cognitiveservices.azure.com.
func NewAzureProvider(endpoint, key string, opts ...Option) (*AzureProvider, error) {
	o := buildOptions(opts)
	if o.endpoint != "" {
		endpoint = o.endpoint
	}
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("%w: azure endpoint and key are required", ErrNotConfigured)
	}
	return &AzureProvider{endpoint: strings.TrimRight(endpoint, "/"), key: key, opts: o}, nil
}

// Name identifies the provider on stored documents.
func (p *AzureProvider) Name() string { return "azure" }

type azureField struct {
	Type               string  `json:"type"`
	Content            string  `json:"content"`
	ValueString        string  `json:"valueString"`
	ValueDate          string  `json:"valueDate"`
	ValueCountryRegion string  `json:"valueCountryRegion"`
	Confidence         float64 `json:"confidence"`
}

func (f azureField) value() string {
	for _, v := range []string{f.ValueString, f.ValueDate, f.ValueCountryRegion, f.Content} {
		if v != "" {
			return v
		}
	}
	return ""
}

type azureResult struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	AnalyzeResult struct {
		Content   string `json:"content"`
		Documents []struct {
			DocType    string                `json:"docType"`
			Confidence float64               `json:"confidence"`
			Fields     map[string]azureField `json:"fields"`
		} `json:"documents"`
	} `json:"analyzeResult"`
}

// Extract submits the file and polls the operation until it finishes.
// PRE: in.Data is a JPEG, PNG, HEIC or PDF document
// POST: Returns normalized fields from the first recognised document
func (p *AzureProvider) Extract(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	res, err := p.extract(ctx, in)
	p.opts.collector.ObserveCall("ocr.azure", start, err)
	if err != nil {
		return Result{}, err
	}
	slog.Info("ocr_extracted", "provider", p.Name(), "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (p *AzureProvider) extract(ctx context.Context, in Input) (Result, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/prebuilt-idDocument:analyze?api-version=%s",
		p.endpoint, azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(in.Data))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", in.ContentType)

	resp, err := p.opts.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("azure analyze: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return Result{}, fmt.Errorf("azure analyze: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return Result{}, fmt.Errorf("azure analyze: missing Operation-Location header")
	}

	for i := 0; i < p.opts.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(p.opts.pollInterval):
		}
		out, err := p.poll(ctx, opURL)
		if err != nil {
			return Result{}, err
		}
		switch out.Status {
		case "succeeded":
			return mapAzure(out)
		case "failed", "canceled":
			msg := out.Status
			if out.Error != nil {
				msg = out.Error.Code + ": " + out.Error.Message
			}
			return Result{}, fmt.Errorf("azure analyze %s", msg)
		}
	}
	return Result{}, fmt.Errorf("azure analyze: still running after %d polls", p.opts.maxPolls)
}

func (p *AzureProvider) poll(ctx context.Context, opURL string) (azureResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return azureResult{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	resp, err := p.opts.client.Do(req)
	if err != nil {
		return azureResult{}, fmt.Errorf("azure poll: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return azureResult{}, fmt.Errorf("azure poll: status %d", resp.StatusCode)
	}
	var out azureResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return azureResult{}, fmt.Errorf("azure poll: decode: %w", err)
	}
	return out, nil
}

func mapAzure(out azureResult) (Result, error) {
	if len(out.AnalyzeResult.Documents) == 0 {
		return Result{}, ErrNoDocument
	}
	doc := out.AnalyzeResult.Documents[0]
	get := func(name string) string { return doc.Fields[name].value() }

	name := strings.TrimSpace(get("FirstName") + " " + get("LastName"))
	f := document.Fields{
		DocumentType:   strings.TrimPrefix(doc.DocType, "idDocument."),
		FullName:       name,
		DocumentNumber: get("DocumentNumber"),
		DateOfBirth:    get("DateOfBirth"),
		ExpiryDate:     get("DateOfExpiration"),
		Nationality:    get("Nationality"),
		Address:        get("Address"),
		Confidence:     doc.Confidence,
	}
	return Result{
		Fields:   normalizeFields(f),
		RawText:  out.AnalyzeResult.Content,
		Provider: "azure",
	}, nil
}
