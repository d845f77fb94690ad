package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiProvider_Extract(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		answer := `{"document_type":"driving_license","full_name":"Marie Curie","document_number":"D1234","expiry_date":"2030-07-04","confidence":0.9}`
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": answer}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), "gm-key", "", WithEndpoint(srv.URL))
	require.NoError(t, err)
	res, err := p.Extract(context.Background(), Input{Data: []byte("jpeg"), ContentType: "image/jpeg", Kind: "driving_license"})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, "models/"+geminiModel+":generateContent"), path)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, "Marie Curie", res.Fields.FullName)
	assert.Equal(t, "2030-07-04", res.Fields.ExpiryDate)
}

func TestGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
