package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carimport/internal/adapters/http/perf"
)

type fakeObject struct {
	data        []byte
	contentType string
}

// fakeR2 serves the subset of the path-style S3 API the store uses.
func fakeR2(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	objects := map[string]fakeObject{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		key := r.URL.Path
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[key] = fakeObject{data: body, contentType: r.Header.Get("Content-Type")}
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			obj, ok := objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Type", obj.contentType)
			w.Write(obj.data)
		case http.MethodDelete:
			delete(objects, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestR2(t *testing.T, endpoint string, collector *perf.Collector) *R2Store {
	t.Helper()
	s, err := NewR2Store(R2Config{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Bucket:          "carimport",
		Endpoint:        endpoint,
	}, collector)
	require.NoError(t, err)
	return s
}

func TestR2Store_RoundTrip(t *testing.T) {
	srv := fakeR2(t)
	collector := perf.NewCollector(50)
	s := newTestR2(t, srv.URL, collector)
	ctx := context.Background()

	key := "stock/car-1/front.jpg"
	require.NoError(t, s.Put(ctx, key, []byte("jpeg"), "image/jpeg"))

	data, ct, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "image/jpeg", ct)

	require.NoError(t, s.Delete(ctx, key))
	_, _, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(4), collector.TotalRecorded())
}

func TestR2Store_PresignedURL(t *testing.T) {
	s := newTestR2(t, "https://acc.r2.cloudflarestorage.com", nil)
	url, err := s.URL(context.Background(), "documents/a1/d1.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://acc.r2.cloudflarestorage.com/carimport/documents/a1/d1.pdf?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

func TestNewR2Store_RequiresConfig(t *testing.T) {
	_, err := NewR2Store(R2Config{Bucket: "b"}, nil)
	assert.Error(t, err)
	_, err = NewR2Store(R2Config{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}, nil)
	assert.Error(t, err, "account ID or endpoint is required")
}
