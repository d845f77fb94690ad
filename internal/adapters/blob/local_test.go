package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	valid := []string{"documents/a1/d1.pdf", "stock/car.jpg", "x"}
	for _, k := range valid {
		assert.NoError(t, ValidateKey(k), k)
	}
	invalid := []string{"", "/etc/passwd", "documents/../secret", "a//b", "a/./b", `a\b`, "trailing/"}
	for _, k := range invalid {
		assert.ErrorIs(t, ValidateKey(k), ErrInvalidKey, k)
	}
}

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "/media/")
	require.NoError(t, err)

	key := "documents/acc-1/doc-1.png"
	require.NoError(t, s.Put(ctx, key, []byte("png-bytes"), "image/png"))

	data, ct, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", ct)

	url, err := s.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "/media/documents/acc-1/doc-1.png", url)

	require.NoError(t, s.Put(ctx, key, []byte("replaced"), "image/png"))
	data, _, _ = s.Get(ctx, key)
	assert.Equal(t, "replaced", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, _, err = s.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, s.Delete(ctx, key), "deleting a missing blob is not an error")
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/media")
	require.NoError(t, err)
	err = s.Put(context.Background(), "../escape.txt", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
