package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizreg/pkg/platform/sentinel"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestCleanKey(t *testing.T) {
	t.Run("normalizes unsafe characters", func(t *testing.T) {
		key, err := CleanKey("drafts/a b/passport (1).png")
		require.NoError(t, err)
		assert.Equal(t, "drafts/a_b/passport_1_.png", key)
	})

	t.Run("traversal stays under root", func(t *testing.T) {
		key, err := CleanKey("../../etc/passwd")
		require.NoError(t, err)
		assert.Equal(t, "etc/passwd", key)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		_, err := CleanKey("")
		assert.Error(t, err)
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFileStore(root, "http://files.test")
	require.NoError(t, err)

	location, err := store.Put(ctx, "drafts/d1/a1/passport.png", "image/png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "http://files.test/files/drafts/d1/a1/passport.png", location)

	_, statErr := os.Stat(filepath.Join(root, "drafts", "d1", "a1", "passport.png"))
	require.NoError(t, statErr)

	obj, err := store.Get(ctx, "drafts/d1/a1/passport.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, pngHeader, obj.Data)

	key, ok := KeyFromLocation("http://files.test", location)
	require.True(t, ok)
	require.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Delete(ctx, key), sentinel.ErrNotFound)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory("")
	_, err := store.Put(ctx, "drafts/d1/a1/passport.png", "image/png", pngHeader)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(store, nil).Register(r)

	t.Run("serves stored bytes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/drafts/d1/a1/passport.png", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, pngHeader, rec.Body.Bytes())
	})

	t.Run("missing file is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/drafts/missing.png", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
