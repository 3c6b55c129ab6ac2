package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securedocs/internal/domain"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// fakeS3 answers the handful of path-style calls the client makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	deletes []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != "docs" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.objects[key]
	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, noSuchKeyXML)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = io.WriteString(w, body)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		f.deletes = append(f.deletes, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, objects map[string]string) (*Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: objects}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "docs",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	return c, fake
}

func TestNewClient_RequiresConfig(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Bucket: "docs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessKeyID is required")
}

func TestNewClient_UnreachableBucket(t *testing.T) {
	srv := httptest.NewServer(&fakeS3{objects: map[string]string{}})
	defer srv.Close()

	_, err := NewClient(context.Background(), Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "other",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to access bucket other")
}

func TestClient_OpenAndExists(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{"a.docx": "hello"})
	ctx := context.Background()

	obj, err := c.Open(ctx, "a.docx")
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.EqualValues(t, 5, obj.ContentLength())

	ok, err := c.Exists(ctx, "a.docx")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(ctx, "b.docx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_OpenMissingMapsToNotFound(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{})

	_, err := c.Open(context.Background(), "missing.pptx")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestClient_DeleteSkipsMissingKeys(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{"a.docx": "hello"})
	ctx := context.Background()

	require.NoError(t, c.Delete(ctx, "missing.docx"))
	require.NoError(t, c.Delete(ctx, "a.docx"))

	assert.Equal(t, []string{"a.docx"}, fake.deletes)
	assert.Error(t, c.Delete(ctx, ""))
}
