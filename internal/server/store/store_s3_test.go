package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves path-style object requests for one bucket with ETag preconditions.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]string // key -> content
	etags   map[string]string // key -> quoted etag
	seq     int
	types   map[string]string // key -> content type of the last put
}

func newFakeS3(t *testing.T, bucket string) (*fakeS3, *S3Store) {
	f := &fakeS3{
		bucket:  bucket,
		objects: map[string]string{},
		etags:   map[string]string{},
		types:   map[string]string{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	s, err := NewS3StoreWithConfig(&S3Config{
		BucketName: bucket,
		Prefix:     "gallery",
		Region:     "us-east-1",
		AccessKey:  "test-access",
		SecretKey:  "test-secret",
		Endpoint:   srv.URL,
	})
	require.NoError(t, err)
	return f, s
}

func (f *fakeS3) seed(key, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(key, content)
}

func (f *fakeS3) write(key, content string) string {
	f.seq++
	etag := fmt.Sprintf("%q", fmt.Sprintf("etag-%d", f.seq))
	f.objects[key] = content
	f.etags[key] = etag
	return etag
}

func (f *fakeS3) object(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.objects[key]
	return content, ok
}

func (f *fakeS3) contentType(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types[key]
}

func (f *fakeS3) fail(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/" + f.bucket + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		f.fail(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	key := strings.TrimPrefix(r.URL.Path, prefix)
	etag, exists := f.etags[key]

	switch r.Method {
	case http.MethodGet:
		if !exists {
			f.fail(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Length", fmt.Sprint(len(f.objects[key])))
		_, _ = io.WriteString(w, f.objects[key])

	case http.MethodPut:
		if r.Header.Get("If-None-Match") == "*" && exists {
			f.fail(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		if m := r.Header.Get("If-Match"); m != "" && (!exists || m != etag) {
			f.fail(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", f.write(key, string(body)))
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		if m := r.Header.Get("If-Match"); m != "" && (!exists || m != etag) {
			f.fail(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		delete(f.objects, key)
		delete(f.etags, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		f.fail(w, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

func TestS3Store_Get(t *testing.T) {
	f, s := newFakeS3(t, "media")
	etag := f.seed("gallery/models/manifest.json", `{"models":[]}`)

	obj, err := s.Get(context.Background(), "models/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, `{"models":[]}`, string(obj.Content))
	assert.Equal(t, VersionedHandle{Path: "models/manifest.json", Version: etag}, obj.Handle)
}

func TestS3Store_GetNotFound(t *testing.T) {
	_, s := newFakeS3(t, "media")

	_, err := s.Get(context.Background(), "models/pictures/none.png")
	require.ErrorIs(t, err, ErrNotFound)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusNotFound, upErr.Status)
}

func TestS3Store_PutCreateAndUpdate(t *testing.T) {
	f, s := newFakeS3(t, "media")
	ctx := context.Background()

	commit, err := s.Put(ctx, NewHandle("models/pictures/a.png"), []byte("png"), "upload: a.png")
	require.NoError(t, err)
	content, _ := f.object("gallery/models/pictures/a.png")
	assert.Equal(t, "png", content)
	assert.Equal(t, "image/png", f.contentType("gallery/models/pictures/a.png"))

	_, err = s.Put(ctx, NewHandle("models/pictures/a.png"), []byte("again"), "upload: a.png")
	require.ErrorIs(t, err, ErrVersionMismatch)

	next, err := s.Put(ctx, commit.Handle, []byte("png2"), "upload: a.png")
	require.NoError(t, err)
	assert.NotEqual(t, commit.Handle.Version, next.Handle.Version)
	content, _ = f.object("gallery/models/pictures/a.png")
	assert.Equal(t, "png2", content)

	// the first handle is stale now
	_, err = s.Put(ctx, commit.Handle, []byte("png3"), "upload: a.png")
	require.ErrorIs(t, err, ErrVersionMismatch)
	content, _ = f.object("gallery/models/pictures/a.png")
	assert.Equal(t, "png2", content)
}

func TestS3Store_Delete(t *testing.T) {
	f, s := newFakeS3(t, "media")
	ctx := context.Background()
	etag := f.seed("gallery/models/videos/v.mp4", "mp4")

	_, err := s.Delete(ctx, VersionedHandle{Path: "models/videos/v.mp4", Version: `"stale"`}, "delete")
	require.ErrorIs(t, err, ErrVersionMismatch)
	_, ok := f.object("gallery/models/videos/v.mp4")
	assert.True(t, ok)

	_, err = s.Delete(ctx, NewHandle("models/videos/v.mp4"), "delete")
	require.ErrorIs(t, err, ErrVersionMismatch)

	_, err = s.Delete(ctx, VersionedHandle{Path: "models/videos/v.mp4", Version: etag}, "delete")
	require.NoError(t, err)
	_, ok = f.object("gallery/models/videos/v.mp4")
	assert.False(t, ok)
}

func TestS3Store_RejectsEscapingPaths(t *testing.T) {
	_, s := newFakeS3(t, "media")

	_, err := s.Get(context.Background(), "../secrets")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
