package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_VersionSemantics(t *testing.T) {
	m := NewMemoryStore()

	commit, err := m.Put(t.Context(), NewHandle("a/b.txt"), []byte("one"), "create")
	require.NoError(t, err)

	_, err = m.Put(t.Context(), NewHandle("a/b.txt"), []byte("two"), "create again")
	assert.ErrorIs(t, err, ErrVersionMismatch)

	obj, err := m.Get(t.Context(), "./a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, commit.Handle, obj.Handle)
	assert.Equal(t, "one", string(obj.Content))

	next, err := m.Put(t.Context(), obj.Handle, []byte("two"), "update")
	require.NoError(t, err)

	// the handle from the first read is stale now
	_, err = m.Put(t.Context(), obj.Handle, []byte("three"), "stale")
	assert.ErrorIs(t, err, ErrVersionMismatch)
	_, err = m.Delete(t.Context(), obj.Handle, "stale")
	assert.ErrorIs(t, err, ErrVersionMismatch)

	_, err = m.Delete(t.Context(), next.Handle, "delete")
	require.NoError(t, err)

	_, err = m.Get(t.Context(), "a/b.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InjectAndCalls(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("x.bin", []byte("x"))

	boom := errors.New("boom")
	m.Inject("get", "x.bin", boom)
	_, err := m.Get(t.Context(), "x.bin")
	assert.ErrorIs(t, err, boom)

	m.Inject("get", "x.bin", nil)
	_, err = m.Get(t.Context(), "x.bin")
	assert.NoError(t, err)

	assert.Equal(t, []Call{{Op: "get", Path: "x.bin"}, {Op: "get", Path: "x.bin"}}, m.Calls())
	assert.Equal(t, []string{"x.bin"}, m.Paths())
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "./models/pictures/a.jpg", want: "models/pictures/a.jpg"},
		{in: "/models/manifest.json", want: "models/manifest.json"},
		{in: "models/manifest.json", want: "models/manifest.json"},
		{in: "", wantErr: true},
		{in: "./", wantErr: true},
		{in: "models/../x", wantErr: true},
		{in: "models//x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Backend: BackendGitHub, GitHub: GitHubConfig{Token: "t", Repo: "owner/repo"}}
	assert.NoError(t, cfg.Validate())

	cfg.GitHub.Repo = "repo"
	assert.Error(t, cfg.Validate())

	cfg = &Config{Backend: BackendS3, S3: S3Config{BucketName: "b", Region: "r", AccessKey: "a", SecretKey: "s", Endpoint: "not a url"}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Backend: "ftp"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Backend: BackendMemory}
	s, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
