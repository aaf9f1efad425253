package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrVersionMismatch = errors.New("store: version mismatch")
	ErrInvalidPath     = errors.New("store: invalid path")
)

// VersionedHandle is the capability to mutate Path as long as the store still holds Version.
// An empty Version means the path is expected not to exist yet.
type VersionedHandle struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// NewHandle returns a create-only handle for path
func NewHandle(path string) VersionedHandle {
	return VersionedHandle{Path: path}
}

func (h VersionedHandle) IsCreate() bool {
	return h.Version == ""
}

func (h VersionedHandle) String() string {
	if h.IsCreate() {
		return h.Path + "@new"
	}
	return h.Path + "@" + h.Version
}

// Object is the content of a path together with the handle observed while reading it.
type Object struct {
	Handle  VersionedHandle
	Content []byte
}

// Commit describes a successful mutation.
type Commit struct {
	// Handle is the handle of the written path, zero Version after a delete
	Handle VersionedHandle
	// SHA and URL identify the revision for stores that keep history
	SHA string
	URL string
}

// Store is a path-addressed file store with per-path optimistic concurrency control.
// Every mutation must present the handle returned by the latest read of that path.
type Store interface {
	// Get reads a path. Returns ErrNotFound if absent.
	Get(ctx context.Context, path string) (*Object, error)

	// Put writes content if handle still matches the stored version.
	// Returns ErrVersionMismatch if another writer got there first.
	Put(ctx context.Context, handle VersionedHandle, content []byte, message string) (*Commit, error)

	// Delete removes the path if handle still matches the stored version.
	Delete(ctx context.Context, handle VersionedHandle, message string) (*Commit, error)
}

// UpstreamError reports a non-successful response from the backing store.
// Err is the sentinel kind (ErrNotFound, ErrVersionMismatch) when the status maps to one.
type UpstreamError struct {
	Op      string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Path, e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// CleanPath validates a repository-relative path and strips a leading "./" or "/".
func CleanPath(path string) (string, error) {
	p := strings.TrimPrefix(strings.TrimSpace(path), "./")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return p, nil
}
