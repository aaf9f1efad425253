package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/etpamelo/gallerybox/internal/server/store"
)

const DefaultPath = "models/manifest.json"

var (
	ErrUpstreamRead           = errors.New("read manifest failed")
	ErrUpstreamWrite          = errors.New("write manifest failed")
	ErrConcurrentModification = errors.New("manifest was modified concurrently")
	ErrEntryNotFound          = errors.New("id not in manifest")
)

// Manager runs read-modify-write transactions against the manifest file.
// Nothing is cached: every transaction reads the manifest and its version right before writing,
// and a stale version fails the write instead of being retried.
type Manager struct {
	store store.Store
	path  string
}

func NewManager(s store.Store, path string) *Manager {
	if path == "" {
		path = DefaultPath
	}
	// stores hand back cleaned handle paths, so Save compares against the cleaned form
	if cleaned, err := store.CleanPath(path); err == nil {
		path = cleaned
	}
	return &Manager{store: s, path: path}
}

func (m *Manager) Path() string {
	return m.path
}

// Load reads the manifest and the handle that authorizes the next Save.
func (m *Manager) Load(ctx context.Context) (*Document, store.VersionedHandle, error) {
	obj, err := m.store.Get(ctx, m.path)
	if err != nil {
		return nil, store.VersionedHandle{}, fmt.Errorf("%w: %w", ErrUpstreamRead, err)
	}

	doc, err := Decode(obj.Content)
	if err != nil {
		return nil, store.VersionedHandle{}, fmt.Errorf("%w: parse %s: %w", ErrUpstreamRead, m.path, err)
	}

	return doc, obj.Handle, nil
}

// Save writes doc if the manifest is still at handle's version.
func (m *Manager) Save(ctx context.Context, doc *Document, handle store.VersionedHandle, message string) (*store.Commit, error) {
	if handle.Path != m.path {
		return nil, fmt.Errorf("%w: handle for %q cannot write %q", ErrUpstreamWrite, handle.Path, m.path)
	}

	content, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrUpstreamWrite, err)
	}

	commit, err := m.store.Put(ctx, handle, content, message)
	if errors.Is(err, store.ErrVersionMismatch) {
		slog.Warn("manifest version conflict", "path", m.path, "version", handle.Version, "message", message)
		return nil, fmt.Errorf("%w: %w", ErrConcurrentModification, err)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamWrite, err)
	}

	slog.Debug("manifest saved", "path", m.path, "version", commit.Handle.Version, "entries", len(doc.Models), "message", message)
	return commit, nil
}

// Transact loads the manifest, applies fn and saves the result with one version token.
// An error from fn aborts the transaction without writing.
func (m *Manager) Transact(ctx context.Context, message string, fn func(doc *Document) error) (*store.Commit, error) {
	doc, handle, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	return m.Save(ctx, doc, handle, message)
}

// List returns the entries in stored order.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	doc, _, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Models, nil
}

// Append adds e at the end of the manifest.
func (m *Manager) Append(ctx context.Context, e Entry, message string) (*store.Commit, error) {
	return m.Transact(ctx, message, func(doc *Document) error {
		doc.Append(e)
		return nil
	})
}

// SetHidden hides or unhides every entry with the given id and returns how many changed.
func (m *Manager) SetHidden(ctx context.Context, id string, hidden bool) (int, error) {
	action := "unhide"
	if hidden {
		action = "hide"
	}

	var changed int
	_, err := m.Transact(ctx, action+" "+id, func(doc *Document) error {
		changed = doc.SetHidden(id, hidden)
		if changed == 0 {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// RemoveByID deletes every entry with the given id and returns them.
func (m *Manager) RemoveByID(ctx context.Context, id string) ([]Entry, error) {
	var removed []Entry
	_, err := m.Transact(ctx, "manifest: delete "+id, func(doc *Document) error {
		removed = doc.RemoveByID(id)
		if len(removed) == 0 {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
