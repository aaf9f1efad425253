package store

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Call records one operation issued against a MemoryStore.
type Call struct {
	Op   string
	Path string
}

type memoryFile struct {
	content []byte
	version string
}

// MemoryStore keeps files in process memory with the same version semantics as the remote backends.
// Every write issues a fresh version. Used for local development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	files  map[string]*memoryFile
	faults map[Call]error
	calls  []Call
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:  make(map[string]*memoryFile),
		faults: make(map[Call]error),
	}
}

// Seed writes content unconditionally and returns its handle.
func (m *MemoryStore) Seed(path string, content []byte) VersionedHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, _ = CleanPath(path)
	f := &memoryFile{content: append([]byte(nil), content...), version: uuid.NewString()}
	m.files[path] = f
	return VersionedHandle{Path: path, Version: f.version}
}

// Inject makes every following op on path fail with err. A nil err clears the fault.
func (m *MemoryStore) Inject(op, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Call{Op: op, Path: path}
	if err == nil {
		delete(m.faults, key)
		return
	}
	m.faults[key] = err
}

// Calls returns the operations issued so far, in order.
func (m *MemoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Paths lists stored paths in lexical order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (m *MemoryStore) record(op, path string) error {
	m.calls = append(m.calls, Call{Op: op, Path: path})
	return m.faults[Call{Op: op, Path: path}]
}

func (m *MemoryStore) Get(ctx context.Context, path string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("get", path); err != nil {
		return nil, err
	}
	f, ok := m.files[path]
	if !ok {
		return nil, notFound("get", path)
	}
	return &Object{
		Handle:  VersionedHandle{Path: path, Version: f.version},
		Content: append([]byte(nil), f.content...),
	}, nil
}

func (m *MemoryStore) Put(ctx context.Context, handle VersionedHandle, content []byte, message string) (*Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := CleanPath(handle.Path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("put", path); err != nil {
		return nil, err
	}
	current, exists := m.files[path]
	switch {
	case handle.IsCreate() && exists:
		return nil, mismatch("put", path, "path already exists")
	case !handle.IsCreate() && !exists:
		return nil, notFound("put", path)
	case !handle.IsCreate() && current.version != handle.Version:
		return nil, mismatch("put", path, "is at "+current.version+" but expected "+handle.Version)
	}

	f := &memoryFile{content: append([]byte(nil), content...), version: uuid.NewString()}
	m.files[path] = f
	return &Commit{
		Handle: VersionedHandle{Path: path, Version: f.version},
		SHA:    uuid.NewString(),
	}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, handle VersionedHandle, message string) (*Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := CleanPath(handle.Path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.record("delete", path); err != nil {
		return nil, err
	}
	current, exists := m.files[path]
	if !exists {
		return nil, notFound("delete", path)
	}
	if current.version != handle.Version {
		return nil, mismatch("delete", path, "is at "+current.version+" but expected "+handle.Version)
	}

	delete(m.files, path)
	return &Commit{
		Handle: VersionedHandle{Path: path},
		SHA:    uuid.NewString(),
	}, nil
}

func notFound(op, path string) error {
	return &UpstreamError{Op: op, Path: path, Status: http.StatusNotFound, Message: "Not Found", Err: ErrNotFound}
}

func mismatch(op, path, msg string) error {
	return &UpstreamError{Op: op, Path: path, Status: http.StatusConflict, Message: msg, Err: ErrVersionMismatch}
}

var _ Store = (*MemoryStore)(nil)
