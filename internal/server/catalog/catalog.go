package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/etpamelo/gallerybox/internal/server/manifest"
	"github.com/etpamelo/gallerybox/internal/server/store"
)

// Service pairs media file writes and deletes with the manifest mutation that references them.
// The store has no cross-path transactions, so the media write lands first on add
// and the manifest write lands last on delete.
type Service struct {
	store    store.Store
	manifest *manifest.Manager
}

func NewService(s store.Store, m *manifest.Manager) *Service {
	return &Service{store: s, manifest: m}
}

// Add writes the media file and then appends its entry to the manifest.
// If the manifest write fails the file stays behind unreferenced.
func (s *Service) Add(ctx context.Context, req *AddRequest) (*AddResult, error) {
	if err := validateFilename(req.Filename); err != nil {
		return nil, err
	}

	mediaType := req.Type
	if mediaType == "" {
		mediaType = manifest.TypePicture
	}

	filePath := path.Join(mediaRoot, mediaType.Dir(), req.Filename)
	if _, err := s.writeFile(ctx, filePath, req.Content, "upload: "+req.Filename); err != nil {
		return nil, err
	}

	entry := manifest.Entry{ID: req.ID, Type: mediaType, Src: "./" + filePath}
	commit, err := s.manifest.Append(ctx, entry, "manifest: add "+req.ID)
	if err != nil {
		slog.Warn("media file left without manifest entry", "id", req.ID, "path", filePath, "error", err)
		return nil, err
	}

	slog.Info("catalog add", "id", req.ID, "type", mediaType, "path", filePath, "size", humanize.Bytes(uint64(len(req.Content))))
	return &AddResult{Entry: entry, CommitURL: commit.URL}, nil
}

// Stage writes a scratch file under models/tmp without touching the manifest and returns its src.
func (s *Service) Stage(ctx context.Context, filename string, content []byte) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}

	filePath := path.Join(stagingDir, filename)
	if _, err := s.writeFile(ctx, filePath, content, "temp upload: "+filename); err != nil {
		return "", err
	}

	slog.Info("catalog stage", "path", filePath, "size", humanize.Bytes(uint64(len(content))))
	return "./" + filePath, nil
}

func (s *Service) Hide(ctx context.Context, id string) (int, error) {
	return s.manifest.SetHidden(ctx, id, true)
}

func (s *Service) Unhide(ctx context.Context, id string) (int, error) {
	return s.manifest.SetHidden(ctx, id, false)
}

func (s *Service) List(ctx context.Context) ([]manifest.Entry, error) {
	return s.manifest.List(ctx)
}

// Delete removes every backing file of the entries with the given id, then drops the entries
// from the manifest using the version read before the first file was touched.
// File failures are collected and do not stop the manifest update.
func (s *Service) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	result := &DeleteResult{DeletedFiles: []string{}, Errors: []error{}}

	_, err := s.manifest.Transact(ctx, "manifest: delete "+id, func(doc *manifest.Document) error {
		matches := doc.Find(id)
		if len(matches) == 0 {
			return fmt.Errorf("%w: %s", manifest.ErrEntryNotFound, id)
		}

		for _, e := range matches {
			filePath := srcToPath(e.Src)
			if filePath == "" {
				continue
			}
			if err := s.deleteFile(ctx, filePath); err != nil {
				slog.Warn("catalog delete file", "id", id, "path", filePath, "error", err)
				result.Errors = append(result.Errors, err)
				continue
			}
			result.DeletedFiles = append(result.DeletedFiles, filePath)
		}

		doc.RemoveByID(id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("catalog delete", "id", id, "files", len(result.DeletedFiles), "errors", len(result.Errors))
	return result, nil
}

// writeFile creates filePath or overwrites it at its current version.
func (s *Service) writeFile(ctx context.Context, filePath string, content []byte, message string) (*store.Commit, error) {
	handle := store.NewHandle(filePath)

	obj, err := s.store.Get(ctx, filePath)
	if err == nil {
		handle = obj.Handle
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: get %s: %w", ErrMediaWrite, filePath, err)
	}

	commit, err := s.store.Put(ctx, handle, content, message)
	if err != nil {
		return nil, fmt.Errorf("%w: put %s: %w", ErrMediaWrite, filePath, err)
	}
	return commit, nil
}

func (s *Service) deleteFile(ctx context.Context, filePath string) error {
	obj, err := s.store.Get(ctx, filePath)
	if err != nil {
		return &FileError{Op: "get", Path: filePath, Err: err}
	}

	if _, err := s.store.Delete(ctx, obj.Handle, "delete "+filePath); err != nil {
		return &FileError{Op: "delete", Path: filePath, Err: err}
	}
	return nil
}

// srcToPath turns "./models/pictures/a.png" into "models/pictures/a.png".
func srcToPath(src string) string {
	return strings.TrimPrefix(strings.TrimSpace(src), "./")
}

func validateFilename(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	}
	return nil
}
