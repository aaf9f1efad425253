package catalog

import (
	"errors"
	"fmt"

	"github.com/etpamelo/gallerybox/internal/server/manifest"
)

var (
	ErrMediaWrite      = errors.New("media write failed")
	ErrMediaDelete     = errors.New("media delete failed")
	ErrInvalidFilename = errors.New("invalid filename")
)

const (
	mediaRoot  = "models"
	stagingDir = "models/tmp"
)

type AddRequest struct {
	ID       string
	Type     manifest.MediaType
	Filename string
	Content  []byte
}

type AddResult struct {
	Entry     manifest.Entry
	CommitURL string
}

// DeleteResult reports the backing files removed by a delete and the per-file failures.
// Failures wrap ErrMediaDelete and never fail the delete itself.
type DeleteResult struct {
	DeletedFiles []string
	Errors       []error
}

// ErrorMessages renders Errors for the response body.
func (r *DeleteResult) ErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// FileError is one failed step of a media delete. It matches ErrMediaDelete.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() []error {
	return []error{ErrMediaDelete, e.Err}
}
