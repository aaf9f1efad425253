package catalog

import "github.com/etpamelo/gallerybox/internal/server/manifest"

const (
	ActionList   = "list"
	ActionHide   = "hide"
	ActionUnhide = "unhide"
	ActionDelete = "delete"
)

type ManageRequest struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

type ListResponse struct {
	OK     bool             `json:"ok"`
	Models []manifest.Entry `json:"models"`
}

type HideResponse struct {
	OK       bool `json:"ok"`
	Affected int  `json:"affected"`
}

type DeleteResponse struct {
	OK               bool     `json:"ok"`
	DeletedFileCount int      `json:"deletedFileCount"`
	DeletedFiles     []string `json:"deletedFiles"`
	Errors           []string `json:"errors"`
}

// UploadRequest carries the media base64 encoded (or as a data URL) in Content.
// ContentBase64 is an accepted alias.
type UploadRequest struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Filename      string `json:"filename"`
	Content       string `json:"content"`
	ContentBase64 string `json:"contentBase64"`
}

type UploadResponse struct {
	OK        bool   `json:"ok"`
	Src       string `json:"src"`
	CommitURL string `json:"commitUrl"`
}

type TempUploadRequest struct {
	Filename      string `json:"filename"`
	Content       string `json:"content"`
	ContentBase64 string `json:"contentBase64"`
}

type TempUploadResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}
