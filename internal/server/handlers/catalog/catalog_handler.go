package catalog

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/etpamelo/gallerybox/internal/server/catalog"
	"github.com/etpamelo/gallerybox/internal/server/handlers/api"
	"github.com/etpamelo/gallerybox/internal/server/manifest"
	"github.com/gin-gonic/gin"
)

var errMissingContent = errors.New("content or contentBase64 required")

type CatalogHandler struct {
	svc *catalog.Service
}

func New(svc *catalog.Service) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

func (h *CatalogHandler) Manage(ctx *gin.Context) {
	var req ManageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithBindError(ctx, err)
		return
	}

	if req.Action == "" {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "action required")
		return
	}

	if req.Action == ActionList {
		models, err := h.svc.List(ctx.Request.Context())
		if err != nil {
			abortWithCatalogError(ctx, err)
			return
		}
		ctx.PureJSON(http.StatusOK, &ListResponse{OK: true, Models: models})
		return
	}

	if req.ID == "" {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "id required")
		return
	}

	switch req.Action {
	case ActionHide, ActionUnhide:
		var affected int
		var err error
		if req.Action == ActionHide {
			affected, err = h.svc.Hide(ctx.Request.Context(), req.ID)
		} else {
			affected, err = h.svc.Unhide(ctx.Request.Context(), req.ID)
		}
		if err != nil {
			abortWithCatalogError(ctx, err)
			return
		}
		ctx.PureJSON(http.StatusOK, &HideResponse{OK: true, Affected: affected})

	case ActionDelete:
		res, err := h.svc.Delete(ctx.Request.Context(), req.ID)
		if err != nil {
			abortWithCatalogError(ctx, err)
			return
		}
		for _, fileErr := range res.Errors {
			ctx.Error(fileErr)
		}
		ctx.PureJSON(http.StatusOK, &DeleteResponse{
			OK:               true,
			DeletedFileCount: len(res.DeletedFiles),
			DeletedFiles:     res.DeletedFiles,
			Errors:           res.ErrorMessages(),
		})

	default:
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "unsupported action: "+req.Action)
	}
}

func (h *CatalogHandler) Upload(ctx *gin.Context) {
	var req UploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithBindError(ctx, err)
		return
	}

	if req.ID == "" || req.Type == "" || req.Filename == "" {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "id, type and filename required")
		return
	}

	content, err := decodeContent(req.Content, req.ContentBase64)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	res, err := h.svc.Add(ctx.Request.Context(), &catalog.AddRequest{
		ID:       req.ID,
		Type:     manifest.MediaType(req.Type),
		Filename: req.Filename,
		Content:  content,
	})
	if err != nil {
		abortWithCatalogError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &UploadResponse{
		OK:        true,
		Src:       res.Entry.Src,
		CommitURL: res.CommitURL,
	})
}

func (h *CatalogHandler) TempUpload(ctx *gin.Context) {
	var req TempUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithBindError(ctx, err)
		return
	}

	if req.Filename == "" {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "filename required")
		return
	}

	content, err := decodeContent(req.Content, req.ContentBase64)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	src, err := h.svc.Stage(ctx.Request.Context(), req.Filename, content)
	if err != nil {
		abortWithCatalogError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &TempUploadResponse{OK: true, URL: src})
}

// decodeContent decodes base64 or a data URL from content, or from contentBase64 when content is empty.
func decodeContent(content, contentBase64 string) ([]byte, error) {
	field, encoded := "content", content
	if encoded == "" {
		field, encoded = "contentBase64", contentBase64
	}
	if encoded == "" {
		return nil, errMissingContent
	}

	if strings.HasPrefix(encoded, "data:") {
		_, payload, ok := strings.Cut(encoded, ";base64,")
		if !ok {
			return nil, fmt.Errorf("invalid %s: data url must be base64 encoded", field)
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(encoded); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return data, nil
}

func abortWithBindError(ctx *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		api.AbortWithError(ctx, http.StatusRequestEntityTooLarge, api.CodePayloadTooLarge, err)
		return
	}
	api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid request body: %w", err))
}

func abortWithCatalogError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, manifest.ErrEntryNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeEntryNotFound, err)
	case errors.Is(err, manifest.ErrConcurrentModification):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeConcurrentModification, err)
	case errors.Is(err, catalog.ErrInvalidFilename):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidFilename, err)
	case errors.Is(err, manifest.ErrUpstreamRead):
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeManifestReadFailed, err)
	case errors.Is(err, manifest.ErrUpstreamWrite):
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeManifestWriteFailed, err)
	case errors.Is(err, catalog.ErrMediaWrite):
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeMediaWriteFailed, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
