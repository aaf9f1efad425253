package catalog

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/etpamelo/gallerybox/internal/server/catalog"
	"github.com/etpamelo/gallerybox/internal/server/manifest"
	"github.com/etpamelo/gallerybox/internal/server/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedManifest = `{"models":[{"id":"a","type":"picture","src":"./models/pictures/a.png"}]}`

func setupHandler(t *testing.T) (*CatalogHandler, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemoryStore()
	mem.Seed(manifest.DefaultPath, []byte(seedManifest))
	mem.Seed("models/pictures/a.png", []byte("png"))

	svc := catalog.NewService(mem, manifest.NewManager(mem, ""))
	return New(svc), mem
}

func perform(t *testing.T, handler gin.HandlerFunc, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/manage", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler(c)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestManage_Validation(t *testing.T) {
	h, mem := setupHandler(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "bad json", body: `{`, want: "invalid request body"},
		{name: "missing action", body: `{}`, want: "action required"},
		{name: "missing id", body: `{"action":"hide"}`, want: "id required"},
		{name: "unsupported action", body: `{"action":"rename","id":"a"}`, want: "unsupported action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := perform(t, h.Manage, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, out["error"], tt.want)
		})
	}

	for _, c := range mem.Calls() {
		assert.NotEqual(t, "put", c.Op)
	}
}

func TestManage_List(t *testing.T) {
	h, _ := setupHandler(t)

	w, out := perform(t, h.Manage, `{"action":"list"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["ok"])

	models, ok := out["models"].([]any)
	require.True(t, ok)
	require.Len(t, models, 1)
	assert.Equal(t, "a", models[0].(map[string]any)["id"])
}

func TestManage_HideUnhide(t *testing.T) {
	h, mem := setupHandler(t)

	w, out := perform(t, h.Manage, `{"action":"hide","id":"a"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), out["affected"])

	w, _ = perform(t, h.Manage, `{"action":"unhide","id":"a"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	obj, err := mem.Get(t.Context(), manifest.DefaultPath)
	require.NoError(t, err)
	assert.NotContains(t, string(obj.Content), "hidden")
}

func TestManage_NotFound(t *testing.T) {
	h, _ := setupHandler(t)

	for _, action := range []string{"hide", "unhide", "delete"} {
		w, out := perform(t, h.Manage, `{"action":"`+action+`","id":"missing"}`)
		assert.Equal(t, http.StatusNotFound, w.Code, action)
		assert.Equal(t, "E_ENTRY_NOT_FOUND", out["code"])
	}
}

func TestManage_Delete(t *testing.T) {
	h, mem := setupHandler(t)

	w, out := perform(t, h.Manage, `{"action":"delete","id":"a"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, float64(1), out["deletedFileCount"])
	assert.Equal(t, []any{"models/pictures/a.png"}, out["deletedFiles"])
	assert.Equal(t, []any{}, out["errors"])

	assert.Equal(t, []string{manifest.DefaultPath}, mem.Paths())
}

func TestManage_DeleteReportsFileErrors(t *testing.T) {
	h, mem := setupHandler(t)
	mem.Inject("delete", "models/pictures/a.png", errors.New("denied"))

	w, out := perform(t, h.Manage, `{"action":"delete","id":"a"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), out["deletedFileCount"])
	assert.Equal(t, []any{"delete models/pictures/a.png failed: denied"}, out["errors"])
}

func TestManage_Conflict(t *testing.T) {
	h, mem := setupHandler(t)
	mem.Inject("put", manifest.DefaultPath, &store.UpstreamError{Op: "put", Path: manifest.DefaultPath, Status: http.StatusConflict, Message: "sha mismatch", Err: store.ErrVersionMismatch})

	w, out := perform(t, h.Manage, `{"action":"hide","id":"a"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "E_CONCURRENT_MODIFICATION", out["code"])
}

func TestManage_ManifestReadFailure(t *testing.T) {
	h, mem := setupHandler(t)
	mem.Inject("get", manifest.DefaultPath, &store.UpstreamError{Op: "get", Path: manifest.DefaultPath, Status: http.StatusBadGateway, Message: "bad gateway"})

	w, out := perform(t, h.Manage, `{"action":"list"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "E_MANIFEST_READ_FAILED", out["code"])
	assert.Contains(t, out["error"], "bad gateway")
}

func TestUpload(t *testing.T) {
	h, mem := setupHandler(t)

	body, _ := json.Marshal(&UploadRequest{
		ID:            "b",
		Type:          "video",
		Filename:      "b.mp4",
		ContentBase64: base64.StdEncoding.EncodeToString([]byte("mp4")),
	})
	w, out := perform(t, h.Upload, string(body))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "./models/videos/b.mp4", out["src"])
	assert.Contains(t, out, "commitUrl")

	obj, err := mem.Get(t.Context(), "models/videos/b.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), obj.Content)
}

func TestUpload_BinaryContent(t *testing.T) {
	h, mem := setupHandler(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff}

	tests := []struct {
		name     string
		content  string
		filename string
	}{
		{name: "base64", content: base64.StdEncoding.EncodeToString(png), filename: "a.png"},
		{name: "unpadded base64", content: base64.RawStdEncoding.EncodeToString(png), filename: "b.png"},
		{name: "data url", content: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), filename: "c.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(&UploadRequest{ID: "p", Type: "picture", Filename: tt.filename, Content: tt.content})
			w, _ := perform(t, h.Upload, string(body))
			require.Equal(t, http.StatusOK, w.Code)

			obj, err := mem.Get(t.Context(), "models/pictures/"+tt.filename)
			require.NoError(t, err)
			assert.Equal(t, png, obj.Content)
		})
	}
}

func TestUpload_Validation(t *testing.T) {
	h, _ := setupHandler(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "missing id", body: `{"type":"picture","filename":"x.png","content":"eA=="}`, code: http.StatusBadRequest},
		{name: "missing content", body: `{"id":"x","type":"picture","filename":"x.png"}`, code: http.StatusBadRequest},
		{name: "invalid base64", body: `{"id":"x","type":"picture","filename":"x.png","contentBase64":"!!"}`, code: http.StatusBadRequest},
		{name: "invalid content", body: `{"id":"x","type":"picture","filename":"x.png","content":"not base64!"}`, code: http.StatusBadRequest},
		{name: "data url without base64", body: `{"id":"x","type":"picture","filename":"x.png","content":"data:image/png,raw"}`, code: http.StatusBadRequest},
		{name: "path in filename", body: `{"id":"x","type":"picture","filename":"../x.png","content":"eA=="}`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := perform(t, h.Upload, tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	h, _ := setupHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := `{"id":"x","type":"picture","filename":"x.png","content":"` + strings.Repeat("x", 256) + `"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Body = http.MaxBytesReader(w, c.Request.Body, 64)

	h.Upload(c)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTempUpload(t *testing.T) {
	h, mem := setupHandler(t)

	w, out := perform(t, h.TempUpload, `{"filename":"ref.png","contentBase64":"data:image/png;base64,`+base64.StdEncoding.EncodeToString([]byte("png"))+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "./models/tmp/ref.png", out["url"])
	assert.Contains(t, mem.Paths(), "models/tmp/ref.png")

	w, _ = perform(t, h.TempUpload, `{"contentBase64":"aGk="}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
