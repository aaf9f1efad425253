package generation

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNotConfigured   = errors.New("server not configured")
	ErrInvalidRequest  = errors.New("invalid generation request")
	ErrImageTooLarge   = errors.New("image too large")
	ErrUpstreamRequest = errors.New("upstream request failed")
)

type Mode string

const (
	ModeGenerations Mode = "generations"
	ModeEdits       Mode = "edits"
)

// Request is the inbound generation body. The image may arrive as a data URL, bare base64 or a URL.
type Request struct {
	Prompt                    string `json:"prompt"`
	ImageBase64               string `json:"imageBase64"`
	Image                     string `json:"image"`
	ImageURL                  string `json:"imageUrl"`
	Size                      string `json:"size"`
	Quality                   string `json:"quality"`
	ResponseFormat            string `json:"response_format"`
	User                      string `json:"user"`
	SequentialImageGeneration string `json:"sequential_image_generation"`
	Stream                    *bool  `json:"stream"`
	Watermark                 *bool  `json:"watermark"`
}

// inlineImage is the image carried in the body itself, as opposed to a link to one.
func (r *Request) inlineImage() string {
	if r.ImageBase64 != "" {
		return r.ImageBase64
	}
	if r.Image != "" && !isRemoteURL(r.Image) {
		return r.Image
	}
	return ""
}

// imageReference is whatever image the generations endpoint should see.
func (r *Request) imageReference() string {
	switch {
	case r.ImageURL != "":
		return r.ImageURL
	case r.Image != "":
		return r.Image
	default:
		return r.ImageBase64
	}
}

type generationsPayload struct {
	Model                     string `json:"model"`
	Prompt                    string `json:"prompt"`
	Size                      string `json:"size"`
	Quality                   string `json:"quality"`
	N                         int    `json:"n"`
	ResponseFormat            string `json:"response_format"`
	Watermark                 bool   `json:"watermark"`
	User                      string `json:"user,omitempty"`
	Image                     string `json:"image,omitempty"`
	SequentialImageGeneration string `json:"sequential_image_generation,omitempty"`
	Stream                    *bool  `json:"stream,omitempty"`
}

// Response is what the handler sends back: a status and a JSON body.
type Response struct {
	Status int
	Body   json.RawMessage
}

type rawResponse struct {
	OK  bool   `json:"ok"`
	Raw string `json:"raw"`
}

type upstreamErrorResponse struct {
	Error json.RawMessage `json:"error"`
	Raw   string          `json:"raw"`
}

func isRemoteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
