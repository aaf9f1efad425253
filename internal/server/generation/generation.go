package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/etpamelo/gallerybox/internal/jsonx"
	"github.com/etpamelo/gallerybox/internal/version"
	"github.com/imroc/req/v3"
)

const defaultImageMime = "image/png"

var (
	regexGenerationsURL = regexp.MustCompile(`(?i)/images/generations(\b|/)`)
	regexDataURL        = regexp.MustCompile(`(?is)^data:(.*?);base64,(.*)$`)
)

// Proxy relays generation requests to an OpenAI-compatible images endpoint.
// The endpoint URL decides the payload shape: JSON for generations, multipart for edits.
type Proxy struct {
	config Config
	client *req.Client
	mode   Mode
}

func New(cfg *Config) *Proxy {
	c := cfg.withDefaults()

	client := req.C().
		SetTimeout(c.Timeout).
		SetUserAgent(version.UserAgent()).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonx.Marshal).
		SetJsonUnmarshal(jsonx.Unmarshal)
	if c.APIKey != "" {
		client.SetCommonBearerAuthToken(c.APIKey)
	}

	return &Proxy{
		config: c,
		client: client,
		mode:   ModeFor(c.APIURL),
	}
}

// ModeFor picks the upstream payload shape from the endpoint URL.
func ModeFor(apiURL string) Mode {
	if regexGenerationsURL.MatchString(apiURL) {
		return ModeGenerations
	}
	return ModeEdits
}

func (p *Proxy) Mode() Mode {
	return p.mode
}

func (p *Proxy) IsConfigured() bool {
	return p.config.IsConfigured()
}

// Generate validates r, sends it upstream and returns the response to relay.
// Upstream failures with a status are relayed, not returned as errors.
func (p *Proxy) Generate(ctx context.Context, r *Request) (*Response, error) {
	if !p.config.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt required", ErrInvalidRequest)
	}

	inline := r.inlineImage()
	if p.mode == ModeEdits && inline == "" {
		return nil, fmt.Errorf("%w: imageBase64 required for edits endpoint", ErrInvalidRequest)
	}
	if size := int64(len(inline)); size > p.config.MaxImageBytes {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrImageTooLarge,
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(p.config.MaxImageBytes)))
	}

	var resp *req.Response
	var err error
	if p.mode == ModeGenerations {
		resp, err = p.postGenerations(ctx, r)
	} else {
		resp, err = p.postEdits(ctx, r, inline)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("generation upstream", "mode", p.mode, "status", resp.GetStatusCode(), "size", humanize.Bytes(uint64(len(resp.Bytes()))))
	return relay(resp.GetStatusCode(), resp.Bytes())
}

func (p *Proxy) postGenerations(ctx context.Context, r *Request) (*req.Response, error) {
	payload := &generationsPayload{
		Model:                     p.config.Model,
		Prompt:                    r.Prompt,
		Size:                      withDefault(r.Size, p.config.DefaultSize),
		Quality:                   withDefault(r.Quality, p.config.DefaultQuality),
		N:                         1,
		ResponseFormat:            withDefault(r.ResponseFormat, "url"),
		Watermark:                 r.Watermark != nil && *r.Watermark,
		User:                      r.User,
		Image:                     r.imageReference(),
		SequentialImageGeneration: r.SequentialImageGeneration,
		Stream:                    r.Stream,
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(p.config.APIURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}
	return resp, nil
}

func (p *Proxy) postEdits(ctx context.Context, r *Request, inline string) (*req.Response, error) {
	mime, image, err := decodeImage(inline)
	if err != nil {
		return nil, err
	}

	form := map[string]string{
		"prompt":    r.Prompt,
		"model":     p.config.Model,
		"size":      withDefault(r.Size, p.config.DefaultSize),
		"quality":   withDefault(r.Quality, p.config.DefaultQuality),
		"watermark": strconv.FormatBool(r.Watermark != nil && *r.Watermark),
	}
	if r.ResponseFormat != "" {
		form["response_format"] = r.ResponseFormat
	}
	if r.User != "" {
		form["user"] = r.User
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetFileUpload(req.FileUpload{
			ParamName: "image",
			FileName:  imageFilename(mime),
			GetFileContent: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(image)), nil
			},
			FileSize:    int64(len(image)),
			ContentType: mime,
		}).
		Post(p.config.APIURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}
	return resp, nil
}

// relay shapes the upstream reply: JSON success passes through, anything else is wrapped.
func relay(status int, body []byte) (*Response, error) {
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		if len(bytes.TrimSpace(body)) > 0 && jsonx.Valid(body) {
			return &Response{Status: http.StatusOK, Body: body}, nil
		}
		out, err := jsonx.Marshal(&rawResponse{OK: true, Raw: string(body)})
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusOK, Body: out}, nil
	}

	out, err := jsonx.Marshal(&upstreamErrorResponse{Error: upstreamErrorField(body), Raw: string(body)})
	if err != nil {
		return nil, err
	}
	return &Response{Status: status, Body: out}, nil
}

// upstreamErrorField is the upstream "error" member when there is one, else the body text.
func upstreamErrorField(body []byte) []byte {
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if jsonx.Valid(body) && jsonx.Unmarshal(body, &parsed) == nil && len(parsed.Error) > 0 && string(parsed.Error) != "null" {
		return parsed.Error
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		text = "upstream error"
	}
	out, _ := jsonx.Marshal(text)
	return out
}

// decodeImage accepts a data URL or bare base64 and returns the mime type and bytes.
func decodeImage(s string) (string, []byte, error) {
	mime := defaultImageMime
	payload := s
	if m := regexDataURL.FindStringSubmatch(s); m != nil {
		if m[1] != "" {
			mime = m[1]
		}
		payload = m[2]
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid base64", ErrInvalidRequest)
	}
	return mime, data, nil
}

func imageFilename(mime string) string {
	switch {
	case strings.Contains(mime, "png"):
		return "image.png"
	case strings.Contains(mime, "jpeg"), strings.Contains(mime, "jpg"):
		return "image.jpg"
	default:
		return "image.bin"
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
