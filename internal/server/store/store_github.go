package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/etpamelo/gallerybox/internal/jsonx"
	"github.com/etpamelo/gallerybox/internal/version"
	"github.com/imroc/req/v3"
)

const (
	githubAcceptJSON  = "application/vnd.github+json"
	githubAcceptRaw   = "application/vnd.github.raw"
	githubAPIVersion  = "2022-11-28"
	headerAPIVersion  = "X-GitHub-Api-Version"
	encodingNone      = "none"
	encodingBase64    = "base64"
	shaNotSuppliedMsg = "\"sha\""
)

// GitHubStore implements Store on top of the GitHub repository contents API.
// The blob sha of a path is its version.
type GitHubStore struct {
	client *req.Client
	repo   string
	branch string
}

type githubContent struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	HTMLURL  string `json:"html_url"`
}

type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
}

type githubWriteResponse struct {
	Content *githubContent `json:"content"`
	Commit  githubCommit   `json:"commit"`
}

type githubWriteRequest struct {
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type githubError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func NewGitHubStore(cfg *GitHubConfig) *GitHubStore {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	branch := cfg.Branch
	if branch == "" {
		branch = DefaultBranch
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := req.C().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(timeout).
		SetUserAgent(version.UserAgent()).
		SetCommonBearerAuthToken(cfg.Token).
		SetCommonHeader("Accept", githubAcceptJSON).
		SetCommonHeader(headerAPIVersion, githubAPIVersion).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonx.Marshal).
		SetJsonUnmarshal(jsonx.Unmarshal)

	return &GitHubStore{
		client: client,
		repo:   cfg.Repo,
		branch: branch,
	}
}

func (s *GitHubStore) contentsURL(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("/repos/%s/contents/%s", s.repo, strings.Join(segments, "/"))
}

func (s *GitHubStore) Get(ctx context.Context, path string) (*Object, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	var file githubContent
	var apiErr githubError
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("ref", s.branch).
		SetSuccessResult(&file).
		SetErrorResult(&apiErr).
		Get(s.contentsURL(path))
	if err := s.handleError("get", path, resp, err, &apiErr); err != nil {
		return nil, err
	}

	if file.Type != "" && file.Type != "file" {
		return nil, &UpstreamError{Op: "get", Path: path, Status: resp.StatusCode, Message: "not a file: " + file.Type}
	}

	var content []byte
	switch file.Encoding {
	case encodingBase64, "":
		// github wraps base64 at 60 columns
		content, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
		if err != nil {
			return nil, &UpstreamError{Op: "get", Path: path, Status: resp.StatusCode, Message: "decode content: " + err.Error()}
		}
	case encodingNone:
		// files above 1MB are served without inline content
		content, err = s.getRaw(ctx, path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &UpstreamError{Op: "get", Path: path, Status: resp.StatusCode, Message: "unsupported encoding " + file.Encoding}
	}

	return &Object{
		Handle:  VersionedHandle{Path: path, Version: file.SHA},
		Content: content,
	}, nil
}

func (s *GitHubStore) getRaw(ctx context.Context, path string) ([]byte, error) {
	var apiErr githubError
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", githubAcceptRaw).
		SetQueryParam("ref", s.branch).
		SetErrorResult(&apiErr).
		Get(s.contentsURL(path))
	if err := s.handleError("get", path, resp, err, &apiErr); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

func (s *GitHubStore) Put(ctx context.Context, handle VersionedHandle, content []byte, message string) (*Commit, error) {
	path, err := CleanPath(handle.Path)
	if err != nil {
		return nil, err
	}

	var result githubWriteResponse
	var apiErr githubError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&githubWriteRequest{
			Message: message,
			Content: base64.StdEncoding.EncodeToString(content),
			SHA:     handle.Version,
			Branch:  s.branch,
		}).
		SetSuccessResult(&result).
		SetErrorResult(&apiErr).
		Put(s.contentsURL(path))
	if err := s.handleError("put", path, resp, err, &apiErr); err != nil {
		return nil, err
	}

	commit := &Commit{
		Handle: VersionedHandle{Path: path},
		SHA:    result.Commit.SHA,
		URL:    result.Commit.HTMLURL,
	}
	if result.Content != nil {
		commit.Handle.Version = result.Content.SHA
	}
	return commit, nil
}

func (s *GitHubStore) Delete(ctx context.Context, handle VersionedHandle, message string) (*Commit, error) {
	path, err := CleanPath(handle.Path)
	if err != nil {
		return nil, err
	}
	if handle.IsCreate() {
		return nil, fmt.Errorf("%w: delete %s requires a version", ErrVersionMismatch, path)
	}

	var result githubWriteResponse
	var apiErr githubError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(&githubWriteRequest{
			Message: message,
			SHA:     handle.Version,
			Branch:  s.branch,
		}).
		SetSuccessResult(&result).
		SetErrorResult(&apiErr).
		Delete(s.contentsURL(path))
	if err := s.handleError("delete", path, resp, err, &apiErr); err != nil {
		return nil, err
	}

	return &Commit{
		Handle: VersionedHandle{Path: path},
		SHA:    result.Commit.SHA,
		URL:    result.Commit.HTMLURL,
	}, nil
}

func (s *GitHubStore) handleError(op, path string, resp *req.Response, requestErr error, apiErr *githubError) error {
	if requestErr != nil {
		return &UpstreamError{Op: op, Path: path, Message: requestErr.Error()}
	}
	if !resp.IsErrorState() {
		return nil
	}

	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	upErr := &UpstreamError{Op: op, Path: path, Status: resp.StatusCode, Message: msg}
	switch resp.StatusCode {
	case http.StatusNotFound:
		upErr.Err = ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		upErr.Err = ErrVersionMismatch
	case http.StatusUnprocessableEntity:
		// creating over an existing file without its sha
		if strings.Contains(msg, shaNotSuppliedMsg) {
			upErr.Err = ErrVersionMismatch
		}
	}
	return upErr
}

var _ Store = (*GitHubStore)(nil)
