package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/appdraft/project-engine/internal/errors"
)

const remoteBackend = "remote"

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteAdapter talks to the remote object-storage HTTP API:
//
//	POST   /object/{bucket}/{path}       save (body = raw bytes)
//	GET    /object/{bucket}/{path}       load
//	DELETE /object/{bucket}/{path}       delete
//	POST   /object/list/{bucket}         list ({"prefix": ...} → [{"name": ...}])
//	GET    /object/info/{bucket}/{path}  metadata ({"size", "updated_at"})
type RemoteAdapter struct {
	baseURL    string
	bucket     string
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewRemoteAdapter creates an adapter for the given endpoint and bucket.
func NewRemoteAdapter(baseURL, bucket string, logger zerolog.Logger) *RemoteAdapter {
	return &RemoteAdapter{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "storage.remote").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (r *RemoteAdapter) SetHTTPClient(hc HTTPClient) {
	r.httpClient = hc
}

func (r *RemoteAdapter) objectURL(kind, path string) string {
	escaped := url.PathEscape(path)
	// Keep slashes readable in object keys; only escape the rest.
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	if kind == "" {
		return fmt.Sprintf("%s/object/%s/%s", r.baseURL, r.bucket, escaped)
	}
	return fmt.Sprintf("%s/object/%s/%s/%s", r.baseURL, kind, r.bucket, escaped)
}

// do executes one request, normalizing transport failures into storage errors.
func (r *RemoteAdapter) do(ctx context.Context, method, rawURL, op, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, perrors.NewStorageError(remoteBackend, op, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, perrors.NewStorageError(remoteBackend, op, path, err)
	}
	return resp, nil
}

// statusError maps a non-2xx response to a storage error. The caller
// still owns the response body.
func (r *RemoteAdapter) statusError(op, path string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(msg)))
	if resp.StatusCode == http.StatusNotFound {
		err = perrors.ErrNotFound
	}
	return &perrors.StorageError{
		Backend:    remoteBackend,
		Op:         op,
		Path:       path,
		StatusCode: resp.StatusCode,
		Err:        err,
	}
}

func (r *RemoteAdapter) Save(ctx context.Context, path string, data []byte) error {
	resp, err := r.do(ctx, http.MethodPost, r.objectURL("", path), "save", path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.statusError("save", path, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (r *RemoteAdapter) Load(ctx context.Context, path string) ([]byte, error) {
	resp, err := r.do(ctx, http.MethodGet, r.objectURL("", path), "load", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, r.statusError("load", path, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perrors.NewStorageError(remoteBackend, "load", path, err)
	}
	return data, nil
}

func (r *RemoteAdapter) Delete(ctx context.Context, path string) error {
	resp, err := r.do(ctx, http.MethodDelete, r.objectURL("", path), "delete", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Deleting an absent object is not an error.
	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.statusError("delete", path, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (r *RemoteAdapter) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.Metadata(ctx, path)
	if err != nil {
		if errors.Is(err, perrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type listRequest struct {
	Prefix string `json:"prefix"`
}

type listEntry struct {
	Name string `json:"name"`
}

func (r *RemoteAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	body, err := json.Marshal(listRequest{Prefix: prefix})
	if err != nil {
		return nil, perrors.NewStorageError(remoteBackend, "list", prefix, err)
	}

	listURL := fmt.Sprintf("%s/object/list/%s", r.baseURL, r.bucket)
	resp, err := r.do(ctx, http.MethodPost, listURL, "list", prefix, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, r.statusError("list", prefix, resp)
	}

	var entries []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, perrors.NewStorageError(remoteBackend, "list", prefix, err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Name)
	}
	sort.Strings(paths)
	return paths, nil
}

type infoResponse struct {
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *RemoteAdapter) Metadata(ctx context.Context, path string) (ObjectInfo, error) {
	resp, err := r.do(ctx, http.MethodGet, r.objectURL("info", path), "metadata", path, nil)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ObjectInfo{}, r.statusError("metadata", path, resp)
	}

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ObjectInfo{}, perrors.NewStorageError(remoteBackend, "metadata", path, err)
	}
	return ObjectInfo{Size: info.Size, ModifiedAt: info.UpdatedAt}, nil
}
