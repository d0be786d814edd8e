package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// Repository is the gateway's view of the local image repository. The
// repository owns persistence and indexing; the gateway only reads
// listings and files and posts new instances.
type Repository interface {
	// Get fetches a JSON resource. found is false on a 404.
	Get(ctx context.Context, path string) (body json.RawMessage, found bool, err error)
	// GetBytes fetches a raw file. found is false on a 404.
	GetBytes(ctx context.Context, path string) (body []byte, found bool, err error)
	// Post sends a body to a repository endpoint and returns the JSON
	// answer.
	Post(ctx context.Context, path string, body []byte) (json.RawMessage, error)
	// PostInstance stores a DICOM file and returns the repository-
	// assigned identifier.
	PostInstance(ctx context.Context, data []byte) (string, error)
}

// RestRepository talks to the repository's REST interface
type RestRepository struct {
	base   string
	client *http.Client
	logger Logger
}

// NewRestRepository creates a repository client from configuration
func NewRestRepository(cfg *config.Config, logger Logger) *RestRepository {
	return &RestRepository{
		base:   strings.TrimRight(cfg.Repository.URL, "/"),
		client: &http.Client{Timeout: cfg.Repository.Timeout},
		logger: logger,
	}
}

// Get fetches a JSON resource from the repository
func (r *RestRepository) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	body, found, err := r.GetBytes(ctx, path)
	if err != nil || !found {
		return nil, found, err
	}
	return json.RawMessage(body), true, nil
}

// GetBytes fetches a raw resource from the repository
func (r *RestRepository) GetBytes(ctx context.Context, path string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+path, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build repository request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("repository GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		r.logger.Debug("repository resource not found", "path", path)
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, fmt.Errorf("repository GET %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("repository GET %s: read body: %w", path, err)
	}
	return body, true, nil
}

// Post sends a body to a repository endpoint
func (r *RestRepository) Post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	return r.post(ctx, path, body, "text/plain")
}

// PostInstance stores one DICOM file through the repository
func (r *RestRepository) PostInstance(ctx context.Context, data []byte) (string, error) {
	body, err := r.post(ctx, "/instances", data, "application/dicom")
	if err != nil {
		return "", err
	}

	var answer struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(body, &answer); err != nil || answer.ID == "" {
		return "", dwerr.New(dwerr.InternalError, "repository store answer carries no instance ID")
	}

	r.logger.Debug("instance stored", "id", answer.ID, "size", len(data))
	return answer.ID, nil
}

func (r *RestRepository) post(ctx context.Context, path string, data []byte, contentType string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build repository request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repository POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("repository POST %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("repository POST %s: read body: %w", path, err)
	}
	return json.RawMessage(body), nil
}
