package clients

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// RemoteClient issues HTTP calls to configured remote DICOMweb servers.
// Failures, including HTTP-level rejections, surface as a single error
// aborting the calling operation.
type RemoteClient interface {
	Call(ctx context.Context, server config.RemoteServer, method, uri string,
		headers map[string]string, body []byte) (http.Header, []byte, error)
}

// HTTPRemoteClient is the net/http implementation of RemoteClient
type HTTPRemoteClient struct {
	client *http.Client
	logger Logger
}

// NewHTTPRemoteClient creates a remote DICOMweb client
func NewHTTPRemoteClient(logger Logger) *HTTPRemoteClient {
	return &HTTPRemoteClient{
		client: &http.Client{},
		logger: logger,
	}
}

// Call issues one request against a remote server. The uri is relative
// to the server's base URL.
func (c *HTTPRemoteClient) Call(ctx context.Context, server config.RemoteServer, method, uri string,
	headers map[string]string, body []byte) (http.Header, []byte, error) {

	target := strings.TrimRight(server.URL, "/") + "/" + strings.TrimLeft(uri, "/")

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, dwerr.Wrap(dwerr.InternalError, "build remote request", err)
	}

	// Server-level headers first, so per-request headers win.
	for name, value := range server.HTTPHeaders {
		req.Header.Set(name, value)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	if server.Username != "" {
		req.SetBasicAuth(server.Username, server.Password)
	}

	c.logger.Debug("calling remote DICOMweb server", "method", method, "url", target, "body_size", len(body))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, dwerr.Wrap(dwerr.NetworkProtocol, "remote DICOMweb call failed", err)
	}
	defer resp.Body.Close()

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, dwerr.Wrap(dwerr.NetworkProtocol, "reading remote DICOMweb answer", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, dwerr.Newf(dwerr.NetworkProtocol,
			"remote DICOMweb server answered status %d for %s %s", resp.StatusCode, method, uri)
	}
	return resp.Header, answer, nil
}

// BuildURI appends URL-encoded query arguments to a relative path.
func BuildURI(path string, args map[string]string) string {
	if len(args) == 0 {
		return path
	}
	values := url.Values{}
	for name, value := range args {
		values.Set(name, value)
	}
	return path + "?" + values.Encode()
}
