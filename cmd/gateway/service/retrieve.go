package service

import (
	"context"
	"net/http"
	"sort"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/models"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/clients"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/multipart"
)

// RetrieveService pulls DICOM resources from a remote DICOMweb server
// through WADO-RS and stores them in the repository.
type RetrieveService struct {
	repo   clients.Repository
	remote clients.RemoteClient
	log    clients.Logger
}

func NewRetrieveService(repo clients.Repository, remote clients.RemoteClient, log clients.Logger) *RetrieveService {
	return &RetrieveService{repo: repo, remote: remote, log: log}
}

// Retrieve fetches every selector of the request and stores the
// received instances, reporting the sorted, deduplicated repository
// IDs. All selectors are validated up front, before any network
// traffic.
func (s *RetrieveService) Retrieve(ctx context.Context, server config.RemoteServer, req models.RetrieveRequest) (*models.RetrieveResult, error) {
	for _, selector := range req.Resources {
		if err := selector.Validate(); err != nil {
			return nil, err
		}
	}

	stored := map[string]struct{}{}
	for _, selector := range req.Resources {
		if err := s.retrieveOne(ctx, server, selector, req, stored); err != nil {
			return nil, err
		}
	}

	result := &models.RetrieveResult{Instances: make([]string, 0, len(stored))}
	for id := range stored {
		result.Instances = append(result.Instances, id)
	}
	sort.Strings(result.Instances)

	s.log.Info("retrieve complete", "selectors", len(req.Resources), "instances", len(result.Instances))
	return result, nil
}

func (s *RetrieveService) retrieveOne(ctx context.Context, server config.RemoteServer, selector models.RetrieveSelector, req models.RetrieveRequest, stored map[string]struct{}) error {
	headers := map[string]string{
		"Accept": multipart.RelatedType + "; type=\"application/dicom\"",
	}
	for name, value := range req.HTTPHeaders {
		headers[name] = value
	}

	uri := clients.BuildURI(selector.URI(), req.Arguments)
	respHeaders, body, err := s.remote.Call(ctx, server, "GET", uri, headers, nil)
	if err != nil {
		return err
	}

	boundary, err := retrieveBoundary(respHeaders)
	if err != nil {
		return err
	}

	parts, err := multipart.Decode(body, boundary)
	if err != nil {
		// The framing came from the remote, not the caller.
		return dwerr.Wrap(dwerr.NetworkProtocol, "remote WADO-RS answer has broken multipart framing", err)
	}

	for _, part := range parts {
		if part.ContentType != "application/dicom" {
			return dwerr.Newf(dwerr.NetworkProtocol,
				"remote WADO-RS part carries content type %q, expected application/dicom", part.ContentType)
		}
		id, err := s.repo.PostInstance(ctx, part.Data)
		if err != nil {
			return err
		}
		stored[id] = struct{}{}
	}
	return nil
}

// retrieveBoundary validates the Content-Type of a WADO-RS answer and
// extracts its boundary. Deviations are protocol errors, the remote
// promised multipart/related DICOM through content negotiation.
func retrieveBoundary(headers http.Header) (string, error) {
	contentType := headers.Get("Content-Type")
	params, err := multipart.ParseRelated(contentType)
	if err != nil {
		return "", dwerr.Newf(dwerr.NetworkProtocol,
			"remote WADO-RS answer carries content type %q, expected %s", contentType, multipart.RelatedType)
	}

	if partType := params["type"]; partType != "application/dicom" {
		return "", dwerr.Newf(dwerr.NetworkProtocol,
			"remote WADO-RS answer declares part type %q, expected application/dicom", partType)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return "", dwerr.New(dwerr.NetworkProtocol, "remote WADO-RS answer without boundary parameter")
	}
	return boundary, nil
}
