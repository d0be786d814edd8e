package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/models"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/clients"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dicom"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/multipart"
)

// IngestService accepts STOW-RS multipart requests and stores each part
// in the repository, producing one StoreOutcome per part.
type IngestService struct {
	repo clients.Repository
	log  clients.Logger
}

func NewIngestService(repo clients.Repository, log clients.Logger) *IngestService {
	return &IngestService{repo: repo, log: log}
}

// IngestResult carries the per-item outcomes plus the study-level
// retrieve URL, recorded at the first non-filtered item.
type IngestResult struct {
	Outcomes         []models.StoreOutcome
	StudyRetrieveURL string
}

// Store processes one STOW-RS request body. contentType is the raw
// Content-Type header; expectedStudy narrows the request to a single
// study when non-empty; wadoBase is the absolute DICOMweb root used to
// build retrieve URLs.
//
// Gate failures (wrong outer type, boundary trouble, a part that is not
// application/dicom) abort the whole request with an error. Per-item
// trouble after the gates never aborts: the item lands in the failure
// sequence instead.
func (s *IngestService) Store(ctx context.Context, contentType string, body []byte, expectedStudy, wadoBase string) (*IngestResult, error) {
	boundary, err := parseStowContentType(contentType)
	if err != nil {
		return nil, err
	}

	parts, err := multipart.Decode(body, boundary)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Outcomes: make([]models.StoreOutcome, 0, len(parts))}

	for _, part := range parts {
		if part.ContentType != "" && part.ContentType != "application/dicom" {
			return nil, dwerr.Newf(dwerr.UnsupportedMediaType,
				"STOW-RS part carries content type %q, expected application/dicom", part.ContentType)
		}

		result.Outcomes = append(result.Outcomes, s.storeOne(ctx, part.Data, expectedStudy, wadoBase, result))
	}

	return result, nil
}

func (s *IngestService) storeOne(ctx context.Context, data []byte, expectedStudy, wadoBase string, result *IngestResult) models.StoreOutcome {
	id, err := dicom.ReadIdentity(data)
	if err != nil {
		s.log.Warn("rejecting unparsable STOW-RS part", "error", err)
		return models.StoreOutcome{
			Kind:       models.OutcomeFailed,
			ReasonCode: models.ReasonProcessingFailure,
		}
	}

	outcome := models.StoreOutcome{
		SOPClassUID:    id.SOPClassUID,
		SOPInstanceUID: id.SOPInstanceUID,
	}

	if expectedStudy != "" && id.StudyUID != expectedStudy {
		s.log.Warn("instance discarded, study does not match request",
			"expected", expectedStudy, "got", id.StudyUID)
		outcome.Kind = models.OutcomeFiltered
		outcome.ReasonCode = models.ReasonElementsDiscarded
		return outcome
	}

	// Recorded at the first non-filtered item, whatever its fate.
	if result.StudyRetrieveURL == "" {
		result.StudyRetrieveURL = fmt.Sprintf("%s/studies/%s", wadoBase, url.PathEscape(id.StudyUID))
	}

	if _, err := s.repo.PostInstance(ctx, data); err != nil {
		s.log.Error("repository refused instance", "sop_instance", id.SOPInstanceUID, "error", err)
		outcome.Kind = models.OutcomeFailed
		outcome.ReasonCode = models.ReasonProcessingFailure
		return outcome
	}

	outcome.Kind = models.OutcomeStored
	if id.StudyUID != "" && id.SeriesUID != "" && id.SOPInstanceUID != "" {
		outcome.RetrieveURL = fmt.Sprintf("%s/studies/%s/series/%s/instances/%s",
			wadoBase,
			url.PathEscape(id.StudyUID),
			url.PathEscape(id.SeriesUID),
			url.PathEscape(id.SOPInstanceUID))
	}
	return outcome
}

// parseStowContentType validates the outer Content-Type of a STOW-RS
// request and extracts the boundary.
func parseStowContentType(header string) (string, error) {
	params, err := multipart.ParseRelated(header)
	if err != nil {
		return "", err
	}

	boundary := params["boundary"]
	if boundary == "" {
		return "", dwerr.New(dwerr.UnsupportedMediaType, "multipart/related request without boundary parameter")
	}

	partType, ok := params["type"]
	if !ok {
		return "", dwerr.New(dwerr.UnsupportedMediaType, "multipart/related request without type parameter")
	}
	if partType != "application/dicom" {
		return "", dwerr.Newf(dwerr.UnsupportedMediaType,
			"STOW-RS request declares part type %q, expected application/dicom", partType)
	}
	return boundary, nil
}
