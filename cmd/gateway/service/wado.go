package service

import (
	"context"
	"encoding/json"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/clients"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// WadoService answers legacy WADO-URI requests, the pre-RESTful
// retrieval protocol driven entirely by query parameters.
type WadoService struct {
	repo clients.Repository
	log  clients.Logger
}

func NewWadoService(repo clients.Repository, log clients.Logger) *WadoService {
	return &WadoService{repo: repo, log: log}
}

// WadoQuery carries the recognized WADO-URI query parameters.
type WadoQuery struct {
	RequestType string
	ObjectUID   string
	SeriesUID   string
	StudyUID    string
	ContentType string
}

// Retrieve serves one WADO-URI request, returning the DICOM file and
// its media type. Only the application/dicom representation is
// supported; rendered variants are not.
func (s *WadoService) Retrieve(ctx context.Context, query WadoQuery) ([]byte, string, error) {
	if query.RequestType != "WADO" {
		return nil, "", dwerr.Newf(dwerr.BadFileFormat, "requestType must be WADO, got %q", query.RequestType)
	}
	if query.ObjectUID == "" {
		return nil, "", dwerr.New(dwerr.BadFileFormat, "WADO-URI request without objectUID")
	}
	if query.ContentType != "" && query.ContentType != "application/dicom" {
		return nil, "", dwerr.Newf(dwerr.UnsupportedMediaType,
			"WADO-URI content type %q is not supported, only application/dicom", query.ContentType)
	}

	instance, err := s.lookupInstance(ctx, query.ObjectUID)
	if err != nil {
		return nil, "", err
	}

	if err := s.checkParent(ctx, instance, "series", "SeriesInstanceUID", query.SeriesUID); err != nil {
		return nil, "", err
	}
	if err := s.checkParent(ctx, instance, "study", "StudyInstanceUID", query.StudyUID); err != nil {
		return nil, "", err
	}

	data, found, err := s.repo.GetBytes(ctx, "/instances/"+instance+"/file")
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", dwerr.Newf(dwerr.UnknownResource, "instance %s vanished from repository", instance)
	}
	return data, "application/dicom", nil
}

// lookupInstance maps a SOP instance UID to its repository identifier.
func (s *WadoService) lookupInstance(ctx context.Context, sopInstanceUID string) (string, error) {
	answer, err := s.repo.Post(ctx, "/tools/lookup", []byte(sopInstanceUID))
	if err != nil {
		return "", err
	}

	var matches []struct {
		ID   string `json:"ID"`
		Type string `json:"Type"`
	}
	if err := json.Unmarshal(answer, &matches); err != nil {
		return "", dwerr.Wrap(dwerr.InternalError, "malformed lookup answer from repository", err)
	}

	for _, match := range matches {
		if match.Type == "Instance" && match.ID != "" {
			return match.ID, nil
		}
	}
	return "", dwerr.Newf(dwerr.UnknownResource, "no instance with SOP instance UID %q", sopInstanceUID)
}

// checkParent verifies that the instance hangs below the series or
// study the query names, when it names one.
func (s *WadoService) checkParent(ctx context.Context, instance, level, tag, expectedUID string) error {
	if expectedUID == "" {
		return nil
	}

	answer, found, err := s.repo.Get(ctx, "/instances/"+instance+"/"+level)
	if err != nil {
		return err
	}
	if !found {
		return dwerr.Newf(dwerr.UnknownResource, "instance %s has no %s in repository", instance, level)
	}

	var parent struct {
		MainDicomTags map[string]string `json:"MainDicomTags"`
	}
	if err := json.Unmarshal(answer, &parent); err != nil {
		return dwerr.Wrap(dwerr.InternalError, "malformed "+level+" answer from repository", err)
	}

	if parent.MainDicomTags[tag] != expectedUID {
		return dwerr.Newf(dwerr.UnknownResource,
			"instance does not belong to %s %s", level, expectedUID)
	}
	return nil
}
