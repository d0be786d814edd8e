package models

import (
	"encoding/json"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// ForwardRequest asks the gateway to send local resources to a remote
// DICOMweb server via STOW-RS. Resources may name instances, series,
// studies or patients by their repository identifiers.
type ForwardRequest struct {
	Resources   []string          `json:"Resources"`
	HTTPHeaders map[string]string `json:"HttpHeaders"`
	Arguments   map[string]string `json:"Arguments"`
}

// ParseForwardRequest decodes and validates a forward request body.
func ParseForwardRequest(body []byte) (*ForwardRequest, error) {
	var req ForwardRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, dwerr.Wrap(dwerr.BadFileFormat, "forward request is not a JSON object", err)
	}
	if req.Resources == nil {
		return nil, dwerr.New(dwerr.BadFileFormat,
			`forward request must carry a "Resources" array of resources to send`)
	}
	return &req, nil
}
