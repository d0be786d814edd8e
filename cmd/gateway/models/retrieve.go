package models

import (
	"encoding/json"
	"net/url"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// RetrieveSelector names what to fetch from a remote WADO-RS server.
// Study is mandatory; Instance requires Series.
type RetrieveSelector struct {
	Study    string `json:"Study"`
	Series   string `json:"Series"`
	Instance string `json:"Instance"`
}

// Validate enforces the selector invariant before any network call.
func (s RetrieveSelector) Validate() error {
	if s.Study == "" {
		return dwerr.New(dwerr.BadFileFormat, `a non-empty "Study" field is mandatory for a WADO-RS retrieve`)
	}
	if s.Instance != "" && s.Series == "" {
		return dwerr.New(dwerr.BadFileFormat, `the "Series" field is mandatory when an "Instance" is specified`)
	}
	return nil
}

// URI returns the hierarchical WADO-RS path for this selector.
func (s RetrieveSelector) URI() string {
	uri := "studies/" + url.PathEscape(s.Study)
	if s.Series != "" {
		uri += "/series/" + url.PathEscape(s.Series)
		if s.Instance != "" {
			uri += "/instances/" + url.PathEscape(s.Instance)
		}
	}
	return uri
}

// RetrieveRequest asks the gateway to fetch resources from a remote
// WADO-RS server and persist them locally.
type RetrieveRequest struct {
	Resources   []RetrieveSelector `json:"Resources"`
	HTTPHeaders map[string]string  `json:"HttpHeaders"`
	Arguments   map[string]string  `json:"Arguments"`
}

// ParseRetrieveRequest decodes and validates a retrieve request body.
func ParseRetrieveRequest(body []byte) (*RetrieveRequest, error) {
	var req RetrieveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, dwerr.Wrap(dwerr.BadFileFormat, "retrieve request is not a JSON object", err)
	}
	if req.Resources == nil {
		return nil, dwerr.New(dwerr.BadFileFormat,
			`retrieve request must carry a "Resources" array of selectors`)
	}
	return &req, nil
}

// RetrieveResult lists the repository identifiers of every persisted
// instance, deduplicated across all selectors of one request.
type RetrieveResult struct {
	Instances []string `json:"Instances"`
}
