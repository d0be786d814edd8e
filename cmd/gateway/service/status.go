package service

import (
	"encoding/json"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/models"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// Tags of the STOW-RS status document. The wire form is built from the
// StoreOutcome fields only at serialization time, through this mapping.
const (
	tagRetrieveURL              = "00081190"
	tagFailedSOPSequence        = "00081198"
	tagReferencedSOPSequence    = "00081199"
	tagReferencedSOPClassUID    = "00081150"
	tagReferencedSOPInstanceUID = "00081155"
	tagWarningReason            = "00081196"
	tagFailureReason            = "00081197"
)

// BuildStatus assembles the status document from the per-item outcomes,
// preserving request order in both sequences. studyRetrieveURL is the
// study-level URL recorded at the first non-filtered item, or "".
func BuildStatus(outcomes []models.StoreOutcome, studyRetrieveURL string) models.StatusDocument {
	doc := models.StatusDocument{
		RetrieveURL: studyRetrieveURL,
		Success:     []models.SOPReference{},
		Failed:      []models.SOPReference{},
	}

	for _, outcome := range outcomes {
		ref := models.SOPReference{
			SOPClassUID:    outcome.SOPClassUID,
			SOPInstanceUID: outcome.SOPInstanceUID,
			RetrieveURL:    outcome.RetrieveURL,
			ReasonCode:     outcome.ReasonCode,
		}

		if outcome.Kind == models.OutcomeFailed {
			doc.Failed = append(doc.Failed, ref)
		} else {
			doc.Success = append(doc.Success, ref)
		}
	}
	return doc
}

// XMLRequested decides the response representation from the Accept
// header. Only the three exact XML media types select XML; everything
// else, including an absent header, selects DICOM+JSON.
func XMLRequested(accept string) bool {
	switch strings.ToLower(strings.TrimSpace(accept)) {
	case "application/dicom+xml", "application/xml", "text/xml":
		return true
	}
	return false
}

// RenderStatus serializes a status document in the negotiated
// representation, returning the payload and its media type.
func RenderStatus(doc models.StatusDocument, asXML bool) ([]byte, string, error) {
	if asXML {
		payload, err := renderStatusXML(doc)
		return payload, "application/dicom+xml", err
	}
	payload, err := renderStatusJSON(doc)
	return payload, "application/dicom+json", err
}

// DICOM+JSON rendering (PS3.18 annex F): a tag-keyed object whose
// entries carry a VR and a Value array.

type jsonAttribute struct {
	VR    string `json:"vr"`
	Value []any  `json:"Value,omitempty"`
}

func renderStatusJSON(doc models.StatusDocument) ([]byte, error) {
	root := map[string]jsonAttribute{}

	if doc.RetrieveURL != "" {
		root[tagRetrieveURL] = jsonAttribute{VR: "UT", Value: []any{doc.RetrieveURL}}
	}
	root[tagReferencedSOPSequence] = jsonAttribute{VR: "SQ", Value: jsonSequence(doc.Success)}
	root[tagFailedSOPSequence] = jsonAttribute{VR: "SQ", Value: jsonSequence(doc.Failed)}

	payload, err := json.Marshal(root)
	if err != nil {
		return nil, dwerr.Wrap(dwerr.InternalError, "serializing status document", err)
	}
	return payload, nil
}

func jsonSequence(refs []models.SOPReference) []any {
	items := make([]any, 0, len(refs))
	for _, ref := range refs {
		item := map[string]jsonAttribute{
			tagReferencedSOPClassUID:    {VR: "UI", Value: []any{ref.SOPClassUID}},
			tagReferencedSOPInstanceUID: {VR: "UI", Value: []any{ref.SOPInstanceUID}},
		}
		if ref.RetrieveURL != "" {
			item[tagRetrieveURL] = jsonAttribute{VR: "UT", Value: []any{ref.RetrieveURL}}
		}
		if ref.ReasonCode != 0 {
			tag := tagWarningReason
			if ref.ReasonCode == models.ReasonProcessingFailure {
				tag = tagFailureReason
			}
			item[tag] = jsonAttribute{VR: "US", Value: []any{ref.ReasonCode}}
		}
		items = append(items, item)
	}
	return items
}

// DICOM native model XML rendering (PS3.19 annex A.1).

type xmlModel struct {
	XMLName    xml.Name       `xml:"NativeDicomModel"`
	Attributes []xmlAttribute `xml:"DicomAttribute"`
}

type xmlAttribute struct {
	Tag    string     `xml:"tag,attr"`
	VR     string     `xml:"vr,attr"`
	Values []xmlValue `xml:"Value,omitempty"`
	Items  []xmlItem  `xml:"Item,omitempty"`
}

type xmlValue struct {
	Number int    `xml:"number,attr"`
	Text   string `xml:",chardata"`
}

type xmlItem struct {
	Number     int            `xml:"number,attr"`
	Attributes []xmlAttribute `xml:"DicomAttribute"`
}

func renderStatusXML(doc models.StatusDocument) ([]byte, error) {
	model := xmlModel{}

	if doc.RetrieveURL != "" {
		model.Attributes = append(model.Attributes, xmlAttribute{
			Tag:    tagRetrieveURL,
			VR:     "UT",
			Values: []xmlValue{{Number: 1, Text: doc.RetrieveURL}},
		})
	}
	model.Attributes = append(model.Attributes,
		xmlAttribute{Tag: tagReferencedSOPSequence, VR: "SQ", Items: xmlSequence(doc.Success)},
		xmlAttribute{Tag: tagFailedSOPSequence, VR: "SQ", Items: xmlSequence(doc.Failed)},
	)

	payload, err := xml.Marshal(model)
	if err != nil {
		return nil, dwerr.Wrap(dwerr.InternalError, "serializing status document", err)
	}
	return append([]byte(xml.Header), payload...), nil
}

func xmlSequence(refs []models.SOPReference) []xmlItem {
	items := make([]xmlItem, 0, len(refs))
	for i, ref := range refs {
		attrs := []xmlAttribute{
			{Tag: tagReferencedSOPClassUID, VR: "UI", Values: []xmlValue{{Number: 1, Text: ref.SOPClassUID}}},
			{Tag: tagReferencedSOPInstanceUID, VR: "UI", Values: []xmlValue{{Number: 1, Text: ref.SOPInstanceUID}}},
		}
		if ref.RetrieveURL != "" {
			attrs = append(attrs, xmlAttribute{
				Tag: tagRetrieveURL, VR: "UT",
				Values: []xmlValue{{Number: 1, Text: ref.RetrieveURL}},
			})
		}
		if ref.ReasonCode != 0 {
			tag := tagWarningReason
			if ref.ReasonCode == models.ReasonProcessingFailure {
				tag = tagFailureReason
			}
			attrs = append(attrs, xmlAttribute{
				Tag: tag, VR: "US",
				Values: []xmlValue{{Number: 1, Text: strconv.Itoa(int(ref.ReasonCode))}},
			})
		}
		items = append(items, xmlItem{Number: i + 1, Attributes: attrs})
	}
	return items
}
