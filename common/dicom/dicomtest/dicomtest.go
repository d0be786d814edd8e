// Package dicomtest builds synthetic DICOM Part 10 files for tests.
package dicomtest

import (
	"encoding/binary"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dicom"
)

// NewFile returns a minimal explicit VR little endian Part 10 file
// carrying the given identity in its header, with an unrelated element
// in between so scans have to skip over tags they do not want.
func NewFile(id dicom.Identity) []byte {
	out := make([]byte, 128)
	out = append(out, "DICM"...)

	out = appendElement(out, dicom.TagTransferSyntaxUID, "UI", []byte(dicom.ExplicitVRLittleEndian))
	out = appendElement(out, dicom.TagSOPClassUID, "UI", []byte(id.SOPClassUID))
	out = appendElement(out, dicom.TagSOPInstanceUID, "UI", []byte(id.SOPInstanceUID))
	out = appendElement(out, dicom.Tag{Group: 0x0010, Element: 0x0020}, "LO", []byte("TEST"))
	out = appendElement(out, dicom.TagStudyInstanceUID, "UI", []byte(id.StudyUID))
	out = appendElement(out, dicom.TagSeriesInstanceUID, "UI", []byte(id.SeriesUID))
	return out
}

func appendElement(out []byte, tag dicom.Tag, vr string, value []byte) []byte {
	if len(value)%2 == 1 {
		value = append(value, 0x00)
	}
	out = binary.LittleEndian.AppendUint16(out, tag.Group)
	out = binary.LittleEndian.AppendUint16(out, tag.Element)
	out = append(out, vr...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(value)))
	return append(out, value...)
}
