// Package dicom provides the minimal DICOM parsing the gateway needs:
// extracting identifying UIDs from the header of a Part 10 file. Pixel
// data decoding and full dataset models are out of scope; the image
// repository owns those.
package dicom

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// Tag identifies a DICOM data element (group, element).
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the tag in (GGGG,EEEE) format.
func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// Tags read by the gateway.
var (
	TagTransferSyntaxUID = Tag{0x0002, 0x0010}
	TagSOPClassUID       = Tag{0x0008, 0x0016}
	TagSOPInstanceUID    = Tag{0x0008, 0x0018}
	TagStudyInstanceUID  = Tag{0x0020, 0x000D}
	TagSeriesInstanceUID = Tag{0x0020, 0x000E}
)

// Transfer syntaxes the header scanner understands. Anything else is
// still scanned as explicit VR little endian, which covers the dataset
// header of every compressed transfer syntax as well.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
)

// Identity carries the identifying UIDs of one instance, recomputed per
// item from its header. Missing tags are empty strings.
type Identity struct {
	StudyUID       string
	SeriesUID      string
	SOPInstanceUID string
	SOPClassUID    string
}

// HasPart10Header reports whether data starts with the 128-byte preamble
// followed by the "DICM" prefix.
func HasPart10Header(data []byte) bool {
	return len(data) >= 132 && string(data[128:132]) == "DICM"
}

// ReadIdentity extracts the study, series, SOP instance and SOP class
// UIDs from a DICOM Part 10 file. Tags absent from the header yield
// empty fields rather than errors.
func ReadIdentity(data []byte) (Identity, error) {
	dataset, transferSyntax, err := stripPart10(data)
	if err != nil {
		return Identity{}, err
	}

	values := scanDataset(dataset, transferSyntax == ImplicitVRLittleEndian)
	return Identity{
		StudyUID:       values[TagStudyInstanceUID],
		SeriesUID:      values[TagSeriesInstanceUID],
		SOPInstanceUID: values[TagSOPInstanceUID],
		SOPClassUID:    values[TagSOPClassUID],
	}, nil
}

// stripPart10 skips the preamble and the group 0x0002 file meta
// information, returning the dataset and the declared transfer syntax.
// File meta is always explicit VR little endian.
func stripPart10(data []byte) (dataset []byte, transferSyntax string, err error) {
	if !HasPart10Header(data) {
		return nil, "", dwerr.New(dwerr.BadFileFormat, "missing DICM prefix, not a DICOM Part 10 file")
	}

	offset := 132
	for offset+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		if group != 0x0002 {
			break
		}
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		vr := string(data[offset+4 : offset+6])

		var length int
		var valueOffset int
		if isLongVR(vr) {
			if offset+12 > len(data) {
				return nil, "", dwerr.New(dwerr.BadFileFormat, "truncated file meta information")
			}
			length = int(binary.LittleEndian.Uint32(data[offset+8 : offset+12]))
			valueOffset = offset + 12
		} else {
			length = int(binary.LittleEndian.Uint16(data[offset+6 : offset+8]))
			valueOffset = offset + 8
		}

		if valueOffset+length > len(data) {
			return nil, "", dwerr.New(dwerr.BadFileFormat, "truncated file meta information")
		}

		if (Tag{group, element}) == TagTransferSyntaxUID {
			transferSyntax = trimUID(data[valueOffset : valueOffset+length])
		}
		offset = valueOffset + length
	}

	if offset >= len(data) {
		return nil, "", dwerr.New(dwerr.BadFileFormat, "no dataset after file meta information")
	}
	return data[offset:], transferSyntax, nil
}

// scanDataset walks the leading elements of a dataset and collects the
// UID tags of interest. The scan stops past group 0x0020, once all tags
// were seen, or at the first element it cannot frame, so malformed or
// sequence-heavy tails never abort an otherwise readable header.
func scanDataset(data []byte, implicitVR bool) map[Tag]string {
	wanted := map[Tag]bool{
		TagSOPClassUID:       true,
		TagSOPInstanceUID:    true,
		TagStudyInstanceUID:  true,
		TagSeriesInstanceUID: true,
	}
	values := make(map[Tag]string)

	offset := 0
	for offset+8 <= len(data) && len(values) < len(wanted) {
		tag := Tag{
			Group:   binary.LittleEndian.Uint16(data[offset : offset+2]),
			Element: binary.LittleEndian.Uint16(data[offset+2 : offset+4]),
		}
		if tag.Group > 0x0020 {
			break
		}

		var length uint32
		var valueOffset int
		if implicitVR {
			length = binary.LittleEndian.Uint32(data[offset+4 : offset+8])
			valueOffset = offset + 8
		} else {
			vr := string(data[offset+4 : offset+6])
			if isLongVR(vr) {
				if offset+12 > len(data) {
					break
				}
				length = binary.LittleEndian.Uint32(data[offset+8 : offset+12])
				valueOffset = offset + 12
			} else {
				length = uint32(binary.LittleEndian.Uint16(data[offset+6 : offset+8]))
				valueOffset = offset + 8
			}
		}

		// Undefined lengths mark nested sequences; none of the UID
		// tags lives inside one, so stop rather than guess.
		if length == 0xFFFFFFFF {
			break
		}
		if valueOffset+int(length) > len(data) {
			break
		}

		if wanted[tag] {
			values[tag] = trimUID(data[valueOffset : valueOffset+int(length)])
		}

		offset = valueOffset + int(length)
		if length%2 == 1 {
			offset++
		}
	}
	return values
}

func isLongVR(vr string) bool {
	switch vr {
	case "OB", "OD", "OF", "OL", "OV", "OW", "SQ", "UC", "UN", "UR", "UT", "SV", "UV":
		return true
	}
	return false
}

// trimUID removes the null/space padding DICOM uses to even out value
// lengths.
func trimUID(value []byte) string {
	return strings.TrimRight(string(value), "\x00 ")
}
