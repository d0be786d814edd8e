package dicom_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dicom"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dicom/dicomtest"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

func TestReadIdentity(t *testing.T) {
	id := dicom.Identity{
		StudyUID:       "1.2.840.113619.2.1.1",
		SeriesUID:      "1.2.840.113619.2.1.2",
		SOPInstanceUID: "1.2.840.113619.2.1.3",
		SOPClassUID:    "1.2.840.10008.5.1.4.1.1.2",
	}

	got, err := dicom.ReadIdentity(dicomtest.NewFile(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestReadIdentityMissingTags(t *testing.T) {
	id := dicom.Identity{
		StudyUID:       "1.2.3",
		SOPInstanceUID: "4.5.6",
	}

	got, err := dicom.ReadIdentity(dicomtest.NewFile(id))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", got.StudyUID)
	assert.Equal(t, "4.5.6", got.SOPInstanceUID)
	assert.Empty(t, got.SeriesUID)
	assert.Empty(t, got.SOPClassUID)
}

func TestReadIdentityRejectsNonDicom(t *testing.T) {
	_, err := dicom.ReadIdentity([]byte("definitely not a DICOM file"))
	require.Error(t, err)
	assert.True(t, dwerr.Is(err, dwerr.BadFileFormat))

	// Right length, wrong magic.
	blob := make([]byte, 200)
	_, err = dicom.ReadIdentity(blob)
	require.Error(t, err)
	assert.True(t, dwerr.Is(err, dwerr.BadFileFormat))
}

func TestReadIdentityImplicitVR(t *testing.T) {
	// File meta declaring implicit VR, dataset framed without VR bytes.
	out := make([]byte, 128)
	out = append(out, "DICM"...)

	ts := []byte(dicom.ImplicitVRLittleEndian)
	if len(ts)%2 == 1 {
		ts = append(ts, 0x00)
	}
	out = binary.LittleEndian.AppendUint16(out, 0x0002)
	out = binary.LittleEndian.AppendUint16(out, 0x0010)
	out = append(out, "UI"...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(ts)))
	out = append(out, ts...)

	study := []byte("9.8.7.6 ")
	out = binary.LittleEndian.AppendUint16(out, 0x0020)
	out = binary.LittleEndian.AppendUint16(out, 0x000D)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(study)))
	out = append(out, study...)

	got, err := dicom.ReadIdentity(out)
	require.NoError(t, err)
	assert.Equal(t, "9.8.7.6", got.StudyUID)
}

func TestHasPart10Header(t *testing.T) {
	assert.False(t, dicom.HasPart10Header(nil))
	assert.False(t, dicom.HasPart10Header(make([]byte, 200)))
	assert.True(t, dicom.HasPart10Header(dicomtest.NewFile(dicom.Identity{})))
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "(0020,000d)", dicom.TagStudyInstanceUID.String())
}
