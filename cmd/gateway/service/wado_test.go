package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

func seedWadoInstance(repo *fakeRepository) {
	repo.lookups["1.2.3.4"] = `[{"ID":"inst","Type":"Instance"}]`
	repo.files["/instances/inst/file"] = []byte("DICOM-bytes")
	repo.documents["/instances/inst/series"] = `{"MainDicomTags":{"SeriesInstanceUID":"1.2.3"}}`
	repo.documents["/instances/inst/study"] = `{"MainDicomTags":{"StudyInstanceUID":"1.2"}}`
}

func TestWadoRetrievesInstance(t *testing.T) {
	repo := newFakeRepository()
	seedWadoInstance(repo)
	svc := NewWadoService(repo, testLogger())

	data, mediaType, err := svc.Retrieve(context.Background(), WadoQuery{
		RequestType: "WADO",
		ObjectUID:   "1.2.3.4",
	})
	require.NoError(t, err)
	assert.Equal(t, "application/dicom", mediaType)
	assert.Equal(t, []byte("DICOM-bytes"), data)
}

func TestWadoChecksParentUIDs(t *testing.T) {
	repo := newFakeRepository()
	seedWadoInstance(repo)
	svc := NewWadoService(repo, testLogger())

	// Matching parents pass
	_, _, err := svc.Retrieve(context.Background(), WadoQuery{
		RequestType: "WADO", ObjectUID: "1.2.3.4", SeriesUID: "1.2.3", StudyUID: "1.2",
	})
	require.NoError(t, err)

	// A foreign series is an unknown resource, not a different instance
	_, _, err = svc.Retrieve(context.Background(), WadoQuery{
		RequestType: "WADO", ObjectUID: "1.2.3.4", SeriesUID: "9.9",
	})
	require.Error(t, err)
	assert.True(t, dwerr.Is(err, dwerr.UnknownResource))

	_, _, err = svc.Retrieve(context.Background(), WadoQuery{
		RequestType: "WADO", ObjectUID: "1.2.3.4", StudyUID: "9.9",
	})
	require.Error(t, err)
	assert.True(t, dwerr.Is(err, dwerr.UnknownResource))
}

func TestWadoParameterValidation(t *testing.T) {
	repo := newFakeRepository()
	seedWadoInstance(repo)
	svc := NewWadoService(repo, testLogger())

	tests := []struct {
		name  string
		query WadoQuery
		kind  dwerr.Kind
	}{
		{"missing requestType", WadoQuery{ObjectUID: "1.2.3.4"}, dwerr.BadFileFormat},
		{"wrong requestType", WadoQuery{RequestType: "THUMBNAIL", ObjectUID: "1.2.3.4"}, dwerr.BadFileFormat},
		{"missing objectUID", WadoQuery{RequestType: "WADO"}, dwerr.BadFileFormat},
		{"rendered content type", WadoQuery{RequestType: "WADO", ObjectUID: "1.2.3.4", ContentType: "image/jpeg"}, dwerr.UnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Retrieve(context.Background(), tt.query)
			require.Error(t, err)
			assert.True(t, dwerr.Is(err, tt.kind))
		})
	}
}

func TestWadoUnknownObject(t *testing.T) {
	repo := newFakeRepository()
	svc := NewWadoService(repo, testLogger())

	_, _, err := svc.Retrieve(context.Background(), WadoQuery{
		RequestType: "WADO", ObjectUID: "9.9.9",
	})
	require.Error(t, err)
	assert.True(t, dwerr.Is(err, dwerr.UnknownResource))
}

func TestWadoLookupSkipsNonInstanceMatches(t *testing.T) {
	repo := newFakeRepository()
	repo.lookups["1.2.3.4"] = `[{"ID":"stu","Type":"Study"},{"ID":"inst","Type":"Instance"}]`
	repo.files["/instances/inst/file"] = []byte("DICOM-bytes")
	svc := NewWadoService(repo, testLogger())

	data, _, err := svc.Retrieve(context.Background(), WadoQuery{
		RequestType: "WADO", ObjectUID: "1.2.3.4",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("DICOM-bytes"), data)
}
