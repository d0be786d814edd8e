package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/models"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/multipart"
)

// wadoAnswer wraps DICOM payloads into the multipart answer a remote
// WADO-RS server would send.
func wadoAnswer(t *testing.T, payloads ...[]byte) remoteAnswer {
	t.Helper()
	items := make([]multipart.Item, 0, len(payloads))
	for _, payload := range payloads {
		items = append(items, multipart.Item{ContentType: "application/dicom", Data: payload})
	}
	body, boundary, err := multipart.Encode(items)
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Content-Type", "multipart/related; type=\"application/dicom\"; boundary="+boundary)
	return remoteAnswer{headers: headers, body: body}
}

func TestRetrieveStoresAllParts(t *testing.T) {
	repo := newFakeRepository()
	remote := &fakeRemote{answers: []remoteAnswer{
		wadoAnswer(t, []byte("one"), []byte("two")),
	}}
	svc := NewRetrieveService(repo, remote, testLogger())

	req := models.RetrieveRequest{Resources: []models.RetrieveSelector{{Study: "1.2.3"}}}
	result, err := svc.Retrieve(context.Background(), config.RemoteServer{}, req)
	require.NoError(t, err)

	assert.Len(t, repo.stored, 2)
	assert.Equal(t, []string{"repo-id-1", "repo-id-2"}, result.Instances)

	require.Len(t, remote.calls, 1)
	assert.Equal(t, "GET", remote.calls[0].method)
	assert.Equal(t, "studies/1.2.3", remote.calls[0].uri)
	assert.Contains(t, remote.calls[0].headers["Accept"], "multipart/related")
}

func TestRetrieveSelectorURIs(t *testing.T) {
	remote := &fakeRemote{answers: []remoteAnswer{
		wadoAnswer(t, []byte("x")),
		wadoAnswer(t, []byte("y")),
	}}
	svc := NewRetrieveService(newFakeRepository(), remote, testLogger())

	req := models.RetrieveRequest{Resources: []models.RetrieveSelector{
		{Study: "s", Series: "r"},
		{Study: "s", Series: "r", Instance: "i"},
	}}
	_, err := svc.Retrieve(context.Background(), config.RemoteServer{}, req)
	require.NoError(t, err)

	require.Len(t, remote.calls, 2)
	assert.Equal(t, "studies/s/series/r", remote.calls[0].uri)
	assert.Equal(t, "studies/s/series/r/instances/i", remote.calls[1].uri)
}

func TestRetrieveValidatesBeforeNetwork(t *testing.T) {
	remote := &fakeRemote{}
	svc := NewRetrieveService(newFakeRepository(), remote, testLogger())

	tests := []struct {
		name     string
		selector models.RetrieveSelector
	}{
		{"missing study", models.RetrieveSelector{Series: "r"}},
		{"instance without series", models.RetrieveSelector{Study: "s", Instance: "i"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := models.RetrieveRequest{Resources: []models.RetrieveSelector{
				{Study: "valid"}, // even a valid selector before the broken one must not fire
				tt.selector,
			}}
			_, err := svc.Retrieve(context.Background(), config.RemoteServer{}, req)
			require.Error(t, err)
			assert.True(t, dwerr.Is(err, dwerr.BadFileFormat))
			assert.Empty(t, remote.calls)
		})
	}
}

func TestRetrieveDeduplicatesAcrossSelectors(t *testing.T) {
	repo := newFakeRepository()
	// PostInstance hands out fresh IDs per call, so emulate idempotent
	// storage by answering with the same instance twice and checking the
	// result set only through its length.
	remote := &fakeRemote{answers: []remoteAnswer{
		wadoAnswer(t, []byte("same")),
		wadoAnswer(t, []byte("same")),
	}}
	svc := NewRetrieveService(&idempotentRepository{fakeRepository: repo}, remote, testLogger())

	req := models.RetrieveRequest{Resources: []models.RetrieveSelector{
		{Study: "s", Series: "r"},
		{Study: "s"},
	}}
	result, err := svc.Retrieve(context.Background(), config.RemoteServer{}, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"blob-same"}, result.Instances)
}

// idempotentRepository derives the repository ID from the content, the
// way a content-addressed store would.
type idempotentRepository struct {
	*fakeRepository
}

func (r *idempotentRepository) PostInstance(_ context.Context, data []byte) (string, error) {
	return "blob-" + string(data), nil
}

func TestRetrieveRejectsBadAnswerContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{"not multipart", "application/dicom"},
		{"wrong part type", "multipart/related; type=\"application/pdf\"; boundary=B"},
		{"missing boundary", "multipart/related; type=\"application/dicom\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set("Content-Type", tt.contentType)
			remote := &fakeRemote{answers: []remoteAnswer{{headers: headers, body: []byte("x")}}}
			svc := NewRetrieveService(newFakeRepository(), remote, testLogger())

			req := models.RetrieveRequest{Resources: []models.RetrieveSelector{{Study: "s"}}}
			_, err := svc.Retrieve(context.Background(), config.RemoteServer{}, req)
			require.Error(t, err)
			assert.True(t, dwerr.Is(err, dwerr.NetworkProtocol))
		})
	}
}

func TestRetrieveRejectsNonDicomPart(t *testing.T) {
	body, boundary, err := multipart.Encode([]multipart.Item{
		{ContentType: "text/plain", Data: []byte("hello")},
	})
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Content-Type", "multipart/related; type=\"application/dicom\"; boundary="+boundary)
	remote := &fakeRemote{answers: []remoteAnswer{{headers: headers, body: body}}}

	repo := newFakeRepository()
	svc := NewRetrieveService(repo, remote, testLogger())

	req := models.RetrieveRequest{Resources: []models.RetrieveSelector{{Study: "s"}}}
	_, err = svc.Retrieve(context.Background(), config.RemoteServer{}, req)
	require.Error(t, err)
	assert.True(t, dwerr.Is(err, dwerr.NetworkProtocol))
	assert.Empty(t, repo.stored)
}
