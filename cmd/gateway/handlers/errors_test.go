package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

func TestHTTPErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{dwerr.New(dwerr.BadFileFormat, "broken body"), http.StatusBadRequest},
		{dwerr.Wrap(dwerr.BadFileFormat, "reading request body", errors.New("unexpected EOF")), http.StatusBadRequest},
		{dwerr.New(dwerr.UnsupportedMediaType, "not dicom"), http.StatusUnsupportedMediaType},
		{dwerr.New(dwerr.UnknownResource, "no such thing"), http.StatusNotFound},
		{dwerr.New(dwerr.NetworkProtocol, "remote misbehaved"), http.StatusBadGateway},
		{dwerr.New(dwerr.InternalError, "invariant broken"), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		var httpErr *echo.HTTPError
		require.ErrorAs(t, httpError(tt.err), &httpErr)
		assert.Equal(t, tt.status, httpErr.Code, "error %v", tt.err)
	}
}
