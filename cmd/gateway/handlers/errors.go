package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// httpError maps a service error to the echo error the client sees.
// The dwerr kind decides the status; the message travels as-is.
func httpError(err error) error {
	status := http.StatusInternalServerError
	switch dwerr.KindOf(err) {
	case dwerr.BadFileFormat:
		status = http.StatusBadRequest
	case dwerr.UnsupportedMediaType:
		status = http.StatusUnsupportedMediaType
	case dwerr.UnknownResource:
		status = http.StatusNotFound
	case dwerr.NetworkProtocol:
		status = http.StatusBadGateway
	}
	return echo.NewHTTPError(status, err.Error())
}

// dicomWebBase computes the absolute DICOMweb root announced in
// retrieve URLs. A configured public root wins over the request's own
// scheme and host, which matters behind reverse proxies.
func dicomWebBase(c echo.Context, cfg *config.Config) string {
	if cfg.DicomWeb.PublicRoot != "" {
		return strings.TrimRight(cfg.DicomWeb.PublicRoot, "/")
	}
	return c.Scheme() + "://" + c.Request().Host + cfg.DicomWeb.Root
}
