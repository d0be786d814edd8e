package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/container"
	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/models"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// ForwardHandler serves the STOW-RS client endpoint, pushing local
// instances to a configured remote server.
type ForwardHandler struct {
	container *container.Container
}

func NewForwardHandler(c *container.Container) *ForwardHandler {
	return &ForwardHandler{container: c}
}

// Forward sends the requested resources to a remote DICOMweb server.
// POST /dicom-web/servers/:server/stow
func (h *ForwardHandler) Forward(c echo.Context) error {
	log := h.container.Components.Logger

	server, name, err := h.remoteServer(c)
	if err != nil {
		return httpError(err)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpError(dwerr.Wrap(dwerr.BadFileFormat, "reading forward request body", err))
	}
	req, err := models.ParseForwardRequest(body)
	if err != nil {
		return httpError(err)
	}

	summary, err := h.container.Forward.Forward(c.Request().Context(), server, *req)
	if err != nil {
		log.Error("forward to remote server failed", "server", name, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// remoteServer resolves the :server path parameter against the
// configured servers.
func (h *ForwardHandler) remoteServer(c echo.Context) (config.RemoteServer, string, error) {
	name := c.Param("server")
	server, ok := h.container.Components.Config.DicomWeb.Servers[name]
	if !ok {
		return config.RemoteServer{}, name,
			dwerr.Newf(dwerr.UnknownResource, "no DICOMweb server named %q is configured", name)
	}
	return server, name, nil
}
