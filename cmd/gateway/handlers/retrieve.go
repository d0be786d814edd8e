package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/container"
	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/models"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// RetrieveHandler serves the WADO-RS client endpoint, pulling remote
// resources into the repository.
type RetrieveHandler struct {
	container *container.Container
}

func NewRetrieveHandler(c *container.Container) *RetrieveHandler {
	return &RetrieveHandler{container: c}
}

// Retrieve fetches the requested selectors from a remote DICOMweb
// server and stores the instances locally.
// POST /dicom-web/servers/:server/retrieve
func (h *RetrieveHandler) Retrieve(c echo.Context) error {
	log := h.container.Components.Logger

	name := c.Param("server")
	server, ok := h.container.Components.Config.DicomWeb.Servers[name]
	if !ok {
		return httpError(dwerr.Newf(dwerr.UnknownResource, "no DICOMweb server named %q is configured", name))
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpError(dwerr.Wrap(dwerr.BadFileFormat, "reading retrieve request body", err))
	}
	req, err := models.ParseRetrieveRequest(body)
	if err != nil {
		return httpError(err)
	}

	result, err := h.container.Retrieve.Retrieve(c.Request().Context(), server, *req)
	if err != nil {
		log.Error("retrieve from remote server failed", "server", name, "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}
