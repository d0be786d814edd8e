package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/container"
	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/service"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// StowHandler serves the STOW-RS store endpoints.
type StowHandler struct {
	container *container.Container
}

func NewStowHandler(c *container.Container) *StowHandler {
	return &StowHandler{container: c}
}

// Store accepts a multipart STOW-RS request and answers with the DICOM
// status document.
// POST /dicom-web/studies
// POST /dicom-web/studies/:study
func (h *StowHandler) Store(c echo.Context) error {
	log := h.container.Components.Logger
	expectedStudy := c.Param("study")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpError(dwerr.Wrap(dwerr.BadFileFormat, "reading STOW-RS request body", err))
	}

	base := dicomWebBase(c, h.container.Components.Config)
	result, err := h.container.Ingest.Store(c.Request().Context(),
		c.Request().Header.Get("Content-Type"), body, expectedStudy, base)
	if err != nil {
		log.Error("STOW-RS request rejected", "study", expectedStudy, "error", err)
		return httpError(err)
	}

	doc := service.BuildStatus(result.Outcomes, result.StudyRetrieveURL)
	payload, mediaType, err := service.RenderStatus(doc, service.XMLRequested(c.Request().Header.Get("Accept")))
	if err != nil {
		return httpError(err)
	}

	log.Info("STOW-RS request served",
		"study", expectedStudy,
		"stored", len(doc.Success),
		"failed", len(doc.Failed))
	return c.Blob(http.StatusOK, mediaType, payload)
}
