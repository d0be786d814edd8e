package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/container"
	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/service"
)

// WadoHandler serves the legacy WADO-URI endpoint.
type WadoHandler struct {
	container *container.Container
}

func NewWadoHandler(c *container.Container) *WadoHandler {
	return &WadoHandler{container: c}
}

// Retrieve answers one WADO-URI request.
// GET /wado?requestType=WADO&objectUID=...
func (h *WadoHandler) Retrieve(c echo.Context) error {
	query := service.WadoQuery{
		RequestType: c.QueryParam("requestType"),
		ObjectUID:   c.QueryParam("objectUID"),
		SeriesUID:   c.QueryParam("seriesUID"),
		StudyUID:    c.QueryParam("studyUID"),
		ContentType: c.QueryParam("contentType"),
	}

	data, mediaType, err := h.container.Wado.Retrieve(c.Request().Context(), query)
	if err != nil {
		h.container.Components.Logger.Error("WADO-URI request rejected",
			"object_uid", query.ObjectUID, "error", err)
		return httpError(err)
	}
	return c.Blob(http.StatusOK, mediaType, data)
}
