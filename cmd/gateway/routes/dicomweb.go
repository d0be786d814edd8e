package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/container"
	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/handlers"
)

// RegisterDicomWebRoutes registers the DICOMweb server and client routes
func RegisterDicomWebRoutes(e *echo.Echo, c *container.Container) {
	stow := handlers.NewStowHandler(c)
	forward := handlers.NewForwardHandler(c)
	retrieve := handlers.NewRetrieveHandler(c)

	dw := e.Group(c.Components.Config.DicomWeb.Root)
	{
		dw.POST("/studies", stow.Store)                       // STOW-RS, any study
		dw.POST("/studies/:study", stow.Store)                // STOW-RS, one study
		dw.POST("/servers/:server/stow", forward.Forward)     // push to remote
		dw.POST("/servers/:server/retrieve", retrieve.Retrieve) // pull from remote
	}
}

// RegisterWadoRoutes registers the legacy WADO-URI route
func RegisterWadoRoutes(e *echo.Echo, c *container.Container) {
	wado := handlers.NewWadoHandler(c)
	e.GET(c.Components.Config.DicomWeb.WadoRoot, wado.Retrieve)
}
