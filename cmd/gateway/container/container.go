package container

import (
	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/service"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/bootstrap"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/clients"
)

// Container holds all initialized clients and services (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Clients
	Repository clients.Repository
	Remote     clients.RemoteClient

	// Services
	Ingest   *service.IngestService
	Resolver *service.ResolveService
	Forward  *service.ForwardService
	Retrieve *service.RetrieveService
	Wado     *service.WadoService
}

// NewContainer initializes all clients and services once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	repo := clients.NewRestRepository(cfg, log)
	remote := clients.NewHTTPRemoteClient(log)

	resolver := service.NewResolveService(repo, components.Cache, cfg.Cache.TTL, log)

	return &Container{
		Components: components,
		Repository: repo,
		Remote:     remote,
		Ingest:     service.NewIngestService(repo, log),
		Resolver:   resolver,
		Forward:    service.NewForwardService(repo, remote, resolver, cfg, log),
		Retrieve:   service.NewRetrieveService(repo, remote, log),
		Wado:       service.NewWadoService(repo, log),
	}, nil
}
