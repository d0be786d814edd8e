package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yjsyyyjszf/orthanc-dicomweb/common/clients"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/redis"
)

// Resource kinds, in probe order. Instances are by far the most common
// argument, so they are probed first.
var resourceKinds = []string{"instances", "series", "studies", "patients"}

const kindCachePrefix = "dicomweb:kind:"

// ResolveService maps repository resource identifiers of any level to
// the flat list of instances below them. The kind of each identifier
// is discovered by probing; a Redis cache, when configured, remembers
// the kind so repeat forwards of the same resource skip the probing.
type ResolveService struct {
	repo     clients.Repository
	cache    *redis.Client
	cacheTTL time.Duration
	log      clients.Logger
}

func NewResolveService(repo clients.Repository, cache *redis.Client, cacheTTL time.Duration, log clients.Logger) *ResolveService {
	return &ResolveService{repo: repo, cache: cache, cacheTTL: cacheTTL, log: log}
}

// Resolve expands each resource to its instances, preserving the order
// of the input and the order of each child listing. A resource that
// matches no kind yields UnknownResource.
func (s *ResolveService) Resolve(ctx context.Context, resources []string) ([]string, error) {
	var instances []string
	for _, resource := range resources {
		expanded, err := s.resolveOne(ctx, resource)
		if err != nil {
			return nil, err
		}
		instances = append(instances, expanded...)
	}
	return instances, nil
}

func (s *ResolveService) resolveOne(ctx context.Context, resource string) ([]string, error) {
	if resource == "" {
		return nil, dwerr.New(dwerr.UnknownResource, "empty resource identifier")
	}

	if kind, ok := s.cachedKind(ctx, resource); ok {
		instances, found, err := s.expand(ctx, kind, resource)
		if err != nil {
			return nil, err
		}
		if found {
			return instances, nil
		}
		// The cached kind is stale, the resource moved or vanished.
		s.forgetKind(ctx, resource)
	}

	for _, kind := range resourceKinds {
		instances, found, err := s.expand(ctx, kind, resource)
		if err != nil {
			return nil, err
		}
		if found {
			s.rememberKind(ctx, resource, kind)
			return instances, nil
		}
	}

	return nil, dwerr.Newf(dwerr.UnknownResource, "resource %q not found in repository", resource)
}

// expand lists the instances below one resource of a known kind. For
// instances the resource is its own expansion.
func (s *ResolveService) expand(ctx context.Context, kind, resource string) ([]string, bool, error) {
	if kind == "instances" {
		_, found, err := s.repo.Get(ctx, "/instances/"+resource)
		if err != nil || !found {
			return nil, false, err
		}
		return []string{resource}, true, nil
	}

	listing, found, err := s.repo.Get(ctx, fmt.Sprintf("/%s/%s/instances", kind, resource))
	if err != nil || !found {
		return nil, false, err
	}

	var entries []struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(listing, &entries); err != nil {
		return nil, false, dwerr.Wrap(dwerr.InternalError, "malformed instance listing from repository", err)
	}

	instances := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == "" {
			return nil, false, dwerr.New(dwerr.InternalError, "instance listing entry without ID")
		}
		instances = append(instances, entry.ID)
	}
	return instances, true, nil
}

func (s *ResolveService) cachedKind(ctx context.Context, resource string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	kind, found, err := s.cache.Get(ctx, kindCachePrefix+resource)
	if err != nil {
		s.log.Warn("kind cache lookup failed", "resource", resource, "error", err)
		return "", false
	}
	return kind, found
}

func (s *ResolveService) rememberKind(ctx context.Context, resource, kind string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetWithExpiry(ctx, kindCachePrefix+resource, kind, s.cacheTTL); err != nil {
		s.log.Warn("kind cache store failed", "resource", resource, "error", err)
	}
}

func (s *ResolveService) forgetKind(ctx context.Context, resource string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, kindCachePrefix+resource); err != nil {
		s.log.Warn("kind cache invalidation failed", "resource", resource, "error", err)
	}
}
