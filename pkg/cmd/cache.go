package cmd

import (
	"strings"
	"time"

	"github.com/dukex/area/pkg/catalog"
)

const definitionsTTL = time.Hour

var supportedCacheProviders = []string{"memory", "redis", "rediss"}

// NewDefinitionCache picks the service definition cache from its URL. An
// empty URL keeps definitions in memory for the current command.
func NewDefinitionCache(cacheURL string) (catalog.Cache, func() error, error) {
	switch parseCacheProvider(cacheURL) {
	case "redis", "rediss":
		cache, err := catalog.NewRedisCache(cacheURL, definitionsTTL)
		if err != nil {
			return nil, nil, err
		}

		return cache, cache.Close, nil
	default:
		return catalog.NewMemoryCache(), func() error { return nil }, nil
	}
}

func parseCacheProvider(cacheURL string) string {
	provider, _, found := strings.Cut(cacheURL, "://")
	if !found {
		return "memory"
	}

	for _, supported := range supportedCacheProviders {
		if provider == supported {
			return provider
		}
	}

	return "memory"
}
