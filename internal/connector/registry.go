package connector

import (
	"sort"
	"time"

	"github.com/ppiankov/truthgate/internal/cache"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/util"
	"github.com/ppiankov/truthgate/internal/worker"
)

// Registry holds the enabled connectors by name
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry creates a registry from connectors
func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		r.connectors[c.Name()] = c
	}
	return r
}

// NewRegistryFromConfig builds every enabled connector, sharing one
// fetcher, rate limiter and cache
func NewRegistryFromConfig(cfg *model.Config) *Registry {
	limiter := worker.NewLimiterFromConfig(cfg.RateLimiting)
	fetcher := NewFetcherFromConfig(cfg.HTTP, limiter)

	var connectors []Connector
	if cfg.Connectors.FDA.Enabled {
		connectors = append(connectors, NewFDAConnector(fetcher, cfg.Connectors.FDA))
	}
	if cfg.Connectors.PubMed.Enabled {
		connectors = append(connectors, NewPubMedConnector(fetcher, cfg.Connectors.PubMed))
	}
	if cfg.Connectors.ClinicalTrials.Enabled {
		connectors = append(connectors, NewClinicalTrialsConnector(fetcher, cfg.Connectors.ClinicalTrials))
	}
	if cfg.Connectors.Web.Enabled && len(cfg.Connectors.Web.Pages) > 0 {
		var robots *util.RobotsChecker
		if cfg.Connectors.Web.RespectRobots {
			proxy := util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)
			robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, proxy)
		}
		connectors = append(connectors, NewWebConnector(fetcher, robots, limiter, cfg.Connectors.Web.Pages))
	}

	if cfg.Cache.Enabled {
		ttl := cfg.Cache.TTL
		if ttl <= 0 {
			ttl = 15 * time.Minute
		}
		hitCache := cache.NewMemoryCache(ttl, 2*ttl)
		for i, c := range connectors {
			connectors[i] = NewCachedConnector(c, hitCache, ttl)
		}
	}
	return NewRegistry(connectors...)
}

// Get returns the named connector
func (r *Registry) Get(name string) (Connector, bool) {
	c, ok := r.connectors[name]
	return c, ok
}

// Names returns the registered connector names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
