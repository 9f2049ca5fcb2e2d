// File: backend/internal/api/handler_base.go
package api

import (
	"sync"

	"github.com/linkflowhq/linkflow/backend/internal/config"
	"github.com/linkflowhq/linkflow/backend/internal/hostresolver"
	"github.com/linkflowhq/linkflow/backend/internal/prober"
	"github.com/linkflowhq/linkflow/backend/internal/scheduler"
	"github.com/linkflowhq/linkflow/backend/internal/scraper"
)

// APIHandler holds shared dependencies for API handlers, primarily the
// live configuration.
type APIHandler struct {
	Config      *config.AppConfig
	configMutex sync.RWMutex // protects Config during dynamic updates
}

// NewAPIHandler creates a new APIHandler with dependencies.
func NewAPIHandler(cfg *config.AppConfig) *APIHandler {
	return &APIHandler{Config: cfg}
}

// newScheduler builds a validation engine from a snapshot of the current
// configuration. Each request gets its own scheduler so live config
// updates apply to the next run, never a running one.
func (h *APIHandler) newScheduler() *scheduler.Scheduler {
	h.configMutex.RLock()
	schedCfg := h.Config.Scheduler
	proberCfg := h.Config.Prober
	resolverCfg := h.Config.Resolver
	h.configMutex.RUnlock()

	var preflight scheduler.HostPreflight
	if resolverCfg.Enabled {
		preflight = hostresolver.New(resolverCfg)
	}
	return scheduler.New(schedCfg, proberCfg, prober.New(proberCfg), preflight)
}

func (h *APIHandler) newScraper() *scraper.Scraper {
	h.configMutex.RLock()
	scraperCfg := h.Config.Scraper
	h.configMutex.RUnlock()
	return scraper.New(scraperCfg)
}
