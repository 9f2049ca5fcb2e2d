// File: backend/internal/scheduler/pool.go
package scheduler

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/linkflowhq/linkflow/backend/internal/config"
)

// newPool builds the outbound connection pool for one run. The scheduler
// owns it for the run's lifetime and hands it to every probe; nothing else
// allocates or releases its slots. MaxConnsPerHost backs the per-host cap
// at the connection level, below the scheduling-level semaphores.
func newPool(proberCfg config.ProberConfig, schedCfg config.SchedulerConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   proberCfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		DisableCompression:    true, // status line and headers only, never a compressed body
		MaxIdleConns:          schedCfg.GlobalConcurrency,
		MaxConnsPerHost:       schedCfg.PerHostConcurrency,
		MaxIdleConnsPerHost:   schedCfg.PerHostConcurrency,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= proberCfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", proberCfg.MaxRedirects)
			}
			return nil
		},
	}
}
