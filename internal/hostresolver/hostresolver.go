// File: backend/internal/hostresolver/hostresolver.go
package hostresolver

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/miekg/dns"

	"github.com/linkflowhq/linkflow/backend/internal/config"
)

// maxConcurrentLookups bounds the preflight fan-out; host lists are small
// compared to link lists, so a modest cap is plenty.
const maxConcurrentLookups = 10

// Resolver answers one question per host before any HTTP traffic is sent:
// does the name resolve at all. Hosts that do not are reported back so the
// scheduler can fail their link groups without burning probe slots.
type Resolver struct {
	cfg       config.ResolverConfig
	resolvers []string
	mu        sync.Mutex
	rotation  int
}

// New builds a resolver from the configured upstream addresses, optionally
// augmented with the system resolv.conf entries.
func New(cfg config.ResolverConfig) *Resolver {
	r := &Resolver{cfg: cfg}
	if cfg.UseSystemResolvers {
		sysConfig, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err == nil && len(sysConfig.Servers) > 0 {
			for _, serverIP := range sysConfig.Servers {
				r.resolvers = append(r.resolvers, net.JoinHostPort(serverIP, sysConfig.Port))
			}
		} else if err != nil {
			log.Printf("HostResolver: Warning - Could not load system resolvers: %v", err)
		}
	}
	r.resolvers = append(r.resolvers, cfg.Resolvers...)
	return r
}

func (r *Resolver) nextResolver() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.resolvers) == 0 {
		return "", fmt.Errorf("no DNS resolvers configured")
	}
	addr := r.resolvers[r.rotation%len(r.resolvers)]
	r.rotation++
	return addr, nil
}

// ResolveHosts checks every host concurrently and returns an entry per
// host that failed to resolve. IP-literal hosts resolve trivially and are
// never queried. The returned map is empty (not nil) when all hosts pass.
func (r *Resolver) ResolveHosts(ctx context.Context, hosts []string) map[string]error {
	failures := make(map[string]error)
	if len(hosts) == 0 {
		return failures
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentLookups)

	for _, host := range hosts {
		wg.Add(1)
		sem <- struct{}{}
		go func(host string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := r.resolveHost(ctx, host); err != nil {
				mu.Lock()
				failures[host] = err
				mu.Unlock()
			}
		}(host)
	}
	wg.Wait()
	return failures
}

func (r *Resolver) resolveHost(ctx context.Context, host string) error {
	name := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = h
	}
	name = strings.Trim(name, "[]")
	if name == "" {
		return nil
	}
	if _, err := netip.ParseAddr(name); err == nil {
		return nil
	}

	addr, err := r.nextResolver()
	if err != nil {
		// No upstreams at all: do not block the run on preflight.
		return nil
	}

	client := &dns.Client{Timeout: r.cfg.QueryTimeout}
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(name), qtype)
		resp, _, exErr := client.ExchangeContext(ctx, msg, addr)
		if exErr != nil {
			lastErr = fmt.Errorf("query %s via %s: %w", dns.TypeToString[qtype], addr, exErr)
			continue
		}
		if resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
			return nil
		}
		lastErr = fmt.Errorf("no %s records for %s (rcode %s)", dns.TypeToString[qtype], name, dns.RcodeToString[resp.Rcode])
	}
	return lastErr
}
