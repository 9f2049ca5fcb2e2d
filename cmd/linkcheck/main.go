// File: backend/cmd/linkcheck/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkflowhq/linkflow/backend/internal/config"
	"github.com/linkflowhq/linkflow/backend/internal/hostresolver"
	"github.com/linkflowhq/linkflow/backend/internal/prober"
	"github.com/linkflowhq/linkflow/backend/internal/report"
	"github.com/linkflowhq/linkflow/backend/internal/scheduler"
	"github.com/linkflowhq/linkflow/backend/internal/scraper"
)

const defaultPreviewLimit = 25

func main() {
	configPath := flag.String("config", "config.json", "Path to the JSON configuration file")
	outputDir := flag.String("out", ".", "Directory for valid/invalid link exports")
	jsonOut := flag.String("json", "", "Also write the full ordered result set to this JSON file")
	previewLimit := flag.Int("preview", defaultPreviewLimit, "Maximum links shown per section in the console report")
	globalConcurrency := flag.Int("concurrency", 0, "Override global concurrency limit")
	perHost := flag.Int("per-host", 0, "Override per-host concurrency limit")
	noExport := flag.Bool("no-export", false, "Skip writing the text exports")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <page-url>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	pageURL := flag.Arg(0)

	appConfig, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Main: Notice during config.Load: %v. Proceeding with available/defaulted config.", err)
	}
	if appConfig == nil {
		log.Fatalf("CRITICAL: Configuration could not be loaded, and no defaults were returned. Exiting.")
	}
	if *globalConcurrency > 0 {
		appConfig.Scheduler.GlobalConcurrency = *globalConcurrency
	}
	if *perHost > 0 {
		appConfig.Scheduler.PerHostConcurrency = *perHost
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc := scraper.New(appConfig.Scraper)
	log.Printf("Main: Collecting links from %s", pageURL)
	candidates, err := sc.CollectLinks(ctx, pageURL)
	if err != nil {
		log.Fatalf("Main: Failed to collect links from %s: %v", pageURL, err)
	}
	log.Printf("Main: Found %d candidate links.", len(candidates))

	var preflight scheduler.HostPreflight
	if appConfig.Resolver.Enabled {
		preflight = hostresolver.New(appConfig.Resolver)
	}
	sched := scheduler.New(appConfig.Scheduler, appConfig.Prober, prober.New(appConfig.Prober), preflight)

	started := time.Now()
	results, err := sched.Run(ctx, candidates)
	if err != nil {
		if errors.Is(err, scheduler.ErrNoCandidates) {
			log.Printf("Main: No checkable links found on %s. Nothing to do.", pageURL)
			return
		}
		if errors.Is(err, context.Canceled) {
			// Interrupted runs produce no report; partial counts would
			// misrepresent the page.
			log.Printf("Main: Run interrupted after %s. No report written.", time.Since(started).Round(time.Millisecond))
			os.Exit(130)
		}
		log.Fatalf("Main: Validation run failed: %v", err)
	}

	summary := report.Summarize(results, time.Since(started))
	summary.WriteConsole(os.Stdout, *previewLimit)

	if !*noExport {
		validPath, invalidPath, err := summary.ExportText(*outputDir)
		if err != nil {
			log.Fatalf("Main: Failed to write text exports: %v", err)
		}
		fmt.Printf("\nExports written: %s, %s\n", validPath, invalidPath)
	}
	if *jsonOut != "" {
		if err := report.ExportJSON(*jsonOut, results); err != nil {
			log.Fatalf("Main: Failed to write JSON export: %v", err)
		}
		fmt.Printf("JSON results written: %s\n", *jsonOut)
	}
}
