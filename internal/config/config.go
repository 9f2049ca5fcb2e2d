// File: backend/internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

const (
	DefaultSystemAPIKeyPlaceholder = "SET_A_REAL_KEY_IN_CONFIG_OR_ENV_7f2a91c44be1"

	DefaultGlobalConcurrency  = 100
	DefaultPerHostConcurrency = 15
	DefaultBatchSize          = 15
	DefaultInterBatchPauseMs  = 10
	DefaultConnectTimeoutSec  = 1
	DefaultProbeTimeoutSec    = 3
	DefaultMaxRedirects       = 7

	DefaultScrapeTimeoutSec = 15
	DefaultMaxLinks         = 200
	DefaultMaxURLLength     = 2048
	DefaultMaxTextLength    = 100

	DefaultResolverTimeoutSec = 2
)

// AppConfig is the native, duration-typed configuration used throughout the
// application. The *JSON structs below are its file representation (plain
// integer timeouts, kept hand-editable).
type AppConfig struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Prober    ProberConfig
	Scheduler SchedulerConfig
	Resolver  ResolverConfig
	Logging   LoggingConfig

	loadedFromPath string
}

func (ac *AppConfig) GetLoadedFromPath() string { return ac.loadedFromPath }

type ServerConfig struct {
	Port   string `json:"port"`
	APIKey string `json:"apiKey"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// ScraperConfig bounds what the page collector hands to the engine.
type ScraperConfig struct {
	Timeout       time.Duration
	UserAgent     string
	MaxLinks      int
	MaxURLLength  int
	MaxTextLength int
}

// ProberConfig drives a single URL probe.
type ProberConfig struct {
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
	MaxRedirects   int
	UserAgent      string
}

// SchedulerConfig drives the batched fetch scheduler. PerHostRateRPS of 0
// disables request pacing; the fixed caps always apply.
type SchedulerConfig struct {
	GlobalConcurrency  int
	PerHostConcurrency int
	BatchSize          int
	InterBatchPause    time.Duration
	PerHostRateRPS     float64
	PerHostRateBurst   int
}

// ResolverConfig drives the optional DNS preflight for host groups.
type ResolverConfig struct {
	Enabled            bool
	Resolvers          []string
	UseSystemResolvers bool
	QueryTimeout       time.Duration
}

type ScraperConfigJSON struct {
	TimeoutSeconds int    `json:"timeoutSeconds"`
	UserAgent      string `json:"userAgent"`
	MaxLinks       int    `json:"maxLinks"`
	MaxURLLength   int    `json:"maxUrlLength"`
	MaxTextLength  int    `json:"maxTextLength"`
}

type ProberConfigJSON struct {
	ConnectTimeoutSeconds int    `json:"connectTimeoutSeconds"`
	ProbeTimeoutSeconds   int    `json:"probeTimeoutSeconds"`
	MaxRedirects          int    `json:"maxRedirects"`
	UserAgent             string `json:"userAgent"`
}

type SchedulerConfigJSON struct {
	GlobalConcurrency  int     `json:"globalConcurrency"`
	PerHostConcurrency int     `json:"perHostConcurrency"`
	BatchSize          int     `json:"batchSize"`
	InterBatchPauseMs  int     `json:"interBatchPauseMs"`
	PerHostRateRPS     float64 `json:"perHostRateRps,omitempty"`
	PerHostRateBurst   int     `json:"perHostRateBurst,omitempty"`
}

type ResolverConfigJSON struct {
	Enabled             bool     `json:"enabled"`
	Resolvers           []string `json:"resolvers,omitempty"`
	UseSystemResolvers  bool     `json:"useSystemResolvers"`
	QueryTimeoutSeconds int      `json:"queryTimeoutSeconds"`
}

type AppConfigJSON struct {
	Server    ServerConfig        `json:"server"`
	Scraper   ScraperConfigJSON   `json:"scraper"`
	Prober    ProberConfigJSON    `json:"prober"`
	Scheduler SchedulerConfigJSON `json:"scheduler"`
	Resolver  ResolverConfigJSON  `json:"resolver"`
	Logging   LoggingConfig       `json:"logging"`
}

// Load reads the main config file, falling back to (and persisting)
// defaults when it is missing. A parse failure keeps defaults for the
// unparsed fields; the error is returned alongside a usable config so the
// caller can decide whether to treat it as fatal.
func Load(mainConfigPath string) (*AppConfig, error) {
	if mainConfigPath == "" {
		mainConfigPath = "config.json"
		log.Printf("Config: Main config path empty, using default: %s", mainConfigPath)
	}

	appCfgJSON := DefaultAppConfigJSON()
	var originalLoadError error

	data, err := os.ReadFile(mainConfigPath)
	if err != nil {
		originalLoadError = err
		if os.IsNotExist(err) {
			log.Printf("Config: Main config file '%s' not found. Using defaults and attempting to save.", mainConfigPath)
			defaultCfg := ConvertJSONToAppConfig(appCfgJSON)
			defaultCfg.loadedFromPath = mainConfigPath
			if saveErr := Save(defaultCfg, mainConfigPath); saveErr != nil {
				log.Printf("Config: Failed to save default config file '%s': %v", mainConfigPath, saveErr)
			} else {
				log.Printf("Config: Saved default config to '%s'", mainConfigPath)
			}
		} else {
			log.Printf("Config: Error reading main config '%s': %v. Using defaults.", mainConfigPath, err)
		}
	} else {
		if errUnmarshal := json.Unmarshal(data, &appCfgJSON); errUnmarshal != nil {
			log.Printf("Config: Error unmarshalling main config '%s': %v. Using defaults for unparsed fields.", mainConfigPath, errUnmarshal)
			originalLoadError = errUnmarshal
		}
	}

	appConfig := ConvertJSONToAppConfig(appCfgJSON)
	appConfig.loadedFromPath = mainConfigPath
	return appConfig, originalLoadError
}

// Save writes the config back in its JSON file representation.
func Save(cfg *AppConfig, filePath string) error {
	if filePath == "" {
		return fmt.Errorf("cannot save config, file path is empty")
	}
	appCfgJSON := ConvertAppConfigToJSON(cfg)
	data, err := json.MarshalIndent(appCfgJSON, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal app config to JSON: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write app config to file '%s': %w", filePath, err)
	}
	log.Printf("Config: Successfully saved main configuration to '%s'", filePath)
	return nil
}

func ConvertJSONToScraperConfig(j ScraperConfigJSON) ScraperConfig {
	cfg := ScraperConfig{
		Timeout:       time.Duration(j.TimeoutSeconds) * time.Second,
		UserAgent:     j.UserAgent,
		MaxLinks:      j.MaxLinks,
		MaxURLLength:  j.MaxURLLength,
		MaxTextLength: j.MaxTextLength,
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultScrapeTimeoutSec * time.Second
	}
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = DefaultMaxLinks
	}
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultMaxTextLength
	}
	return cfg
}

func ConvertJSONToProberConfig(j ProberConfigJSON) ProberConfig {
	cfg := ProberConfig{
		ConnectTimeout: time.Duration(j.ConnectTimeoutSeconds) * time.Second,
		ProbeTimeout:   time.Duration(j.ProbeTimeoutSeconds) * time.Second,
		MaxRedirects:   j.MaxRedirects,
		UserAgent:      j.UserAgent,
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeoutSec * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeoutSec * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	return cfg
}

func ConvertJSONToSchedulerConfig(j SchedulerConfigJSON) SchedulerConfig {
	cfg := SchedulerConfig{
		GlobalConcurrency:  j.GlobalConcurrency,
		PerHostConcurrency: j.PerHostConcurrency,
		BatchSize:          j.BatchSize,
		InterBatchPause:    time.Duration(j.InterBatchPauseMs) * time.Millisecond,
		PerHostRateRPS:     j.PerHostRateRPS,
		PerHostRateBurst:   j.PerHostRateBurst,
	}
	if cfg.GlobalConcurrency <= 0 {
		cfg.GlobalConcurrency = DefaultGlobalConcurrency
	}
	if cfg.PerHostConcurrency <= 0 {
		cfg.PerHostConcurrency = DefaultPerHostConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.InterBatchPause <= 0 {
		cfg.InterBatchPause = DefaultInterBatchPauseMs * time.Millisecond
	}
	if cfg.PerHostRateRPS > 0 && cfg.PerHostRateBurst <= 0 {
		cfg.PerHostRateBurst = 1
	}
	return cfg
}

func ConvertJSONToResolverConfig(j ResolverConfigJSON) ResolverConfig {
	cfg := ResolverConfig{
		Enabled:            j.Enabled,
		Resolvers:          j.Resolvers,
		UseSystemResolvers: j.UseSystemResolvers,
		QueryTimeout:       time.Duration(j.QueryTimeoutSeconds) * time.Second,
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultResolverTimeoutSec * time.Second
	}
	return cfg
}

func ConvertJSONToAppConfig(j AppConfigJSON) *AppConfig {
	return &AppConfig{
		Server:    j.Server,
		Scraper:   ConvertJSONToScraperConfig(j.Scraper),
		Prober:    ConvertJSONToProberConfig(j.Prober),
		Scheduler: ConvertJSONToSchedulerConfig(j.Scheduler),
		Resolver:  ConvertJSONToResolverConfig(j.Resolver),
		Logging:   j.Logging,
	}
}

func ConvertAppConfigToJSON(cfg *AppConfig) AppConfigJSON {
	return AppConfigJSON{
		Server: cfg.Server,
		Scraper: ScraperConfigJSON{
			TimeoutSeconds: int(cfg.Scraper.Timeout / time.Second),
			UserAgent:      cfg.Scraper.UserAgent,
			MaxLinks:       cfg.Scraper.MaxLinks,
			MaxURLLength:   cfg.Scraper.MaxURLLength,
			MaxTextLength:  cfg.Scraper.MaxTextLength,
		},
		Prober: ProberConfigJSON{
			ConnectTimeoutSeconds: int(cfg.Prober.ConnectTimeout / time.Second),
			ProbeTimeoutSeconds:   int(cfg.Prober.ProbeTimeout / time.Second),
			MaxRedirects:          cfg.Prober.MaxRedirects,
			UserAgent:             cfg.Prober.UserAgent,
		},
		Scheduler: SchedulerConfigJSON{
			GlobalConcurrency:  cfg.Scheduler.GlobalConcurrency,
			PerHostConcurrency: cfg.Scheduler.PerHostConcurrency,
			BatchSize:          cfg.Scheduler.BatchSize,
			InterBatchPauseMs:  int(cfg.Scheduler.InterBatchPause / time.Millisecond),
			PerHostRateRPS:     cfg.Scheduler.PerHostRateRPS,
			PerHostRateBurst:   cfg.Scheduler.PerHostRateBurst,
		},
		Resolver: ResolverConfigJSON{
			Enabled:             cfg.Resolver.Enabled,
			Resolvers:           cfg.Resolver.Resolvers,
			UseSystemResolvers:  cfg.Resolver.UseSystemResolvers,
			QueryTimeoutSeconds: int(cfg.Resolver.QueryTimeout / time.Second),
		},
		Logging: cfg.Logging,
	}
}

// DefaultAppConfigJSON mirrors the checking profile the tool has always
// shipped with: 100 global connections, 15 per host, batches of 15 with a
// 10ms pause between batches.
func DefaultAppConfigJSON() AppConfigJSON {
	return AppConfigJSON{
		Server: ServerConfig{
			Port:   "8080",
			APIKey: DefaultSystemAPIKeyPlaceholder,
		},
		Scraper: ScraperConfigJSON{
			TimeoutSeconds: DefaultScrapeTimeoutSec,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxLinks:       DefaultMaxLinks,
			MaxURLLength:   DefaultMaxURLLength,
			MaxTextLength:  DefaultMaxTextLength,
		},
		Prober: ProberConfigJSON{
			ConnectTimeoutSeconds: DefaultConnectTimeoutSec,
			ProbeTimeoutSeconds:   DefaultProbeTimeoutSec,
			MaxRedirects:          DefaultMaxRedirects,
			UserAgent:             "Mozilla/5.0 (compatible; LinkFlow/1.0; +https://linkflowhq.github.io/bot)",
		},
		Scheduler: SchedulerConfigJSON{
			GlobalConcurrency:  DefaultGlobalConcurrency,
			PerHostConcurrency: DefaultPerHostConcurrency,
			BatchSize:          DefaultBatchSize,
			InterBatchPauseMs:  DefaultInterBatchPauseMs,
		},
		Resolver: ResolverConfigJSON{
			Enabled:             false,
			Resolvers:           []string{"1.1.1.1:53", "8.8.8.8:53"},
			UseSystemResolvers:  false,
			QueryTimeoutSeconds: DefaultResolverTimeoutSec,
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

func DefaultConfig() *AppConfig { return ConvertJSONToAppConfig(DefaultAppConfigJSON()) }
