package config

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// SourceKind classifies the upstream dialect a source speaks. It is resolved
// once when the source is loaded; call sites must never re-derive it from the
// URL or flags.
type SourceKind int

const (
	KindClassic SourceKind = iota // TVBox-style query-string JSON API
	KindXML                       // legacy XML feed, same query shape as classic
	KindSpider                    // custom scraping backend with its own REST dialect
)

// String returns the kind as a stable lowercase label.
func (k SourceKind) String() string {
	switch k {
	case KindXML:
		return "xml"
	case KindSpider:
		return "spider"
	default:
		return "classic"
	}
}

// Config holds all application configuration values for the aggregation service.
// It includes network defaults, proxy routing, caching, and the configured
// upstream video sources.
type Config struct {
	ListenPort     int            `json:"listenPort"`     // HTTP listen port
	BaseURL        string         `json:"baseURL"`        // Base URL for the application (used for links in responses)
	WorkerThreads  int            `json:"workerThreads"`  // Concurrency cap for aggregated searches
	CacheEnabled   bool           `json:"cacheEnabled"`   // Whether response caching is enabled
	CacheDuration  time.Duration  `json:"cacheDuration"`  // Duration before cached responses expire
	DefaultTimeout time.Duration  `json:"defaultTimeout"` // Fallback per-request timeout for classic/XML sources
	DefaultRetry   int            `json:"defaultRetry"`   // Fallback retry count when a source does not set one
	ProxyURL       string         `json:"proxyUrl"`       // Global CORS forwarder base, overridable per source
	LocalProxyURL  string         `json:"localProxyUrl"`  // Last-resort local forwarder base
	DatabasePath   string         `json:"databasePath"`   // SQLite registry path
	Debug          bool           `json:"debug"`          // Enable debug logging
	ObfuscateUrls  bool           `json:"obfuscateUrls"`  // Obfuscate upstream URLs in logs
	SourceRate     int            `json:"sourceRate"`     // Outbound requests per second allowed per source
	TVBoxURL       string         `json:"tvboxUrl"`       // Optional TVBox subscription imported into the registry at startup
	SpiderBackend  string         `json:"spiderBackend"`  // Backend base serving imported TVBox script/jar sites
	Sources        []SourceConfig `json:"sources"`        // Configured upstream video sources
}

// SourceConfig represents one configured upstream video catalog endpoint.
// The core treats it as read-only; editing happens through configuration
// management outside this process.
type SourceConfig struct {
	ID        string        `json:"id"`        // Unique, stable identifier within a registry snapshot
	Name      string        `json:"name"`      // Descriptive name for the source
	URL       string        `json:"url"`       // Base/search endpoint
	DetailURL string        `json:"detailUrl"` // Optional detail endpoint override
	Timeout   time.Duration `json:"timeout"`   // Per-request timeout
	Retry     int           `json:"retry"`     // Additional attempts after a failed request
	Enabled   bool          `json:"enabled"`   // Whether the source participates in aggregation
	ProxyURL  string        `json:"proxyUrl"`  // Per-source forwarder override
	SpiderKey string        `json:"spiderKey"` // Backend spider key, set for custom-backend sources
	IsSpider  bool          `json:"isSpider"`  // Explicit spider flag
	Kind      SourceKind    `json:"-"`         // Resolved dialect, set during load
}

// ConfigFile represents the JSON file structure for unmarshaling configuration.
// String duration fields (e.g. "30s") are parsed into time.Duration values.
type ConfigFile struct {
	ListenPort     int                `json:"listenPort"`
	BaseURL        string             `json:"baseURL"`
	WorkerThreads  int                `json:"workerThreads"`
	CacheEnabled   bool               `json:"cacheEnabled"`
	CacheDuration  string             `json:"cacheDuration"`  // Duration as string (e.g. "10m")
	DefaultTimeout string             `json:"defaultTimeout"` // Duration as string (e.g. "10s")
	DefaultRetry   int                `json:"defaultRetry"`
	ProxyURL       string             `json:"proxyUrl"`
	LocalProxyURL  string             `json:"localProxyUrl"`
	DatabasePath   string             `json:"databasePath"`
	Debug          bool               `json:"debug"`
	ObfuscateUrls  bool               `json:"obfuscateUrls"`
	SourceRate     int                `json:"sourceRate"`
	TVBoxURL       string             `json:"tvboxUrl"`
	SpiderBackend  string             `json:"spiderBackend"`
	Sources        []SourceConfigFile `json:"sources"`
}

// SourceConfigFile represents a source entry in JSON format.
type SourceConfigFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	DetailURL string `json:"detailUrl"`
	Timeout   string `json:"timeout"` // Duration string (e.g. "30s")
	Retry     int    `json:"retry"`
	Enabled   *bool  `json:"enabled"` // nil means enabled
	ProxyURL  string `json:"proxyUrl"`
	SpiderKey string `json:"spiderKey"`
	IsSpider  bool   `json:"isSpider"`
}

const (
	defaultClassicTimeout = 10 * time.Second
	defaultSpiderTimeout  = 30 * time.Second
)

var (
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Mutex for safe concurrent access to configCache
	configPath  = "/settings/config.json"
)

// LoadConfig loads the configuration from file or returns the cached instance.
// Falls back to defaults when the file is missing or invalid, then validates
// the result so every downstream consumer sees safe values.
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	if configCache != nil {
		return configCache
	}

	path := configPath
	if env := os.Getenv("VODMUX_CONFIG"); env != "" {
		path = env
	}

	config, err := LoadFromFile(path)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", path, err)
		log.Printf("Falling back to default configuration...")
		config = defaultConfig()
	}

	config.validate()
	configCache = config
	return configCache
}

// ClearConfigCache drops the cached singleton so the next LoadConfig call
// re-reads the file. Used by graceful restart and tests.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// LoadFromFile reads and parses a configuration file, converting duration
// strings and resolving each source's dialect.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{
		ListenPort:    file.ListenPort,
		BaseURL:       file.BaseURL,
		WorkerThreads: file.WorkerThreads,
		CacheEnabled:  file.CacheEnabled,
		DefaultRetry:  file.DefaultRetry,
		ProxyURL:      file.ProxyURL,
		LocalProxyURL: file.LocalProxyURL,
		DatabasePath:  file.DatabasePath,
		Debug:         file.Debug,
		ObfuscateUrls: file.ObfuscateUrls,
		SourceRate:    file.SourceRate,
		TVBoxURL:      file.TVBoxURL,
		SpiderBackend: file.SpiderBackend,
	}
	cfg.CacheDuration = parseDuration(file.CacheDuration, 10*time.Minute)
	cfg.DefaultTimeout = parseDuration(file.DefaultTimeout, defaultClassicTimeout)

	for _, sf := range file.Sources {
		src := SourceConfig{
			ID:        sf.ID,
			Name:      sf.Name,
			URL:       sf.URL,
			DetailURL: sf.DetailURL,
			Retry:     sf.Retry,
			Enabled:   sf.Enabled == nil || *sf.Enabled,
			ProxyURL:  sf.ProxyURL,
			SpiderKey: sf.SpiderKey,
			IsSpider:  sf.IsSpider,
		}
		src.Timeout = parseDuration(sf.Timeout, 0)
		ResolveSource(&src, cfg)
		cfg.Sources = append(cfg.Sources, src)
	}

	return cfg, nil
}

// ResolveSource fills in the source's dialect and per-source defaults. The
// spider heuristic matches what the original backends advertise: an explicit
// flag, a spider key, or a "/api/spider" base path.
func ResolveSource(src *SourceConfig, cfg *Config) {
	switch {
	case src.IsSpider || src.SpiderKey != "" || strings.Contains(src.URL, "/api/spider"):
		src.Kind = KindSpider
		src.IsSpider = true
	case strings.Contains(strings.ToLower(src.URL), "/xml"):
		src.Kind = KindXML
	default:
		src.Kind = KindClassic
	}

	if src.Timeout <= 0 {
		if src.Kind == KindSpider {
			src.Timeout = defaultSpiderTimeout
		} else if cfg != nil && cfg.DefaultTimeout > 0 {
			src.Timeout = cfg.DefaultTimeout
		} else {
			src.Timeout = defaultClassicTimeout
		}
	}
	if src.Retry < 0 {
		src.Retry = 0
	}
	if src.Retry == 0 && cfg != nil && cfg.DefaultRetry > 0 {
		src.Retry = cfg.DefaultRetry
	}
}

// EnabledSources returns the enabled subset of the registry snapshot,
// preserving configured order.
func (c *Config) EnabledSources() []*SourceConfig {
	out := make([]*SourceConfig, 0, len(c.Sources))
	for i := range c.Sources {
		if c.Sources[i].Enabled {
			out = append(out, &c.Sources[i])
		}
	}
	return out
}

// SourceByID looks up a source by its registry identifier.
func (c *Config) SourceByID(id string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

// validate enforces safe defaults on the loaded configuration.
func (c *Config) validate() {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		c.ListenPort = 8080
	}
	if c.WorkerThreads <= 0 {
		c.WorkerThreads = 3
	}
	if c.CacheDuration <= 0 {
		c.CacheDuration = 10 * time.Minute
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultClassicTimeout
	}
	if c.DefaultRetry < 0 {
		c.DefaultRetry = 0
	}
	if c.SourceRate <= 0 {
		c.SourceRate = 5
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "/settings/vodmux.db"
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			log.Printf("Invalid global proxy URL %q, ignoring", c.ProxyURL)
			c.ProxyURL = ""
		}
	}
	for i := range c.Sources {
		if c.Sources[i].Timeout <= 0 {
			ResolveSource(&c.Sources[i], c)
		}
	}
}

// parseDuration parses a duration string with a fallback default.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// defaultConfig returns the built-in configuration used when no file exists.
func defaultConfig() *Config {
	return &Config{
		ListenPort:     8080,
		WorkerThreads:  3,
		CacheEnabled:   true,
		CacheDuration:  10 * time.Minute,
		DefaultTimeout: defaultClassicTimeout,
		DefaultRetry:   1,
		SourceRate:     5,
		DatabasePath:   "/settings/vodmux.db",
	}
}
