package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vodmux/work/cache"
	"vodmux/work/client"
	"vodmux/work/config"
	"vodmux/work/database"
	"vodmux/work/handlers"
	"vodmux/work/logger"
	"vodmux/work/middleware"
	"vodmux/work/parser"
	"vodmux/work/service"
)

var (
	Version = "v0.1.0" // default version
)

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()

	// set up logging
	if cfg.Debug {
		logger.SetLogLevel("debug")
	}

	// initialize the HTTP client
	httpClient := client.NewHeaderSettingClient()

	// open the source registry and reconcile it with the config file
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open source registry: %v", err)
	}
	defer db.Close()

	if err := db.SeedSources(cfg.Sources); err != nil {
		log.Fatalf("Failed to seed source registry: %v", err)
	}

	// a configured TVBox subscription replaces the registry wholesale
	if cfg.TVBoxURL != "" {
		if err := importTVBox(cfg, httpClient, db); err != nil {
			logger.Warn("{main} TVBox import from %s failed: %v", cfg.TVBoxURL, err)
		}
	}

	sources, err := db.LoadSources(cfg)
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}
	cfg.Sources = sources

	// initialize cache and the aggregation service
	cacheInstance := cache.NewCache(cfg.CacheEnabled, cfg.CacheDuration)
	svc := service.New(cfg, httpClient, cacheInstance)

	// setup HTTP routes
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.Gzip)
	api.HandleFunc("/search", handlers.HandleSearch(svc)).Methods("GET")
	api.HandleFunc("/search/aggregate", handlers.HandleAggregateSearch(svc)).Methods("GET")
	api.HandleFunc("/detail", handlers.HandleDetail(svc)).Methods("GET")
	api.HandleFunc("/play", handlers.HandlePlay(svc)).Methods("GET")
	api.HandleFunc("/categories", handlers.HandleCategories(svc)).Methods("GET")
	api.HandleFunc("/category", handlers.HandleCategory(svc)).Methods("GET")
	api.HandleFunc("/sources", handlers.HandleSources(cfg)).Methods("GET")

	// playlist proxy stays uncompressed, players fetch it directly
	router.HandleFunc("/playlist", handlers.HandlePlaylist(svc)).Methods("GET")

	// metrics handler
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.ListenPort)

	// show info
	logger.Info("Starting vodmux %s", Version)
	logger.Info("Server configuration:")
	logger.Info("  - Base URL: %s", cfg.BaseURL)
	logger.Info("  - Worker Threads: %d", cfg.WorkerThreads)
	logger.Info("  - Sources: %d (%d enabled)", len(cfg.Sources), len(cfg.EnabledSources()))
	logger.Info("  - Cache Enabled: %v", cfg.CacheEnabled)
	logger.Info("  - Cache Duration: %s", cfg.CacheDuration)
	logger.Info("  - Debug Enabled: %v", cfg.Debug)
	logger.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// importTVBox fetches a TVBox subscription, converts its sites to source
// records, and replaces the registry with them.
func importTVBox(cfg *config.Config, httpClient *client.HeaderSettingClient, db *database.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httpClient.FetchWithTimeout(ctx, cfg.TVBoxURL, nil, cfg.DefaultTimeout, cfg.DefaultRetry)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("subscription returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if !parser.IsTVBoxConfig(raw) {
		return fmt.Errorf("subscription is not a TVBox config")
	}

	sources, err := parser.ConvertTVBox(raw, cfg.SpiderBackend)
	if err != nil {
		return err
	}
	logger.Info("{main} Imported %d sources from TVBox subscription", len(sources))
	return db.ReplaceSources(sources)
}
