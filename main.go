package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"mediafusion/api"
	"mediafusion/config"
	"mediafusion/handlers"
	"mediafusion/internal/cache"
	"mediafusion/internal/leader"
	"mediafusion/internal/nzbvault"
	"mediafusion/services/debrid"
	"mediafusion/services/metadata"
	"mediafusion/services/scheduler"
	"mediafusion/services/scraper"
	"mediafusion/services/store"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	staticDir := flag.String("static", "static", "directory with static assets and error clips")
	flag.Parse()

	fmt.Println("MediaFusion starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("MEDIAFUSION_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation, alongside stdout.
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	c, err := cache.Open(cache.Options{
		Directory:     filepath.Join(settings.Cache.Directory, "kv"),
		InMemory:      settings.Cache.InMemory,
		SweepInterval: time.Duration(settings.Cache.SweepIntervalMinutes) * time.Minute,
	})
	if err != nil {
		log.Fatalf("failed to open cache: %v", err)
	}

	st, err := store.New(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open stream store: %v", err)
	}

	httpc := &http.Client{Timeout: settings.Server.RequestTimeout()}

	// Scraper plugins, each wrapped with cache, rate limit and breaker.
	var scrapers []scraper.Scraper
	for _, cfg := range settings.Scrapers {
		if !cfg.Enabled {
			continue
		}
		plugin, err := scraper.NewFromConfig(cfg, httpc)
		if err != nil {
			log.Printf("skipping scraper %s: %v", cfg.Name, err)
			continue
		}
		scrapers = append(scrapers, scraper.Wrap(plugin, cfg, c))
	}
	orchestrator := scraper.NewOrchestrator(scrapers...)
	ingestor := scraper.NewIngestor(st, settings.Ingest)
	enricher := metadata.NewEnricher(settings.Metadata, c, st, httpc)

	// Debrid providers; with none configured the addon serves P2P streams.
	providers := make(map[string]debrid.Provider)
	for _, cfg := range settings.Debrid.Providers {
		if !cfg.Enabled {
			continue
		}
		provider, err := debrid.NewFromConfig(cfg, httpc)
		if err != nil {
			log.Printf("skipping debrid provider %s: %v", cfg.Provider, err)
			continue
		}
		providers[provider.Name()] = provider
	}
	availability := debrid.NewAvailabilityTracker(c, settings.Debrid, httpc)
	resolver := debrid.NewResolver(availability, settings.Debrid)

	vault, err := nzbvault.New(settings.NZBVault)
	if err != nil {
		log.Fatalf("failed to open nzb vault: %v", err)
	}

	lock := leader.NewLock(c, settings.Scheduler.Heartbeat())
	sched := scheduler.NewService(cfgManager, st, ingestor, c, lock, httpc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	r := mux.NewRouter()
	api.Register(r,
		handlers.NewStremioHandler(st, orchestrator, ingestor, enricher, providers,
			settings.Server.BaseURL, settings.Server.RequestTimeout()),
		handlers.NewResolveHandler(resolver, providers, st),
		handlers.NewCacheHandler(availability, providers),
		handlers.NewAdminHandler(st, sched),
		handlers.NewIngestHandler(st, ingestor, vault),
		*staticDir,
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: settings.Server.RequestTimeout() + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (%d scraper(s), %d debrid provider(s))", addr, len(scrapers), len(providers))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, cleaning up...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("scheduler shutdown error: %v", err)
	}
	if err := st.Close(); err != nil {
		log.Printf("store close error: %v", err)
	}
	if err := c.Close(); err != nil {
		log.Printf("cache close error: %v", err)
	}
	log.Println("shutdown complete")
}
