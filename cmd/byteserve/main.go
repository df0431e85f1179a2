package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"flag"

	_ "modernc.org/sqlite"

	"github.com/ridgeline-vision/bytetrack/internal/adapter"
	"github.com/ridgeline-vision/bytetrack/internal/bytetrack"
	"github.com/ridgeline-vision/bytetrack/internal/config"
	"github.com/ridgeline-vision/bytetrack/internal/monitoring"
	"github.com/ridgeline-vision/bytetrack/internal/trackstore"
)

var (
	listen     = flag.String("listen", ":8090", "Listen address")
	configFile = flag.String("config", config.DefaultConfigPath, "Path to JSON tuning configuration file")
	dbPath     = flag.String("db-path", "", "Optional path to a sqlite DB file to persist emitted tracks (disabled if empty)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	monitoring.SetLogger(log.Printf)

	tuningCfg, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load tuning config from %s: %v", *configFile, err)
	}
	if err := tuningCfg.Validate(); err != nil {
		log.Fatalf("invalid tuning config %s: %v", *configFile, err)
	}
	log.Printf("loaded tuning configuration from %s", *configFile)

	tracker := bytetrack.NewTracker(tuningCfg.ToConfig())

	var store *trackstore.Store
	if *dbPath != "" {
		store, err = trackstore.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open track store at %s: %v", *dbPath, err)
		}
		defer store.Close()
		log.Printf("persisting track observations to %s", *dbPath)
	} else {
		log.Printf("track persistence disabled (pass -db-path to enable)")
	}

	server := adapter.NewServer(tracker, store)

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: server.ServeMux(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	wg.Wait()
	log.Printf("shutdown complete")
}
