package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/galemind/dispatch-core/adminhttp"
	"github.com/galemind/dispatch-core/discoveryservice"
	"github.com/galemind/dispatch-core/dispatchservice"
	"github.com/galemind/dispatch-core/internal/config"
	"github.com/galemind/dispatch-core/internal/metrics"
	"github.com/galemind/dispatch-core/internal/modelid"
	"github.com/galemind/dispatch-core/internal/runtime"
	"github.com/galemind/dispatch-core/internal/runtime/stub"
)

var configFile = flag.String("config", ".env", "path to configuration file")

func main() {
	flag.Parse()

	if err := godotenv.Load(*configFile); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	cfg := config.New()
	cfg.ParseFlags()

	log.Printf("starting dispatch engine admin surface on %s:%s", cfg.Host, cfg.Port)

	m := metrics.New()

	dispatcher := dispatchservice.New(
		dispatchservice.WithDefaultBuffer(cfg.DefaultBufferCapacity, cfg.DefaultThresholdPct),
		dispatchservice.WithEventChannelSize(cfg.EventChannelSize),
		dispatchservice.WithMetrics(m),
	)

	// Every discovered model that has no dedicated runtime plug-in wired
	// up falls back to the echo stub; a real deployment replaces this
	// factory with one that loads the concrete model runtime out of
	// process (out of scope here, see spec.md §1).
	disc := discoveryservice.New(dispatcher, func(id modelid.ModelID) runtime.Runtime {
		return stub.New(id)
	})

	runStartupDiscovery(cfg, disc)

	router := chi.NewRouter()
	adminhttp.NewHandler(dispatcher, disc, m).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("admin HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down dispatch engine...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("admin HTTP server shutdown error: %v", err)
	}
	if err := dispatcher.Shutdown(ctx); err != nil {
		log.Printf("dispatcher shutdown error: %v", err)
	}

	log.Println("dispatch engine shutdown complete")
}

// runStartupDiscovery registers models from whatever static sources the
// configuration names: a local models directory and/or a remote registry.
func runStartupDiscovery(cfg *config.Config, disc *discoveryservice.DiscoveryService) {
	var sources []discoveryservice.ModelSource
	if cfg.ModelsDir != "" {
		sources = append(sources, discoveryservice.NewPathSource(cfg.ModelsDir))
	}
	if cfg.RegistryBaseURL != "" {
		sources = append(sources, discoveryservice.NewRegistrySource(cfg.RegistryBaseURL, cfg.RegistryToken, ""))
	}
	if len(sources) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RegistryTimeout)
	defer cancel()

	ids, err := disc.Discover(ctx, sources)
	if err != nil {
		log.Printf("startup discovery error: %v", err)
		return
	}
	log.Printf("startup discovery registered %d model(s)", len(ids))
}
