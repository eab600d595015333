package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	"van-dispatch-service/internal/adapters/broker"
	"van-dispatch-service/internal/adapters/cache"
	"van-dispatch-service/internal/adapters/repositories"
	"van-dispatch-service/internal/adapters/routing"
	"van-dispatch-service/internal/api"
	"van-dispatch-service/internal/config"
	"van-dispatch-service/internal/events"
	"van-dispatch-service/internal/platform/db"
	"van-dispatch-service/internal/platform/metrics"
	"van-dispatch-service/internal/ports"
	"van-dispatch-service/internal/services"

	"github.com/jmoiron/sqlx"
)

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := repositories.InitSchema(conn); err != nil {
		log.Fatal(err)
	}
	if cfg.SeedPath != "" {
		if err := repositories.SeedFromJSON(conn, cfg.SeedPath); err != nil {
			log.Fatal(err)
		}
	}

	m := metrics.NewCollector()

	router, closeRouter, err := buildRouteProvider(ctx, cfg, conn, m)
	if err != nil {
		log.Fatal(err)
	}
	defer closeRouter()

	hub := events.NewHub(32)
	publisher := events.Fanout{hub}
	if cfg.NATSURL != "" {
		nats, err := broker.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, m)
		if err != nil {
			log.Fatal(err)
		}
		defer nats.Close()
		publisher = append(publisher, nats)
		log.Printf("Publishing fleet events to NATS prefix=%s", cfg.NATSSubjectPrefix)
	}

	repo := repositories.NewSQLFleetRepository(conn)
	planner := services.NewPlanner(repo, router, publisher, m, cfg.FallbackSpeedMps, cfg.SuggestConcurrency)
	// A single replan is bounded so a hung backend cannot pin a van forever.
	queue := services.NewReplanQueue(planner.RebuildPlanForVan, m, 4*cfg.RoutingTimeout)
	suggester := services.NewSuggester(repo, router, m, cfg.FallbackSpeedMps, cfg.SuggestConcurrency)

	handler := api.NewRouter(api.Deps{
		DB:          conn,
		Dispatch:    services.NewDispatchService(repo, suggester, queue, publisher),
		Suggester:   suggester,
		ETAs:        services.NewETAProjector(repo, router),
		Replans:     queue,
		Hub:         hub,
		Metrics:     m,
		CORSOrigins: cfg.CORSOrigins,
	})

	// Timeouts are tuned for cold-cache planning (routing backend latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening addr=:%s db=%s route_cache=%s", cfg.Port, cfg.DBDriver, cfg.RouteCache)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Println("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := queue.Close(shutdownCtx); err != nil {
		log.Printf("replan queue shutdown: %v", err)
	}
}

// buildRouteProvider returns the routing client, wrapped in the configured
// cache. ROUTING_BASE_URL=mock selects the offline straight-line provider.
func buildRouteProvider(
	ctx context.Context,
	cfg *config.Config,
	conn *sqlx.DB,
	m *metrics.Collector,
) (ports.RouteProvider, func(), error) {
	noop := func() {}

	var base ports.RouteProvider
	if cfg.RoutingBaseURL == "mock" {
		log.Println("Using mock routing provider (straight-line estimates)")
		base = routing.NewMockRouteProvider(cfg.FallbackSpeedMps, nil)
	} else {
		osrm, err := routing.NewOSRMRouteProvider(cfg.RoutingBaseURL, cfg.RoutingProfile, cfg.RoutingTimeout, m)
		if err != nil {
			return nil, noop, fmt.Errorf("build route provider: %w", err)
		}
		base = osrm
	}

	switch cfg.RouteCache {
	case "none":
		return base, noop, nil
	case "memory":
		c := cache.NewMemoryRouteCache(cfg.RouteCacheSize, cfg.RouteCacheTTL)
		return routing.NewCachedRouteProvider(base, c, m), noop, nil
	case "redis":
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("build route provider: %w", err)
		}
		c := cache.NewRedisRouteCache(rdb, cfg.RouteCacheTTL)
		return routing.NewCachedRouteProvider(base, c, m), func() { rdb.Close() }, nil
	case "sql":
		c := cache.NewSQLRouteCache(conn, cfg.RouteCacheTTL)
		return routing.NewCachedRouteProvider(base, c, m), noop, nil
	default:
		return nil, noop, fmt.Errorf("build route provider: unknown cache %q", cfg.RouteCache)
	}
}
