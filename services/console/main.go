package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashendes/commerce-console/internal/catalog"
	"github.com/ashendes/commerce-console/internal/checkout"
	"github.com/ashendes/commerce-console/internal/config"
	"github.com/ashendes/commerce-console/internal/dashboard"
	"github.com/ashendes/commerce-console/internal/health"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/ashendes/commerce-console/internal/registry"
	"github.com/ashendes/commerce-console/internal/scheduler"
	"github.com/ashendes/commerce-console/internal/sink"
	"github.com/ashendes/commerce-console/internal/state"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if level < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	reg, err := registry.FromConfig(cfg)
	if err != nil {
		log.Fatal("Invalid endpoint registry: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Display sinks
	sinks := []sink.Sink{sink.NewLogSink(nil)}

	if cfg.RedisAddr != "" {
		rdb := sink.NewRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithField("addr", cfg.RedisAddr).Warn("Redis unreachable, sink will retry per record: ", err)
		}
		sinks = append(sinks, sink.NewRedisSink(rdb, cfg.RedisTTL))
	}

	if len(cfg.KafkaBrokers) > 0 {
		ks := sink.NewKafkaSink(sink.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), dashboard.ServiceName)
		defer ks.Close()
		sinks = append(sinks, ks)
	}

	coord := state.New(sinks...)

	// Engines
	aggregator := health.NewAggregator(health.NewHTTPProber(cfg.ProbeTimeout), health.Options{
		Timeout:     cfg.ProbeTimeout,
		Concurrency: cfg.ProbeConcurrency,
	})
	loader := catalog.NewLoader(reg.MustLookup(models.EndpointInventory), catalog.Options{
		Timeout: cfg.CatalogTimeout,
	})
	sched := scheduler.New(aggregator, reg.Endpoints(), loader, coord, scheduler.Options{
		Interval:      cfg.RefreshInterval,
		FallbackDelay: cfg.FallbackDelay,
	})
	submitter := checkout.NewSubmitter(reg.MustLookup(models.EndpointCheckout), checkout.Options{
		Timeout:     cfg.CheckoutTimeout,
		ReloadDelay: cfg.ReloadDelay,
		Concurrency: cfg.CheckoutConcurrency,
		Publisher:   coord,
		Reload: func(ctx context.Context) {
			_ = sched.RefreshCatalog(ctx)
		},
	})

	// HTTP surface
	router := dashboard.NewRouter()
	h := &dashboard.Handler{
		State:     coord,
		Refresher: sched,
		Submitter: submitter,
		Inspector: loader,
		Breakers:  []dashboard.Breaker{loader, submitter},
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.WithFields(log.Fields{
			"addr":      cfg.HTTPAddr,
			"endpoints": reg.Len(),
		}).Info("Commerce console starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	go sched.Start(ctx)

	// Wait for signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown: ", err)
	}

	sched.Stop()
	submitter.Close()
	cancel()
}
