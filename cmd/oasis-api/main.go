// Command oasis-api is the process entrypoint: load config, open the
// database and object store, wire every package's Store into the HTTP
// router, and serve until a shutdown signal arrives. The startup
// sequencing and graceful-shutdown shape follow the teacher's
// lake/api/main.go almost verbatim.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/porkytheblack/oasis/internal/api"
	"github.com/porkytheblack/oasis/internal/apps"
	"github.com/porkytheblack/oasis/internal/artifacts"
	"github.com/porkytheblack/oasis/internal/config"
	"github.com/porkytheblack/oasis/internal/crash"
	"github.com/porkytheblack/oasis/internal/credentials"
	"github.com/porkytheblack/oasis/internal/dbx"
	"github.com/porkytheblack/oasis/internal/logging"
	"github.com/porkytheblack/oasis/internal/metrics"
	"github.com/porkytheblack/oasis/internal/objectstore"
	"github.com/porkytheblack/oasis/internal/releases"
	"github.com/porkytheblack/oasis/internal/updater"
)

// Set by LDFLAGS.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	metricsAddrFlag := flag.String("metrics-addr", "", "Address to listen on for prometheus metrics (overrides OASIS_METRICS_ADDR)")
	flag.Parse()

	log.Printf("Starting oasis-api version=%s commit=%s date=%s", version, commit, date)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := dbx.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatalw("failed to open database", "error", err)
	}
	defer db.Close()

	store, err := objectstore.New(ctx, objectstore.Config{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		logger.Fatalw("failed to build object store", "error", err)
	}

	deps := api.Deps{
		Log:         logger,
		Apps:        apps.New(db),
		Releases:    releases.New(db),
		Artifacts:   artifacts.New(db, store, logger),
		Installers:  artifacts.NewInstallerStore(db, store, logger),
		Credentials: credentials.New(db, logger),
		Crash:       crash.New(db, logger),
		Resolver:    updater.New(db, logger),
		Store:       store,
	}

	metricsAddr := cfg.MetricsAddr
	if *metricsAddrFlag != "" {
		metricsAddr = *metricsAddrFlag
	}

	var metricsServer *http.Server
	if metricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		listener, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			logger.Warnw("failed to start metrics listener", "error", err)
		} else {
			logger.Infow("metrics server listening", "addr", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer = &http.Server{Handler: mux}
			go func() {
				if err := metricsServer.Serve(listener); err != nil && err != http.ErrServerClosed {
					logger.Errorw("metrics server error", "error", err)
				}
			}()
		}
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infow("api server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server error", "error", err)
		}
	}()

	sig := <-shutdown
	logger.Infow("received shutdown signal, stopping gracefully", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("graceful shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("metrics server shutdown error", "error", err)
		}
	}
}
