// Command allocation-server serves the simulation HTTP API: single runs,
// four-policy comparisons, region metadata, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/allocation-simulator/core"
	"github.com/signalsfoundry/allocation-simulator/internal/api"
	"github.com/signalsfoundry/allocation-simulator/internal/logging"
	"github.com/signalsfoundry/allocation-simulator/internal/observability"
)

func main() {
	addr := flag.String("addr", ":8080", "TCP address the HTTP API listens on")
	regionsPath := flag.String("regions", "", "optional JSON file with a custom region registry")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	opts := []api.Option{api.WithCollector(collector)}
	if *regionsPath != "" {
		f, err := os.Open(*regionsPath)
		if err != nil {
			log.Error(ctx, "failed to open regions file", logging.String("path", *regionsPath), logging.Err(err))
			os.Exit(1)
		}
		regions, err := core.LoadRegions(f)
		f.Close()
		if err != nil {
			log.Error(ctx, "failed to load regions", logging.Err(err))
			os.Exit(1)
		}
		log.Info(ctx, "loaded custom region registry",
			logging.String("path", *regionsPath), logging.Int("regions", len(regions)))
		opts = append(opts, api.WithRegions(regions))
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.NewServer(log, opts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info(ctx, "starting allocation HTTP server", logging.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server exited", logging.Err(err))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down allocation server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}
