package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/querystats/config"
	"github.com/jonwraymond/querystats/health"
	"github.com/jonwraymond/querystats/observe"
	"github.com/jonwraymond/querystats/store"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query stats pipeline over HTTP",
		Long: `Accepts samples on POST /record, reports aggregated entries on
GET /querystats and exposes /healthz, /readyz, /health and /metrics.
The final snapshot is written to stdout on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, snapshotOut io.Writer) error {
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return err
	}
	logger := obs.Logger()
	exporter := store.RetryExporter(&lineExporter{w: snapshotOut}, store.RetryConfig{
		OnRetry: func(err error, next time.Duration) {
			logger.Warn(ctx, "query stats flush failed, retrying",
				observe.Field{Key: "error", Value: err},
				observe.Field{Key: "retry_in", Value: next.String()})
		},
	})
	p, err := newPipeline(cfg, obs, exporter, quartz.NewReal())
	if err != nil {
		return errors.Join(err, obs.Shutdown(context.WithoutCancel(ctx)))
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: newHandler(p, logger)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.store.Run(gctx)
	})
	g.Go(func() error {
		logger.Info(gctx, "query stats server listening", observe.Field{Key: "addr", Value: cfg.Server.Addr})
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, p.recorder.Close(closeCtx), obs.Shutdown(closeCtx))
}

// newHandler routes the query stats endpoints.
func newHandler(p *pipeline, logger observe.Logger) http.Handler {
	agg := health.NewAggregator()
	agg.Register(health.NewStoreChecker(p.store, health.StoreCheckerConfig{}))
	if p.breaker != nil {
		agg.Register(health.NewBreakerChecker(p.breaker))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /record", recordHandler(p, logger))
	mux.HandleFunc("GET /querystats", queryStatsHandler(p))
	mux.Handle("GET /metrics", promhttp.Handler())
	health.RegisterHandlers(mux, agg)
	return mux
}

type recordResponse struct {
	Reason  string `json:"reason"`
	KeyHash string `json:"keyHash,omitempty"`
}

func recordHandler(p *pipeline, logger observe.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLine))
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		rec, err := parseRecord(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := rec.request()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out := p.recorder.Record(r.Context(), req, rec.execContext(), rec.sample())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(recordResponse{Reason: string(out.Reason), KeyHash: out.ID}); err != nil {
			logger.Debug(r.Context(), "write record response", observe.Field{Key: "error", Value: err})
		}
	}
}

func queryStatsHandler(p *pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for s := range p.store.Snapshot() {
			if err := writeExtJSON(w, s.Document()); err != nil {
				return
			}
		}
	}
}
