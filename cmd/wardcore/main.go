// Command wardcore runs the hospital operations daemon: the simulation
// engine tick loop, the forecast and recommendation engines, the archive
// worker, and an HTTP surface exposing state snapshots and Prometheus
// metrics.
package main

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wardcore/internal/archive"
	"wardcore/internal/blob"
	"wardcore/internal/forecast"
	"wardcore/internal/obs"
	"wardcore/internal/recommend"
	"wardcore/internal/sim"
	"wardcore/internal/store"
	"wardcore/pkg/domain"
)

const (
	envListenAddr   = "WARDCORE_LISTEN_ADDR"   // default :8080
	envDemoMode     = "WARDCORE_DEMO_MODE"     // "true" enables demo event triggers
	envTickInterval = "WARDCORE_TICK_INTERVAL" // Go duration, default 5s
	envTraceLog     = "WARDCORE_TRACE_LOG"     // "true" emits JSON spans on stderr

	shutdownGrace = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wardcore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	blobs, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	recorder, err := obs.NewPrometheusRecorder(registry)
	if err != nil {
		return fmt.Errorf("register recorder: %w", err)
	}
	gauges, err := obs.NewMetricGauges(registry)
	if err != nil {
		return fmt.Errorf("register gauges: %w", err)
	}

	tickInterval := time.Duration(0)
	if raw := os.Getenv(envTickInterval); raw != "" {
		tickInterval, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envTickInterval, err)
		}
	}
	demoMode, _ := strconv.ParseBool(os.Getenv(envDemoMode))

	engine, err := sim.NewEngine(ctx, sim.Options{
		Store:        st,
		Recorder:     recorder,
		Gauges:       gauges,
		TickInterval: tickInterval,
		DemoMode:     demoMode,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	var tracer obs.Tracer = obs.NoopTracer{}
	if ok, _ := strconv.ParseBool(os.Getenv(envTraceLog)); ok {
		tracer = obs.NewJSONTracer(os.Stderr)
	}
	forecaster := forecast.NewEngine(forecast.Options{Store: st, Recorder: recorder, Tracer: tracer})
	recommender := recommend.New(engine, st, recorder)
	archiver := archive.NewWorker(st, blobs)

	engine.Start(ctx)
	archiver.Start()

	addr := os.Getenv(envListenAddr)
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           newMux(registry, engine, forecaster, recommender, archiver),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	engine.Stop()
	if err := archiver.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop archiver: %w", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

func newMux(registry *prometheus.Registry, engine *sim.Engine, forecaster *forecast.Engine, recommender *recommend.Engine, archiver *archive.Worker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, engine.CurrentMetrics())
	})
	mux.HandleFunc("GET /api/beds", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, engine.Beds())
	})
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, engine.ActiveEvents())
	})
	mux.HandleFunc("GET /api/metrics/{metric}/history", func(w http.ResponseWriter, r *http.Request) {
		metric := domain.MetricType(r.PathValue("metric"))
		minutes := 60
		if raw := r.URL.Query().Get("minutes"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid minutes %q", raw))
				return
			}
			minutes = parsed
		}
		points, err := engine.MetricHistory(r.Context(), metric, minutes)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, points)
	})
	mux.HandleFunc("POST /api/predictions/generate", func(w http.ResponseWriter, r *http.Request) {
		predictions, err := forecaster.GeneratePredictions(r.Context(), nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, predictions)
	})
	mux.HandleFunc("POST /api/recommendations/generate", func(w http.ResponseWriter, r *http.Request) {
		recommendations, err := recommender.Generate(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, recommendations)
	})
	mux.HandleFunc("POST /api/archives", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Metric  string `json:"metric"`
			Minutes int    `json:"minutes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		record, err := archiver.Enqueue(r.Context(), archive.Request{
			Metric:      domain.MetricType(req.Metric),
			Window:      time.Duration(req.Minutes) * time.Minute,
			RequestedBy: "api",
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusAccepted, record)
	})
	mux.HandleFunc("GET /api/archives/{id}", func(w http.ResponseWriter, r *http.Request) {
		record, ok := archiver.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("archive job %s not found", r.PathValue("id")))
			return
		}
		writeJSON(w, http.StatusOK, record)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
