package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	pipelineAPI "capital_waterfall/pkg/api/pipeline"
	"capital_waterfall/pkg/api/scenarios"
	"capital_waterfall/pkg/core/batch"
	"capital_waterfall/pkg/core/config"
	"capital_waterfall/pkg/core/logger"
	"capital_waterfall/pkg/core/metrics"
	"capital_waterfall/pkg/core/pipeline"
	"capital_waterfall/pkg/core/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./configs/config.yaml or ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	st, closeStore, err := store.Open(context.Background(), cfg.Store)
	if err != nil {
		log.WithError(err).Error("failed to open scenario store", map[string]interface{}{"driver": cfg.Store.Driver})
		os.Exit(1)
	}
	defer closeStore()

	orch := pipeline.NewOrchestrator(
		pipeline.WithLogger(log),
		pipeline.WithRecorder(metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)),
		pipeline.WithTolerance(cfg.Pipeline.Tolerance),
	)
	runner := batch.NewRunner(orch, cfg.Pipeline.BatchConcurrency)

	mux := http.NewServeMux()

	// Pipeline endpoints
	runHandler := pipelineAPI.NewHandler(orch, runner, st, log)
	mux.HandleFunc("/api/pipeline/run", runHandler.HandleRun)
	mux.HandleFunc("/api/pipeline/batch", runHandler.HandleBatch)

	// Scenario library
	scenarios.NewHandler(st, log).Register(mux)

	mux.Handle("/metrics", promhttp.Handler())

	log.Info("API server starting", map[string]interface{}{
		"addr":  cfg.HTTP.Addr,
		"store": cfg.Store.Driver,
		"routes": []string{
			"POST /api/pipeline/run",
			"POST /api/pipeline/batch",
			"GET|POST /api/scenarios",
			"GET|DELETE /api/scenarios/{name}",
			"GET /metrics",
		},
	})

	if err := http.ListenAndServe(cfg.HTTP.Addr, mux); err != nil {
		log.WithError(err).Error("server failed", nil)
		closeStore()
		os.Exit(1)
	}
}
