package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"capital_waterfall/pkg/core/config"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/logger"
	"capital_waterfall/pkg/core/pipeline"
	"capital_waterfall/pkg/core/report"
	"capital_waterfall/pkg/core/store"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Scenario file (.yaml, .yml, .hjson or .json)")
	configPath := flag.String("config", "", "Path to config file")
	save := flag.Bool("save", false, "Save the scenario to the configured store after a successful run")
	summary := flag.Bool("summary", true, "Print a partner summary to stderr")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -scenario is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	scenario, err := config.LoadScenario(*scenarioPath)
	if err != nil {
		log.WithError(err).Error("failed to load scenario", map[string]interface{}{"path": *scenarioPath})
		os.Exit(1)
	}

	orch := pipeline.NewOrchestrator(
		pipeline.WithLogger(log),
		pipeline.WithTolerance(cfg.Pipeline.Tolerance),
	)
	res, err := orch.Run(scenario.ToInput())
	if err != nil {
		var f *failure.Failure
		if errors.As(err, &f) {
			printJSON(f)
			os.Exit(2)
		}
		log.WithError(err).Error("pipeline failed", nil)
		os.Exit(1)
	}

	rep := report.Build(res)
	printJSON(rep)
	if *summary {
		printSummary(scenario.Name, rep)
	}

	if *save {
		ctx := context.Background()
		st, closeStore, err := store.Open(ctx, cfg.Store)
		if err != nil {
			log.WithError(err).Error("failed to open scenario store", nil)
			os.Exit(1)
		}
		defer closeStore()
		rec, err := st.Save(ctx, *scenario)
		if err != nil {
			log.WithError(err).Error("failed to save scenario", map[string]interface{}{"name": scenario.Name})
			closeStore()
			os.Exit(1)
		}
		log.Info("scenario saved", map[string]interface{}{"name": rec.Name, "id": rec.ID.String()})
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}

func printSummary(name string, rep *report.Report) {
	w := os.Stderr
	fmt.Fprintln(w, strings.Repeat("=", 64))
	fmt.Fprintf(w, " %s  (horizon %d, equity call %s)\n", name, rep.Horizon, rep.EquityCall.StringFixed(2))
	fmt.Fprintln(w, strings.Repeat("=", 64))
	fmt.Fprintf(w, "%-12s | %14s | %14s | %8s | %6s\n", "Partner", "Contributed", "Distributed", "IRR", "MOIC")
	fmt.Fprintln(w, strings.Repeat("-", 64))
	for _, p := range rep.Partners {
		irr, moic := "n/a", "n/a"
		if p.IRR != nil {
			irr = p.IRR.Shift(2).StringFixed(2) + "%"
		}
		if p.MOIC != nil {
			moic = p.MOIC.StringFixed(2) + "x"
		}
		fmt.Fprintf(w, "%-12s | %14s | %14s | %8s | %6s\n",
			p.PartnerID, p.Contributed.StringFixed(2), p.Distributed.StringFixed(2), irr, moic)
	}
	for _, wn := range rep.Warnings {
		fmt.Fprintf(w, "[WARN] %s year %d %s: %s\n", wn.Code, wn.Year, wn.Subject, wn.Message)
	}
}
