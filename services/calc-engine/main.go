package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"capital_waterfall/pkg/core/capital"
	"capital_waterfall/pkg/core/config"

	"github.com/hjson/hjson-go/v4"
)

// calc-engine amortizes a single tranche and prints the schedule.
//
//	calc-engine -mode annual -horizon 5 -data '{"id": "a", "amount": 1000000, "rate": 0.08, "term_years": 5, "type": "mortgage"}'
func main() {
	mode := flag.String("mode", "annual", "Mode: annual or monthly")
	horizon := flag.Int("horizon", 0, "Projection horizon in years (default: start_year + term_years)")
	dataStr := flag.String("data", "", "Tranche payload (JSON or HJSON)")
	flag.Parse()

	if *dataStr == "" {
		fmt.Println("Error: No data provided")
		os.Exit(1)
	}

	var spec config.TrancheSpec
	if err := hjson.Unmarshal([]byte(*dataStr), &spec); err != nil {
		fmt.Printf("Error unmarshaling data: %v\n", err)
		os.Exit(1)
	}
	tr := spec.Tranche()
	h := *horizon
	if h == 0 {
		h = tr.StartYear + tr.TermYears
	}

	var (
		out interface{}
		err error
	)
	switch *mode {
	case "annual":
		out, err = capital.AmortizeTranche(tr, h)
	case "monthly":
		out, err = capital.AmortizeTrancheMonthly(tr, h)
	default:
		fmt.Printf("Unknown mode: %s\n", *mode)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
