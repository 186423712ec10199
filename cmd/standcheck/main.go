// Command standcheck loads the configured stands, runs a single cycle against
// the aircraft feed and prints the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/yegors/stand-status/internal/app"
	"github.com/yegors/stand-status/internal/config"
	"github.com/yegors/stand-status/internal/stands"
	"github.com/yegors/stand-status/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	all := flag.Bool("all", false, "Print every stand instead of only the occupied ones")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Keep stdout for the result
	cfg.Logging.File = ""
	cfg.Logging.Level = "warn"
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, err := check(ctx, cfg, log)
	if err != nil {
		log.Error("Stand check failed", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}

	list := status.OccupiedStands()
	if *all {
		list = status.Stands()
	}

	if *asJSON {
		err = writeJSON(os.Stdout, cfg.Station.AirportCode, status.LastCycle(), list)
	} else {
		err = writeTable(os.Stdout, status.LastCycle(), list)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func check(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stands.Status, error) {
	storage, err := app.OpenStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	if storage != nil {
		defer storage.Close()
	}

	source, err := app.NewStandSource(cfg, storage, log)
	if err != nil {
		return nil, err
	}
	aircraftFeed, err := app.NewFeed(cfg, log)
	if err != nil {
		return nil, err
	}
	status, err := app.NewStatus(cfg, log)
	if err != nil {
		return nil, err
	}

	data, err := source.Stands(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stands from %s: %w", source.Describe(), err)
	}
	if err := status.Load(data); err != nil {
		return nil, err
	}
	if err := status.ParseData(ctx, aircraftFeed); err != nil {
		return nil, err
	}
	return status, nil
}

func writeJSON(w io.Writer, airport string, cycle stands.CycleInfo, list []stands.Stand) error {
	if list == nil {
		list = []stands.Stand{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"airport": airport,
		"cycle":   cycle,
		"stands":  list,
	})
}

func writeTable(w io.Writer, cycle stands.CycleInfo, list []stands.Stand) error {
	if !cycle.FeedAvailable {
		fmt.Fprintf(w, "feed unavailable: %s\n", cycle.FeedError)
	}
	fmt.Fprintf(w, "%d feed records, %d candidates, %d matched\n\n", cycle.FeedRecords, cycle.Candidates, cycle.Matched)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAND\tCALLSIGN\tMATCHED\tLATITUDE\tLONGITUDE")
	for _, st := range list {
		callsign, matched := "-", "-"
		if a := st.Occupier(); a != nil {
			callsign = a.Callsign
			matched = a.StandKey()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%.6f\n", st.Name(), callsign, matched, st.Latitude(), st.Longitude())
	}
	return tw.Flush()
}
