// Command pipewise is the CLI entry point for the deal learning engine.
//
// Verbs:
//
//	pipewise analyze <deal.json>   run a full analysis for the deal snapshot in the file
//	pipewise sync <deal.json>      upsert the deal state without analyzing
//	pipewise history <external-id> print a deal's interaction history
//	pipewise patterns [context] [min-confidence]
//	                               print learned patterns, optionally for one
//	                               context and above a confidence floor
//	pipewise scores <external-id>  print a deal's framework score history
//	pipewise alerts <external-id>  print a deal's unacknowledged alerts
//	pipewise stalled               print deals with no recent activity
//	pipewise stats                 print memory statistics
//	pipewise sweep                 run one retention sweep and exit
//	pipewise serve                 run the background retention sweep until interrupted
//
// All output is JSON on stdout; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pipewise-ai/pipewise"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("PIPEWISE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: pipewise <analyze|sync|history|patterns|scores|alerts|stalled|stats|sweep|serve> [args]")
	}

	eng, err := pipewise.New(
		pipewise.WithLogger(logger),
		pipewise.WithVersion(version),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	switch verb := args[0]; verb {
	case "analyze":
		if len(args) < 2 {
			return fmt.Errorf("usage: pipewise analyze <deal.json>")
		}
		snap, err := readSnapshot(args[1])
		if err != nil {
			return err
		}
		result, err := eng.AnalyzeDeal(ctx, snap)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "sync":
		if len(args) < 2 {
			return fmt.Errorf("usage: pipewise sync <deal.json>")
		}
		snap, err := readSnapshot(args[1])
		if err != nil {
			return err
		}
		deal, err := eng.SyncDeal(ctx, snap)
		if err != nil {
			return err
		}
		return printJSON(deal)

	case "history":
		if len(args) < 2 {
			return fmt.Errorf("usage: pipewise history <external-id>")
		}
		recs, err := eng.GetHistory(ctx, args[1], 50)
		if err != nil {
			return err
		}
		return printJSON(recs)

	case "patterns":
		contextLabel := ""
		if len(args) > 1 {
			contextLabel = args[1]
		}
		minConfidence := -1.0 // engine default
		if len(args) > 2 {
			minConfidence, err = strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("parse min-confidence: %w", err)
			}
		}
		patterns, err := eng.GetPatterns(ctx, contextLabel, minConfidence, 50)
		if err != nil {
			return err
		}
		return printJSON(patterns)

	case "scores":
		if len(args) < 2 {
			return fmt.Errorf("usage: pipewise scores <external-id>")
		}
		scores, err := eng.GetScores(ctx, args[1], 50)
		if err != nil {
			return err
		}
		return printJSON(scores)

	case "alerts":
		if len(args) < 2 {
			return fmt.Errorf("usage: pipewise alerts <external-id>")
		}
		alerts, err := eng.GetAlerts(ctx, args[1], true, 50)
		if err != nil {
			return err
		}
		return printJSON(alerts)

	case "stalled":
		deals, err := eng.StalledDeals(ctx, 50)
		if err != nil {
			return err
		}
		return printJSON(deals)

	case "stats":
		stats, err := eng.MemoryStats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "sweep":
		global, perDeal := eng.Sweep(ctx)
		return printJSON(map[string]int64{
			"global_evicted":   global,
			"per_deal_evicted": perDeal,
		})

	case "serve":
		return eng.Start(ctx)

	default:
		return fmt.Errorf("unknown verb %q", verb)
	}
}

func readSnapshot(path string) (pipewise.DealSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipewise.DealSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap pipewise.DealSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return pipewise.DealSnapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
