// Command cli runs the dashboard engines offline over JSON files, local or
// gs://.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/gcs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	configPath := flag.String("config", "", "Path to a config file (or set FINDASH_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	commander.Register(&analyzeCmd{cfg: cfg}, "")
	commander.Register(&rebalanceCmd{cfg: cfg}, "")
	commander.Register(&replaySyncCmd{cfg: cfg}, "")

	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	ctx := logger.WithContext(context.Background(), log)
	os.Exit(int(commander.Execute(ctx)))
}

// readInput reads a local file or a gs:// object. A storage client is only
// created for gs:// locations.
func readInput(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "gs://") {
		return gcs.ReadLocation(ctx, nil, location)
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return gcs.ReadLocation(ctx, client, location)
}
