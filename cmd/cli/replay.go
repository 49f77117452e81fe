package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/syncstate"
	"github.com/google/subcommands"
)

type replaySyncCmd struct {
	cfg config.Config

	events  string
	verbose bool
}

func (*replaySyncCmd) Name() string     { return "replay-sync" }
func (*replaySyncCmd) Synopsis() string { return "replay recorded sync events and print the final states" }
func (*replaySyncCmd) Usage() string {
	return `cli replay-sync -events <file|gs://uri> [-v]

  Feeds a JSON array of sync events through the state machine in order and
  prints the resulting per-resource states. Ignored events are counted by
  reason.
`
}

func (c *replaySyncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.events, "events", "", "JSON array of sync events")
	f.BoolVar(&c.verbose, "v", false, "Print the outcome of every event")
}

func (c *replaySyncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.events == "" {
		fmt.Fprintln(os.Stderr, "Error: -events is required")
		return subcommands.ExitUsageError
	}
	if err := c.run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *replaySyncCmd) run(ctx context.Context, w io.Writer) error {
	data, err := readInput(ctx, c.events)
	if err != nil {
		return err
	}
	var events []syncstate.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}

	tracker := syncstate.NewTracker(c.cfg.Sync.Buffer)
	if err := tracker.Start(ctx); err != nil {
		return err
	}
	defer tracker.Stop(context.Background())

	applied := 0
	ignored := make(map[string]int)
	for i, ev := range events {
		st, outcome, err := tracker.Apply(ctx, ev)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if outcome.Applied {
			applied++
		} else {
			ignored[outcome.Reason]++
		}
		if c.verbose {
			verdict := "applied"
			if !outcome.Applied {
				verdict = "ignored: " + outcome.Reason
			}
			fmt.Fprintf(w, "#%d %s %s -> %s (%s)\n", i, ev.ResourceID, ev.Status, st.Status, verdict)
		}
	}

	fmt.Fprintf(w, "Events: %d applied, %d ignored\n", applied, len(events)-applied)
	for _, reason := range slices.Sorted(maps.Keys(ignored)) {
		fmt.Fprintf(w, "  %s: %d\n", reason, ignored[reason])
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOURCE\tKIND\tSTATUS\tPROGRESS\tSESSION")
	for _, st := range tracker.SnapshotAll() {
		progress := "-"
		if st.Progress != nil {
			progress = fmt.Sprintf("%d%%", *st.Progress)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", st.ResourceID, st.Kind, st.Status, progress, st.SessionID)
	}
	return tw.Flush()
}
