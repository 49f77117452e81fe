package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/envelope"
	envmem "github.com/dvloznov/finance-dashboard/internal/envelope/inmemory"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type rebalanceCmd struct {
	cfg config.Config

	envelopes string
	group     string
	total     string
	exactSum  bool
	dryRun    bool
	out       string
	currency  string
}

func (*rebalanceCmd) Name() string     { return "rebalance" }
func (*rebalanceCmd) Synopsis() string { return "rebalance an envelope group to a new total" }
func (*rebalanceCmd) Usage() string {
	return `cli rebalance -envelopes <file|gs://uri> -group <id> -total <amount> [-exact] [-dry-run] [-out <file>]

  Scales every envelope of the group proportionally so the allocations add
  up to the requested total, rounded to cents.
`
}

func (c *rebalanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.envelopes, "envelopes", c.cfg.Data.EnvelopesFile, "JSON array of envelopes")
	f.StringVar(&c.group, "group", "", "Envelope group to rebalance")
	f.StringVar(&c.total, "total", "", "Requested group total")
	f.BoolVar(&c.exactSum, "exact", c.cfg.Envelope.ExactSum, "Assign the rounding remainder to the largest allocation")
	f.BoolVar(&c.dryRun, "dry-run", false, "Only print the plan")
	f.StringVar(&c.out, "out", "", "Write the updated envelopes to this JSON file")
	f.StringVar(&c.currency, "currency", "USD", "Display currency")
}

func (c *rebalanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.envelopes == "" || c.group == "" || c.total == "" {
		fmt.Fprintln(os.Stderr, "Error: -envelopes, -group and -total are required")
		return subcommands.ExitUsageError
	}
	if err := c.run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *rebalanceCmd) run(ctx context.Context, w io.Writer) error {
	total, err := decimal.NewFromString(c.total)
	if err != nil {
		return fmt.Errorf("invalid -total %q: %w", c.total, err)
	}

	data, err := readInput(ctx, c.envelopes)
	if err != nil {
		return err
	}
	store, err := envmem.NewStoreFromJSON(data)
	if err != nil {
		return err
	}
	group, err := store.ListEnvelopes(ctx, c.group)
	if err != nil {
		return err
	}

	var plan envelope.Plan
	var failed []envelope.Failure
	if c.dryRun {
		if plan, err = envelope.PlanGroup(group, total, envelope.ExactSum(c.exactSum)); err != nil {
			return err
		}
	} else {
		engine := envelope.NewEngine(store,
			envelope.WithConcurrency(c.cfg.Envelope.Concurrency),
			envelope.WithExactSum(c.exactSum),
		)
		result, err := engine.RebalanceGroup(ctx, group, total)
		if err != nil {
			return err
		}
		plan, failed = result.Plan, result.Failed
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENVELOPE\tPREVIOUS\tNEW\tNOTE")
	for _, a := range plan.Allocations {
		note := ""
		if a.Clamped {
			note = "clamped at zero"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Name,
			formatMoney(a.Previous, c.currency),
			formatMoney(a.New, c.currency), note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nRequested %s, allocated %s", formatMoney(plan.RequestedTotal, c.currency), formatMoney(plan.Sum(), c.currency))
	if drift := plan.Drift(); !drift.IsZero() {
		fmt.Fprintf(w, " (drift %s)", drift.String())
	}
	fmt.Fprintln(w)
	for _, f := range failed {
		fmt.Fprintf(w, "FAILED %s: %s\n", f.EnvelopeID, f.Message)
	}

	if c.out == "" || c.dryRun {
		return nil
	}
	all, err := store.ListEnvelopes(ctx, "")
	if err != nil {
		return err
	}
	file, err := os.Create(c.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", c.out, err)
	}
	defer file.Close()
	return writeJSON(file, all)
}
