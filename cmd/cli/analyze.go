package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/analytics"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/ledger"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/normalize"
	"github.com/google/subcommands"
)

type analyzeCmd struct {
	cfg config.Config
	now func() time.Time

	raw       string
	dateRange string
	category  string
	search    string
	order     string
	months    int
	top       int
	currency  string
	list      bool
	asJSON    bool
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "normalize raw transactions and print dashboard aggregates" }
func (*analyzeCmd) Usage() string {
	return `cli analyze -raw <file|gs://uri> [-range <preset>] [-category <name>] [-search <text>] [-list] [-json]

  Normalizes a JSON array of bank, crypto and manual records, applies the
  filter and prints the category breakdown and monthly trend.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.raw, "raw", c.cfg.Data.RawFile, "JSON array of raw provider records")
	f.StringVar(&c.dateRange, "range", "all", "Date range: all, 7_days, 30_days, this_month, last_month")
	f.StringVar(&c.category, "category", "", "Only this category")
	f.StringVar(&c.search, "search", "", "Case-insensitive text search")
	f.StringVar(&c.order, "order", "desc", "Listing order: asc or desc")
	f.IntVar(&c.months, "months", c.cfg.Analytics.Months, "Number of monthly buckets")
	f.IntVar(&c.top, "top", c.cfg.Analytics.TopCategories, "Number of categories in the breakdown")
	f.StringVar(&c.currency, "currency", "USD", "Display currency")
	f.BoolVar(&c.list, "list", false, "Also list the filtered transactions")
	f.BoolVar(&c.asJSON, "json", false, "Print the aggregates as JSON")
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.raw == "" {
		fmt.Fprintln(os.Stderr, "Error: -raw is required")
		return subcommands.ExitUsageError
	}
	if err := c.run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *analyzeCmd) run(ctx context.Context, w io.Writer) error {
	preset, err := ledger.ParsePreset(c.dateRange)
	if err != nil {
		return err
	}
	order, err := ledger.ParseOrder(c.order)
	if err != nil {
		return err
	}
	if c.months < 2 || c.top < 1 {
		return errors.New("-months must be >= 2 and -top >= 1")
	}
	now := time.Now()
	if c.now != nil {
		now = c.now()
	}

	data, err := readInput(ctx, c.raw)
	if err != nil {
		return err
	}
	records, skipped, err := normalize.DecodeJSON(data)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	for _, e := range skipped {
		log.Warn().Err(e).Msg("Skipping undecodable raw record")
	}
	report := normalize.NormalizeAll(ctx, records)

	txs := ledger.Filter(report.Transactions, ledger.Criteria{
		SearchQuery: c.search,
		Category:    c.category,
		DateRange:   preset,
	}, now)
	snap := analytics.Aggregate(txs, now, analytics.WithMonths(c.months), analytics.WithTopCategories(c.top))

	if c.asJSON {
		return writeJSON(w, snap)
	}

	fmt.Fprintf(w, "Transactions: %d (dropped %d)\n", snap.TransactionCount, len(skipped)+len(report.Dropped))
	fmt.Fprintf(w, "Income:  %s\n", formatMoney(snap.TotalIncome, c.currency))
	fmt.Fprintf(w, "Expense: %s\n", formatMoney(snap.TotalExpense, c.currency))
	fmt.Fprintf(w, "Net:     %s\n", formatMoney(snap.NetAmount, c.currency))
	fmt.Fprintf(w, "Spending trend: %s\n\n", snap.SpendingTrend)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSPENT\tCOUNT\tSHARE")
	for _, s := range snap.CategoryData {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s%%\n", s.Name, formatMoney(s.Value, c.currency), s.Count, s.Percentage.StringFixed(2))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MONTH\tINCOME\tEXPENSE\tNET")
	for _, m := range snap.MonthlyTrend {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Label,
			formatMoney(m.Income, c.currency),
			formatMoney(m.Expense, c.currency),
			formatMoney(m.Net, c.currency))
	}

	if c.list {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
		for _, tx := range ledger.Sort(txs, order) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				tx.Timestamp.Format("2006-01-02"), tx.Type,
				formatMoney(tx.Amount, tx.Currency),
				tx.CategoryOr(analytics.UncategorizedName), tx.Description)
		}
	}
	return tw.Flush()
}
