package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/export"
	"github.com/ArionMiles/ledgerview/pkg/ledger"
	"github.com/ArionMiles/ledgerview/pkg/orchestrator"
)

func runSummary(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("summary")
	rng := fs.String("range", string(ledger.RangeAll), "time range: all, year, quarter or month")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	d, err := svc.Dashboard(ctx, ledger.ParseTimeRange(*rng))
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, d)
	}

	s := d.Stats
	fmt.Fprintf(a.out, "=== Audit Summary (%s) ===\n\n", d.Range)
	fmt.Fprintf(a.out, "Receipts:        %d\n", s.TotalCount)
	fmt.Fprintf(a.out, "  Verified:      %d\n", s.CountsByStatus.Verified)
	fmt.Fprintf(a.out, "  Pending:       %d\n", s.CountsByStatus.Pending)
	fmt.Fprintf(a.out, "  Failed:        %d\n", s.CountsByStatus.Failed)
	fmt.Fprintf(a.out, "Verified value:  %s\n", export.FormatAmount(s.TotalVerifiedValue))
	fmt.Fprintf(a.out, "Total value:     %s\n", export.FormatAmount(s.TotalValue))
	fmt.Fprintf(a.out, "Compliance rate: %.1f%%\n", s.ComplianceRate)

	printBuckets(a.out, "By category", s.CategoryTotals)
	printBuckets(a.out, "Trend", s.TimeSeries)

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Recent receipts:")
	if len(d.Recent) == 0 {
		fmt.Fprintln(a.out, "  (none)")
		return nil
	}
	return printReceipts(a.out, d.Recent)
}

func printBuckets(w io.Writer, title string, buckets []api.Bucket) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, b := range buckets {
		fmt.Fprintf(tw, "  %s\t%s\n", b.Name, export.FormatAmount(b.Value))
	}
	tw.Flush()
}

func runLedger(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("ledger")
	status := fs.String("status", api.AllStatuses, "status: all, verified, pending or failed")
	category := fs.String("category", api.AllCategories, "exact category")
	search := fs.String("q", "", "vendor or id substring")
	sortToken := fs.String("sort", ledger.DefaultSort.String(), "date-desc, date-asc, amount-desc or amount-asc")
	start := fs.String("start", "", "first date (YYYY-MM-DD)")
	end := fs.String("end", "", "last date (YYYY-MM-DD)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	filter, err := buildFilter(*status, *search, *start, *end)
	if err != nil {
		return err
	}
	filter.Category = *category

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	view, err := svc.Ledger(ctx, orchestrator.LedgerQuery{Filter: filter, Sort: api.ParseSortSpec(*sortToken)})
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, view)
	}

	if len(view.Items) == 0 {
		fmt.Fprintln(a.out, "No receipts match the current filters.")
		return nil
	}
	if err := printReceipts(a.out, view.Items); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\n%d receipts, %s total\n", view.Stats.TotalCount, export.FormatAmount(view.Stats.TotalValue))
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("show")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("show takes exactly one receipt id")
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	r, err := svc.Receipt(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, r)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Vendor:\t%s\n", r.Vendor)
	fmt.Fprintf(tw, "Date:\t%s\n", export.FormatDate(r.Date))
	fmt.Fprintf(tw, "Amount:\t%s\n", export.FormatAmount(r.Total))
	fmt.Fprintf(tw, "Category:\t%s\n", r.Category)
	fmt.Fprintf(tw, "Status:\t%s\n", r.Status)
	if r.Notarized() {
		fmt.Fprintf(tw, "Tx hash:\t%s\n", r.Blockchain.TxHash)
		if r.Blockchain.ExplorerURL != "" {
			fmt.Fprintf(tw, "Explorer:\t%s\n", r.Blockchain.ExplorerURL)
		}
	} else {
		fmt.Fprintf(tw, "Tx hash:\t%s\n", export.TxPendingLabel)
	}
	if r.HasOriginal() {
		fmt.Fprintf(tw, "Original:\t%s\n", r.IPFSURL)
	}
	return tw.Flush()
}

func printReceipts(w io.Writer, receipts []api.Receipt) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t"+strings.Join(export.Header, "\t"))
	for i, row := range export.Project(receipts) {
		fmt.Fprintln(tw, receipts[i].ID+"\t"+strings.Join(row.Values(), "\t"))
	}
	return tw.Flush()
}

func buildFilter(status, search, start, end string) (api.FilterCriteria, error) {
	from, err := parseDay("start", start)
	if err != nil {
		return api.FilterCriteria{}, err
	}
	to, err := parseDay("end", end)
	if err != nil {
		return api.FilterCriteria{}, err
	}
	return api.FilterCriteria{
		Status:    status,
		Search:    search,
		DateStart: from,
		DateEnd:   to,
	}, nil
}

func parseDay(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, usageErrorf("invalid -%s %q: expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
