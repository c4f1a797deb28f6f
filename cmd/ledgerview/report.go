package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/export"
	"github.com/ArionMiles/ledgerview/pkg/report"
)

// previewRows is how many rows -preview prints.
const previewRows = 3

func runReport(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("report")
	format := fs.String("format", string(api.FormatPDF), "PDF, EXCEL, CSV or JSON")
	var categories stringList
	fs.Var(&categories, "category", "category to include (repeatable or comma separated)")
	status := fs.String("status", "", "status filter")
	search := fs.String("q", "", "vendor or id substring")
	sortToken := fs.String("sort", "", "row order, e.g. date-desc")
	start := fs.String("start", "", "first date (YYYY-MM-DD)")
	end := fs.String("end", "", "last date (YYYY-MM-DD)")
	outDir := fs.String("out", ".", "directory to write the report to")
	preview := fs.Bool("preview", false, "print the first rows instead of generating")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	filter, err := buildFilter(*status, *search, *start, *end)
	if err != nil {
		return err
	}
	filter.Categories = categories

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if *preview {
		rows, total, err := svc.Generator.Preview(ctx, filter, previewRows)
		if err != nil {
			return err
		}
		if total == 0 {
			return api.ErrNoMatchingData
		}
		if err := printReceipts(a.out, rows); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "\nShowing %d of %d\n", len(rows), total)
		return nil
	}

	req := report.Request{Format: api.ParseFormat(*format), Filter: filter}
	if *sortToken != "" {
		spec := api.ParseSortSpec(*sortToken)
		req.Sort = &spec
	}

	art, err := svc.Generator.Generate(ctx, req)
	if err != nil {
		return err
	}
	path, err := writeArtifact(*outDir, art)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Saved %s (%d items)\n", path, art.Count)
	if art.Snapshot != nil {
		fmt.Fprintf(a.out, "  Recorded as %q (id %s)\n", art.Snapshot.Name, art.Snapshot.ID)
	}
	if art.Location != "" {
		fmt.Fprintf(a.out, "  Archived at %s\n", art.Location)
	}
	return nil
}

func writeArtifact(dir string, art report.Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func runHistory(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		return historyList(ctx, a, args[1:])
	case "clear":
		return historyClear(ctx, a, args[1:])
	case "redownload":
		return historyRedownload(ctx, a, args[1:])
	default:
		return usageErrorf("unknown history command %q (want list, clear or redownload)", args[0])
	}
}

func historyList(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("history list")
	all := fs.Bool("all", false, "show every report")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	limit := report.DisplayLimit
	if *all {
		limit = 0
	}
	page, err := svc.Recorder.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, page)
	}

	if page.Total == 0 {
		fmt.Fprintln(a.out, "No reports generated yet.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tFormat\tCreated\tSize")
	for _, s := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Format, export.FormatDate(s.CreatedAt), report.CountBand(s.ItemCount))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.More {
		fmt.Fprintf(a.out, "\n%d more, use -all to show every report\n", page.Total-len(page.Items))
	}
	return nil
}

func historyClear(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("history clear")
	yes := fs.Bool("yes", false, "confirm removing every history entry")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Recorder.Clear(ctx, *yes); err != nil {
		if *yes {
			return err
		}
		return fmt.Errorf("%w, rerun with -yes", err)
	}
	fmt.Fprintln(a.out, "✓ Report history cleared")
	return nil
}

func historyRedownload(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("history redownload")
	outDir := fs.String("out", ".", "directory to write the report to")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("redownload takes exactly one report id")
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	art, err := svc.Generator.Redownload(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	path, err := writeArtifact(*outDir, art)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Saved %s (%d items)\n", path, art.Count)
	return nil
}
