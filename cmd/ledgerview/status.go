package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ArionMiles/ledgerview/pkg/client"
	"github.com/ArionMiles/ledgerview/pkg/history"
	"github.com/ArionMiles/ledgerview/pkg/logging"
	"github.com/ArionMiles/ledgerview/pkg/orchestrator"
)

// checkTimeout bounds each connectivity check.
const checkTimeout = 10 * time.Second

// runStatus checks the configuration, the feed and the history backend.
func runStatus(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("status")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "=== ledgerview Status ===")
	fmt.Fprintln(a.out)

	allGood := true
	if !a.checkConfig() {
		allGood = false
	} else {
		if !a.checkFeed(ctx) {
			allGood = false
		}
		if !a.checkHistory(ctx) {
			allGood = false
		}
		if a.cfg.SheetsEnabled() && !a.checkSheetsAuth() {
			allGood = false
		}
	}

	fmt.Fprintln(a.out)
	if allGood {
		fmt.Fprintln(a.out, "Status: ✓ Ready to run")
		return nil
	}
	fmt.Fprintln(a.out, "Status: ✗ Configuration issues detected")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Fix the issues above, then run 'ledgerview status' again.")
	return errors.New("status checks failed")
}

func (a *app) checkConfig() bool {
	fmt.Fprint(a.out, "Configuration: ")
	if err := a.cfg.Validate(); err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		return false
	}
	fmt.Fprintln(a.out, "✓ Valid")
	return true
}

func (a *app) checkFeed(ctx context.Context) bool {
	source := a.cfg.FeedBaseURL
	if a.cfg.FeedFile != "" {
		source = a.cfg.FeedFile
	}
	fmt.Fprintf(a.out, "Receipt feed (%s): ", source)

	f, err := orchestrator.NewFeed(a.cfg, logging.Component(a.logger, "feed"))
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	receipts, err := f.FetchAll(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		return false
	}
	fmt.Fprintf(a.out, "✓ %d receipts\n", len(receipts))
	return true
}

func (a *app) checkHistory(ctx context.Context) bool {
	fmt.Fprintf(a.out, "Report history (%s): ", a.cfg.HistoryBackend)

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	store, err := history.Open(ctx, orchestrator.HistoryConfig(a.cfg), logging.Component(a.logger, "history"))
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		return false
	}
	defer store.Close()

	snaps, err := store.Load(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		return false
	}
	seq, err := store.Current(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "✗ %v\n", err)
		return false
	}
	fmt.Fprintf(a.out, "✓ %d reports, next sequence %d\n", len(snaps), seq)
	return true
}

func (a *app) checkSheetsAuth() bool {
	ok := true

	fmt.Fprintf(a.out, "Credentials file (%s): ", a.cfg.GoogleClientSecretFile)
	if _, err := os.Stat(a.cfg.GoogleClientSecretFile); err != nil {
		fmt.Fprintln(a.out, "✗ Not found")
		ok = false
	} else {
		fmt.Fprintln(a.out, "✓ Found")
	}

	fmt.Fprintf(a.out, "OAuth token (%s): ", a.cfg.GoogleTokenFile)
	token, err := client.LoadToken(a.cfg.GoogleTokenFile)
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(a.out, "✗ not found (run 'ledgerview setup')")
		return false
	case err != nil:
		fmt.Fprintf(a.out, "✗ %v\n", err)
		return false
	case token.Expiry.Before(time.Now()):
		fmt.Fprintln(a.out, "⚠ Expired (will refresh on next run)")
	default:
		fmt.Fprintf(a.out, "✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
	return ok
}
