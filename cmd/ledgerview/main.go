// Command ledgerview inspects the receipt feed and generates audit reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/config"
	"github.com/ArionMiles/ledgerview/pkg/logging"
	"github.com/ArionMiles/ledgerview/pkg/orchestrator"
)

const usage = `ledgerview - blockchain receipt audit ledger

Usage:
  ledgerview [-env FILE] [-config FILE] <command> [flags]

Commands:
  summary     Show dashboard statistics for a time range
  ledger      List receipts with filters and sorting
  show        Show one receipt
  report      Generate a PDF, EXCEL, CSV or JSON report
  history     List, clear or re-download generated reports
  setup       Authorize the Google Sheets mirror
  status      Check configuration, feed and history backend
  help        Show this help

Run 'ledgerview <command> -h' for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	// svcOpts are passed to orchestrator.New. Tests use them to inject fakes.
	svcOpts []orchestrator.Option
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, svcOpts ...orchestrator.Option) int {
	global := flag.NewFlagSet("ledgerview", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	envFile := global.String("env", config.DefaultEnvFile, "dotenv file to load")
	configFile := global.String("config", "", "optional JSON config file")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	command, cmdArgs := rest[0], rest[1:]

	commands := map[string]func(context.Context, *app, []string) error{
		"summary": runSummary,
		"ledger":  runLedger,
		"show":    runShow,
		"report":  runReport,
		"history": runHistory,
		"setup":   runSetup,
		"status":  runStatus,
	}
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Fprint(stdout, usage)
		return 0
	}
	cmd, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	cfg, err := config.Load(config.LoadOptions{EnvFile: *envFile, JSONFile: *configFile})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logCfg := logging.FromSettings(cfg.LogLevel, cfg.LogFormat)
	logCfg.Output = stderr
	logger := logging.Setup(logCfg)

	a := &app{cfg: cfg, logger: logger, out: stdout, svcOpts: svcOpts}
	if err := cmd(ctx, a, cmdArgs); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode separates user-correctable outcomes from failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, api.ErrNoMatchingData),
		errors.Is(err, api.ErrReplayEmpty),
		errors.Is(err, api.ErrNotFound),
		errors.Is(err, api.ErrSnapshotNotFound),
		errors.Is(err, api.ErrClearNotConfirmed):
		return 3
	default:
		return 1
	}
}

var errUsage = errors.New("usage error")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// service validates the configuration and assembles the application.
func (a *app) service(ctx context.Context) (*orchestrator.Service, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return orchestrator.New(ctx, a.cfg, a.logger, a.svcOpts...)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

// parseFlags parses command flags, marking bad flags as usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %w", errUsage, err)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}
