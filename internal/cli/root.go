// Package cli implements the movephotos command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"movephotos/internal/audit"
	"movephotos/internal/comparer"
	"movephotos/internal/config"
	"movephotos/internal/deduction"
	"movephotos/internal/filter"
	"movephotos/internal/hashcache"
	"movephotos/internal/logging"
	"movephotos/internal/orchestrator"
	"movephotos/internal/output"
	"movephotos/internal/prompt"
)

// Version is reported by --version and recorded in the audit trail.
var Version = "dev"

// Streams are the standard streams a command talks to. Interactive gates
// prompting; without it every confirmation is answered no.
type Streams struct {
	In          io.Reader
	Out         io.Writer
	Err         io.Writer
	Interactive bool
	TTY         bool // stdout is a terminal: styling and progress
}

// StdStreams returns the process streams with terminal detection.
func StdStreams() Streams {
	return Streams{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: prompt.IsInteractive(),
		TTY:         term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Execute runs the command line until it finishes or SIGINT/SIGTERM
// arrives, and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, os.Args[1:], StdStreams())
}

// Run executes the command line with args and returns the exit code.
func Run(ctx context.Context, args []string, streams Streams) int {
	app := &app{streams: streams, exitCode: 1}
	cmd := app.rootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.Err)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return 1
	}
	return app.exitCode
}

// app holds the parsed flags and the state shared by the commands.
type app struct {
	streams  Streams
	exitCode int

	configPath  string
	verbose     bool
	strategies  []string
	dryRun      bool
	auditDir    string
	hashCache   string
	concurrency int
	debounce    float64

	log *zap.Logger
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "movephotos [flags] <source> <destination>",
		Short: "Move photos into date folders",
		Long: `movephotos deduces the date of every file under <source> and moves it to
<destination>/YYYY/YYYY_MM_DD/<name>.

OS junk files are deleted, copies already present at the destination are
removed from the source, and everything else is moved. Every destructive step
asks for confirmation first. Files whose date cannot be deduced with enough
confidence are left in place and listed at the end.

Examples:
  movephotos ~/Downloads/camera ~/Pictures
  movephotos --dry-run ~/Downloads/camera ~/Pictures
  movephotos --strategy filepath --strategy exif ~/Downloads/camera ~/Pictures`,
		Version:       Version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(a.verbose)
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: a.runMove,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to config file (.json, .yaml, .yml or .toml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Show detailed progress and debug logs")
	pf.StringArrayVar(&a.strategies, "strategy", nil, "Datestamp strategy to apply, in order (repeatable; overrides config)")

	f := root.Flags()
	f.BoolVar(&a.dryRun, "dry-run", false, "Print the planned deletions and moves without changing anything")
	f.StringVar(&a.auditDir, "audit-dir", "", "Directory for the audit log")
	f.StringVar(&a.hashCache, "hash-cache", "", "SQLite file caching content hashes between runs")
	f.IntVar(&a.concurrency, "concurrency", 0, "Files examined in parallel (default: number of CPUs)")

	root.AddCommand(a.watchCommand(), a.historyCommand())
	return root
}

// configuration loads the config file, or the defaults, and applies the
// flags the user set on top.
func (a *app) configuration(cmd *cobra.Command) (*config.Configuration, error) {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Strategies = a.strategies
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = a.concurrency
	}
	if flags.Changed("audit-dir") {
		cfg.Audit = &audit.AuditConfig{LogDirectory: a.auditDir}
	}
	if flags.Changed("hash-cache") {
		cfg.HashCache = a.hashCache
	}
	if flags.Changed("debounce") {
		cfg.Watch.DebounceSeconds = a.debounce
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) output() *output.Output {
	return output.New(output.Config{
		Verbose:   a.verbose,
		Writer:    a.streams.Out,
		ErrWriter: a.streams.Err,
		IsTTY:     a.streams.TTY,
	})
}

func (a *app) runMove(cmd *cobra.Command, args []string) error {
	cfg, err := a.configuration(cmd)
	if err != nil {
		return err
	}
	strategies, err := deduction.Lookup(cfg.Strategies)
	if err != nil {
		return err
	}

	out := a.output()

	var hasher comparer.Hasher = comparer.SHA256Hasher{}
	var cache *hashcache.Cache
	if cfg.HashCache != "" {
		cache, err = hashcache.Open(cfg.HashCache, hasher)
		if err != nil {
			return err
		}
		defer cache.Close()
		hasher = cache
	}

	var trail *audit.AuditWriter
	if cfg.Audit != nil && cfg.Audit.LogDirectory != "" && !a.dryRun {
		trail, err = audit.NewAuditWriter(*cfg.Audit)
		if err != nil {
			return err
		}
		defer trail.Close()
		out.Verbose("Audit log: %s", trail.LogPath())
	}

	var prompter prompt.Prompter = prompt.AssumeNo{}
	if a.streams.Interactive && !a.dryRun {
		prompter = prompt.NewTerminal(a.streams.In, a.streams.Out)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Source:      args[0],
		Destination: args[1],
		Strategies:  strategies,
		Unwanted:    filter.New(cfg.UnwantedPatterns),
		Hasher:      hasher,
		Prompter:    prompter,
		Concurrency: cfg.Concurrency,
		DryRun:      a.dryRun,
		Audit:       trail,
		AppVersion:  Version,
		Logger:      a.log,
		Output:      out,

		FollowSymlinks: cfg.FollowSymlinks,
	})
	if err != nil {
		return err
	}

	summary, err := orch.Run(cmd.Context())
	if summary != nil {
		summary.Print(out)
	}
	if cache != nil {
		if n, lenErr := cache.Len(cmd.Context()); lenErr == nil {
			out.Verbose("Hash cache: %d entries", n)
		}
	}
	if err != nil {
		return err
	}
	if !a.streams.Interactive && !a.dryRun && summary.Unwanted+summary.HighConfidence > 0 {
		out.Warn("Not running in a terminal: nothing was deleted or moved.")
	}
	a.exitCode = summary.ExitCode()
	return nil
}
