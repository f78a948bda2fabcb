package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"swap-sentry/internal/config"
	"swap-sentry/internal/database"
	"swap-sentry/internal/disk"
	"swap-sentry/internal/exitcodes"
	"swap-sentry/internal/logging"
	"swap-sentry/internal/metrics"
	"swap-sentry/internal/safety"
	"swap-sentry/internal/teardown"
)

var version = "dev"

// exitError carries the process exit code out of a cobra command.
// logged is set when the run logger already reported err.
type exitError struct {
	code   int
	err    error
	logged bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if ee, ok := err.(*exitError); !ok || !ee.logged {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode returns the code carried by err; anything else is a command line
// usage error reported by cobra
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitcodes.UsageError
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "swap-sentry",
		Short:         "Detach swap, mirrors and encryption layers from disks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to configuration file")

	root.AddCommand(newRemoveCmd(&configPath), newInspectCmd(&configPath), newVersionCmd())
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, &exitError{code: exitcodes.InvalidConfig, err: fmt.Errorf("load config: %w", err)}
	}
	return cfg, nil
}

func newRemoveCmd(configPath *string) *cobra.Command {
	var dryRun, noHistory bool

	cmd := &cobra.Command{
		Use:   "remove DISK...",
		Short: "Disable swap on the given disks and tear down mirrors and encryption on top of them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			logger := logging.NewWithOptions(logging.Options{
				Dir:          cfg.Logging.Dir,
				RotationDays: cfg.Logging.RotationDays,
			})
			logger.Println("Swap Sentry starting...")
			logger.Printf("Config file: %s", *configPath)
			if dryRun {
				logger.Println("DRY RUN MODE: No devices will be modified")
			}

			metrics.Init()

			var db *database.HistoryDB
			if !cfg.DisableHistory && !noHistory {
				logger.Printf("Opening history database: %s", cfg.DatabasePath)
				db, err = database.NewHistoryDB(cfg.DatabasePath)
				if err != nil {
					return &exitError{code: exitcodes.RuntimeError, err: fmt.Errorf("open database: %w", err)}
				}
				defer func() {
					if err := db.Close(); err != nil {
						logger.Printf("ERROR: Failed to close database: %v", err)
					}
				}()
			}

			ctx, cancel := signalContext(logger)
			defer cancel()

			_, err = teardown.Run(ctx, cfg, teardown.Options{
				Disks:  args,
				DryRun: dryRun,
				DB:     db,
			}, logger)
			if err != nil {
				logger.Printf("ERROR: Swap removal failed: %v", err)
				return &exitError{code: classify(err), err: err, logged: true}
			}
			logger.Println("Swap removal completed successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log the teardown steps without modifying any device")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

func newInspectCmd(configPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "inspect DISK...",
		Short: "Show the swap partitions, mirrors and active swap devices of the given disks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			inv := teardown.NewInventory(cfg, teardown.NewRunner(cfg))
			report, err := disk.Inspect(cmd.Context(), inv, cfg.PlatformFamily(), args)
			if err != nil {
				return &exitError{code: exitcodes.RuntimeError, err: err}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, _ := json.MarshalIndent(report, "", "  ")
				_, _ = fmt.Fprintln(out, string(data))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "Disk\tPartition\tMirror\tDevice\tActive")
			_, _ = fmt.Fprintln(w, "----\t---------\t------\t------\t------")
			for _, f := range report.Findings {
				part := "-"
				if f.Partition != nil {
					part = f.Partition.Path
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", f.Disk, part, dash(f.Mirror), dash(f.Device), f.Active)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "swap-sentry", version)
		},
	}
}

func signalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Printf("Received signal %v, aborting after the current step...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// classify maps a teardown error onto the exit code contract
func classify(err error) int {
	switch {
	case errors.Is(err, safety.ErrProtectedDevice),
		errors.Is(err, safety.ErrTraversal),
		errors.Is(err, safety.ErrInvalidDevice):
		return exitcodes.SafetyViolation
	default:
		return exitcodes.RuntimeError
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
