package teardown

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"swap-sentry/internal/blockops"
	"swap-sentry/internal/config"
	"swap-sentry/internal/database"
	"swap-sentry/internal/disk"
	"swap-sentry/internal/metrics"
	"swap-sentry/internal/platform"
	"swap-sentry/internal/safety"
	"swap-sentry/internal/swap"
)

// Options selects the disks of one run and optionally overrides collaborators
type Options struct {
	Disks  []string
	DryRun bool

	Inventory swap.Inventory      // nil: built from the config
	Runner    blockops.Runner     // nil: os/exec with the configured timeout
	DB        *database.HistoryDB // nil: no history
}

// Result summarizes a finished run
type Result struct {
	RunID    string
	Duration time.Duration
}

// NewInventory builds the inventory for the configured platform
func NewInventory(cfg *config.Config, runner blockops.Runner) swap.Inventory {
	if cfg.PlatformFamily() == platform.Linux {
		return disk.NewLinuxInventory(disk.LinuxOptions{
			DevRoot:    cfg.Roots.Dev,
			SysRoot:    cfg.Roots.Sys,
			ProcRoot:   cfg.Roots.Proc,
			ExtraTypes: cfg.ExtraSwapTypes,
		})
	}
	return disk.NewBSDInventory(runner, disk.BSDOptions{
		Sysctl:     cfg.Tools.Sysctl,
		ExtraTypes: cfg.ExtraSwapTypes,
	})
}

// NewRunner returns the command runner used for queries and mutations
func NewRunner(cfg *config.Config) blockops.Runner {
	return blockops.ExecRunner{Timeout: cfg.CommandTimeout()}
}

// Run removes swap from opts.Disks once. The orchestrator's error is
// returned unchanged so callers can classify it.
func Run(ctx context.Context, cfg *config.Config, opts Options, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg == nil {
		return nil, errors.New("nil config")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	runner := opts.Runner
	if runner == nil {
		runner = NewRunner(cfg)
	}
	inv := opts.Inventory
	if inv == nil {
		inv = NewInventory(cfg, runner)
	}
	p := cfg.PlatformFamily()

	res := &Result{RunID: uuid.NewString()}
	start := time.Now()

	if opts.DB != nil {
		err := opts.DB.StartRun(database.Run{
			ID:        res.RunID,
			StartedAt: start,
			Disks:     opts.Disks,
			Platform:  p.String(),
			DryRun:    opts.DryRun,
		})
		if err != nil {
			logger.Printf("ERROR: Failed to record run start: %v", err)
		}
	}

	var mut swap.Mutator
	if opts.DryRun {
		mut = blockops.NewDryRun(logger)
	} else {
		tools := blockops.Tools{
			Swapoff:    cfg.Tools.Swapoff,
			Cryptsetup: cfg.Tools.Cryptsetup,
			Mdadm:      cfg.Tools.Mdadm,
			Geli:       cfg.Tools.Geli,
			Gmirror:    cfg.Tools.Gmirror,
		}
		mut = blockops.NewExecMutator(runner, p, tools)
	}
	mut = blockops.NewGuarded(mut, safety.NewValidator(cfg.ProtectedDevices))

	// a nil *HistoryDB must not become a non-nil Recorder
	var recorder blockops.Recorder
	if opts.DB != nil {
		recorder = opts.DB
	}
	mut = blockops.NewRecorded(mut, recorder, res.RunID, opts.DryRun, logger)

	logger.Printf("run %s: removing swap from %v (platform=%s dry_run=%t)", res.RunID, opts.Disks, p, opts.DryRun)
	runErr := swap.NewRemover(inv, mut, p, logger).RemoveDisks(ctx, opts.Disks)
	res.Duration = time.Since(start)

	if opts.DB != nil {
		if err := opts.DB.FinishRun(res.RunID, runErr); err != nil {
			logger.Printf("ERROR: Failed to record run result: %v", err)
		}
	}

	metrics.RecordRun(res.Duration, runErr)
	if cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Printf("ERROR: %v", err)
		}
	}

	if runErr != nil {
		return res, runErr
	}
	logger.Printf("run %s complete: duration=%.3fs", res.RunID, res.Duration.Seconds())
	return res, nil
}
