package blockops

import (
	"context"
	"log"
	"time"

	"swap-sentry/internal/logging"
	"swap-sentry/internal/metrics"
	"swap-sentry/internal/safety"
	"swap-sentry/internal/swap"
)

// DryRun logs what would happen and never calls a real mutator
type DryRun struct {
	logger *logging.Leveled
}

func NewDryRun(logger *log.Logger) *DryRun {
	return &DryRun{logger: logging.NewLeveled(logger)}
}

func (d *DryRun) SwapOff(ctx context.Context, device string) error {
	d.logger.Info("[DRY RUN] Would disable swap", "device", device)
	return nil
}

func (d *DryRun) RemoveEncryption(ctx context.Context, provider string) error {
	d.logger.Info("[DRY RUN] Would remove encryption layer", "provider", provider)
	return nil
}

func (d *DryRun) DestroyMirror(ctx context.Context, name string) error {
	d.logger.Info("[DRY RUN] Would destroy mirror", "mirror", name)
	return nil
}

// Guarded validates every target before handing it to the next mutator
type Guarded struct {
	next      swap.Mutator
	validator *safety.Validator
}

func NewGuarded(next swap.Mutator, v *safety.Validator) *Guarded {
	return &Guarded{next: next, validator: v}
}

func (g *Guarded) SwapOff(ctx context.Context, device string) error {
	if err := g.validator.ValidateTarget(device); err != nil {
		return err
	}
	return g.next.SwapOff(ctx, device)
}

func (g *Guarded) RemoveEncryption(ctx context.Context, provider string) error {
	if err := g.validator.ValidateTarget(provider); err != nil {
		return err
	}
	return g.next.RemoveEncryption(ctx, provider)
}

func (g *Guarded) DestroyMirror(ctx context.Context, name string) error {
	if err := g.validator.ValidateTarget(name); err != nil {
		return err
	}
	return g.next.DestroyMirror(ctx, name)
}

// Recorder persists one teardown action
type Recorder interface {
	RecordAction(runID, action, target, status string, duration time.Duration, errMsg string) error
}

// Status values written by Recorded
const (
	StatusOK     = "OK"
	StatusError  = "ERROR"
	StatusDryRun = "DRY_RUN"
)

// Recorded instruments a mutator with Prometheus metrics and an optional
// history recorder. The wrapped mutator's error is returned unchanged.
type Recorded struct {
	next     swap.Mutator
	recorder Recorder
	runID    string
	dryRun   bool
	logger   *logging.Leveled
}

func NewRecorded(next swap.Mutator, recorder Recorder, runID string, dryRun bool, logger *log.Logger) *Recorded {
	return &Recorded{
		next:     next,
		recorder: recorder,
		runID:    runID,
		dryRun:   dryRun,
		logger:   logging.NewLeveled(logger),
	}
}

func (r *Recorded) SwapOff(ctx context.Context, device string) error {
	return r.observe(ActionSwapOff, device, func() error {
		return r.next.SwapOff(ctx, device)
	})
}

func (r *Recorded) RemoveEncryption(ctx context.Context, provider string) error {
	return r.observe(ActionRemoveEncryption, provider, func() error {
		return r.next.RemoveEncryption(ctx, provider)
	})
}

func (r *Recorded) DestroyMirror(ctx context.Context, name string) error {
	return r.observe(ActionDestroyMirror, name, func() error {
		return r.next.DestroyMirror(ctx, name)
	})
}

func (r *Recorded) observe(action, target string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	status := StatusOK
	errMsg := ""
	switch {
	case err != nil:
		status = StatusError
		errMsg = err.Error()
	case r.dryRun:
		status = StatusDryRun
	}

	metrics.RecordOperation(action, elapsed.Seconds(), err, r.dryRun)

	if r.recorder != nil {
		if dbErr := r.recorder.RecordAction(r.runID, action, target, status, elapsed, errMsg); dbErr != nil {
			// History is best effort
			r.logger.Error("Failed to record action to database", "action", action, "target", target, "error", dbErr)
		}
	}

	return err
}
