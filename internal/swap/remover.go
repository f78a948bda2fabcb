package swap

import (
	"context"
	"log"

	"swap-sentry/internal/logging"
	"swap-sentry/internal/platform"
)

// Remover detaches every swap consumer of a set of disks: standalone swap
// partitions, mirrors built on them and encryption layers on top of either.
//
// The active swap list is read once per call and never refreshed, so a device
// that changes state while the teardown runs is not noticed. There is no
// locking against other actors.
type Remover struct {
	inventory Inventory
	mutator   Mutator
	platform  platform.Platform
	logger    Logger
}

// NewRemover creates a Remover for the given platform family
func NewRemover(inv Inventory, mut Mutator, p platform.Platform, logger *log.Logger) *Remover {
	if logger == nil {
		logger = log.Default()
	}
	return &Remover{
		inventory: inv,
		mutator:   mut,
		platform:  p,
		logger:    logging.NewLeveled(logger),
	}
}

// SetLogger replaces the structured logger
func (r *Remover) SetLogger(l Logger) {
	r.logger = l
}

// RemoveDisks tears down swap on the given disks (e.g. ["da0", "da1"]).
//
// Only the first eligible swap partition of each disk is considered. Any
// collaborator error is returned unchanged and aborts the remaining steps;
// steps already taken are not rolled back.
func (r *Remover) RemoveDisks(ctx context.Context, disks []string) error {
	if len(disks) == 0 {
		return nil
	}

	selections, err := SelectSwapPartitions(ctx, r.inventory, disks)
	if err != nil {
		return err
	}

	// candidates is consumed as mirrors claim partitions; order keeps the
	// standalone pass deterministic.
	candidates := make(map[string]Partition)
	var order []string
	for _, sel := range selections {
		if sel.Partition == nil {
			continue
		}
		if _, seen := candidates[sel.Partition.ID]; !seen {
			order = append(order, sel.Partition.ID)
		}
		candidates[sel.Partition.ID] = *sel.Partition
	}

	if len(candidates) == 0 {
		r.logger.Info("No swap partitions on requested disks", "disks", disks)
		return nil
	}

	active, err := r.inventory.SwapDevices(ctx)
	if err != nil {
		return err
	}
	swapDevices := make(map[string]struct{}, len(active))
	for _, d := range active {
		swapDevices[d] = struct{}{}
	}

	mirrors, err := r.inventory.Mirrors(ctx)
	if err != nil {
		return err
	}

	for _, m := range mirrors {
		destroyed := false
		for _, prov := range m.Providers {
			if _, ok := candidates[prov.ID]; !ok {
				continue
			}
			delete(candidates, prov.ID)
			if destroyed {
				continue
			}
			if err := r.teardownMirror(ctx, m, swapDevices); err != nil {
				return err
			}
			destroyed = true
		}
	}

	for _, id := range order {
		p, ok := candidates[id]
		if !ok {
			continue
		}
		if err := r.teardownPartition(ctx, p, swapDevices); err != nil {
			return err
		}
	}

	return nil
}

func (r *Remover) teardownMirror(ctx context.Context, m Mirror, swapDevices map[string]struct{}) error {
	if err := r.swapOff(ctx, MirrorSwapDevice(r.platform, m), swapDevices); err != nil {
		return err
	}
	if err := r.removeEncryption(ctx, m.EncryptedProvider); err != nil {
		return err
	}

	r.logger.Info("Destroying mirror", "mirror", m.Name)
	if err := r.mutator.DestroyMirror(ctx, m.Name); err != nil {
		r.logger.Error("Failed to destroy mirror", "mirror", m.Name, "error", err)
		return err
	}
	return nil
}

func (r *Remover) teardownPartition(ctx context.Context, p Partition, swapDevices map[string]struct{}) error {
	if err := r.swapOff(ctx, PartitionSwapDevice(r.platform, p), swapDevices); err != nil {
		return err
	}
	return r.removeEncryption(ctx, p.EncryptedProvider)
}

// swapOff disables device only when it was active in the snapshot
func (r *Remover) swapOff(ctx context.Context, device string, swapDevices map[string]struct{}) error {
	if _, ok := swapDevices[device]; !ok {
		r.logger.Info("Device not active as swap, skipping swapoff", "device", device)
		return nil
	}
	r.logger.Info("Disabling swap", "device", device)
	if err := r.mutator.SwapOff(ctx, device); err != nil {
		r.logger.Error("Failed to disable swap", "device", device, "error", err)
		return err
	}
	return nil
}

func (r *Remover) removeEncryption(ctx context.Context, provider string) error {
	if provider == "" {
		return nil
	}
	r.logger.Info("Removing encryption layer", "provider", provider)
	if err := r.mutator.RemoveEncryption(ctx, provider); err != nil {
		r.logger.Error("Failed to remove encryption layer", "provider", provider, "error", err)
		return err
	}
	return nil
}
