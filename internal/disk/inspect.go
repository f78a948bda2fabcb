package disk

import (
	"context"

	"swap-sentry/internal/platform"
	"swap-sentry/internal/swap"
)

// Finding describes the swap partition found on one requested disk
type Finding struct {
	Disk      string          `json:"disk"`
	Partition *swap.Partition `json:"partition,omitempty"`
	Mirror    string          `json:"mirror,omitempty"`
	Device    string          `json:"device,omitempty"` // name swapoff would be given
	Active    bool            `json:"active"`
}

// Report is the read-only view of what a removal would touch
type Report struct {
	Platform string    `json:"platform"`
	Findings []Finding `json:"findings"`
}

// Inspect reports, per disk, the first eligible swap partition, the mirror
// that would claim it and whether the resulting device is active swap. It
// never mutates anything.
func Inspect(ctx context.Context, inv swap.Inventory, p platform.Platform, disks []string) (*Report, error) {
	report := &Report{Platform: p.String()}
	if len(disks) == 0 {
		return report, nil
	}

	selections, err := swap.SelectSwapPartitions(ctx, inv, disks)
	if err != nil {
		return nil, err
	}
	var found bool
	for _, sel := range selections {
		report.Findings = append(report.Findings, Finding{Disk: sel.Disk, Partition: sel.Partition})
		found = found || sel.Partition != nil
	}
	if !found {
		return report, nil
	}

	active, err := inv.SwapDevices(ctx)
	if err != nil {
		return nil, err
	}
	swapDevices := make(map[string]struct{}, len(active))
	for _, a := range active {
		swapDevices[a] = struct{}{}
	}

	mirrors, err := inv.Mirrors(ctx)
	if err != nil {
		return nil, err
	}

	for i := range report.Findings {
		f := &report.Findings[i]
		if f.Partition == nil {
			continue
		}
		if m := swap.OwningMirror(mirrors, f.Partition.ID); m != nil {
			f.Mirror = m.Name
			f.Device = swap.MirrorSwapDevice(p, *m)
		} else {
			f.Device = swap.PartitionSwapDevice(p, *f.Partition)
		}
		_, f.Active = swapDevices[f.Device]
	}
	return report, nil
}
