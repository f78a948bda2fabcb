package swap

import (
	"context"

	"swap-sentry/internal/platform"
)

// DiskSelection is the swap partition chosen for one requested disk.
// Partition is nil when the disk has no eligible partition.
type DiskSelection struct {
	Disk      string
	Partition *Partition
}

// SelectSwapPartitions returns, in request order, the first partition of
// each disk whose type is a valid swap type. Later eligible partitions on
// the same disk are ignored.
func SelectSwapPartitions(ctx context.Context, inv Inventory, disks []string) ([]DiskSelection, error) {
	validTypes, err := inv.ValidSwapPartitionTypes(ctx)
	if err != nil {
		return nil, err
	}
	eligible := make(map[string]struct{}, len(validTypes))
	for _, t := range validTypes {
		eligible[t] = struct{}{}
	}

	selections := make([]DiskSelection, 0, len(disks))
	for _, disk := range disks {
		sel := DiskSelection{Disk: disk}
		partitions, err := inv.Partitions(ctx, disk)
		if err != nil {
			return nil, err
		}
		for _, p := range partitions {
			if _, ok := eligible[p.Type]; ok {
				p := p
				sel.Partition = &p
				break
			}
		}
		selections = append(selections, sel)
	}
	return selections, nil
}

// OwningMirror returns the first mirror with a provider whose ID is id
func OwningMirror(mirrors []Mirror, id string) *Mirror {
	for i := range mirrors {
		for _, prov := range mirrors[i].Providers {
			if prov.ID == id {
				return &mirrors[i]
			}
		}
	}
	return nil
}

// MirrorSwapDevice is the name a mirror has in the active swap list
func MirrorSwapDevice(p platform.Platform, m Mirror) string {
	if m.EncryptedProvider != "" {
		return p.MirrorDevice(m.EncryptedProvider)
	}
	return p.MirrorDevice(m.RealPath)
}

// PartitionSwapDevice is the name a standalone partition has in the active swap list
func PartitionSwapDevice(p platform.Platform, part Partition) string {
	if part.EncryptedProvider != "" {
		return p.PartitionDevice(part.EncryptedProvider)
	}
	return p.PartitionDevice(part.Path)
}
