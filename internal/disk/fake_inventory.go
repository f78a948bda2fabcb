package disk

import (
	"context"

	"swap-sentry/internal/swap"
)

// FakeInventory implements swap.Inventory for testing
// Serves canned answers and records every query
type FakeInventory struct {
	PartitionsByDisk map[string][]swap.Partition
	SwapTypes        []string
	ActiveSwap       []string
	MirrorList       []swap.Mirror

	PartitionsErr error
	SwapTypesErr  error
	SwapErr       error
	MirrorsErr    error

	Queries []string
}

func (f *FakeInventory) Partitions(ctx context.Context, disk string) ([]swap.Partition, error) {
	f.Queries = append(f.Queries, "partitions:"+disk)
	if f.PartitionsErr != nil {
		return nil, f.PartitionsErr
	}
	return f.PartitionsByDisk[disk], nil
}

func (f *FakeInventory) ValidSwapPartitionTypes(ctx context.Context) ([]string, error) {
	f.Queries = append(f.Queries, "swap_types")
	if f.SwapTypesErr != nil {
		return nil, f.SwapTypesErr
	}
	return f.SwapTypes, nil
}

func (f *FakeInventory) SwapDevices(ctx context.Context) ([]string, error) {
	f.Queries = append(f.Queries, "swap_devices")
	if f.SwapErr != nil {
		return nil, f.SwapErr
	}
	return f.ActiveSwap, nil
}

func (f *FakeInventory) Mirrors(ctx context.Context) ([]swap.Mirror, error) {
	f.Queries = append(f.Queries, "mirrors")
	if f.MirrorsErr != nil {
		return nil, f.MirrorsErr
	}
	return f.MirrorList, nil
}
