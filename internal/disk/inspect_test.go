package disk

import (
	"context"
	"testing"

	"swap-sentry/internal/platform"
	"swap-sentry/internal/swap"
)

func TestInspectReportsDevices(t *testing.T) {
	inv := &FakeInventory{
		SwapTypes: []string{FreeBSDSwapType},
		PartitionsByDisk: map[string][]swap.Partition{
			"da0": {{ID: "p0", Path: "/dev/da0p2", Type: FreeBSDSwapType}},
			"da2": {{ID: "p2", Path: "/dev/da2p2", Type: FreeBSDSwapType, EncryptedProvider: "da2p2.eli"}},
			"da4": {{ID: "p4", Path: "/dev/da4p1", Type: "freebsd-ufs"}},
		},
		ActiveSwap: []string{"mirror/swap0.eli"},
		MirrorList: []swap.Mirror{{
			Name:              "swap0",
			RealPath:          "/dev/mirror/swap0",
			EncryptedProvider: "mirror/swap0.eli",
			Providers:         []swap.Provider{{ID: "p0", Name: "da0p2"}},
		}},
	}

	report, err := Inspect(context.Background(), inv, platform.BSD, []string{"da0", "da2", "da4"})
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if report.Platform != "freebsd" {
		t.Errorf("Expected freebsd platform, got %s", report.Platform)
	}
	if len(report.Findings) != 3 {
		t.Fatalf("Expected 3 findings, got %d", len(report.Findings))
	}

	mirrored := report.Findings[0]
	if mirrored.Mirror != "swap0" || mirrored.Device != "mirror/swap0.eli" || !mirrored.Active {
		t.Errorf("Unexpected mirrored finding %+v", mirrored)
	}
	standalone := report.Findings[1]
	if standalone.Mirror != "" || standalone.Device != "da2p2.eli" || standalone.Active {
		t.Errorf("Unexpected standalone finding %+v", standalone)
	}
	if report.Findings[2].Partition != nil {
		t.Errorf("da4 has no swap partition, got %+v", report.Findings[2].Partition)
	}
}

func TestInspectWithoutCandidatesSkipsSnapshots(t *testing.T) {
	inv := &FakeInventory{SwapTypes: []string{LinuxSwapType}}

	if _, err := Inspect(context.Background(), inv, platform.Linux, []string{"sda"}); err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	for _, q := range inv.Queries {
		if q == "swap_devices" || q == "mirrors" {
			t.Errorf("Unexpected %s query without candidates", q)
		}
	}
}
