package teardown

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"swap-sentry/internal/blockops"
	"swap-sentry/internal/config"
	"swap-sentry/internal/disk"
)

func TestNewInventoryPerPlatform(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}

	inv := NewInventory(cfg, &blockops.FakeRunner{})
	switch cfg.Platform {
	case "linux":
		if _, ok := inv.(*disk.LinuxInventory); !ok {
			t.Errorf("Expected LinuxInventory, got %T", inv)
		}
	default:
		if _, ok := inv.(*disk.BSDInventory); !ok {
			t.Errorf("Expected BSDInventory, got %T", inv)
		}
	}
}

func TestRunNilConfig(t *testing.T) {
	if _, err := Run(context.Background(), nil, Options{}, nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestRunQueryErrorUnchanged(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	listErr := errors.New("sysctl failed")
	inv := &disk.FakeInventory{SwapTypesErr: listErr}

	res, err := Run(context.Background(), cfg, Options{
		Disks:     []string{"da0"},
		Inventory: inv,
		Runner:    &blockops.FakeRunner{},
	}, log.New(io.Discard, "", 0))
	if err != listErr {
		t.Errorf("Expected query error unchanged, got %v", err)
	}
	if res == nil || res.RunID == "" {
		t.Error("Expected a run id even on failure")
	}
}
