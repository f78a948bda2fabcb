package integration

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"swap-sentry/internal/blockops"
	"swap-sentry/internal/config"
	"swap-sentry/internal/database"
	"swap-sentry/internal/disk"
	"swap-sentry/internal/safety"
	"swap-sentry/internal/swap"
	"swap-sentry/internal/teardown"
)

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func openDB(t *testing.T) *database.HistoryDB {
	t.Helper()
	db, err := database.NewHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// freebsdHost has swap mirrored across da0/da1 under geli and a standalone
// encrypted swap partition on ada0 (the boot disk)
func freebsdHost() *disk.FakeInventory {
	return &disk.FakeInventory{
		SwapTypes: []string{disk.FreeBSDSwapType},
		PartitionsByDisk: map[string][]swap.Partition{
			"da0":  {{ID: "0x101", Path: "/dev/da0p2", Type: disk.FreeBSDSwapType}},
			"da1":  {{ID: "0x111", Path: "/dev/da1p2", Type: disk.FreeBSDSwapType}},
			"ada0": {{ID: "0x201", Path: "/dev/ada0p3", Type: disk.FreeBSDSwapType, EncryptedProvider: "ada0p3.eli"}},
		},
		ActiveSwap: []string{"mirror/swap0.eli", "ada0p3.eli"},
		MirrorList: []swap.Mirror{{
			Name:              "swap0",
			RealPath:          "/dev/mirror/swap0",
			EncryptedProvider: "mirror/swap0.eli",
			Providers: []swap.Provider{
				{ID: "0x101", Name: "da0p2"},
				{ID: "0x111", Name: "da1p2"},
			},
		}},
	}
}

// TestTeardownIntegration runs the full mutator chain against fake tools
func TestTeardownIntegration(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "textfile", "swap-sentry.prom")
	cfg := loadConfig(t, "platform: freebsd\nmetrics:\n  textfile_path: "+textfile+"\n")
	logger := log.New(io.Discard, "", 0)

	t.Run("DryRun_NoCommands", func(t *testing.T) {
		runner := &blockops.FakeRunner{}
		db := openDB(t)

		res, err := teardown.Run(context.Background(), cfg, teardown.Options{
			Disks:     []string{"da0", "da1"},
			DryRun:    true,
			Inventory: freebsdHost(),
			Runner:    runner,
			DB:        db,
		}, logger)
		if err != nil {
			t.Fatalf("Dry run failed: %v", err)
		}
		if len(runner.Commands) != 0 {
			t.Errorf("Dry run executed commands: %v", runner.Commands)
		}

		actions, err := db.GetActionsByRun(res.RunID)
		if err != nil {
			t.Fatalf("GetActionsByRun failed: %v", err)
		}
		if len(actions) != 3 {
			t.Fatalf("Expected 3 recorded actions, got %d", len(actions))
		}
		for _, a := range actions {
			if a.Status != blockops.StatusDryRun {
				t.Errorf("Expected DRY_RUN status, got %s for %s", a.Status, a.Action)
			}
		}
	})

	t.Run("Execute_MirrorCommands", func(t *testing.T) {
		runner := &blockops.FakeRunner{}
		db := openDB(t)

		res, err := teardown.Run(context.Background(), cfg, teardown.Options{
			Disks:     []string{"da0", "da1"},
			Inventory: freebsdHost(),
			Runner:    runner,
			DB:        db,
		}, logger)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		want := []string{
			"swapoff /dev/mirror/swap0.eli",
			"geli detach mirror/swap0.eli",
			"gmirror destroy swap0",
		}
		if len(runner.Commands) != len(want) {
			t.Fatalf("Expected %v, got %v", want, runner.Commands)
		}
		for i := range want {
			if runner.Commands[i] != want[i] {
				t.Errorf("Expected %q, got %q", want[i], runner.Commands[i])
			}
		}

		run, err := db.GetRun(res.RunID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if run.Status != database.RunSuccess || run.Platform != "freebsd" {
			t.Errorf("Unexpected run %+v", run)
		}
		if _, err := os.Stat(textfile); err != nil {
			t.Errorf("Expected metrics textfile: %v", err)
		}
	})

	t.Run("ProtectedDevice_Blocked", func(t *testing.T) {
		protected := loadConfig(t, "platform: freebsd\nprotected_devices:\n  - /dev/ada0p3.eli\n")
		runner := &blockops.FakeRunner{}
		db := openDB(t)

		res, err := teardown.Run(context.Background(), protected, teardown.Options{
			Disks:     []string{"ada0"},
			Inventory: freebsdHost(),
			Runner:    runner,
			DB:        db,
		}, logger)
		if !errors.Is(err, safety.ErrProtectedDevice) {
			t.Fatalf("Expected ErrProtectedDevice, got %v", err)
		}
		if len(runner.Commands) != 0 {
			t.Errorf("Protected device reached the tools: %v", runner.Commands)
		}

		run, err := db.GetRun(res.RunID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if run.Status != database.RunFailed {
			t.Errorf("Expected FAILED run, got %s", run.Status)
		}
		actions, _ := db.GetActionsByRun(res.RunID)
		if len(actions) != 1 || actions[0].Status != blockops.StatusError {
			t.Errorf("Expected one ERROR action, got %+v", actions)
		}
	})

	t.Run("CommandFailure_Propagates", func(t *testing.T) {
		busy := &blockops.CommandError{Command: "gmirror destroy swap0", Err: errors.New("exit status 1")}
		runner := &blockops.FakeRunner{Errors: map[string]error{"gmirror destroy swap0": busy}}

		_, err := teardown.Run(context.Background(), cfg, teardown.Options{
			Disks:     []string{"da0"},
			Inventory: freebsdHost(),
			Runner:    runner,
		}, logger)
		if err != busy {
			t.Errorf("Expected command error unchanged, got %v", err)
		}
	})
}

func TestTeardownCanceledContext(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := freebsdHost()
	if _, err := teardown.Run(ctx, cfg, teardown.Options{Disks: []string{"da0"}, Inventory: inv}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(inv.Queries) != 0 {
		t.Errorf("Canceled run queried inventory: %v", inv.Queries)
	}
}
