package blockops

import (
	"context"
	"path"
	"strings"

	"swap-sentry/internal/platform"
)

// Action names used in logs, metrics and the history database
const (
	ActionSwapOff          = "SWAPOFF"
	ActionRemoveEncryption = "REMOVE_ENCRYPTION"
	ActionDestroyMirror    = "DESTROY_MIRROR"
)

// Tools holds the command names or paths used by ExecMutator
type Tools struct {
	Swapoff    string
	Cryptsetup string
	Mdadm      string
	Geli       string
	Gmirror    string
}

// DefaultTools resolves every command through PATH
func DefaultTools() Tools {
	return Tools{
		Swapoff:    "swapoff",
		Cryptsetup: "cryptsetup",
		Mdadm:      "mdadm",
		Geli:       "geli",
		Gmirror:    "gmirror",
	}
}

// ExecMutator tears devices down with the platform's command line tools.
//
//	Linux:   swapoff <dev>, cryptsetup close <mapping>, mdadm --stop /dev/<md>
//	FreeBSD: swapoff /dev/<dev>, geli detach <prov>, gmirror destroy <name>
type ExecMutator struct {
	runner   Runner
	platform platform.Platform
	tools    Tools
}

func NewExecMutator(runner Runner, p platform.Platform, tools Tools) *ExecMutator {
	return &ExecMutator{runner: runner, platform: p, tools: tools}
}

func (m *ExecMutator) SwapOff(ctx context.Context, device string) error {
	_, err := m.runner.Run(ctx, m.tools.Swapoff, m.devicePath(device))
	return err
}

func (m *ExecMutator) RemoveEncryption(ctx context.Context, provider string) error {
	if m.platform == platform.Linux {
		// cryptsetup wants the mapping name, not /dev/mapper/<name>
		_, err := m.runner.Run(ctx, m.tools.Cryptsetup, "close", path.Base(provider))
		return err
	}
	_, err := m.runner.Run(ctx, m.tools.Geli, "detach", strings.TrimPrefix(provider, "/dev/"))
	return err
}

func (m *ExecMutator) DestroyMirror(ctx context.Context, name string) error {
	if m.platform == platform.Linux {
		_, err := m.runner.Run(ctx, m.tools.Mdadm, "--stop", m.devicePath(name))
		return err
	}
	_, err := m.runner.Run(ctx, m.tools.Gmirror, "destroy", name)
	return err
}

// devicePath restores the /dev/ spelling the commands expect
func (m *ExecMutator) devicePath(device string) string {
	if strings.HasPrefix(device, "/") {
		return device
	}
	return "/dev/" + device
}
