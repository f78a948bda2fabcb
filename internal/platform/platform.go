package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies the operating system family the tool is driving.
// Device names are spelled differently per family.
type Platform int

const (
	// Linux uses full device paths everywhere (/dev/sda2, /dev/md0).
	Linux Platform = iota
	// BSD (FreeBSD) lists swap devices without the /dev/ prefix.
	BSD
)

const devPrefix = "/dev/"

// Detect resolves the platform of the running process.
// Call it once at startup and pass the value down.
func Detect() Platform {
	return fromGOOS(runtime.GOOS)
}

func fromGOOS(goos string) Platform {
	if goos == "linux" {
		return Linux
	}
	return BSD
}

// Parse converts a configuration value into a Platform.
// "auto" and "" resolve to the running platform.
func Parse(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Detect(), nil
	case "linux":
		return Linux, nil
	case "freebsd", "bsd":
		return BSD, nil
	default:
		return Linux, fmt.Errorf("unknown platform %q", s)
	}
}

func (p Platform) String() string {
	if p == Linux {
		return "linux"
	}
	return "freebsd"
}

// MirrorDevice returns the spelling of a mirror (or its encryption layer)
// as it appears in the active swap list.
func (p Platform) MirrorDevice(name string) string {
	if p == Linux {
		return name
	}
	return strings.TrimPrefix(name, devPrefix)
}

// PartitionDevice returns the spelling of a standalone partition
// (or its encryption layer) as it appears in the active swap list.
func (p Platform) PartitionDevice(name string) string {
	if p == Linux {
		return name
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
