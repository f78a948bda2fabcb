package safety

import (
	"errors"
	"strings"
)

var (
	ErrInvalidDevice   = errors.New("invalid device name")
	ErrProtectedDevice = errors.New("protected device")
	ErrTraversal       = errors.New("path traversal detected")
)

// Validator enforces the safety contract for every teardown target
type Validator struct {
	ProtectedDevices []string
}

// NewValidator creates a validator refusing to touch any of protected.
// Names are compared without their /dev/ prefix.
func NewValidator(protected []string) *Validator {
	return &Validator{ProtectedDevices: normalizeDevices(protected)}
}

// ValidateTarget is the single-source-of-truth for teardown authorization
// Returns typed error on safety violation
func (v *Validator) ValidateTarget(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\n\x00") {
		return ErrInvalidDevice
	}

	if DetectTraversal(name) {
		return ErrTraversal
	}

	if IsProtectedDevice(name, v.ProtectedDevices) {
		return ErrProtectedDevice
	}

	return nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(raw, "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsProtectedDevice checks name against the protected list
func IsProtectedDevice(name string, protected []string) bool {
	n := normalizeDevice(name)
	for _, p := range protected {
		if n == p {
			return true
		}
	}
	return false
}

func normalizeDevice(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "/dev/")
}

func normalizeDevices(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		out = append(out, normalizeDevice(n))
	}
	return out
}
