package blockops

import (
	"context"
	"strings"
)

// FakeMutator implements swap.Mutator for testing
// Records all teardown calls without touching any device
type FakeMutator struct {
	Calls []string
	// Errors maps a call ("swapoff:/dev/sda2") to the error it returns
	Errors map[string]error
}

func (f *FakeMutator) SwapOff(ctx context.Context, device string) error {
	return f.record("swapoff:" + device)
}

func (f *FakeMutator) RemoveEncryption(ctx context.Context, provider string) error {
	return f.record("detach:" + provider)
}

func (f *FakeMutator) DestroyMirror(ctx context.Context, name string) error {
	return f.record("destroy:" + name)
}

// Count returns how many recorded calls start with prefix
func (f *FakeMutator) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *FakeMutator) record(call string) error {
	f.Calls = append(f.Calls, call)
	if err, ok := f.Errors[call]; ok {
		return err
	}
	return nil
}

// FakeRunner implements Runner for testing
// Records command lines and replays canned output
type FakeRunner struct {
	Commands []string
	Outputs  map[string][]byte // keyed by full command line
	Errors   map[string]error
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.Commands = append(f.Commands, line)
	if err, ok := f.Errors[line]; ok {
		return nil, err
	}
	return f.Outputs[line], nil
}
