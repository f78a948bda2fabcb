package swap

import "context"

// Partition is a disk partition as reported by the inventory
type Partition struct {
	ID                string `json:"id"`   // Correlates with Provider.ID in mirror membership
	Path              string `json:"path"` // Device path, used when there is no encryption layer
	Type              string `json:"partition_type"`
	EncryptedProvider string `json:"encrypted_provider,omitempty"`
}

// Provider is the identity a partition has inside a mirror
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Mirror is a software mirror built on one or more providers
type Mirror struct {
	Name              string     `json:"name"`
	RealPath          string     `json:"real_path"`
	EncryptedProvider string     `json:"encrypted_provider,omitempty"`
	Providers         []Provider `json:"providers"`
}

// Inventory answers the read-only questions the orchestrator asks
type Inventory interface {
	Partitions(ctx context.Context, disk string) ([]Partition, error)
	ValidSwapPartitionTypes(ctx context.Context) ([]string, error)
	SwapDevices(ctx context.Context) ([]string, error)
	Mirrors(ctx context.Context) ([]Mirror, error)
}

// Mutator performs the irreversible teardown steps
type Mutator interface {
	SwapOff(ctx context.Context, device string) error
	RemoveEncryption(ctx context.Context, provider string) error
	DestroyMirror(ctx context.Context, name string) error
}

// Logger is the structured logging surface used by the orchestrator
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
