package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var initOnce sync.Once

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initTeardownMetrics()
		registerTeardownMetrics()

		// Initialize so the series exist in the first textfile write
		LastRunTimestamp.Set(0)
	})
}

// WriteTextfile writes the default registry in the node_exporter textfile
// collector format. The file is replaced atomically.
func WriteTextfile(path string) error {
	Init()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create textfile directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
