// Package metrics exposes the process metrics without an HTTP listener.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile dumps every metric of g in the text exposition format, in a
// form the node_exporter textfile collector picks up. The file is replaced
// atomically. A nil gatherer means the default registry.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("metrics path is required")
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return prometheus.WriteToTextfile(path, g)
}
