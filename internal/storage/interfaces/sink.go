package interfaces

import (
	"context"

	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
)

// ResultSink persists result tables. Every Write carries the complete table
// and replaces whatever the sink stored for it before.
type ResultSink interface {
	// Write stores the snapshot
	Write(ctx context.Context, snapshot *experiment.Snapshot) error

	// Name identifies the sink in logs
	Name() string

	// Close releases connections
	Close() error
}
