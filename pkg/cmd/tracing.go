package cmd

import (
	"context"

	"github.com/dukex/area/pkg/otelhelper"
)

// NewTracing exports spans over OTLP when enabled. The returned func flushes
// and stops the exporter.
func NewTracing(ctx context.Context, enabled bool, serviceName string) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	return otelhelper.Setup(ctx, serviceName)
}
