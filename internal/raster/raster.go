// Package raster wraps the external PDF rasterization engine behind a small
// interface so the pipeline can be exercised without a real poppler install.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrEngineUnavailable signals that the engine binary is not installed or
// not executable on this host.
var ErrEngineUnavailable = errors.New("rasterization engine not available")

// RasterizeError reports an engine invocation that started but failed:
// corrupt document, engine crash, or timeout. Detail carries the engine's
// diagnostic output for server-side logging.
type RasterizeError struct {
	Detail string
}

func (e *RasterizeError) Error() string {
	if e.Detail == "" {
		return "rasterization failed"
	}
	return fmt.Sprintf("rasterization failed: %s", e.Detail)
}

// Engine converts a PDF byte buffer into one decoded image per page.
type Engine interface {
	// IsAvailable probes for the engine binary. Probed fresh per request:
	// availability is an environment property that can change between
	// deployments (a sidecar becoming ready after service start).
	IsAvailable() bool

	// Rasterize renders every page of pdf at the given dpi, in document
	// order. Pages are rendered by a single engine invocation with no
	// internal fan-out, which bounds peak memory on small hosts.
	Rasterize(ctx context.Context, pdf []byte, dpi int) ([]image.Image, error)
}
