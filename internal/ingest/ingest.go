// Package ingest discovers batch files of new codes and feeds them to the
// redemption store.
package ingest

import (
	"context"
	"io"
)

// DefaultFilename is the batch file name looked for on every source.
const DefaultFilename = "new_codes.txt"

// Source discovers batch files in one place (removable media, a bucket).
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Discover returns the batches currently available, in priority order.
	Discover(ctx context.Context) ([]Batch, error)
}

// Batch is one discovered batch file.
type Batch interface {
	// Location is a path or URL identifying the batch. A ".gz" suffix marks
	// gzip-compressed content.
	Location() string

	// Open returns the raw batch content.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Remove deletes the batch so it is not ingested again.
	Remove(ctx context.Context) error
}

// Ingester adds codes to the valid list and reports how many were new.
type Ingester interface {
	Ingest(ctx context.Context, codes []string) (int, error)
}
