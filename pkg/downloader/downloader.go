package downloader

import (
	"context"
)

// Downloader streams logs from the chain into the registered indexers.
type Downloader interface {
	// Download runs until the context is cancelled or an error occurs.
	Download(ctx context.Context) error

	// Close stops the downloader and releases its resources.
	Close() error
}

// FetchMode represents the operating mode of the log fetcher.
type FetchMode string

const (
	// ModeBackfill fetches historical blocks in chunks up to the safe head
	ModeBackfill FetchMode = "backfill"

	// ModeLive polls for new blocks once backfill has caught up
	ModeLive FetchMode = "live"
)

func (m FetchMode) String() string {
	return string(m)
}
