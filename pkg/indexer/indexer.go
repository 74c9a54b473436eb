package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogBatch is one chunk of logs in canonical (block, tx index, log index)
// order together with the timestamps of the blocks they belong to.
type LogBatch struct {
	Logs []types.Log

	// BlockTimes maps block number to block timestamp (unix seconds)
	BlockTimes map[uint64]uint64

	// FromBlock and ToBlock bound the fetched range
	FromBlock uint64
	ToBlock   uint64
}

// Timestamp returns the timestamp of block, zero when unknown.
func (b LogBatch) Timestamp(block uint64) uint64 {
	return b.BlockTimes[block]
}

// Indexer defines the interface that all indexers must implement.
type Indexer interface {
	// GetName returns the configured instance name.
	GetName() string

	// GetType returns the registered indexer type.
	GetType() string

	// EventsToIndex returns the statically known contract addresses and their
	// topics. An empty topic set means every topic of that address.
	EventsToIndex() map[common.Address]map[common.Hash]struct{}

	// HandleLogs applies a batch. Logs are delivered in canonical order and
	// must be applied in that order.
	HandleLogs(ctx context.Context, batch LogBatch) error

	// StartBlock returns the first block this indexer wants to see.
	StartBlock() uint64

	// Close releases the indexer's resources.
	Close() error
}

// WatcherRegistry widens the log filter at runtime.
type WatcherRegistry interface {
	// RegisterWatcher routes logs of address matching topics to idx from now
	// on. Registering the same pair twice is a no-op.
	RegisterWatcher(idx Indexer, address common.Address, topics []common.Hash) error
}

// Watching is implemented by indexers that discover contracts at runtime.
// BindWatchers is called once, after the indexer is registered and before
// the first batch, so it can restore the watchers it registered in earlier
// runs.
type Watching interface {
	BindWatchers(ctx context.Context, registry WatcherRegistry) error
}

// Starter is implemented by indexers that run background work, such as
// database maintenance, for as long as ctx lives.
type Starter interface {
	Start(ctx context.Context) error
}

// WatchersChangedError is returned by HandleLogs when a log registered new
// watchers. Everything up to and including that log is applied; the caller
// must re-fetch from Block with the widened filter.
type WatchersChangedError struct {
	Block    uint64
	TxIndex  uint
	LogIndex uint
}

func (e *WatchersChangedError) Error() string {
	return fmt.Sprintf("watchers changed at block %d (tx %d, log %d)", e.Block, e.TxIndex, e.LogIndex)
}
