package downloader

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
)

// FetchResult is one fetched range ready to be applied.
type FetchResult struct {
	indexer.LogBatch

	// ToHash is the hash of ToBlock, stored with the checkpoint
	ToHash common.Hash
}

// FilterSource provides the current eth_getLogs filter. It is consulted on
// every fetch so watchers registered at runtime widen the next range.
type FilterSource interface {
	Filter() ([]common.Address, [][]common.Hash)
}
