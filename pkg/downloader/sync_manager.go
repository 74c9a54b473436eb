package downloader

import (
	"database/sql"

	"github.com/ethereum/go-ethereum/common"
)

// SyncManager persists the downloader checkpoint.
type SyncManager interface {
	// GetLastIndexedBlock returns the last block whose logs were fully applied.
	GetLastIndexedBlock() (uint64, error)

	// GetState returns the current checkpoint.
	GetState() (*SyncState, error)

	// SaveCheckpoint records blockNum as fully applied.
	SaveCheckpoint(blockNum uint64, blockHash common.Hash, mode FetchMode) error

	// SetMode updates the fetch mode and keeps the checkpoint.
	SetMode(mode FetchMode) error

	// Reset moves the checkpoint back to startBlock in backfill mode.
	Reset(startBlock uint64) error

	Close() error

	DB() *sql.DB
}

// SyncState is the single checkpoint row.
type SyncState struct {
	ID                   int         `meddler:"id,pk" json:"-"`
	LastIndexedBlock     uint64      `meddler:"last_indexed_block" json:"last_indexed_block"`
	LastIndexedBlockHash common.Hash `meddler:"last_indexed_block_hash,hash" json:"last_indexed_block_hash"`
	LastIndexedTimestamp int64       `meddler:"last_indexed_timestamp" json:"last_indexed_timestamp"`
	Mode                 string      `meddler:"mode" json:"mode"`
}

// GetMode returns Mode as a FetchMode.
func (s *SyncState) GetMode() FetchMode {
	return FetchMode(s.Mode)
}
