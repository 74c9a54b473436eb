package downloader

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	icommon "github.com/goran-ethernal/NFTIndexor/internal/common"
	"github.com/goran-ethernal/NFTIndexor/internal/db"
	"github.com/goran-ethernal/NFTIndexor/internal/downloader/migrations"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	pkgdownloader "github.com/goran-ethernal/NFTIndexor/pkg/downloader"
	"github.com/russross/meddler"
)

const syncStateTable = "sync_state"

var _ pkgdownloader.SyncManager = (*SyncManager)(nil)

// SyncManager keeps the downloader checkpoint in its own SQLite database.
type SyncManager struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
}

type SyncState = pkgdownloader.SyncState

// NewSyncManager migrates database and wraps it. maintenance may be nil.
func NewSyncManager(database *sql.DB, log *logger.Logger, maintenance db.Maintenance) (*SyncManager, error) {
	log = log.WithComponent(icommon.ComponentSyncManager)

	if err := migrations.RunMigrations(log, database); err != nil {
		return nil, fmt.Errorf("failed to run sync state migrations: %w", err)
	}

	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	sm := &SyncManager{
		db:          database,
		log:         log,
		maintenance: maintenance,
	}

	sm.log.Info("sync manager initialized")

	return sm, nil
}

// GetLastIndexedBlock returns the last fully applied block.
func (sm *SyncManager) GetLastIndexedBlock() (uint64, error) {
	unlock := sm.maintenance.AcquireOperationLock()
	defer unlock()

	var lastBlock uint64
	if err := sm.db.QueryRow(`SELECT last_indexed_block FROM sync_state WHERE id = 1`).Scan(&lastBlock); err != nil {
		return 0, fmt.Errorf("failed to get last indexed block: %w", err)
	}

	return lastBlock, nil
}

// GetState returns the checkpoint row.
func (sm *SyncManager) GetState() (*SyncState, error) {
	unlock := sm.maintenance.AcquireOperationLock()
	defer unlock()

	return sm.getState()
}

func (sm *SyncManager) getState() (*SyncState, error) {
	var state SyncState
	if err := meddler.QueryRow(sm.db, &state, `SELECT * FROM sync_state WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return &state, nil
}

// SaveCheckpoint records blockNum as fully applied.
func (sm *SyncManager) SaveCheckpoint(blockNum uint64, blockHash common.Hash, mode pkgdownloader.FetchMode) error {
	unlock := sm.maintenance.AcquireOperationLock()
	defer unlock()

	state := SyncState{
		ID:                   1,
		LastIndexedBlock:     blockNum,
		LastIndexedBlockHash: blockHash,
		LastIndexedTimestamp: time.Now().Unix(),
		Mode:                 mode.String(),
	}

	if err := meddler.Update(sm.db, syncStateTable, &state); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	sm.log.Debugw("checkpoint saved",
		"block", blockNum,
		"block_hash", blockHash.Hex(),
		"mode", mode,
	)

	return nil
}

// SetMode updates the mode and keeps the checkpoint.
func (sm *SyncManager) SetMode(mode pkgdownloader.FetchMode) error {
	unlock := sm.maintenance.AcquireOperationLock()
	defer unlock()

	state, err := sm.getState()
	if err != nil {
		return err
	}

	state.Mode = mode.String()
	if err := meddler.Update(sm.db, syncStateTable, state); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}

	sm.log.Infow("sync mode updated", "mode", mode)

	return nil
}

// Reset moves the checkpoint to startBlock and switches back to backfill.
func (sm *SyncManager) Reset(startBlock uint64) error {
	unlock := sm.maintenance.AcquireOperationLock()
	defer unlock()

	state := SyncState{
		ID:                   1,
		LastIndexedBlock:     startBlock,
		LastIndexedTimestamp: time.Now().Unix(),
		Mode:                 pkgdownloader.ModeBackfill.String(),
	}

	if err := meddler.Update(sm.db, syncStateTable, &state); err != nil {
		return fmt.Errorf("failed to reset sync state: %w", err)
	}

	sm.log.Warnw("sync state reset", "start_block", startBlock)

	return nil
}

func (sm *SyncManager) Close() error {
	return sm.db.Close()
}

// DB returns the checkpoint database, used by the maintenance coordinator.
func (sm *SyncManager) DB() *sql.DB {
	return sm.db
}
