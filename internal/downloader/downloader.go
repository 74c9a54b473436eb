package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	icommon "github.com/goran-ethernal/NFTIndexor/internal/common"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/types"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	pkgdownloader "github.com/goran-ethernal/NFTIndexor/pkg/downloader"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
	pkgrpc "github.com/goran-ethernal/NFTIndexor/pkg/rpc"
)

var _ pkgdownloader.Downloader = (*Downloader)(nil)

// Coordinator is the downloader's view of the indexer coordinator.
type Coordinator interface {
	FilterSource

	// StartBlock returns the lowest start block across indexers.
	StartBlock() uint64

	// HandleLogs applies a batch to every interested indexer.
	HandleLogs(ctx context.Context, batch indexer.LogBatch) error
}

// Downloader drives the fetch, apply, checkpoint loop.
type Downloader struct {
	cfg         config.DownloaderConfig
	rpc         pkgrpc.EthClient
	syncManager pkgdownloader.SyncManager
	coordinator Coordinator
	log         *logger.Logger
}

// New creates a Downloader.
func New(
	cfg config.DownloaderConfig,
	rpcClient pkgrpc.EthClient,
	syncManager pkgdownloader.SyncManager,
	coordinator Coordinator,
	log *logger.Logger,
) (*Downloader, error) {
	if rpcClient == nil {
		return nil, errors.New("RPC client is required")
	}
	if syncManager == nil {
		return nil, errors.New("SyncManager is required")
	}
	if coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	d := &Downloader{
		cfg:         cfg,
		rpc:         rpcClient,
		syncManager: syncManager,
		coordinator: coordinator,
		log:         log.WithComponent(icommon.ComponentDownloader),
	}

	d.log.Info("downloader initialized")

	return d, nil
}

// Download streams logs into the coordinator until ctx is cancelled or a
// batch fails. The checkpoint only advances past fully applied ranges.
func (d *Downloader) Download(ctx context.Context) error {
	finality, err := types.ParseBlockFinality(d.cfg.Finality)
	if err != nil {
		return fmt.Errorf("invalid finality configuration: %w", err)
	}

	fetcher := NewLogFetcher(LogFetcherConfig{
		ChunkSize:    d.cfg.ChunkSize,
		Finality:     finality,
		FinalizedLag: d.cfg.FinalizedLag,
		PollInterval: d.cfg.PollInterval.Duration,
	}, d.rpc, d.coordinator, d.log)

	next, persisted, err := d.resume()
	if err != nil {
		return err
	}
	fetcher.SetMode(persisted)

	metrics.ComponentHealthSet(icommon.ComponentDownloader, true)
	defer metrics.ComponentHealthSet(icommon.ComponentDownloader, false)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("download cancelled")
			return ctx.Err()
		default:
		}

		result, err := fetcher.FetchNext(ctx, next)
		if errors.Is(err, errNoNewBlocks) {
			if mode := fetcher.GetMode(); mode != persisted {
				if err := d.syncManager.SetMode(mode); err != nil {
					return fmt.Errorf("failed to save fetch mode: %w", err)
				}
				persisted = mode
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.ErrorsInc(icommon.ComponentDownloader, "error")
			return fmt.Errorf("failed to fetch logs from block %d: %w", next, err)
		}

		err = d.coordinator.HandleLogs(ctx, result.LogBatch)

		var changed *indexer.WatchersChangedError
		if errors.As(err, &changed) {
			// the filter grew mid-range, so the rest of the range is
			// fetched again; already applied logs are skipped by receipts
			d.log.Infow("watchers changed, re-fetching",
				"block", changed.Block,
				"range_to", result.ToBlock,
			)
			metrics.RefetchInc()
			next = changed.Block
			continue
		}
		if err != nil {
			metrics.ErrorsInc(icommon.ComponentDownloader, "error")
			return fmt.Errorf("failed to handle logs: %w", err)
		}

		if err := d.syncManager.SaveCheckpoint(result.ToBlock, result.ToHash, fetcher.GetMode()); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}

		d.log.Infow("checkpoint saved",
			"block", result.ToBlock,
			"block_hash", result.ToHash.Hex(),
			"mode", fetcher.GetMode(),
			"logs_processed", len(result.Logs),
		)

		persisted = fetcher.GetMode()
		next = result.ToBlock + 1
	}
}

// resume returns the first block to fetch and the persisted fetch mode. The
// first block follows the checkpoint but never precedes the lowest indexer
// start block.
func (d *Downloader) resume() (uint64, pkgdownloader.FetchMode, error) {
	state, err := d.syncManager.GetState()
	if err != nil {
		return 0, "", fmt.Errorf("failed to get sync state: %w", err)
	}

	start := d.coordinator.StartBlock()

	if state.LastIndexedBlock == 0 && state.LastIndexedBlockHash == (common.Hash{}) {
		d.log.Infow("starting fresh download", "start_block", start)
		return start, pkgdownloader.ModeBackfill, nil
	}

	next := max(state.LastIndexedBlock+1, start)
	d.log.Infow("resuming download",
		"last_indexed_block", state.LastIndexedBlock,
		"next_block", next,
		"mode", state.GetMode(),
	)

	return next, state.GetMode(), nil
}

// Close closes the sync manager and the RPC client.
func (d *Downloader) Close() error {
	d.log.Info("closing downloader")

	var err error
	if d.syncManager != nil {
		err = d.syncManager.Close()
	}

	if d.rpc != nil {
		d.rpc.Close()
	}

	return err
}
