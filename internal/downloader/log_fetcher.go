package downloader

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	icommon "github.com/goran-ethernal/NFTIndexor/internal/common"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	itypes "github.com/goran-ethernal/NFTIndexor/internal/types"
	pkgdownloader "github.com/goran-ethernal/NFTIndexor/pkg/downloader"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
	pkgrpc "github.com/goran-ethernal/NFTIndexor/pkg/rpc"
)

// errNoNewBlocks is returned by FetchNext when live mode found nothing to
// fetch within one poll interval.
var errNoNewBlocks = errors.New("no new blocks")

// LogFetcherConfig contains configuration for the LogFetcher.
type LogFetcherConfig struct {
	// ChunkSize is the number of blocks to fetch per request
	ChunkSize uint64

	Finality itypes.BlockFinality

	// FinalizedLag is subtracted from the head in "latest" mode
	FinalizedLag uint64

	// PollInterval is the live mode wait between head checks
	PollInterval time.Duration
}

// LogFetcher fetches logs and the timestamps of their blocks.
type LogFetcher struct {
	cfg    LogFetcherConfig
	rpc    pkgrpc.EthClient
	filter FilterSource
	log    *logger.Logger
	mode   pkgdownloader.FetchMode
}

func NewLogFetcher(cfg LogFetcherConfig, rpcClient pkgrpc.EthClient, filter FilterSource, log *logger.Logger) *LogFetcher {
	return &LogFetcher{
		cfg:    cfg,
		rpc:    rpcClient,
		filter: filter,
		log:    log.WithComponent(icommon.ComponentLogFetcher),
		mode:   pkgdownloader.ModeBackfill,
	}
}

// SetMode changes the fetcher's operating mode.
func (lf *LogFetcher) SetMode(mode pkgdownloader.FetchMode) {
	if lf.mode != mode {
		lf.log.Infow("switching fetch mode", "from", lf.mode, "to", mode)
	}
	lf.mode = mode
}

// GetMode returns the current operating mode.
func (lf *LogFetcher) GetMode() pkgdownloader.FetchMode {
	return lf.mode
}

// FetchRange fetches the logs of [fromBlock, toBlock] in canonical order
// together with the timestamps of every block that has a log, and of toBlock.
func (lf *LogFetcher) FetchRange(ctx context.Context, fromBlock, toBlock uint64) (*FetchResult, error) {
	addresses, topics := lf.filter.Filter()

	var logs []types.Log
	if len(addresses) > 0 {
		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: addresses,
			Topics:    topics,
		}

		fetched, err := lf.rpc.GetLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch logs: %w", err)
		}

		logs = slices.DeleteFunc(fetched, func(l types.Log) bool { return l.Removed })
	}

	slices.SortStableFunc(logs, func(a, b types.Log) int {
		return cmp.Or(
			cmp.Compare(a.BlockNumber, b.BlockNumber),
			cmp.Compare(a.TxIndex, b.TxIndex),
			cmp.Compare(a.Index, b.Index),
		)
	})

	blockNums := make([]uint64, 0, len(logs)+1)
	for _, l := range logs {
		if n := len(blockNums); n == 0 || blockNums[n-1] != l.BlockNumber {
			blockNums = append(blockNums, l.BlockNumber)
		}
	}
	if n := len(blockNums); n == 0 || blockNums[n-1] != toBlock {
		blockNums = append(blockNums, toBlock)
	}

	headers, err := lf.rpc.BatchGetBlockHeaders(ctx, blockNums)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch headers: %w", err)
	}

	blockTimes := make(map[uint64]uint64, len(headers))
	for _, h := range headers {
		blockTimes[h.Number.Uint64()] = h.Time
	}

	lf.log.Debugw("fetched range",
		"from_block", fromBlock,
		"to_block", toBlock,
		"logs_count", len(logs),
		"addresses", len(addresses),
		"mode", lf.mode,
	)

	return &FetchResult{
		LogBatch: indexer.LogBatch{
			Logs:       logs,
			BlockTimes: blockTimes,
			FromBlock:  fromBlock,
			ToBlock:    toBlock,
		},
		ToHash: headers[len(headers)-1].Hash(),
	}, nil
}

// FetchNext fetches the chunk starting at fromBlock. Backfill switches to
// live once it reaches the safe head. When the head is behind fromBlock it
// waits one poll interval and returns errNoNewBlocks.
func (lf *LogFetcher) FetchNext(ctx context.Context, fromBlock uint64) (*FetchResult, error) {
	head, err := lf.SafeHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get safe head: %w", err)
	}

	if fromBlock > head {
		if lf.mode == pkgdownloader.ModeBackfill {
			lf.log.Infow("backfill complete", "head", head)
			lf.SetMode(pkgdownloader.ModeLive)
		}

		lf.log.Debugw("waiting for new blocks", "from_block", fromBlock, "head", head)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lf.cfg.PollInterval):
			return nil, errNoNewBlocks
		}
	}

	// live mode still chunks when it falls behind
	toBlock := min(fromBlock+lf.cfg.ChunkSize-1, head)

	return lf.FetchRange(ctx, fromBlock, toBlock)
}

// SafeHead returns the highest block considered safe to index.
func (lf *LogFetcher) SafeHead(ctx context.Context) (uint64, error) {
	header, err := lf.rpc.GetHeadHeader(ctx, lf.cfg.Finality)
	if err != nil {
		return 0, err
	}

	return lf.cfg.Finality.SafeHead(header.Number.Uint64(), lf.cfg.FinalizedLag), nil
}
