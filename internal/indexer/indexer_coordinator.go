package indexer

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	icommon "github.com/goran-ethernal/NFTIndexor/internal/common"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
	"golang.org/x/sync/errgroup"
)

// Compile-time check that the coordinator is the watcher registry handed to
// indexers.
var _ indexer.WatcherRegistry = (*IndexerCoordinator)(nil)

// IndexerCoordinator routes logs to indexers by address and topic and owns
// the log filter, which grows when indexers register watchers at runtime.
type IndexerCoordinator struct {
	mu sync.RWMutex

	// addressTopics maps address -> topic -> indexers for specific topic filters
	addressTopics map[common.Address]map[common.Hash][]indexer.Indexer

	// addressAllTopics maps address -> indexers that want ALL topics from that address
	addressAllTopics map[common.Address][]indexer.Indexer

	indexers    []indexer.Indexer
	byName      map[string]indexer.Indexer
	startBlocks map[indexer.Indexer]uint64

	log *logger.Logger
}

// NewIndexerCoordinator creates an empty coordinator.
func NewIndexerCoordinator(log *logger.Logger) *IndexerCoordinator {
	return &IndexerCoordinator{
		addressTopics:    make(map[common.Address]map[common.Hash][]indexer.Indexer),
		addressAllTopics: make(map[common.Address][]indexer.Indexer),
		byName:           make(map[string]indexer.Indexer),
		startBlocks:      make(map[indexer.Indexer]uint64),
		log:              log.WithComponent(icommon.ComponentCoordinator),
	}
}

// RegisterIndexer adds idx with its statically known addresses. Names must
// be unique.
func (ic *IndexerCoordinator) RegisterIndexer(idx indexer.Indexer) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if _, dup := ic.byName[idx.GetName()]; dup {
		return fmt.Errorf("indexer %s is already registered", idx.GetName())
	}

	ic.startBlocks[idx] = idx.StartBlock()
	ic.byName[idx.GetName()] = idx
	ic.indexers = append(ic.indexers, idx)

	for addr, topics := range idx.EventsToIndex() {
		ic.routeLocked(idx, addr, topics)
	}

	ic.log.Infow("indexer registered",
		"indexer", idx.GetName(),
		"type", idx.GetType(),
		"start_block", idx.StartBlock(),
	)

	return nil
}

// Start lets every indexer that discovers contracts at runtime restore its
// watchers, then starts the indexers' background work.
func (ic *IndexerCoordinator) Start(ctx context.Context) error {
	for _, idx := range ic.ListAll() {
		if w, ok := idx.(indexer.Watching); ok {
			if err := w.BindWatchers(ctx, ic); err != nil {
				return fmt.Errorf("indexer %s failed to bind watchers: %w", idx.GetName(), err)
			}
		}

		if s, ok := idx.(indexer.Starter); ok {
			if err := s.Start(ctx); err != nil {
				return fmt.Errorf("indexer %s failed to start: %w", idx.GetName(), err)
			}
		}
	}

	return nil
}

// RegisterWatcher implements indexer.WatcherRegistry.
func (ic *IndexerCoordinator) RegisterWatcher(idx indexer.Indexer, address common.Address, topics []common.Hash) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if _, ok := ic.startBlocks[idx]; !ok {
		return fmt.Errorf("indexer %s is not registered", idx.GetName())
	}

	set := make(map[common.Hash]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	if ic.routeLocked(idx, address, set) {
		ic.log.Debugw("watcher registered",
			"indexer", idx.GetName(),
			"address", address.Hex(),
			"topics", len(topics),
		)
	}

	return nil
}

// routeLocked adds idx to the routes of addr and reports whether anything
// was added. An empty topic set routes every topic of addr.
func (ic *IndexerCoordinator) routeLocked(idx indexer.Indexer, addr common.Address, topics map[common.Hash]struct{}) bool {
	if len(topics) == 0 {
		if slices.Contains(ic.addressAllTopics[addr], idx) {
			return false
		}
		ic.addressAllTopics[addr] = append(ic.addressAllTopics[addr], idx)
		return true
	}

	if _, exists := ic.addressTopics[addr]; !exists {
		ic.addressTopics[addr] = make(map[common.Hash][]indexer.Indexer)
	}

	added := false
	for topic := range topics {
		if slices.Contains(ic.addressTopics[addr][topic], idx) {
			continue
		}
		ic.addressTopics[addr][topic] = append(ic.addressTopics[addr][topic], idx)
		added = true
	}

	return added
}

// Filter returns the eth_getLogs filter covering every route: all routed
// addresses and, unless some address wants every topic, the union of
// routed topics in position 0.
func (ic *IndexerCoordinator) Filter() ([]common.Address, [][]common.Hash) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	addrSet := make(map[common.Address]struct{})
	topicSet := make(map[common.Hash]struct{})

	for addr, topics := range ic.addressTopics {
		addrSet[addr] = struct{}{}
		for t := range topics {
			topicSet[t] = struct{}{}
		}
	}
	for addr := range ic.addressAllTopics {
		addrSet[addr] = struct{}{}
	}

	addresses := make([]common.Address, 0, len(addrSet))
	for a := range addrSet {
		addresses = append(addresses, a)
	}
	slices.SortFunc(addresses, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })

	if len(ic.addressAllTopics) > 0 || len(topicSet) == 0 {
		return addresses, nil
	}

	topics := make([]common.Hash, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}
	slices.SortFunc(topics, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })

	return addresses, [][]common.Hash{topics}
}

// StartBlock returns the lowest start block across indexers.
func (ic *IndexerCoordinator) StartBlock() uint64 {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	if len(ic.indexers) == 0 {
		return 0
	}

	lowest := ^uint64(0)
	for _, sb := range ic.startBlocks {
		lowest = min(lowest, sb)
	}

	return lowest
}

// GetByName returns the indexer registered under name, nil if none.
func (ic *IndexerCoordinator) GetByName(name string) indexer.Indexer {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	return ic.byName[name]
}

// ListAll returns the registered indexers in registration order.
func (ic *IndexerCoordinator) ListAll() []indexer.Indexer {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	return slices.Clone(ic.indexers)
}

// route splits logs per interested indexer, keeping their order and
// dropping logs before each indexer's start block.
func (ic *IndexerCoordinator) route(logs []types.Log) map[indexer.Indexer][]types.Log {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	indexerLogs := make(map[indexer.Indexer][]types.Log)

	for _, log := range logs {
		interested := make(map[indexer.Indexer]struct{})
		for _, idx := range ic.addressAllTopics[log.Address] {
			interested[idx] = struct{}{}
		}
		if len(log.Topics) > 0 {
			for _, idx := range ic.addressTopics[log.Address][log.Topics[0]] {
				interested[idx] = struct{}{}
			}
		}

		for idx := range interested {
			if log.BlockNumber >= ic.startBlocks[idx] {
				indexerLogs[idx] = append(indexerLogs[idx], log)
			}
		}
	}

	return indexerLogs
}

// HandleLogs delivers batch to the interested indexers. Each indexer sees
// its logs in batch order; distinct indexers own distinct databases and run
// concurrently. When indexers stop because they registered watchers, the
// earliest *indexer.WatchersChangedError is returned.
func (ic *IndexerCoordinator) HandleLogs(ctx context.Context, batch indexer.LogBatch) error {
	indexerLogs := ic.route(batch.Logs)

	var (
		g       errgroup.Group
		changed = make([]*indexer.WatchersChangedError, 0, len(indexerLogs))
		mu      sync.Mutex
	)

	for idx, logs := range indexerLogs {
		g.Go(func() error {
			name := idx.GetName()
			start := time.Now()
			defer func() {
				metrics.BlockProcessingTimeLog(name, time.Since(start))
			}()

			sub := batch
			sub.Logs = logs

			err := idx.HandleLogs(ctx, sub)

			var wc *indexer.WatchersChangedError
			if errors.As(err, &wc) {
				mu.Lock()
				changed = append(changed, wc)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("indexer %s failed to handle logs: %w", name, err)
			}

			logMetrics(name, len(logs), start, batch.FromBlock, batch.ToBlock)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(changed) == 0 {
		return nil
	}

	return slices.MinFunc(changed, func(a, b *indexer.WatchersChangedError) int {
		return cmp.Or(
			cmp.Compare(a.Block, b.Block),
			cmp.Compare(a.TxIndex, b.TxIndex),
			cmp.Compare(a.LogIndex, b.LogIndex),
		)
	})
}

// Close closes every indexer and returns the joined errors.
func (ic *IndexerCoordinator) Close() error {
	var errs []error
	for _, idx := range ic.ListAll() {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("indexer %s: %w", idx.GetName(), err))
		}
	}

	return errors.Join(errs...)
}

// logMetrics records metrics for the indexing operation.
func logMetrics(indexer string, numOfLogsIndexed int, processingStart time.Time, fromBlock, toBlock uint64) {
	blocksProcessed := toBlock - fromBlock + 1
	metrics.LogsIndexedInc(indexer, numOfLogsIndexed)
	metrics.BlocksProcessedInc(indexer, blocksProcessed)
	metrics.LastIndexedBlockInc(indexer, toBlock)

	elapsed := time.Since(processingStart).Seconds()
	if elapsed == 0 {
		elapsed = 1
	}

	metrics.IndexingRateLog(indexer, float64(blocksProcessed)/elapsed)
}
