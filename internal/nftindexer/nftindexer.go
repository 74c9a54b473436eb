// Package nftindexer applies factory, collection and marketplace logs to the
// NFT entity graph. It is registered as the "nft-marketplace" indexer type.
package nftindexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	icommon "github.com/goran-ethernal/NFTIndexor/internal/common"
	"github.com/goran-ethernal/NFTIndexor/internal/db"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/events"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	iindexer "github.com/goran-ethernal/NFTIndexor/internal/indexer"
	"github.com/goran-ethernal/NFTIndexor/internal/ledger"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/marketplace"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/reconciler"
	"github.com/goran-ethernal/NFTIndexor/internal/registrar"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
)

// Type is the indexer type name used in configuration.
const Type = "nft-marketplace"

var (
	_ indexer.Indexer   = (*Indexer)(nil)
	_ indexer.Queryable = (*Indexer)(nil)
	_ indexer.Watching  = (*Indexer)(nil)
	_ indexer.Starter   = (*Indexer)(nil)
)

func init() {
	indexer.Register(Type, func(cfg config.IndexerConfig, log *logger.Logger) (indexer.Indexer, error) {
		return New(cfg, log)
	})
}

// Indexer owns one entity database and applies logs to it one batch per
// database transaction.
type Indexer struct {
	*iindexer.BaseIndexer

	cfg         config.IndexerConfig
	store       *sqlite.Store
	maintenance db.Maintenance
	log         *logger.Logger

	factories    map[common.Address]entity.TokenStandard
	marketplaces map[common.Address]struct{}

	registry indexer.WatcherRegistry
	watched  map[common.Address]entity.TokenStandard
}

// New opens the entity database of cfg and builds the indexer.
func New(cfg config.IndexerConfig, log *logger.Logger) (*Indexer, error) {
	st, err := sqlite.Open(cfg.DB, log.WithComponent(icommon.ComponentStore))
	if err != nil {
		return nil, fmt.Errorf("failed to open entity store: %w", err)
	}

	idx, err := NewWithStore(cfg, st, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	return idx, nil
}

// NewWithStore builds the indexer over an open store.
func NewWithStore(cfg config.IndexerConfig, st *sqlite.Store, log *logger.Logger) (*Indexer, error) {
	if cfg.NFT == nil {
		return nil, errors.New("nft section is required")
	}

	log = log.WithComponent(icommon.ComponentNFTIndexer)

	factories := make(map[common.Address]entity.TokenStandard)
	for standard, addrs := range map[entity.TokenStandard][]string{
		entity.ERC721:  cfg.NFT.ERC721Factories,
		entity.ERC1155: cfg.NFT.ERC1155Factories,
		entity.ERC6909: cfg.NFT.ERC6909Factories,
	} {
		for _, a := range addrs {
			addr := common.HexToAddress(a)
			if existing, dup := factories[addr]; dup && existing != standard {
				return nil, fmt.Errorf("factory %s is configured as both %s and %s", addr.Hex(), existing, standard)
			}
			factories[addr] = standard
		}
	}

	marketplaces := make(map[common.Address]struct{}, len(cfg.NFT.Marketplaces))
	for _, a := range cfg.NFT.Marketplaces {
		marketplaces[common.HexToAddress(a)] = struct{}{}
	}

	return &Indexer{
		BaseIndexer: iindexer.NewBaseIndexer(st.DB(), log, cfg, entity.Kinds),
		cfg:         cfg,
		store:       st,
		maintenance: db.NewMaintenanceCoordinator(
			cfg.Name, cfg.DB.Path, st.DB(), cfg.Maintenance, log.WithComponent(icommon.ComponentMaintenance),
		),
		log:          log,
		factories:    factories,
		marketplaces: marketplaces,
		watched:      make(map[common.Address]entity.TokenStandard),
	}, nil
}

// EventsToIndex returns the configured factories and marketplaces.
// Collections are added at runtime through the watcher registry.
func (n *Indexer) EventsToIndex() map[common.Address]map[common.Hash]struct{} {
	out := make(map[common.Address]map[common.Hash]struct{}, len(n.factories)+len(n.marketplaces))

	for addr, standard := range n.factories {
		topic, _ := events.FactoryTopic(standard)
		out[addr] = map[common.Hash]struct{}{topic: {}}
	}

	for addr := range n.marketplaces {
		topics := make(map[common.Hash]struct{})
		for _, t := range events.MarketplaceTopics() {
			topics[t] = struct{}{}
		}
		out[addr] = topics
	}

	return out
}

// BindWatchers keeps registry for runtime registrations and re-watches
// every collection stored by earlier runs.
func (n *Indexer) BindWatchers(ctx context.Context, registry indexer.WatcherRegistry) error {
	n.registry = registry

	collections, err := n.store.Collections(ctx)
	if err != nil {
		return err
	}

	for _, c := range collections {
		if err := n.watch(c.TokenAddress, c.TokenType); err != nil {
			return err
		}
	}

	n.log.Infow("collection watchers restored", "collections", len(collections))

	return nil
}

// Start runs the entity database maintenance until ctx is done.
func (n *Indexer) Start(ctx context.Context) error {
	return n.maintenance.Start(ctx)
}

// watch registers the collection topics of address and reports whether the
// filter changed.
func (n *Indexer) watch(address common.Address, standard entity.TokenStandard) error {
	if n.registry == nil {
		return errors.New("watcher registry is not bound")
	}

	if _, ok := n.watched[address]; ok {
		return nil
	}

	if err := n.registry.RegisterWatcher(n, address, events.CollectionTopics(standard)); err != nil {
		return err
	}
	n.watched[address] = standard

	return nil
}

// HandleLogs applies batch in one database transaction. Logs that already
// have a receipt are skipped. When a log deploys a collection the batch is
// committed up to that log and a *indexer.WatchersChangedError is returned so
// the caller re-fetches with the collection's topics.
func (n *Indexer) HandleLogs(ctx context.Context, batch indexer.LogBatch) error {
	if len(batch.Logs) == 0 {
		return nil
	}

	unlock := n.maintenance.AcquireOperationLock()
	defer unlock()

	tx, err := n.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	u := newUnit(n, tx)

	for _, log := range batch.Logs {
		if err := ctx.Err(); err != nil {
			return err
		}

		changed, err := u.apply(log, batch.Timestamp(log.BlockNumber))
		if err != nil {
			return fmt.Errorf("log %s-%d at block %d: %w", log.TxHash.Hex(), log.Index, log.BlockNumber, err)
		}

		if changed {
			// the scope of this transaction stays open, the rest of the
			// transaction is replayed after the re-fetch
			if err := tx.Commit(); err != nil {
				return err
			}

			return &indexer.WatchersChangedError{
				Block:    log.BlockNumber,
				TxIndex:  log.TxIndex,
				LogIndex: log.Index,
			}
		}
	}

	if err := u.closeScope(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	n.log.Debugw("batch applied",
		"from_block", batch.FromBlock,
		"to_block", batch.ToBlock,
		"logs", len(batch.Logs),
		"applied", u.applied,
		"deduplicated", u.deduplicated,
	)

	return nil
}

// Close stops maintenance and closes the entity database.
func (n *Indexer) Close() error {
	return errors.Join(n.maintenance.Stop(), n.store.Close())
}

// unit is the state of one HandleLogs call.
type unit struct {
	n  *Indexer
	tx *sqlite.Tx

	ledger      *ledger.Ledger
	registrar   *registrar.Registrar
	reconciler  *reconciler.Reconciler
	marketplace *marketplace.Tracker

	scope   *ledger.Scope
	changed bool

	applied, deduplicated int
}

func newUnit(n *Indexer, tx *sqlite.Tx) *unit {
	u := &unit{
		n:           n,
		tx:          tx,
		ledger:      ledger.New(tx, n.log.WithComponent(icommon.ComponentLedger)),
		reconciler:  reconciler.New(tx, n.log.WithComponent(icommon.ComponentReconciler)),
		marketplace: marketplace.New(tx, n.log.WithComponent(icommon.ComponentMarketplace)),
	}
	u.registrar = registrar.New(tx, u, n.log.WithComponent(icommon.ComponentRegistrar))

	return u
}

// WatchCollection implements registrar.Watchers.
func (u *unit) WatchCollection(address common.Address, standard entity.TokenStandard) error {
	if _, ok := u.n.watched[address]; ok {
		return nil
	}

	if err := u.n.watch(address, standard); err != nil {
		return err
	}
	u.changed = true

	return nil
}

// apply handles one log and reports whether it registered new watchers.
func (u *unit) apply(log types.Log, timestamp uint64) (bool, error) {
	if u.scope == nil || u.scope.TxHash() != log.TxHash {
		if err := u.closeScope(); err != nil {
			return false, err
		}
		u.scope = u.ledger.Begin(log.TxHash)
	}

	receiptID := identity.EventID(log.TxHash, log.Index)
	seen, err := store.Exists[entity.EventReceipt](u.tx, entity.TableEventReceipts, receiptID)
	if err != nil {
		return false, err
	}
	if seen {
		u.deduplicated++
		metrics.EventDeduplicatedInc()
		return false, nil
	}

	ev, err := events.Decode(log, timestamp)
	if errors.Is(err, events.ErrUnknownEvent) {
		u.n.log.Debugw("ignoring unknown event", "error", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := u.dispatch(ev); err != nil {
		return false, fmt.Errorf("failed to handle %s: %w", ev.EventName(), err)
	}

	if err := u.tx.Save(entity.TableEventReceipts, &entity.EventReceipt{
		ID:          receiptID,
		BlockNumber: log.BlockNumber,
		ProcessedAt: uint64(time.Now().Unix()), //nolint:gosec
	}); err != nil {
		return false, err
	}

	u.applied++
	metrics.EventHandledInc(ev.EventName())

	changed := u.changed
	u.changed = false

	return changed, nil
}

func (u *unit) dispatch(ev events.Event) error {
	switch e := ev.(type) {
	case *events.CollectionCreated:
		return u.registrar.HandleCollectionCreated(e)
	case *events.ERC721Transfer:
		return u.reconciler.HandleERC721Transfer(u.scope, e)
	case *events.TransferSingle:
		return u.reconciler.HandleTransferSingle(u.scope, e)
	case *events.TransferBatch:
		return u.reconciler.HandleTransferBatch(u.scope, e)
	case *events.ERC6909Transfer:
		return u.reconciler.HandleERC6909Transfer(u.scope, e)
	case *events.OperatorSet:
		return u.reconciler.HandleOperatorSet(e)
	case *events.OwnershipTransferred:
		return u.reconciler.HandleOwnershipTransferred(e)
	case *events.ListingCreated:
		return u.marketplace.HandleListingCreated(e)
	case *events.ListingCancelled:
		return u.marketplace.HandleListingCancelled(e)
	case *events.ListingSold:
		return u.marketplace.HandleListingSold(u.scope, e)
	case *events.BidPlaced:
		return u.marketplace.HandleBidPlaced(e)
	case *events.BidOutbid:
		return u.marketplace.HandleBidOutbid(e)
	case *events.BidCancelled:
		return u.marketplace.HandleBidCancelled(e)
	case *events.BidAccepted:
		return u.marketplace.HandleBidAccepted(u.scope, e)
	default:
		return fmt.Errorf("%w: %s", events.ErrUnknownEvent, ev.EventName())
	}
}

// closeScope discards the unconsumed breadcrumbs of the current transaction.
func (u *unit) closeScope() error {
	if u.scope == nil {
		return nil
	}

	if _, err := u.scope.Close(); err != nil {
		return fmt.Errorf("failed to close ledger scope of %s: %w", u.scope.TxHash().Hex(), err)
	}
	u.scope = nil

	return nil
}
