package nftindexer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/events"
	"github.com/goran-ethernal/NFTIndexor/internal/events/eventstest"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite/sqlitetest"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
	"github.com/stretchr/testify/require"
)

var (
	factory    = common.HexToAddress("0xFAC7000000000000000000000000000000000001")
	market     = common.HexToAddress("0x3A4B000000000000000000000000000000000001")
	collection = common.HexToAddress("0xC011000000000000000000000000000000000001")
	creator    = common.HexToAddress("0xC4EA700000000000000000000000000000000001")
	buyer      = common.HexToAddress("0xB0B0000000000000000000000000000000000001")
	currency   = common.HexToAddress("0xC0FFEE0000000000000000000000000000000001")
)

// registry records watcher registrations.
type registry struct {
	watched map[common.Address][]common.Hash
}

func (r *registry) RegisterWatcher(_ indexer.Indexer, address common.Address, topics []common.Hash) error {
	if r.watched == nil {
		r.watched = make(map[common.Address][]common.Hash)
	}
	r.watched[address] = topics

	return nil
}

func testConfig() config.IndexerConfig {
	return config.IndexerConfig{
		Name: "main",
		Type: Type,
		NFT: &config.NFTConfig{
			ERC721Factories: []string{factory.Hex()},
			Marketplaces:    []string{market.Hex()},
		},
	}
}

func newIndexer(t *testing.T, st *sqlite.Store) (*Indexer, *registry) {
	t.Helper()

	idx, err := NewWithStore(testConfig(), st, logger.NewNopLogger())
	require.NoError(t, err)

	reg := &registry{}
	require.NoError(t, idx.BindWatchers(context.Background(), reg))

	return idx, reg
}

func get[T any](t *testing.T, st *sqlite.Store, table, id string) *T {
	t.Helper()

	tx, err := st.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	v, err := store.Get[T](tx, table, id)
	require.NoError(t, err)

	return v
}

func batch(logs ...types.Log) indexer.LogBatch {
	times := make(map[uint64]uint64)
	for _, l := range logs {
		times[l.BlockNumber] = 1_700_000_000 + l.BlockNumber
	}

	return indexer.LogBatch{
		Logs:       logs,
		BlockTimes: times,
		FromBlock:  logs[0].BlockNumber,
		ToBlock:    logs[len(logs)-1].BlockNumber,
	}
}

func TestNew_RequiresNFTSection(t *testing.T) {
	_, err := NewWithStore(config.IndexerConfig{Name: "main", Type: Type}, sqlitetest.Open(t), logger.NewNopLogger())
	require.ErrorContains(t, err, "nft section is required")
}

func TestNew_RejectsFactoryWithTwoStandards(t *testing.T) {
	cfg := testConfig()
	cfg.NFT.ERC1155Factories = []string{factory.Hex()}

	_, err := NewWithStore(cfg, sqlitetest.Open(t), logger.NewNopLogger())
	require.ErrorContains(t, err, "configured as both")
}

func TestIndexer_EventsToIndex(t *testing.T) {
	idx, _ := newIndexer(t, sqlitetest.Open(t))

	got := idx.EventsToIndex()
	require.Len(t, got, 2)
	require.Equal(t, map[common.Hash]struct{}{events.TopicNFT721Created: {}}, got[factory])
	require.Len(t, got[market], len(events.MarketplaceTopics()))
	require.Contains(t, got[market], events.TopicListingSold)
}

func TestIndexer_CollectionCreatedChangesWatchers(t *testing.T) {
	st := sqlitetest.Open(t)
	idx, reg := newIndexer(t, st)
	ctx := context.Background()

	deploy := eventstest.NewTx(t, 10, common.HexToHash("0x01"), 0, 0)
	mint := eventstest.NewTx(t, 12, common.HexToHash("0x02"), 3, 5)

	b := batch(
		deploy.Log(events.FactoryABI.Events["NFT721Created"], factory, collection, creator, "Punks", "PNK"),
		mint.Log(events.ERC721ABI.Events["Transfer"], collection, common.Address{}, creator, big.NewInt(1)),
	)

	err := idx.HandleLogs(ctx, b)
	var changed *indexer.WatchersChangedError
	require.ErrorAs(t, err, &changed)
	require.Equal(t, indexer.WatchersChangedError{Block: 10, TxIndex: 0, LogIndex: 0}, *changed)
	require.Equal(t, events.CollectionTopics(entity.ERC721), reg.watched[collection])

	c := get[entity.Collection](t, st, entity.TableCollections, identity.Address(collection))
	require.NotNil(t, c)
	require.Equal(t, "Punks", c.Name)

	// the re-fetched range replays the deploy log, which is skipped
	require.NoError(t, idx.HandleLogs(ctx, b))

	f := get[entity.Factory](t, st, entity.TableFactories, identity.Address(factory))
	require.Equal(t, uint64(1), f.NFTCount)

	transfer := get[entity.Transfer](t, st, entity.TableTransfers, identity.EventID(mint.Hash, 5))
	require.NotNil(t, transfer)
	require.Equal(t, entity.TransferMint, transfer.TransferType)
	require.Equal(t, uint64(1_700_000_012), transfer.Timestamp)

	// a third delivery is a no-op
	require.NoError(t, idx.HandleLogs(ctx, b))

	instanceID := identity.InstanceID(collection, big.NewInt(1))
	inst := get[entity.TokenInstance](t, st, entity.TableTokenInstances, instanceID)
	require.Equal(t, "1", inst.TotalSupply.String())

	bal := get[entity.TokenBalance](t, st, entity.TableTokenBalances, identity.BalanceID(instanceID, creator))
	require.Equal(t, "1", bal.Amount.String())
}

func TestIndexer_MarketplaceSale(t *testing.T) {
	st := sqlitetest.Open(t)
	idx, _ := newIndexer(t, st)
	ctx := context.Background()

	list := eventstest.NewTx(t, 20, common.HexToHash("0x0a"), 0, 0)
	sale := eventstest.NewTx(t, 21, common.HexToHash("0x0b"), 0, 0)

	require.NoError(t, idx.HandleLogs(ctx, batch(
		list.Log(events.MarketplaceABI.Events["ListingCreated"], market,
			big.NewInt(1), creator, collection, big.NewInt(7), big.NewInt(1), big.NewInt(1000), currency),
		sale.Log(events.MarketplaceABI.Events["ListingSold"], market, big.NewInt(1), collection, big.NewInt(7)),
		sale.Log(events.ERC721ABI.Events["Transfer"], collection, creator, buyer, big.NewInt(7)),
	)))

	listing := get[entity.Listing](t, st, entity.TableListings, "1")
	require.Equal(t, entity.ListingSold, listing.Status)

	transfer := get[entity.Transfer](t, st, entity.TableTransfers, identity.EventID(sale.Hash, 1))
	require.Equal(t, entity.TransferMarketplaceSale, transfer.TransferType)
	require.Equal(t, "1", *transfer.RelatedListing)

	pending := get[entity.PendingTransfer](t, st, entity.TablePendingTransfers,
		identity.PendingTransferID(sale.Hash, collection, big.NewInt(7)))
	require.Nil(t, pending)
}

func TestIndexer_DecodeFailureRollsBackBatch(t *testing.T) {
	st := sqlitetest.Open(t)
	idx, _ := newIndexer(t, st)

	list := eventstest.NewTx(t, 20, common.HexToHash("0x0a"), 0, 0)
	sale := eventstest.NewTx(t, 21, common.HexToHash("0x0b"), 0, 0)

	created := list.Log(events.MarketplaceABI.Events["ListingCreated"], market,
		big.NewInt(1), creator, collection, big.NewInt(7), big.NewInt(1), big.NewInt(1000), currency)
	sold := sale.Log(events.MarketplaceABI.Events["ListingSold"], market, big.NewInt(1), collection, big.NewInt(7))
	sold.Data = sold.Data[:16]

	err := idx.HandleLogs(context.Background(), batch(created, sold))
	require.ErrorIs(t, err, events.ErrDecode)

	require.Nil(t, get[entity.Listing](t, st, entity.TableListings, "1"))
	require.Nil(t, get[entity.EventReceipt](t, st, entity.TableEventReceipts, identity.EventID(list.Hash, 0)))
}

func TestIndexer_UnknownEventsAreSkipped(t *testing.T) {
	st := sqlitetest.Open(t)
	idx, _ := newIndexer(t, st)

	log := types.Log{
		Address:     market,
		Topics:      []common.Hash{common.HexToHash("0xdead")},
		BlockNumber: 5,
		TxHash:      common.HexToHash("0x05"),
	}

	require.NoError(t, idx.HandleLogs(context.Background(), batch(log)))
	require.Nil(t, get[entity.EventReceipt](t, st, entity.TableEventReceipts, identity.EventID(log.TxHash, 0)))
}

func TestIndexer_BindWatchersRestoresCollections(t *testing.T) {
	st := sqlitetest.Open(t)
	idx, _ := newIndexer(t, st)

	deploy := eventstest.NewTx(t, 10, common.HexToHash("0x01"), 0, 0)
	err := idx.HandleLogs(context.Background(), batch(
		deploy.Log(events.FactoryABI.Events["NFT721Created"], factory, collection, creator, "Punks", "PNK"),
	))
	require.ErrorAs(t, err, new(*indexer.WatchersChangedError))

	_, reg := newIndexer(t, st)
	require.Equal(t, events.CollectionTopics(entity.ERC721), reg.watched[collection])
}

func TestIndexer_StartAndClose(t *testing.T) {
	idx, _ := newIndexer(t, sqlitetest.Open(t))

	require.NoError(t, idx.Start(context.Background()))
	require.NoError(t, idx.Close())
}
