package registrar

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/events"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite/sqlitetest"
	"github.com/stretchr/testify/require"
)

var (
	factoryAddr = common.HexToAddress("0xFAC7000000000000000000000000000000000001")
	owner       = common.HexToAddress("0x0000000000000000000000000000000000000abc")
)

type watch struct {
	address  common.Address
	standard entity.TokenStandard
	// collectionSaved reports whether the collection row existed when the
	// watcher was registered.
	collectionSaved bool
}

type recordingWatchers struct {
	tx      *sqlite.Tx
	watches []watch
	err     error
}

func (w *recordingWatchers) WatchCollection(address common.Address, standard entity.TokenStandard) error {
	if w.err != nil {
		return w.err
	}

	saved, err := store.Exists[entity.Collection](w.tx, entity.TableCollections, identity.Address(address))
	if err != nil {
		return err
	}

	w.watches = append(w.watches, watch{address: address, standard: standard, collectionSaved: saved})

	return nil
}

func created(standard entity.TokenStandard, nft common.Address, name string, ts uint64) *events.CollectionCreated {
	return &events.CollectionCreated{
		Meta:       events.Meta{Address: factoryAddr, Timestamp: ts},
		Standard:   standard,
		NFTAddress: nft,
		Owner:      owner,
		Name:       name,
		Symbol:     "SYM",
	}
}

func TestRegistrar_CountsCollectionsPerFactory(t *testing.T) {
	_, tx := sqlitetest.Begin(t)
	w := &recordingWatchers{tx: tx}
	r := New(tx, w, logger.NewNopLogger())

	nfts := []common.Address{
		common.HexToAddress("0x1000000000000000000000000000000000000001"),
		common.HexToAddress("0x1000000000000000000000000000000000000002"),
		common.HexToAddress("0x1000000000000000000000000000000000000003"),
	}

	for i, nft := range nfts {
		require.NoError(t, r.HandleCollectionCreated(created(entity.ERC1155, nft, "c", uint64(10+i))))

		factory, err := store.Get[entity.Factory](tx, entity.TableFactories, identity.Address(factoryAddr))
		require.NoError(t, err)
		require.NotNil(t, factory)
		require.Equal(t, uint64(i+1), factory.NFTCount)
		require.Equal(t, entity.ERC1155, factory.Type)
		require.Equal(t, uint64(10), factory.CreatedAt)
	}

	require.Len(t, w.watches, len(nfts))
	for i, got := range w.watches {
		require.Equal(t, nfts[i], got.address)
		require.Equal(t, entity.ERC1155, got.standard)
		require.False(t, got.collectionSaved)
	}
}

func TestRegistrar_StoresCollection(t *testing.T) {
	_, tx := sqlitetest.Begin(t)
	r := New(tx, &recordingWatchers{tx: tx}, logger.NewNopLogger())
	nft := common.HexToAddress("0xABCDEF0000000000000000000000000000000001")

	require.NoError(t, r.HandleCollectionCreated(created(entity.ERC721, nft, "Punks", 1234)))

	got, err := store.Get[entity.Collection](tx, entity.TableCollections, identity.Address(nft))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "0xabcdef0000000000000000000000000000000001", got.ID)
	require.Equal(t, identity.Address(factoryAddr), got.Factory)
	require.Equal(t, owner, got.Creator)
	require.Equal(t, "Punks", got.Name)
	require.Equal(t, "SYM", got.Symbol)
	require.Equal(t, nft, got.TokenAddress)
	require.Equal(t, entity.ERC721, got.TokenType)
	require.Equal(t, uint64(1234), got.ContractCreatedAt)
}

func TestRegistrar_WatcherFailure(t *testing.T) {
	_, tx := sqlitetest.Begin(t)
	boom := errors.New("registry closed")
	r := New(tx, &recordingWatchers{tx: tx, err: boom}, logger.NewNopLogger())
	nft := common.HexToAddress("0x2000000000000000000000000000000000000001")

	err := r.HandleCollectionCreated(created(entity.ERC6909, nft, "c", 1))
	require.ErrorIs(t, err, boom)

	exists, err := store.Exists[entity.Collection](tx, entity.TableCollections, identity.Address(nft))
	require.NoError(t, err)
	require.False(t, exists)
}
