package sqlite_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite/sqlitetest"
	"github.com/stretchr/testify/require"
)

func TestTx_SaveLoadRemove(t *testing.T) {
	_, tx := sqlitetest.Begin(t)

	listingRef := "7"
	in := &entity.Transfer{
		ID:              "0x01-3",
		Instance:        "0xaa-1",
		From:            common.HexToAddress("0x01"),
		To:              common.HexToAddress("0x02"),
		Amount:          big.NewInt(5),
		Timestamp:       1700000000,
		TransactionHash: common.HexToHash("0x01"),
		BlockNumber:     100,
		TransferType:    entity.TransferMarketplaceSale,
		RelatedListing:  &listingRef,
	}
	require.NoError(t, tx.Save(entity.TableTransfers, in))

	out := new(entity.Transfer)
	found, err := tx.Load(entity.TableTransfers, in.ID, out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in.From, out.From)
	require.Equal(t, 0, in.Amount.Cmp(out.Amount))
	require.Equal(t, entity.TransferMarketplaceSale, out.TransferType)
	require.NotNil(t, out.RelatedListing)
	require.Equal(t, "7", *out.RelatedListing)
	require.Nil(t, out.RelatedBid)

	// upsert keeps a single row
	in.Amount = big.NewInt(6)
	require.NoError(t, tx.Save(entity.TableTransfers, in))
	got, err := store.Get[entity.Transfer](tx, entity.TableTransfers, in.ID)
	require.NoError(t, err)
	require.Equal(t, int64(6), got.Amount.Int64())

	require.NoError(t, tx.Remove(entity.TableTransfers, in.ID))
	require.NoError(t, tx.Remove(entity.TableTransfers, in.ID))

	found, err = tx.Load(entity.TableTransfers, in.ID, new(entity.Transfer))
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadOrCreate(t *testing.T) {
	_, tx := sqlitetest.Begin(t)

	initCalls := 0
	newFactory := func() *entity.Factory {
		initCalls++
		return &entity.Factory{ID: "0xf1", Type: entity.ERC721, CreatedAt: 10}
	}

	loaded, err := store.LoadOrCreate(tx, entity.TableFactories, "0xf1", newFactory)
	require.NoError(t, err)
	require.True(t, loaded.Fresh)
	require.Equal(t, 1, initCalls)

	exists, err := store.Exists[entity.Factory](tx, entity.TableFactories, "0xf1")
	require.NoError(t, err)
	require.False(t, exists, "fresh values are not saved implicitly")

	loaded.Entity.NFTCount++
	require.NoError(t, tx.Save(entity.TableFactories, loaded.Entity))

	loaded, err = store.LoadOrCreate(tx, entity.TableFactories, "0xf1", newFactory)
	require.NoError(t, err)
	require.False(t, loaded.Fresh)
	require.Equal(t, 1, initCalls)
	require.Equal(t, uint64(1), loaded.Entity.NFTCount)
}

func TestTx_SaveRejectsNonStruct(t *testing.T) {
	_, tx := sqlitetest.Begin(t)

	require.ErrorIs(t, tx.Save(entity.TableFactories, "nope"), store.ErrInvalidEntity)
}

func TestTx_PendingTransfers(t *testing.T) {
	_, tx := sqlitetest.Begin(t)

	txA := common.HexToHash("0xa")
	txB := common.HexToHash("0xb")
	listing := "1"

	for _, p := range []*entity.PendingTransfer{
		{ID: "a-1", TransactionHash: txA, TokenID: big.NewInt(1), TransferType: entity.TransferMarketplaceSale, ListingID: &listing},
		{ID: "a-2", TransactionHash: txA, TokenID: big.NewInt(2), TransferType: entity.TransferMarketplaceSale, ListingID: &listing},
		{ID: "b-1", TransactionHash: txB, TokenID: big.NewInt(1), TransferType: entity.TransferMarketplaceSale, ListingID: &listing},
	} {
		require.NoError(t, tx.Save(entity.TablePendingTransfers, p))
	}

	pending, err := tx.PendingTransfers(txA)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "a-1", pending[0].ID)
	require.Equal(t, "a-2", pending[1].ID)
}

func TestStore_CommitAndRollback(t *testing.T) {
	s := sqlitetest.Open(t)
	ctx := context.Background()

	col := &entity.Collection{
		ID:           "0xc1",
		Factory:      "0xf1",
		TokenAddress: common.HexToAddress("0xc1"),
		TokenType:    entity.ERC1155,
		Name:         "Things",
		Symbol:       "THG",
	}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(entity.TableCollections, col))
	tx.Rollback()

	collections, err := s.Collections(ctx)
	require.NoError(t, err)
	require.Empty(t, collections)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(entity.TableCollections, col))
	require.NoError(t, tx.Commit())
	tx.Rollback()

	collections, err = s.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	require.Equal(t, col.TokenAddress, collections[0].TokenAddress)
	require.Equal(t, entity.ERC1155, collections[0].TokenType)
}
