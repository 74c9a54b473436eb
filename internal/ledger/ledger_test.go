package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite/sqlitetest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	token   = common.HexToAddress("0x7070000000000000000000000000000000000001")
	txHash1 = common.HexToHash("0x01")
	txHash2 = common.HexToHash("0x02")
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()

	_, tx := sqlitetest.Begin(t)

	return New(tx, logger.NewNopLogger())
}

func TestLedger_PutRequiresExactlyOneContext(t *testing.T) {
	l := newLedger(t)
	listing, bid := "1", "b"

	tests := []struct {
		name      string
		listingID *string
		bidID     *string
		wantErr   bool
	}{
		{name: "neither", wantErr: true},
		{name: "both", listingID: &listing, bidID: &bid, wantErr: true},
		{name: "listing", listingID: &listing},
		{name: "bid", bidID: &bid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Put(txHash1, token, big.NewInt(1), entity.TransferMarketplaceSale, 10, tt.listingID, tt.bidID)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrAmbiguousContext)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLedger_GetDelete(t *testing.T) {
	l := newLedger(t)
	listing := "9"

	require.NoError(t, l.Put(txHash1, token, big.NewInt(4), entity.TransferMarketplaceSale, 10, &listing, nil))

	got, err := l.Get(txHash1, token, big.NewInt(4))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, entity.TransferMarketplaceSale, got.TransferType)
	require.Equal(t, "9", *got.ListingID)
	require.Nil(t, got.BidID)

	// keyed by transaction
	other, err := l.Get(txHash2, token, big.NewInt(4))
	require.NoError(t, err)
	require.Nil(t, other)

	require.NoError(t, l.Delete(txHash1, token, big.NewInt(4)))
	got, err = l.Get(txHash1, token, big.NewInt(4))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestScope_TakeIsReadOnce(t *testing.T) {
	l := newLedger(t)
	scope := l.Begin(txHash1)
	require.Equal(t, txHash1, scope.TxHash())

	require.NoError(t, scope.PutBid(token, big.NewInt(2), "bid-1", 10))

	first, err := scope.Take(token, big.NewInt(2))
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, entity.TransferBidAcceptance, first.TransferType)
	require.Equal(t, "bid-1", *first.BidID)

	second, err := scope.Take(token, big.NewInt(2))
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestScope_CloseRemovesResidue(t *testing.T) {
	l := newLedger(t)

	scope := l.Begin(txHash1)
	require.NoError(t, scope.PutListing(token, big.NewInt(1), "1", 10))
	require.NoError(t, scope.PutListing(token, big.NewInt(2), "2", 10))

	otherScope := l.Begin(txHash2)
	require.NoError(t, otherScope.PutListing(token, big.NewInt(1), "3", 10))

	taken, err := scope.Take(token, big.NewInt(1))
	require.NoError(t, err)
	require.NotNil(t, taken)

	before := testutil.ToFloat64(metrics.PendingResidue)

	n, err := scope.Close()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.PendingResidue))

	left, err := l.Get(txHash1, token, big.NewInt(2))
	require.NoError(t, err)
	require.Nil(t, left)

	// other transactions keep their breadcrumbs
	kept, err := l.Get(txHash2, token, big.NewInt(1))
	require.NoError(t, err)
	require.NotNil(t, kept)

	n, err = scope.Close()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestScope_PutOverwrites(t *testing.T) {
	l := newLedger(t)
	scope := l.Begin(txHash1)

	require.NoError(t, scope.PutListing(token, big.NewInt(1), "1", 10))
	require.NoError(t, scope.PutBid(token, big.NewInt(1), "bid", 11))

	got, err := scope.Take(token, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, entity.TransferBidAcceptance, got.TransferType)
	require.Nil(t, got.ListingID)
	require.Equal(t, uint64(11), got.CreatedAt)
}
