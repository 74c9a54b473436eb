package reconciler

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/events"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	"github.com/goran-ethernal/NFTIndexor/internal/ledger"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite/sqlitetest"
	"github.com/stretchr/testify/require"
)

var (
	collection = common.HexToAddress("0xC011EC7100000000000000000000000000000001")
	alice      = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob        = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	zero       = common.Address{}
	txHash     = common.HexToHash("0xfeed")
)

type fixture struct {
	tx     *sqlite.Tx
	rec    *Reconciler
	ledger *ledger.Ledger
	scope  *ledger.Scope
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	_, tx := sqlitetest.Begin(t)
	l := ledger.New(tx, logger.NewNopLogger())

	return &fixture{
		tx:     tx,
		rec:    New(tx, logger.NewNopLogger()),
		ledger: l,
		scope:  l.Begin(txHash),
	}
}

func meta(logIndex uint, ts uint64) events.Meta {
	return events.Meta{
		Address:     collection,
		BlockNumber: 100,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Timestamp:   ts,
	}
}

func (f *fixture) balance(t *testing.T, tokenID int64, owner common.Address) *entity.TokenBalance {
	t.Helper()

	id := identity.BalanceID(identity.InstanceID(collection, big.NewInt(tokenID)), owner)
	b, err := store.Get[entity.TokenBalance](f.tx, entity.TableTokenBalances, id)
	require.NoError(t, err)

	return b
}

func (f *fixture) instance(t *testing.T, tokenID int64) *entity.TokenInstance {
	t.Helper()

	inst, err := store.Get[entity.TokenInstance](f.tx, entity.TableTokenInstances,
		identity.InstanceID(collection, big.NewInt(tokenID)))
	require.NoError(t, err)

	return inst
}

func (f *fixture) transfer(t *testing.T, logIndex uint) *entity.Transfer {
	t.Helper()

	tr, err := store.Get[entity.Transfer](f.tx, entity.TableTransfers, identity.EventID(txHash, logIndex))
	require.NoError(t, err)
	require.NotNil(t, tr)

	return tr
}

func TestReconciler_ERC721Mint(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.rec.HandleERC721Transfer(f.scope, &events.ERC721Transfer{
		Meta: meta(0, 1000), From: zero, To: alice, TokenID: big.NewInt(9),
	}))

	tr := f.transfer(t, 0)
	require.Equal(t, entity.TransferMint, tr.TransferType)
	require.Nil(t, tr.RelatedListing)
	require.Nil(t, tr.RelatedBid)
	require.Equal(t, uint64(100), tr.BlockNumber)

	inst := f.instance(t, 9)
	require.NotNil(t, inst)
	require.Equal(t, "1", inst.TotalSupply.String())
	require.Equal(t, uint64(1000), inst.MintedAt)
	require.Equal(t, identity.Address(collection), inst.Collection)

	require.Nil(t, f.balance(t, 9, zero))

	b := f.balance(t, 9, alice)
	require.NotNil(t, b)
	require.Equal(t, "1", b.Amount.String())
	require.Equal(t, uint64(1000), b.CreatedAt)
	require.Equal(t, uint64(1000), b.LastUpdatedAt)
}

func TestReconciler_ERC721OverwritesBalances(t *testing.T) {
	f := newFixture(t)

	// Seed inflated balances to show that unique transfers do not accumulate.
	instanceID := identity.InstanceID(collection, big.NewInt(3))
	for _, owner := range []common.Address{alice, bob} {
		require.NoError(t, f.tx.Save(entity.TableTokenBalances, &entity.TokenBalance{
			ID:       identity.BalanceID(instanceID, owner),
			Instance: instanceID,
			Owner:    owner,
			Amount:   big.NewInt(5),
		}))
	}

	require.NoError(t, f.rec.HandleERC721Transfer(f.scope, &events.ERC721Transfer{
		Meta: meta(4, 2000), From: alice, To: bob, TokenID: big.NewInt(3),
	}))

	require.Equal(t, "0", f.balance(t, 3, alice).Amount.String())
	require.Equal(t, "1", f.balance(t, 3, bob).Amount.String())
	require.Equal(t, uint64(2000), f.balance(t, 3, alice).LastUpdatedAt)
	require.Equal(t, entity.TransferDirect, f.transfer(t, 4).TransferType)
}

func TestReconciler_DebitOfMissingBalanceIsSkipped(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.rec.HandleTransferSingle(f.scope, &events.TransferSingle{
		Meta: meta(0, 10), From: alice, To: bob, ID: big.NewInt(1), Value: big.NewInt(4),
	}))

	require.Nil(t, f.balance(t, 1, alice))
	require.Equal(t, "4", f.balance(t, 1, bob).Amount.String())
	require.Equal(t, "4", f.instance(t, 1).TotalSupply.String())
}

func TestReconciler_AdditiveBalancesAndSupply(t *testing.T) {
	f := newFixture(t)

	steps := []struct {
		from, to    common.Address
		amount      int64
		wantAlice   string
		wantBob     string
		wantSupply  string
		wantType    entity.TransferType
		bobRowAfter bool
	}{
		{from: zero, to: alice, amount: 10, wantAlice: "10", wantSupply: "10", wantType: entity.TransferMint},
		{from: zero, to: alice, amount: 5, wantAlice: "15", wantSupply: "15", wantType: entity.TransferMint},
		{from: alice, to: bob, amount: 6, wantAlice: "9", wantBob: "6", wantSupply: "15",
			wantType: entity.TransferDirect, bobRowAfter: true},
		{from: bob, to: zero, amount: 2, wantAlice: "9", wantBob: "4", wantSupply: "13",
			wantType: entity.TransferBurn, bobRowAfter: true},
	}

	for i, s := range steps {
		logIndex := uint(i)
		require.NoError(t, f.rec.HandleERC6909Transfer(f.scope, &events.ERC6909Transfer{
			Meta:     meta(logIndex, uint64(100+i)),
			Caller:   alice,
			Sender:   s.from,
			Receiver: s.to,
			ID:       big.NewInt(7),
			Amount:   big.NewInt(s.amount),
		}))

		require.Equal(t, s.wantAlice, f.balance(t, 7, alice).Amount.String(), "step %d", i)
		if s.bobRowAfter {
			require.Equal(t, s.wantBob, f.balance(t, 7, bob).Amount.String(), "step %d", i)
		}
		require.Equal(t, s.wantSupply, f.instance(t, 7).TotalSupply.String(), "step %d", i)
		require.Equal(t, s.wantType, f.transfer(t, logIndex).TransferType, "step %d", i)
	}

	require.Nil(t, f.balance(t, 7, zero))
	require.Equal(t, uint64(100), f.instance(t, 7).MintedAt)
}

func TestReconciler_FirstObservationEstablishesSupply(t *testing.T) {
	f := newFixture(t)

	// A plain transfer seen before any mint still creates the instance.
	require.NoError(t, f.rec.HandleTransferSingle(f.scope, &events.TransferSingle{
		Meta: meta(0, 50), From: alice, To: bob, ID: big.NewInt(2), Value: big.NewInt(3),
	}))
	require.Equal(t, "3", f.instance(t, 2).TotalSupply.String())

	require.NoError(t, f.rec.HandleTransferSingle(f.scope, &events.TransferSingle{
		Meta: meta(1, 60), From: bob, To: alice, ID: big.NewInt(2), Value: big.NewInt(1),
	}))
	require.Equal(t, "3", f.instance(t, 2).TotalSupply.String())
}

func TestReconciler_ConsumesSettlementContext(t *testing.T) {
	tests := []struct {
		name        string
		put         func(s *ledger.Scope) error
		wantType    entity.TransferType
		wantListing *string
		wantBid     *string
	}{
		{
			name: "marketplace sale",
			put: func(s *ledger.Scope) error {
				return s.PutListing(collection, big.NewInt(7), "2", 10)
			},
			wantType:    entity.TransferMarketplaceSale,
			wantListing: ptr("2"),
		},
		{
			name: "bid acceptance",
			put: func(s *ledger.Scope) error {
				return s.PutBid(collection, big.NewInt(7), "bid-1", 10)
			},
			wantType: entity.TransferBidAcceptance,
			wantBid:  ptr("bid-1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, tt.put(f.scope))

			require.NoError(t, f.rec.HandleERC721Transfer(f.scope, &events.ERC721Transfer{
				Meta: meta(3, 10), From: alice, To: bob, TokenID: big.NewInt(7),
			}))

			tr := f.transfer(t, 3)
			require.Equal(t, tt.wantType, tr.TransferType)
			require.Equal(t, tt.wantListing, tr.RelatedListing)
			require.Equal(t, tt.wantBid, tr.RelatedBid)

			pending, err := f.ledger.Get(txHash, collection, big.NewInt(7))
			require.NoError(t, err)
			require.Nil(t, pending)
		})
	}
}

func TestReconciler_ContextForOtherTokenIsIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.scope.PutListing(collection, big.NewInt(8), "5", 10))

	require.NoError(t, f.rec.HandleERC721Transfer(f.scope, &events.ERC721Transfer{
		Meta: meta(1, 10), From: alice, To: bob, TokenID: big.NewInt(7),
	}))
	require.Equal(t, entity.TransferDirect, f.transfer(t, 1).TransferType)

	residue, err := f.scope.Close()
	require.NoError(t, err)
	require.Equal(t, 1, residue)
}

func TestReconciler_TransferBatch(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.rec.HandleTransferBatch(f.scope, &events.TransferBatch{
		Meta:   meta(2, 500),
		From:   zero,
		To:     alice,
		IDs:    []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(1)},
		Values: []*big.Int{big.NewInt(10), big.NewInt(20), big.NewInt(5)},
	}))

	require.Equal(t, "15", f.balance(t, 1, alice).Amount.String())
	require.Equal(t, "20", f.balance(t, 2, alice).Amount.String())
	require.Equal(t, "15", f.instance(t, 1).TotalSupply.String())
	require.Equal(t, "20", f.instance(t, 2).TotalSupply.String())

	// Elements share the log index, so the last element owns the audit row.
	tr := f.transfer(t, 2)
	require.Equal(t, identity.InstanceID(collection, big.NewInt(1)), tr.Instance)
	require.Equal(t, "5", tr.Amount.String())
	require.Equal(t, uint64(500), tr.Timestamp)
}

func TestReconciler_TransferBatchLengthMismatch(t *testing.T) {
	f := newFixture(t)

	err := f.rec.HandleTransferBatch(f.scope, &events.TransferBatch{
		Meta:   meta(0, 1),
		To:     alice,
		IDs:    []*big.Int{big.NewInt(1)},
		Values: []*big.Int{},
	})
	require.ErrorIs(t, err, events.ErrDecode)
	require.Nil(t, f.instance(t, 1))
}

func TestReconciler_OperatorSetWritesNothing(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.rec.HandleOperatorSet(&events.OperatorSet{
		Meta: meta(0, 1), Owner: alice, Spender: bob, Approved: true,
	}))

	owned, err := store.Exists[entity.ContractOwnership](f.tx, entity.TableContractOwnerships,
		identity.Address(collection))
	require.NoError(t, err)
	require.False(t, owned)
}

func TestReconciler_OwnershipTransferred(t *testing.T) {
	f := newFixture(t)
	ev := &events.OwnershipTransferred{Meta: meta(0, 77), PreviousOwner: alice, NewOwner: bob}

	require.NoError(t, f.rec.HandleOwnershipTransferred(ev))

	id := identity.Address(collection)
	got, err := store.Get[entity.ContractOwnership](f.tx, entity.TableContractOwnerships, id)
	require.NoError(t, err)
	require.Nil(t, got, "unknown collection must be ignored")

	require.NoError(t, f.tx.Save(entity.TableCollections, &entity.Collection{
		ID:           id,
		TokenAddress: collection,
		TokenType:    entity.ERC721,
	}))
	require.NoError(t, f.rec.HandleOwnershipTransferred(ev))

	got, err = store.Get[entity.ContractOwnership](f.tx, entity.TableContractOwnerships, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, id, got.Contract)
	require.Equal(t, alice, got.PreviousOwner)
	require.Equal(t, bob, got.Owner)
	require.Equal(t, uint64(77), got.TransferredAt)
	require.Equal(t, txHash, got.TransactionHash)
}

func ptr(s string) *string { return &s }
