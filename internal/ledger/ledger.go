// Package ledger threads settlement context from marketplace events to the
// token transfers emitted later in the same transaction.
//
// A marketplace handler leaves a breadcrumb keyed by (txHash, token, tokenId)
// and the transfer handler for the same key consumes it. Breadcrumbs live in
// the entity store so they are covered by the same unit of work.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
)

// ErrAmbiguousContext is returned by Put unless exactly one of listing and
// bid is set.
var ErrAmbiguousContext = errors.New("pending transfer needs exactly one of listing or bid")

// Store is the entity store plus the per-transaction lookup the ledger needs
// to sweep leftovers.
type Store interface {
	store.Store
	PendingTransfers(txHash common.Hash) ([]*entity.PendingTransfer, error)
}

// Ledger reads and writes breadcrumbs.
type Ledger struct {
	st  Store
	log *logger.Logger
}

// New creates a ledger over st.
func New(st Store, log *logger.Logger) *Ledger {
	return &Ledger{st: st, log: log}
}

// Put records a breadcrumb, overwriting any earlier one for the same key.
func (l *Ledger) Put(
	txHash common.Hash,
	token common.Address,
	tokenID *big.Int,
	kind entity.TransferType,
	createdAt uint64,
	listingID, bidID *string,
) error {
	if (listingID == nil) == (bidID == nil) {
		return ErrAmbiguousContext
	}

	pending := &entity.PendingTransfer{
		ID:              identity.PendingTransferID(txHash, token, tokenID),
		TransactionHash: txHash,
		TokenAddress:    token,
		TokenID:         new(big.Int).Set(tokenID),
		TransferType:    kind,
		ListingID:       listingID,
		BidID:           bidID,
		CreatedAt:       createdAt,
	}

	if err := l.st.Save(entity.TablePendingTransfers, pending); err != nil {
		return fmt.Errorf("failed to save pending transfer %s: %w", pending.ID, err)
	}

	l.log.Debugw("pending transfer recorded",
		"id", pending.ID,
		"type", kind,
	)

	return nil
}

// Get returns the breadcrumb for the key, or nil.
func (l *Ledger) Get(txHash common.Hash, token common.Address, tokenID *big.Int) (*entity.PendingTransfer, error) {
	return store.Get[entity.PendingTransfer](l.st, entity.TablePendingTransfers,
		identity.PendingTransferID(txHash, token, tokenID))
}

// Delete removes the breadcrumb for the key.
func (l *Ledger) Delete(txHash common.Hash, token common.Address, tokenID *big.Int) error {
	return l.st.Remove(entity.TablePendingTransfers, identity.PendingTransferID(txHash, token, tokenID))
}

// Begin opens the scope of one transaction.
func (l *Ledger) Begin(txHash common.Hash) *Scope {
	return &Scope{ledger: l, txHash: txHash}
}

// Scope is the ledger view of a single transaction. Take consumes a
// breadcrumb at most once; Close removes whatever was not consumed.
type Scope struct {
	ledger *Ledger
	txHash common.Hash
	closed bool
}

// TxHash returns the transaction this scope belongs to.
func (s *Scope) TxHash() common.Hash {
	return s.txHash
}

// PutListing records that token/tokenID moves because listingID was sold.
func (s *Scope) PutListing(token common.Address, tokenID *big.Int, listingID string, createdAt uint64) error {
	return s.ledger.Put(s.txHash, token, tokenID, entity.TransferMarketplaceSale, createdAt, &listingID, nil)
}

// PutBid records that token/tokenID moves because bidID was accepted.
func (s *Scope) PutBid(token common.Address, tokenID *big.Int, bidID string, createdAt uint64) error {
	return s.ledger.Put(s.txHash, token, tokenID, entity.TransferBidAcceptance, createdAt, nil, &bidID)
}

// Take returns and deletes the breadcrumb for token/tokenID, or nil.
func (s *Scope) Take(token common.Address, tokenID *big.Int) (*entity.PendingTransfer, error) {
	pending, err := s.ledger.Get(s.txHash, token, tokenID)
	if err != nil || pending == nil {
		return nil, err
	}

	if err := s.ledger.Delete(s.txHash, token, tokenID); err != nil {
		return nil, fmt.Errorf("failed to delete pending transfer %s: %w", pending.ID, err)
	}

	return pending, nil
}

// Close deletes every breadcrumb of the transaction that no transfer
// consumed and returns how many there were. Closing twice is a no-op.
func (s *Scope) Close() (int, error) {
	if s.closed {
		return 0, nil
	}
	s.closed = true

	leftovers, err := s.ledger.st.PendingTransfers(s.txHash)
	if err != nil {
		return 0, err
	}

	for _, p := range leftovers {
		if err := s.ledger.st.Remove(entity.TablePendingTransfers, p.ID); err != nil {
			return 0, fmt.Errorf("failed to delete pending transfer %s: %w", p.ID, err)
		}

		s.ledger.log.Debugw("discarding unconsumed pending transfer",
			"id", p.ID,
			"type", p.TransferType,
		)
	}

	if len(leftovers) > 0 {
		metrics.PendingResidueInc(len(leftovers))
	}

	return len(leftovers), nil
}
