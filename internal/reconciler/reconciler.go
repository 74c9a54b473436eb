// Package reconciler turns token transfer events into supply, balance and
// audit updates.
package reconciler

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/NFTIndexor/internal/entity"
	"github.com/goran-ethernal/NFTIndexor/internal/events"
	"github.com/goran-ethernal/NFTIndexor/internal/identity"
	"github.com/goran-ethernal/NFTIndexor/internal/ledger"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/metrics"
	"github.com/goran-ethernal/NFTIndexor/internal/store"
)

const componentName = "reconciler"

var one = big.NewInt(1)

// Reconciler applies transfers of every supported token standard.
type Reconciler struct {
	st  store.Store
	log *logger.Logger
}

// New creates a reconciler writing to st.
func New(st store.Store, log *logger.Logger) *Reconciler {
	return &Reconciler{st: st, log: log}
}

// transfer is one movement of amount units of tokenID on collection.
type transfer struct {
	meta       events.Meta
	collection common.Address
	from       common.Address
	to         common.Address
	tokenID    *big.Int
	amount     *big.Int
	unique     bool
}

// HandleERC721Transfer applies a unique token transfer. Balances are set to
// 1 for the receiver and 0 for the sender instead of being accumulated.
func (r *Reconciler) HandleERC721Transfer(scope *ledger.Scope, ev *events.ERC721Transfer) error {
	return r.apply(scope, transfer{
		meta:       ev.Meta,
		collection: ev.Address,
		from:       ev.From,
		to:         ev.To,
		tokenID:    ev.TokenID,
		amount:     one,
		unique:     true,
	})
}

// HandleTransferSingle applies an ERC1155 single transfer.
func (r *Reconciler) HandleTransferSingle(scope *ledger.Scope, ev *events.TransferSingle) error {
	return r.apply(scope, transfer{
		meta:       ev.Meta,
		collection: ev.Address,
		from:       ev.From,
		to:         ev.To,
		tokenID:    ev.ID,
		amount:     ev.Value,
	})
}

// HandleTransferBatch applies every (id, value) pair of a batch in order.
// All elements share the log index, so each element rewrites the same
// Transfer row and only the last one survives in the audit trail.
func (r *Reconciler) HandleTransferBatch(scope *ledger.Scope, ev *events.TransferBatch) error {
	if len(ev.IDs) != len(ev.Values) {
		return fmt.Errorf("%w: batch has %d ids and %d values", events.ErrDecode, len(ev.IDs), len(ev.Values))
	}

	for i := range ev.IDs {
		err := r.apply(scope, transfer{
			meta:       ev.Meta,
			collection: ev.Address,
			from:       ev.From,
			to:         ev.To,
			tokenID:    ev.IDs[i],
			amount:     ev.Values[i],
		})
		if err != nil {
			return fmt.Errorf("batch element %d: %w", i, err)
		}
	}

	return nil
}

// HandleERC6909Transfer applies an ERC6909 transfer. The caller is ignored.
func (r *Reconciler) HandleERC6909Transfer(scope *ledger.Scope, ev *events.ERC6909Transfer) error {
	return r.apply(scope, transfer{
		meta:       ev.Meta,
		collection: ev.Address,
		from:       ev.Sender,
		to:         ev.Receiver,
		tokenID:    ev.ID,
		amount:     ev.Amount,
	})
}

// HandleOperatorSet records nothing.
func (r *Reconciler) HandleOperatorSet(ev *events.OperatorSet) error {
	metrics.OperatorSetObservedInc()

	r.log.Debugw("operator set observed",
		"collection", identity.Address(ev.Address),
		"owner", identity.Address(ev.Owner),
		"spender", identity.Address(ev.Spender),
		"approved", ev.Approved,
	)

	return nil
}

// HandleOwnershipTransferred updates the ownership record of a known
// collection. Events from unknown contracts are dropped.
func (r *Reconciler) HandleOwnershipTransferred(ev *events.OwnershipTransferred) error {
	collectionID := identity.Address(ev.Address)

	known, err := store.Exists[entity.Collection](r.st, entity.TableCollections, collectionID)
	if err != nil {
		return err
	}
	if !known {
		metrics.SkippedReferenceInc(componentName, entity.TableCollections)
		r.log.Debugw("ownership transfer for unknown collection", "collection", collectionID)
		return nil
	}

	ownership := &entity.ContractOwnership{
		ID:              collectionID,
		Contract:        collectionID,
		PreviousOwner:   ev.PreviousOwner,
		Owner:           ev.NewOwner,
		TransferredAt:   ev.Timestamp,
		TransactionHash: ev.TxHash,
	}

	if err := r.st.Save(entity.TableContractOwnerships, ownership); err != nil {
		return fmt.Errorf("failed to save ownership of %s: %w", collectionID, err)
	}

	return nil
}

func (r *Reconciler) apply(scope *ledger.Scope, t transfer) error {
	instanceID := identity.InstanceID(t.collection, t.tokenID)

	if err := r.updateSupply(instanceID, t); err != nil {
		return err
	}

	record := &entity.Transfer{
		ID:              identity.EventID(t.meta.TxHash, t.meta.LogIndex),
		Instance:        instanceID,
		From:            t.from,
		To:              t.to,
		Amount:          new(big.Int).Set(t.amount),
		Timestamp:       t.meta.Timestamp,
		TransactionHash: t.meta.TxHash,
		BlockNumber:     t.meta.BlockNumber,
	}

	if err := classify(scope, record, t); err != nil {
		return err
	}

	if err := r.st.Save(entity.TableTransfers, record); err != nil {
		return fmt.Errorf("failed to save transfer %s: %w", record.ID, err)
	}

	metrics.TransferRecordedInc(string(record.TransferType))

	if t.from != (common.Address{}) {
		if err := r.debit(instanceID, t); err != nil {
			return err
		}
	}

	if t.to != (common.Address{}) {
		if err := r.credit(instanceID, t); err != nil {
			return err
		}
	}

	r.log.Debugw("transfer applied",
		"id", record.ID,
		"instance", instanceID,
		"type", record.TransferType,
		"amount", t.amount,
	)

	return nil
}

// updateSupply creates the instance with supply equal to the first amount
// seen, then tracks mints and burns.
func (r *Reconciler) updateSupply(instanceID string, t transfer) error {
	loaded, err := store.LoadOrCreate(r.st, entity.TableTokenInstances, instanceID, func() *entity.TokenInstance {
		return &entity.TokenInstance{
			ID:          instanceID,
			Collection:  identity.Address(t.collection),
			TokenID:     new(big.Int).Set(t.tokenID),
			TotalSupply: new(big.Int).Set(t.amount),
			MintedAt:    t.meta.Timestamp,
		}
	})
	if err != nil {
		return err
	}

	instance := loaded.Entity
	if !loaded.Fresh {
		switch {
		case t.from == (common.Address{}):
			instance.TotalSupply = new(big.Int).Add(instance.TotalSupply, t.amount)
		case t.to == (common.Address{}):
			instance.TotalSupply = new(big.Int).Sub(instance.TotalSupply, t.amount)
		}
	}

	if err := r.st.Save(entity.TableTokenInstances, instance); err != nil {
		return fmt.Errorf("failed to save token instance %s: %w", instanceID, err)
	}

	return nil
}

// classify consumes the settlement context of the transaction, if any, and
// falls back to mint, burn or direct.
func classify(scope *ledger.Scope, record *entity.Transfer, t transfer) error {
	pending, err := scope.Take(t.collection, t.tokenID)
	if err != nil {
		return fmt.Errorf("failed to read settlement context for %s: %w", record.Instance, err)
	}

	if pending != nil {
		record.TransferType = pending.TransferType
		record.RelatedListing = pending.ListingID
		record.RelatedBid = pending.BidID
		return nil
	}

	switch {
	case t.from == (common.Address{}):
		record.TransferType = entity.TransferMint
	case t.to == (common.Address{}):
		record.TransferType = entity.TransferBurn
	default:
		record.TransferType = entity.TransferDirect
	}

	return nil
}

// debit lowers the sender balance. A missing row is left missing.
func (r *Reconciler) debit(instanceID string, t transfer) error {
	balanceID := identity.BalanceID(instanceID, t.from)

	balance, err := store.Get[entity.TokenBalance](r.st, entity.TableTokenBalances, balanceID)
	if err != nil {
		return err
	}
	if balance == nil {
		metrics.SkippedReferenceInc(componentName, entity.TableTokenBalances)
		r.log.Debugw("debit of untracked balance", "balance", balanceID)
		return nil
	}

	if t.unique {
		balance.Amount = new(big.Int)
	} else {
		balance.Amount = new(big.Int).Sub(balance.Amount, t.amount)
	}
	balance.LastUpdatedAt = t.meta.Timestamp

	if err := r.st.Save(entity.TableTokenBalances, balance); err != nil {
		return fmt.Errorf("failed to save balance %s: %w", balanceID, err)
	}

	return nil
}

// credit raises the receiver balance, opening it at zero when needed.
func (r *Reconciler) credit(instanceID string, t transfer) error {
	balanceID := identity.BalanceID(instanceID, t.to)

	loaded, err := store.LoadOrCreate(r.st, entity.TableTokenBalances, balanceID, func() *entity.TokenBalance {
		return &entity.TokenBalance{
			ID:        balanceID,
			Instance:  instanceID,
			Owner:     t.to,
			Amount:    new(big.Int),
			CreatedAt: t.meta.Timestamp,
		}
	})
	if err != nil {
		return err
	}

	balance := loaded.Entity
	if t.unique {
		balance.Amount = big.NewInt(1)
	} else {
		balance.Amount = new(big.Int).Add(balance.Amount, t.amount)
	}
	balance.LastUpdatedAt = t.meta.Timestamp

	if err := r.st.Save(entity.TableTokenBalances, balance); err != nil {
		return fmt.Errorf("failed to save balance %s: %w", balanceID, err)
	}

	return nil
}
