// Package eventstest encodes logs for tests.
package eventstest

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// Pack encodes a log of ev emitted by address. args follow the declaration
// order of the event inputs.
func Pack(ev abi.Event, address common.Address, args ...any) (types.Log, error) {
	if len(args) != len(ev.Inputs) {
		return types.Log{}, fmt.Errorf("%s takes %d args, got %d", ev.Name, len(ev.Inputs), len(args))
	}

	topics := []common.Hash{ev.ID}
	var data []any

	for i, input := range ev.Inputs {
		if !input.Indexed {
			data = append(data, args[i])
			continue
		}

		encoded, err := abi.MakeTopics([]any{args[i]})
		if err != nil {
			return types.Log{}, fmt.Errorf("failed to encode %s.%s: %w", ev.Name, input.Name, err)
		}
		topics = append(topics, encoded[0][0])
	}

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return types.Log{}, fmt.Errorf("failed to pack %s: %w", ev.Name, err)
	}

	return types.Log{Address: address, Topics: topics, Data: packed}, nil
}

// Tx hands out logs of one transaction with increasing log indexes.
type Tx struct {
	t        testing.TB
	Block    uint64
	Hash     common.Hash
	Index    uint
	logIndex uint
}

// NewTx starts a transaction in block at position txIndex. Log indexes start
// at firstLogIndex.
func NewTx(t testing.TB, block uint64, hash common.Hash, txIndex, firstLogIndex uint) *Tx {
	return &Tx{t: t, Block: block, Hash: hash, Index: txIndex, logIndex: firstLogIndex}
}

// Log encodes the next log of the transaction.
func (tx *Tx) Log(ev abi.Event, address common.Address, args ...any) types.Log {
	tx.t.Helper()

	log, err := Pack(ev, address, args...)
	require.NoError(tx.t, err)

	log.BlockNumber = tx.Block
	log.TxHash = tx.Hash
	log.TxIndex = tx.Index
	log.Index = tx.logIndex
	tx.logIndex++

	return log
}
