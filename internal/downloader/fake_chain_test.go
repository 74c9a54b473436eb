package downloader

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	itypes "github.com/goran-ethernal/NFTIndexor/internal/types"
	"github.com/goran-ethernal/NFTIndexor/pkg/indexer"
)

const genesisTime = 1_700_000_000

// fakeChain serves logs and headers from memory. Heads are fixed numbers
// per finality tag.
type fakeChain struct {
	mu sync.Mutex

	logs                    []types.Log
	latest, safe, finalized uint64

	queries      []ethereum.FilterQuery
	headerBlocks [][]uint64
	closed       bool
}

func (c *fakeChain) Close() { c.closed = true }

func (c *fakeChain) GetLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queries = append(c.queries, q)

	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	var out []types.Log
	for _, l := range c.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to && slices.Contains(q.Addresses, l.Address) {
			out = append(out, l)
		}
	}

	return out, nil
}

func header(n uint64) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(n), Time: genesisTime + n, Difficulty: big.NewInt(0)}
}

func (c *fakeChain) GetBlockHeader(_ context.Context, n uint64) (*types.Header, error) {
	return header(n), nil
}

func (c *fakeChain) GetHeadHeader(_ context.Context, finality itypes.BlockFinality) (*types.Header, error) {
	switch finality {
	case itypes.FinalityFinalized:
		return header(c.finalized), nil
	case itypes.FinalitySafe:
		return header(c.safe), nil
	case itypes.FinalityLatest:
		return header(c.latest), nil
	}

	return nil, fmt.Errorf("invalid finality mode: %s", finality)
}

func (c *fakeChain) BatchGetBlockHeaders(_ context.Context, nums []uint64) ([]*types.Header, error) {
	c.mu.Lock()
	c.headerBlocks = append(c.headerBlocks, slices.Clone(nums))
	c.mu.Unlock()

	out := make([]*types.Header, len(nums))
	for i, n := range nums {
		if n > c.latest {
			return nil, fmt.Errorf("block %d not found", n)
		}
		out[i] = header(n)
	}

	return out, nil
}

// fakeCoordinator watches a fixed address set and records every batch.
type fakeCoordinator struct {
	addresses []common.Address
	start     uint64
	handle    func(batch indexer.LogBatch) error

	batches []indexer.LogBatch
}

func (c *fakeCoordinator) Filter() ([]common.Address, [][]common.Hash) {
	return c.addresses, nil
}

func (c *fakeCoordinator) StartBlock() uint64 { return c.start }

func (c *fakeCoordinator) HandleLogs(_ context.Context, batch indexer.LogBatch) error {
	c.batches = append(c.batches, batch)
	if c.handle != nil {
		return c.handle(batch)
	}

	return nil
}

func chainLog(addr common.Address, block uint64, tx, index uint) types.Log {
	return types.Log{Address: addr, BlockNumber: block, TxIndex: tx, Index: index}
}
