package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	itypes "github.com/goran-ethernal/NFTIndexor/internal/types"
)

// EthClient is the node surface the downloader reads logs and headers from.
type EthClient interface {
	Close()

	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error)

	// GetHeadHeader returns the head header under the given finality tag.
	GetHeadHeader(ctx context.Context, finality itypes.BlockFinality) (*types.Header, error)

	// BatchGetBlockHeaders returns headers in the order of blockNums.
	BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error)
}
