package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	itypes "github.com/goran-ethernal/NFTIndexor/internal/types"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	pkgrpc "github.com/goran-ethernal/NFTIndexor/pkg/rpc"
	"golang.org/x/time/rate"
)

const maxHeaderBatch = 100

// Compile-time check to ensure Client implements pkgrpc.EthClient interface.
var _ pkgrpc.EthClient = (*Client)(nil)

// Client wraps the Ethereum RPC client with retries, rate limiting and
// metrics. It implements the pkgrpc.EthClient interface.
type Client struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	retry   *config.RetryConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient dials endpoint. Retries are disabled when cfg.Retry is nil and
// rate limiting when cfg.RateLimit is nil.
func NewClient(ctx context.Context, cfg config.DownloaderConfig, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	return newClient(rpcClient, cfg.Retry, cfg.RateLimit, log), nil
}

func newClient(rpcClient *rpc.Client, retry *config.RetryConfig, limit *config.RateLimitConfig, log *logger.Logger) *Client {
	c := &Client{
		eth:   ethclient.NewClient(rpcClient),
		rpc:   rpcClient,
		retry: retry,
		log:   log,
	}

	if limit != nil {
		c.limiter = rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.Burst)
	}

	return c
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call runs fn under the retry policy. Every attempt waits for the rate
// limiter first.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	start := time.Now()
	defer func() { RPCMethodDuration(method, time.Since(start)) }()

	err := retryWithBackoff(ctx, c.retry, method, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		RPCMethodInc(method)

		return fn()
	})
	if err != nil {
		RPCMethodError(method, errorType(err))
	}

	return err
}

// GetLogs retrieves logs matching query. When the node refuses the range
// for returning too many results, the range is split and both halves are
// fetched in order.
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log

	err := c.call(ctx, "eth_getLogs", func() error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})
	if err == nil {
		return logs, nil
	}

	tooMany, errData := IsTooManyResultsError(err)
	if !tooMany || query.FromBlock == nil || query.ToBlock == nil {
		return nil, err
	}

	from, to := query.FromBlock.Uint64(), query.ToBlock.Uint64()
	if from >= to {
		return nil, err
	}

	mid := from + (to-from)/2 //nolint:mnd
	if suggestedFrom, suggestedTo, ok := ParseSuggestedBlockRange(errData); ok &&
		suggestedFrom == from && suggestedTo >= from && suggestedTo < to {
		mid = suggestedTo
	}

	RPCSplitInc()
	c.log.Debugw("splitting log range",
		"from_block", from,
		"to_block", to,
		"split_at", mid,
	)

	left := query
	left.ToBlock = new(big.Int).SetUint64(mid)
	right := query
	right.FromBlock = new(big.Int).SetUint64(mid + 1)

	first, err := c.GetLogs(ctx, left)
	if err != nil {
		return nil, err
	}

	second, err := c.GetLogs(ctx, right)
	if err != nil {
		return nil, err
	}

	return append(first, second...), nil
}

// GetBlockHeader retrieves the header for a specific block number.
func (c *Client) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	return c.headerByNumber(ctx, new(big.Int).SetUint64(blockNum))
}

// GetHeadHeader retrieves the head block header for the finality tag.
func (c *Client) GetHeadHeader(ctx context.Context, finality itypes.BlockFinality) (*types.Header, error) {
	number, err := finality.BlockNumber()
	if err != nil {
		return nil, err
	}

	return c.headerByNumber(ctx, number)
}

func (c *Client) headerByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header

	err := c.call(ctx, "eth_getBlockByNumber", func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, number)
		return err
	})

	return header, err
}

// BatchGetBlockHeaders retrieves headers for multiple block numbers, at most
// maxHeaderBatch per batch call. Results follow the order of blockNums.
func (c *Client) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	allResults := make([]*types.Header, 0, len(blockNums))

	for i := 0; i < len(blockNums); i += maxHeaderBatch {
		end := min(i+maxHeaderBatch, len(blockNums))
		chunk := blockNums[i:end]

		results := make([]*types.Header, len(chunk))

		err := c.call(ctx, "batch_eth_getBlockByNumber", func() error {
			batch := make([]rpc.BatchElem, len(chunk))
			for j, blockNum := range chunk {
				batch[j] = rpc.BatchElem{
					Method: "eth_getBlockByNumber",
					Args:   []any{toBlockNumArg(blockNum), false}, // false = don't include transactions
					Result: &results[j],
				}
			}

			if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
				return err
			}

			for j, elem := range batch {
				if elem.Error != nil {
					return elem.Error
				}
				if results[j] == nil {
					return fmt.Errorf("block %d not found", chunk[j])
				}
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// errorType labels an error for the error counter.
func errorType(err error) string {
	if tooMany, _ := IsTooManyResultsError(err); tooMany {
		return "too_many_results"
	}
	if retryableError(err) {
		return "transient"
	}

	return "other"
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}
