package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rpc"
)

// BlockFinality selects the head tag that bounds how far the downloader reads.
type BlockFinality string

const (
	FinalityFinalized BlockFinality = "finalized"
	FinalitySafe      BlockFinality = "safe"
	// FinalityLatest gives no finality guarantee; pair it with a lag.
	FinalityLatest BlockFinality = "latest"
)

var blockTags = map[BlockFinality]rpc.BlockNumber{
	FinalityFinalized: rpc.FinalizedBlockNumber,
	FinalitySafe:      rpc.SafeBlockNumber,
	FinalityLatest:    rpc.LatestBlockNumber,
}

func (f BlockFinality) String() string {
	return string(f)
}

func (f BlockFinality) IsValid() bool {
	_, ok := blockTags[f]
	return ok
}

// BlockNumber returns the tag as the number argument of eth_getBlockByNumber.
func (f BlockFinality) BlockNumber() (*big.Int, error) {
	tag, ok := blockTags[f]
	if !ok {
		return nil, fmt.Errorf("invalid finality mode: %s", f)
	}

	return big.NewInt(tag.Int64()), nil
}

// SafeHead lowers head by lag. Only the latest tag is lagged; the other tags
// are already final enough to index up to.
func (f BlockFinality) SafeHead(head, lag uint64) uint64 {
	if f != FinalityLatest {
		return head
	}
	if head < lag {
		return 0
	}

	return head - lag
}

// ParseBlockFinality parses one of "finalized", "safe" or "latest".
func ParseBlockFinality(s string) (BlockFinality, error) {
	f := BlockFinality(s)
	if !f.IsValid() {
		return "", fmt.Errorf("invalid block finality: %s (must be one of: finalized, safe, latest)", s)
	}

	return f, nil
}
