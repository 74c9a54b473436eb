package rpc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/NFTIndexor/internal/common"
)

var (
	tooManyResultsRe = regexp.MustCompile(`(?i)query returned more than \d+ results`)
	blockRangeRe     = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)
)

// rangeTooWideMessages are returned as plain errors by nodes that cap the
// eth_getLogs range instead of the result count.
var rangeTooWideMessages = []string{
	"log response size exceeded",
	"block range is too wide",
	"exceed maximum block range",
}

// IsTooManyResultsError reports whether err means the eth_getLogs range must
// be narrowed. The second value carries the error data (or message) so a
// suggested range can be parsed from it.
func IsTooManyResultsError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		errData := fmt.Sprintf("%v", dataErr.ErrorData())
		if tooManyResultsRe.MatchString(errData) {
			return true, errData
		}
	}

	msg := err.Error()
	if tooManyResultsRe.MatchString(msg) {
		return true, msg
	}

	lower := strings.ToLower(msg)
	for _, m := range rangeTooWideMessages {
		if strings.Contains(lower, m) {
			return true, msg
		}
	}

	return false, ""
}

// ParseSuggestedBlockRange extracts the first "[0xfrom, 0xto]" range from a
// node error, e.g. "Query returned more than 20000 results. Try with this
// block range [0x7dfd25, 0x7e0fcc]."
func ParseSuggestedBlockRange(msg string) (fromBlock, toBlock uint64, ok bool) {
	matches := blockRangeRe.FindStringSubmatch(msg)
	if len(matches) != 3 { //nolint:mnd
		return 0, 0, false
	}

	from, err := common.ParseBlockNumber(matches[1])
	if err != nil {
		return 0, 0, false
	}

	to, err := common.ParseBlockNumber(matches[2])
	if err != nil {
		return 0, 0, false
	}

	return from, to, true
}
