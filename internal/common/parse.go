package common

import (
	"strconv"
	"strings"
)

// ParseBlockNumber parses a block number as nodes print it in error
// messages, either decimal or 0x/0X prefixed hex.
func ParseBlockNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	for _, prefix := range []string{"0x", "0X"} {
		if hex, ok := strings.CutPrefix(s, prefix); ok {
			return strconv.ParseUint(hex, 16, 64)
		}
	}

	return strconv.ParseUint(s, 10, 64)
}

// ToLowerWithTrim normalizes config keys such as log levels and component names.
func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
