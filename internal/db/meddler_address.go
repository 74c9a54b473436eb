package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("address", AddressMeddler{})
}

// AddressMeddler stores common.Address as lowercase 0x hex text, the same
// form used inside entity identifiers.
type AddressMeddler struct{}

func (AddressMeddler) PreRead(_ any) (any, error) {
	return new(sql.NullString), nil
}

func (AddressMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *common.Address:
		*ptr = common.Address{}
		if ns.Valid {
			*ptr = common.HexToAddress(ns.String)
		}
	case **common.Address:
		*ptr = nil
		if ns.Valid {
			addr := common.HexToAddress(ns.String)
			*ptr = &addr
		}
	default:
		return fmt.Errorf("expected *common.Address or **common.Address, got %T", fieldAddr)
	}

	return nil
}

func (AddressMeddler) PreWrite(field any) (any, error) {
	switch v := field.(type) {
	case common.Address:
		return LowerHex(v), nil
	case *common.Address:
		if v == nil {
			return nil, nil
		}
		return LowerHex(*v), nil
	default:
		return nil, fmt.Errorf("expected common.Address or *common.Address, got %T", field)
	}
}

// LowerHex renders an address as lowercase 0x hex.
func LowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
