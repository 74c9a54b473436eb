package db

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	"github.com/stretchr/testify/require"
)

type meddlerRow struct {
	ID       int64           `meddler:"id,pk"`
	Owner    common.Address  `meddler:"owner,address"`
	Operator *common.Address `meddler:"operator,address"`
	TxHash   common.Hash     `meddler:"tx_hash,hash"`
	Parent   *common.Hash    `meddler:"parent,hash"`
	Amount   *big.Int        `meddler:"amount,bigint"`
	Price    *big.Int        `meddler:"price,bigint"`
}

func TestMeddlers_RoundTrip(t *testing.T) {
	sqlDB, _ := newTestDB(t, "WAL", 0)

	_, err := sqlDB.Exec(`CREATE TABLE rows (
		id INTEGER PRIMARY KEY,
		owner TEXT,
		operator TEXT,
		tx_hash TEXT,
		parent TEXT,
		amount TEXT,
		price TEXT
	)`)
	require.NoError(t, err)

	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	in := &meddlerRow{
		Owner:  common.HexToAddress("0xAbCdEf0000000000000000000000000000000001"),
		TxHash: common.HexToHash("0x01"),
		Amount: huge,
	}
	require.NoError(t, meddler.Insert(sqlDB, "rows", in))

	var stored string
	require.NoError(t, sqlDB.QueryRow(`SELECT owner FROM rows WHERE id = ?`, in.ID).Scan(&stored))
	require.Equal(t, "0xabcdef0000000000000000000000000000000001", stored)

	out := new(meddlerRow)
	require.NoError(t, meddler.Load(sqlDB, "rows", out, in.ID))
	require.Equal(t, in.Owner, out.Owner)
	require.Nil(t, out.Operator)
	require.Equal(t, in.TxHash, out.TxHash)
	require.Nil(t, out.Parent)
	require.Equal(t, 0, huge.Cmp(out.Amount))
	require.Nil(t, out.Price)
}

func TestBigIntMeddler_RejectsGarbage(t *testing.T) {
	var v *big.Int
	target, err := BigIntMeddler{}.PreRead(&v)
	require.NoError(t, err)

	ns := target.(interface{ Scan(any) error })
	require.NoError(t, ns.Scan("12ab"))
	require.Error(t, BigIntMeddler{}.PostRead(&v, target))
}
