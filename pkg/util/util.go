package util

import (
	"fmt"
	"math/big"

	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

// StringToUint128 parses a decimal account ID as stored in NUMERIC columns.
func StringToUint128(s string) (tbtypes.Uint128, error) {
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok || bi.Sign() < 0 || bi.BitLen() > 128 {
		return tbtypes.Uint128{}, fmt.Errorf("invalid uint128 string: %q", s)
	}
	return tbtypes.BigIntToUint128(*bi), nil
}

func Uint128ToString(u tbtypes.Uint128) string {
	bi := u.BigInt()
	return bi.String()
}
