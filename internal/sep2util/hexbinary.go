// Package sep2util implements value-level resource rules: mRID
// generation, LFDI/SFDI derivation, hex-binary comparison and the
// submit/refetch property-diff tolerances.
package sep2util

import (
	"fmt"
	"math/big"
	"strings"
)

// HexBinaryEqual reports whether two hex-binary strings carry the
// same integer value, ignoring case and leading zeros.
func HexBinaryEqual(a, b string) bool {
	ai, aok := parseHex(a)
	bi, bok := parseHex(b)
	if !aok || !bok {
		return false
	}
	return ai.Cmp(bi) == 0
}

// HexBinaryEqualInt reports whether n equals the integer value
// encoded by the hex-binary string s.
func HexBinaryEqualInt(n int64, s string) bool {
	si, ok := parseHex(s)
	if !ok {
		return false
	}
	return big.NewInt(n).Cmp(si) == 0
}

func parseHex(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	i, ok := new(big.Int).SetString(s, 16)
	return i, ok
}

// ToHexBinary renders n as the shortest upper-hex string with even
// length, prepending "0" when the natural length is odd.
func ToHexBinary(n int64) string {
	s := fmt.Sprintf("%X", n)
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return s
}
