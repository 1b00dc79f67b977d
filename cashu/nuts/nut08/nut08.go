// Package nut08 contains the blank outputs logic defined in [NUT-08]
//
// [NUT-08]: https://github.com/cashubtc/nuts/blob/main/08.md
package nut08

import "math/bits"

// BlankOutputsCount returns how many blank outputs are needed so
// the mint can return any overpaid amount up to feeReserve:
// max(ceil(log2(feeReserve)), 1), or 0 when there is no reserve.
func BlankOutputsCount(feeReserve uint64) int {
	if feeReserve == 0 {
		return 0
	}
	count := bits.Len64(feeReserve - 1)
	if count < 1 {
		return 1
	}
	return count
}
