// Package nut07 contains structs as defined in [NUT-07]
//
// [NUT-07]: https://github.com/cashubtc/nuts/blob/main/07.md
package nut07

import "github.com/elnosh/nutsplit/cashu"

type CheckSpendableRequest struct {
	Proofs cashu.Proofs `json:"proofs"`
}

// CheckSpendableResponse is positional: Spendable[i] reports
// on the i-th proof of the request.
type CheckSpendableResponse struct {
	Spendable []bool `json:"spendable"`
	Pending   []bool `json:"pending,omitempty"`
}
