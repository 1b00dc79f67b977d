// Package nut05 contains structs as defined in [NUT-05]
//
// [NUT-05]: https://github.com/cashubtc/nuts/blob/main/05.md
package nut05

import "github.com/elnosh/nutsplit/cashu"

type CheckFeesRequest struct {
	PR string `json:"pr"`
}

type CheckFeesResponse struct {
	Fee uint64 `json:"fee"`
}

// PostMeltRequest pays the invoice in PR with Proofs. Outputs are
// blank outputs the mint may use to return overpaid fees.
type PostMeltRequest struct {
	Proofs  cashu.Proofs          `json:"proofs"`
	PR      string                `json:"pr"`
	Outputs cashu.BlindedMessages `json:"outputs,omitempty"`
}

type PostMeltResponse struct {
	Paid     bool                    `json:"paid"`
	Preimage string                  `json:"preimage"`
	Change   cashu.BlindedSignatures `json:"change,omitempty"`
}
