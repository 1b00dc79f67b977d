// Package nut06 contains structs as defined in [NUT-06]
//
// [NUT-06]: https://github.com/cashubtc/nuts/blob/main/06.md
package nut06

import "github.com/elnosh/nutsplit/cashu"

// PostSplitRequest exchanges Proofs for new signatures on Outputs.
// Amount is the value of the second (send) half of Outputs; the
// outputs before it make up the first (keep) half.
type PostSplitRequest struct {
	Amount  uint64                `json:"amount"`
	Proofs  cashu.Proofs          `json:"proofs"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

// PostSplitResponse holds the promises for each half of the
// request outputs, in the same order as the outputs.
type PostSplitResponse struct {
	Fst cashu.BlindedSignatures `json:"fst"`
	Snd cashu.BlindedSignatures `json:"snd"`
}
