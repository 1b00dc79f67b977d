// Package storage holds proofs on behalf of the wallet caller.
package storage

import (
	"github.com/elnosh/nutsplit/cashu"
)

// ProofStore persists unspent proofs and the derivation counters of
// deterministic secrets.
type ProofStore interface {
	GetProofs() cashu.Proofs
	GetProofsByKeysetId(string) cashu.Proofs
	SaveProofs(cashu.Proofs) error
	// DeleteProof deletes the proof with the secret passed
	DeleteProof(string) error

	GetKeysetCounter(string) uint32
	IncrementKeysetCounter(string, uint32) error

	Close() error
}
