package wallet

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut08"
	"github.com/elnosh/nutsplit/crypto"
)

// BlindedMessages holds the outputs sent to the mint together with the
// secrets and blinding factors needed to unblind the promises.
// Messages[i], Secrets[i], Rs[i] and Amounts[i] belong to the same output.
type BlindedMessages struct {
	Messages cashu.BlindedMessages
	Secrets  []string
	Rs       []*secp256k1.PrivateKey
	Amounts  []uint64
}

func (bm BlindedMessages) Len() int {
	return len(bm.Messages)
}

// Amount returns the sum of the output amounts.
func (bm BlindedMessages) Amount() uint64 {
	return bm.Messages.Amount()
}

// Generator creates blinded messages for the keyset it is bound to.
type Generator struct {
	keys   crypto.MintKeys
	scheme BlindSignatureScheme
	source SecretSource
}

func NewGenerator(keys crypto.MintKeys, scheme BlindSignatureScheme, source SecretSource) *Generator {
	if scheme == nil {
		scheme = BDHKE{}
	}
	if source == nil {
		source = RandomSource{}
	}
	return &Generator{keys: keys, scheme: scheme, source: source}
}

// Random creates one output per denomination of amount,
// e.g. 13 -> [1, 4, 8]. An amount of zero gives no outputs.
func (g *Generator) Random(amount uint64) (BlindedMessages, error) {
	return g.build(cashu.AmountSplit(amount))
}

// Blank creates the outputs the mint can use to return change from
// the fee reserve of a melt. Their amounts are set by the mint.
func (g *Generator) Blank(feeReserve uint64) (BlindedMessages, error) {
	count := nut08.BlankOutputsCount(feeReserve)
	amounts := make([]uint64, count)
	for i := range amounts {
		amounts[i] = 1
	}
	return g.build(amounts)
}

func (g *Generator) build(amounts []uint64) (BlindedMessages, error) {
	bm := BlindedMessages{
		Messages: make(cashu.BlindedMessages, len(amounts)),
		Secrets:  make([]string, len(amounts)),
		Rs:       make([]*secp256k1.PrivateKey, len(amounts)),
		Amounts:  make([]uint64, len(amounts)),
	}

	for i, amount := range amounts {
		if _, err := g.keys.PublicKey(amount); err != nil {
			return BlindedMessages{}, fmt.Errorf("%w: %v", ErrAmount, err)
		}

		secret, r, err := g.source.Next(g.keys.Id)
		if err != nil {
			return BlindedMessages{}, fmt.Errorf("error generating secret: %v", err)
		}

		B_, err := g.scheme.Blind(secret, r)
		if err != nil {
			return BlindedMessages{}, fmt.Errorf("error blinding message: %v", err)
		}

		bm.Messages[i] = cashu.NewBlindedMessage(g.keys.Id, amount, B_)
		bm.Secrets[i] = secret
		bm.Rs[i] = r
		bm.Amounts[i] = amount
	}

	return bm, nil
}

// constructProofs unblinds promises with the secrets and blinding factors
// of the outputs they were created for. Promises must come from the
// keyset in keys. With strict set, each promise amount must match its
// output amount.
func constructProofs(
	promises cashu.BlindedSignatures,
	outputs BlindedMessages,
	keys crypto.MintKeys,
	scheme BlindSignatureScheme,
	strict bool,
) (cashu.Proofs, error) {
	if strict && len(promises) != outputs.Len() {
		return nil, fmt.Errorf("%w: got %v promises for %v outputs",
			ErrProofReconstruction, len(promises), outputs.Len())
	}
	if len(promises) > outputs.Len() {
		return nil, fmt.Errorf("%w: got %v promises for %v outputs",
			ErrProofReconstruction, len(promises), outputs.Len())
	}

	proofs := make(cashu.Proofs, len(promises))
	for i, promise := range promises {
		if promise.Id != "" && promise.Id != keys.Id {
			return nil, fmt.Errorf("%w: promise signed with keyset '%v', expected '%v'",
				ErrProofReconstruction, promise.Id, keys.Id)
		}
		if strict && promise.Amount != outputs.Amounts[i] {
			return nil, fmt.Errorf("%w: promise amount %v does not match output amount %v",
				ErrProofReconstruction, promise.Amount, outputs.Amounts[i])
		}

		K, err := keys.PublicKey(promise.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofReconstruction, err)
		}

		proof, err := scheme.Unblind(promise, outputs.Rs[i], outputs.Secrets[i], K)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProofReconstruction, err)
		}
		if proof.Id == "" {
			proof.Id = keys.Id
		}
		proofs[i] = proof
	}

	return proofs, nil
}
