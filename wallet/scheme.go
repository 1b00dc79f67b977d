package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut12"
	"github.com/elnosh/nutsplit/crypto"
)

// BlindSignatureScheme blinds secrets before they are sent to the mint
// and turns the promises from the mint back into proofs.
type BlindSignatureScheme interface {
	Blind(secret string, r *secp256k1.PrivateKey) (*secp256k1.PublicKey, error)
	Unblind(promise cashu.BlindedSignature, r *secp256k1.PrivateKey,
		secret string, K *secp256k1.PublicKey) (cashu.Proof, error)
}

// BDHKE is the blind Diffie-Hellman key exchange scheme used by cashu mints.
type BDHKE struct{}

func (BDHKE) Blind(secret string, r *secp256k1.PrivateKey) (*secp256k1.PublicKey, error) {
	if r == nil {
		return nil, fmt.Errorf("blinding factor cannot be nil")
	}
	B_, _ := crypto.BlindMessage(secret, r)
	return B_, nil
}

// Unblind computes C = C_ - rK. If the promise carries a DLEQ proof
// it must verify against K.
func (BDHKE) Unblind(
	promise cashu.BlindedSignature,
	r *secp256k1.PrivateKey,
	secret string,
	K *secp256k1.PublicKey,
) (cashu.Proof, error) {
	C_bytes, err := hex.DecodeString(promise.C_)
	if err != nil {
		return cashu.Proof{}, fmt.Errorf("invalid C_ in promise: %v", err)
	}
	C_, err := secp256k1.ParsePubKey(C_bytes)
	if err != nil {
		return cashu.Proof{}, fmt.Errorf("invalid C_ in promise: %v", err)
	}

	C := crypto.UnblindSignature(C_, r, K)
	proof := cashu.Proof{
		Amount: promise.Amount,
		Id:     promise.Id,
		Secret: secret,
		C:      hex.EncodeToString(C.SerializeCompressed()),
	}

	if promise.DLEQ != nil {
		proof.DLEQ = &cashu.DLEQProof{
			E: promise.DLEQ.E,
			S: promise.DLEQ.S,
			R: hex.EncodeToString(r.Serialize()),
		}
		if !nut12.VerifyProofDLEQ(proof, K) {
			return cashu.Proof{}, fmt.Errorf("invalid DLEQ proof for promise of amount %v", promise.Amount)
		}
	}

	return proof, nil
}
