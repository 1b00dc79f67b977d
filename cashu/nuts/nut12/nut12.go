// Package nut12 verifies the DLEQ proofs a mint can attach to its
// blind signatures, both on the promise itself and on the unblinded proof.
package nut12

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/crypto"
)

// VerifyProofsDLEQ will verify the DLEQ proofs if present. Proofs without
// a DLEQ are skipped.
func VerifyProofsDLEQ(proofs cashu.Proofs, keys crypto.MintKeys) bool {
	for _, proof := range proofs {
		if proof.DLEQ == nil {
			continue
		}
		pubkey, err := keys.PublicKey(proof.Amount)
		if err != nil {
			return false
		}
		if !VerifyProofDLEQ(proof, pubkey) {
			return false
		}
	}
	return true
}

// VerifyProofDLEQ rebuilds B_ and C_ from the proof and its blinding
// factor r and checks the DLEQ against the mint key A.
func VerifyProofDLEQ(proof cashu.Proof, A *secp256k1.PublicKey) bool {
	e, s, r, err := ParseDLEQ(*proof.DLEQ)
	if err != nil || r == nil {
		return false
	}

	B_, _ := crypto.BlindMessage(proof.Secret, r)

	C, err := parsePubKey(proof.C)
	if err != nil {
		return false
	}

	// C_ = C + rA
	var CPoint, APoint, rAPoint, C_Point secp256k1.JacobianPoint
	C.AsJacobian(&CPoint)
	A.AsJacobian(&APoint)
	secp256k1.ScalarMultNonConst(&r.Key, &APoint, &rAPoint)
	secp256k1.AddNonConst(&CPoint, &rAPoint, &C_Point)
	C_Point.ToAffine()
	C_ := secp256k1.NewPublicKey(&C_Point.X, &C_Point.Y)

	return crypto.VerifyDLEQ(e, s, A, B_, C_)
}

func VerifyBlindSignatureDLEQ(
	dleq cashu.DLEQProof,
	A *secp256k1.PublicKey,
	B_str string,
	C_str string,
) bool {
	e, s, _, err := ParseDLEQ(dleq)
	if err != nil {
		return false
	}

	B_, err := parsePubKey(B_str)
	if err != nil {
		return false
	}
	C_, err := parsePubKey(C_str)
	if err != nil {
		return false
	}

	return crypto.VerifyDLEQ(e, s, A, B_, C_)
}

// ParseDLEQ decodes e, s and, if present, r. r is nil when the
// proof does not carry it.
func ParseDLEQ(dleq cashu.DLEQProof) (
	e *secp256k1.PrivateKey,
	s *secp256k1.PrivateKey,
	r *secp256k1.PrivateKey,
	err error,
) {
	if e, err = parsePrivKey(dleq.E); err != nil {
		return nil, nil, nil, err
	}
	if s, err = parsePrivKey(dleq.S); err != nil {
		return nil, nil, nil, err
	}
	if dleq.R == "" {
		return e, s, nil, nil
	}
	if r, err = parsePrivKey(dleq.R); err != nil {
		return nil, nil, nil, err
	}
	return e, s, r, nil
}

// NewDLEQ builds the wire form of a proof generated by the mint.
func NewDLEQ(e, s *secp256k1.PrivateKey) *cashu.DLEQProof {
	return &cashu.DLEQProof{
		E: hex.EncodeToString(e.Serialize()),
		S: hex.EncodeToString(s.Serialize()),
	}
}

func parsePrivKey(s string) (*secp256k1.PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return secp256k1.PrivKeyFromBytes(b), nil
}

func parsePubKey(s string) (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return secp256k1.ParsePubKey(b)
}
