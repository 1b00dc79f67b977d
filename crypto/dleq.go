package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// GenerateDLEQ proves that C_ = aB_ for the key pair (a, A = aG)
// without revealing a. Returns the challenge e and response s.
func GenerateDLEQ(a *secp256k1.PrivateKey, B_, C_ *secp256k1.PublicKey) (
	*secp256k1.PrivateKey, *secp256k1.PrivateKey, error) {

	p, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, err
	}

	// R1 = pG
	R1 := p.PubKey()

	// R2 = pB_
	var B_Point, R2Point secp256k1.JacobianPoint
	B_.AsJacobian(&B_Point)
	secp256k1.ScalarMultNonConst(&p.Key, &B_Point, &R2Point)
	R2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&R2Point.X, &R2Point.Y)

	e := hashE(R1, R2, a.PubKey(), C_)

	// s = p + e*a
	var s secp256k1.ModNScalar
	s.Mul2(&e.Key, &a.Key).Add(&p.Key)

	return e, secp256k1.NewPrivateKey(&s), nil
}

// VerifyDLEQ checks a proof generated by GenerateDLEQ:
// R1 = sG - eA, R2 = sB_ - eC_ and e == hash(R1, R2, A, C_)
func VerifyDLEQ(
	e *secp256k1.PrivateKey,
	s *secp256k1.PrivateKey,
	A *secp256k1.PublicKey,
	B_ *secp256k1.PublicKey,
	C_ *secp256k1.PublicKey,
) bool {
	var eNeg secp256k1.ModNScalar
	eNeg.NegateVal(&e.Key)

	// R1 = sG - eA
	var sGPoint, APoint, eAPoint, R1Point secp256k1.JacobianPoint
	s.PubKey().AsJacobian(&sGPoint)
	A.AsJacobian(&APoint)
	secp256k1.ScalarMultNonConst(&eNeg, &APoint, &eAPoint)
	secp256k1.AddNonConst(&sGPoint, &eAPoint, &R1Point)
	R1Point.ToAffine()
	R1 := secp256k1.NewPublicKey(&R1Point.X, &R1Point.Y)

	// R2 = sB_ - eC_
	var B_Point, sB_Point, C_Point, eC_Point, R2Point secp256k1.JacobianPoint
	B_.AsJacobian(&B_Point)
	secp256k1.ScalarMultNonConst(&s.Key, &B_Point, &sB_Point)
	C_.AsJacobian(&C_Point)
	secp256k1.ScalarMultNonConst(&eNeg, &C_Point, &eC_Point)
	secp256k1.AddNonConst(&sB_Point, &eC_Point, &R2Point)
	R2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&R2Point.X, &R2Point.Y)

	expected := hashE(R1, R2, A, C_)
	return expected.Key.Equals(&e.Key)
}

func hashE(pubkeys ...*secp256k1.PublicKey) *secp256k1.PrivateKey {
	hexConcat := ""
	for _, pubkey := range pubkeys {
		hexConcat += hex.EncodeToString(pubkey.SerializeUncompressed())
	}
	hash := sha256.Sum256([]byte(hexConcat))
	return secp256k1.PrivKeyFromBytes(hash[:])
}
