package testutils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/crypto"
	"github.com/elnosh/nutsplit/mint"
	"github.com/elnosh/nutsplit/mint/lightning"
)

func MintConfig(backend lightning.Client, port string, derivationPathIdx uint32, dbpath string) (*mint.Config, error) {
	if err := os.MkdirAll(dbpath, 0750); err != nil {
		return nil, err
	}

	mintConfig := &mint.Config{
		DerivationPathIdx: derivationPathIdx,
		Port:              port,
		MintPath:          dbpath,
		LightningClient:   backend,
		LogLevel:          mint.Disable,
	}
	return mintConfig, nil
}

func CreateTestMint(backend lightning.Client, dbpath string) (*mint.Mint, error) {
	config, err := MintConfig(backend, "0", 0, dbpath)
	if err != nil {
		return nil, err
	}

	mint, err := mint.LoadMint(*config)
	if err != nil {
		return nil, err
	}
	return mint, nil
}

// CreateTestMintServer serves a mint over an httptest server. Closing
// the returned server does not close the mint db.
func CreateTestMintServer(backend lightning.Client, dbpath string) (*httptest.Server, *mint.MintServer, error) {
	testMint, err := CreateTestMint(backend, dbpath)
	if err != nil {
		return nil, nil, err
	}

	mintServer := mint.NewMintServer(testMint, "0")
	return httptest.NewServer(mintServer.Handler()), mintServer, nil
}

// ActiveKeys returns the public keys of the mint active keyset.
func ActiveKeys(m *mint.Mint, mintURL string) (crypto.MintKeys, error) {
	keys, err := crypto.MapPubKeys(m.Keys())
	if err != nil {
		return crypto.MintKeys{}, err
	}
	return crypto.MintKeys{
		Id:      crypto.DeriveKeysetId(keys),
		MintURL: mintURL,
		Unit:    cashu.Sat.String(),
		Keys:    keys,
	}, nil
}

func CreateBlindedMessages(amount uint64, keysetId string) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	splitAmounts := cashu.AmountSplit(amount)
	splitLen := len(splitAmounts)

	blindedMessages := make(cashu.BlindedMessages, splitLen)
	secrets := make([]string, splitLen)
	rs := make([]*secp256k1.PrivateKey, splitLen)

	for i, amt := range splitAmounts {
		r, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, nil, nil, err
		}

		secretBytes := make([]byte, 32)
		if _, err = rand.Read(secretBytes); err != nil {
			return nil, nil, nil, err
		}
		secret := hex.EncodeToString(secretBytes)
		B_, r := crypto.BlindMessage(secret, r)

		blindedMessages[i] = cashu.NewBlindedMessage(keysetId, amt, B_)
		secrets[i] = secret
		rs[i] = r
	}

	return blindedMessages, secrets, rs, nil
}

func ConstructProofs(blindedSignatures cashu.BlindedSignatures,
	secrets []string, rs []*secp256k1.PrivateKey, keys crypto.MintKeys) (cashu.Proofs, error) {

	if len(blindedSignatures) != len(secrets) || len(blindedSignatures) != len(rs) {
		return nil, errors.New("lengths do not match")
	}

	proofs := make(cashu.Proofs, len(blindedSignatures))
	for i, blindedSignature := range blindedSignatures {
		C_bytes, err := hex.DecodeString(blindedSignature.C_)
		if err != nil {
			return nil, err
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			return nil, err
		}

		publicKey, err := keys.PublicKey(blindedSignature.Amount)
		if err != nil {
			return nil, err
		}

		C := crypto.UnblindSignature(C_, rs[i], publicKey)
		proofs[i] = cashu.Proof{
			Amount: blindedSignature.Amount,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
			Id:     blindedSignature.Id,
		}
	}

	return proofs, nil
}

// GetValidProofsForAmount mints proofs for amount directly on the mint.
// The mint backend must settle invoices on creation.
func GetValidProofsForAmount(amount uint64, m *mint.Mint) (cashu.Proofs, error) {
	keys, err := ActiveKeys(m, "")
	if err != nil {
		return nil, err
	}

	mintRequest, err := m.RequestMint(amount)
	if err != nil {
		return nil, fmt.Errorf("error requesting mint: %v", err)
	}

	blindedMessages, secrets, rs, err := CreateBlindedMessages(amount, keys.Id)
	if err != nil {
		return nil, fmt.Errorf("error creating blinded message: %v", err)
	}

	blindedSignatures, err := m.MintTokens(mintRequest.Hash, blindedMessages)
	if err != nil {
		return nil, fmt.Errorf("got unexpected error minting tokens: %v", err)
	}

	proofs, err := ConstructProofs(blindedSignatures, secrets, rs, keys)
	if err != nil {
		return nil, fmt.Errorf("error constructing proofs: %v", err)
	}
	return proofs, nil
}
