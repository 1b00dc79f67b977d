package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const maxOrder = 64

var ErrUnknownAmount = errors.New("no key for amount")

// MintKeyset is the mint side of a keyset: one private key per
// power of two amount.
type MintKeyset struct {
	Id                string
	Unit              string
	Active            bool
	DerivationPathIdx uint32
	Keys              map[uint64]KeyPair
}

type KeyPair struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
}

// GenerateKeyset derives the keyset at m/0'/index'/i' from
// the master key, where i goes over the 64 amounts.
func GenerateKeyset(master *hdkeychain.ExtendedKey, index uint32) (*MintKeyset, error) {
	keys := make(map[uint64]KeyPair, maxOrder)

	// m/0'
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}

	// m/0'/index'
	keysetPath, err := purpose.Derive(hdkeychain.HardenedKeyStart + index)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxOrder; i++ {
		amount := uint64(1) << i
		amountPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + uint32(i))
		if err != nil {
			return nil, err
		}

		privKey, err := amountPath.ECPrivKey()
		if err != nil {
			return nil, err
		}
		keys[amount] = KeyPair{PrivateKey: privKey, PublicKey: privKey.PubKey()}
	}

	publicKeys := make(map[uint64]*secp256k1.PublicKey, len(keys))
	for amount, key := range keys {
		publicKeys[amount] = key.PublicKey
	}

	return &MintKeyset{
		Id:                DeriveKeysetId(publicKeys),
		Unit:              "sat",
		Active:            true,
		DerivationPathIdx: index,
		Keys:              keys,
	}, nil
}

// PublicKeys returns the hex encoded public key for each amount.
func (ks *MintKeyset) PublicKeys() map[uint64]string {
	pubkeys := make(map[uint64]string, len(ks.Keys))
	for amount, key := range ks.Keys {
		pubkeys[amount] = hex.EncodeToString(key.PublicKey.SerializeCompressed())
	}
	return pubkeys
}

// MintKeys is the wallet side of a keyset: the public key of the
// mint for each amount, bound to the mint that published them.
type MintKeys struct {
	Id      string
	MintURL string
	Unit    string
	Keys    map[uint64]*secp256k1.PublicKey
}

// PublicKey returns the mint public key for amount.
func (mk MintKeys) PublicKey(amount uint64) (*secp256k1.PublicKey, error) {
	pubkey, ok := mk.Keys[amount]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAmount, amount)
	}
	return pubkey, nil
}

// DeriveKeysetId returns "00" followed by the first 14 hex characters of
// the sha256 of all the compressed public keys sorted by amount.
func DeriveKeysetId(keys map[uint64]*secp256k1.PublicKey) string {
	amounts := make([]uint64, 0, len(keys))
	for amount := range keys {
		amounts = append(amounts, amount)
	}
	slices.Sort(amounts)

	pubkeys := make([]byte, 0, len(amounts)*33)
	for _, amount := range amounts {
		pubkeys = append(pubkeys, keys[amount].SerializeCompressed()...)
	}
	hash := sha256.Sum256(pubkeys)

	return "00" + hex.EncodeToString(hash[:])[:14]
}

// MapPubKeys parses the hex encoded keys returned by a mint.
func MapPubKeys(keys map[uint64]string) (map[uint64]*secp256k1.PublicKey, error) {
	publicKeys := make(map[uint64]*secp256k1.PublicKey, len(keys))
	for amount, key := range keys {
		pkbytes, err := hex.DecodeString(key)
		if err != nil {
			return nil, err
		}
		pubkey, err := secp256k1.ParsePubKey(pkbytes)
		if err != nil {
			return nil, err
		}
		publicKeys[amount] = pubkey
	}
	return publicKeys, nil
}
