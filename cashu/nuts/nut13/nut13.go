// Package nut13 derives deterministic secrets and blinding factors
// from a BIP32 master key so a wallet can be restored from its mnemonic.
package nut13

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const purposeIndex = 129372

// keysetIdInt maps a keyset id to its derivation index. Hex ids use their
// first 8 bytes. Older mints publish non hex ids, those are hashed first.
func keysetIdInt(keysetId string) uint32 {
	idBytes, err := hex.DecodeString(keysetId)
	if err != nil || len(idBytes) < 8 {
		hash := sha256.Sum256([]byte(keysetId))
		idBytes = hash[:]
	}
	return uint32(binary.BigEndian.Uint64(idBytes) % (1<<31 - 1))
}

// DeriveKeysetPath returns m/129372'/0'/keyset_k_int'
func DeriveKeysetPath(master *hdkeychain.ExtendedKey, keysetId string) (*hdkeychain.ExtendedKey, error) {
	path := []uint32{
		hdkeychain.HardenedKeyStart + purposeIndex,
		hdkeychain.HardenedKeyStart + 0,
		hdkeychain.HardenedKeyStart + keysetIdInt(keysetId),
	}

	key := master
	for _, idx := range path {
		var err error
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

// DeriveSecret returns the hex secret at keyset_path/counter'/0
func DeriveSecret(keysetPath *hdkeychain.ExtendedKey, counter uint32) (string, error) {
	secretKey, err := deriveKey(keysetPath, counter, 0)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(secretKey.Serialize()), nil
}

// DeriveBlindingFactor returns r at keyset_path/counter'/1
func DeriveBlindingFactor(keysetPath *hdkeychain.ExtendedKey, counter uint32) (*secp256k1.PrivateKey, error) {
	return deriveKey(keysetPath, counter, 1)
}

func deriveKey(keysetPath *hdkeychain.ExtendedKey, counter, leaf uint32) (*secp256k1.PrivateKey, error) {
	counterPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + counter)
	if err != nil {
		return nil, err
	}
	leafPath, err := counterPath.Derive(leaf)
	if err != nil {
		return nil, err
	}
	return leafPath.ECPrivKey()
}
