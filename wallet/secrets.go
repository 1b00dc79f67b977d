package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/nutsplit/cashu/nuts/nut13"
	"github.com/tyler-smith/go-bip39"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// SecretSource hands out a fresh secret and blinding factor for
// each blinded message. A pair is never returned twice.
type SecretSource interface {
	Next(keysetId string) (string, *secp256k1.PrivateKey, error)
}

// RandomSource generates 32 random bytes for the secret and a random r.
type RandomSource struct{}

func (RandomSource) Next(string) (string, *secp256k1.PrivateKey, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}

	r, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return "", nil, err
	}

	return hex.EncodeToString(secretBytes), r, nil
}

// CounterStore persists the derivation counter of each keyset.
type CounterStore interface {
	GetKeysetCounter(keysetId string) uint32
	IncrementKeysetCounter(keysetId string, num uint32) error
}

// DeterministicSource derives secrets and blinding factors from a
// mnemonic so proofs can be restored from it.
type DeterministicSource struct {
	mu       sync.Mutex
	master   *hdkeychain.ExtendedKey
	counters CounterStore
}

// NewMnemonic generates a new 12 word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("error generating entropy: %v", err)
	}
	return bip39.NewMnemonic(entropy)
}

// NewDeterministicSource creates a source from the mnemonic. If counters
// is nil they are kept in memory and restart at zero.
func NewDeterministicSource(mnemonic string, counters CounterStore) (*DeterministicSource, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("error creating master key: %v", err)
	}

	if counters == nil {
		counters = &memoryCounters{counters: make(map[string]uint32)}
	}
	return &DeterministicSource{master: master, counters: counters}, nil
}

func (ds *DeterministicSource) Next(keysetId string) (string, *secp256k1.PrivateKey, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	keysetPath, err := nut13.DeriveKeysetPath(ds.master, keysetId)
	if err != nil {
		return "", nil, err
	}

	counter := ds.counters.GetKeysetCounter(keysetId)
	secret, err := nut13.DeriveSecret(keysetPath, counter)
	if err != nil {
		return "", nil, err
	}
	r, err := nut13.DeriveBlindingFactor(keysetPath, counter)
	if err != nil {
		return "", nil, err
	}

	// move the counter before handing out the pair so it can't be
	// derived again after a failed call
	if err := ds.counters.IncrementKeysetCounter(keysetId, 1); err != nil {
		return "", nil, fmt.Errorf("error incrementing keyset counter: %v", err)
	}

	return secret, r, nil
}

// Counter returns the next counter that will be used for the keyset.
func (ds *DeterministicSource) Counter(keysetId string) uint32 {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.counters.GetKeysetCounter(keysetId)
}

type memoryCounters struct {
	counters map[string]uint32
}

func (mc *memoryCounters) GetKeysetCounter(keysetId string) uint32 {
	return mc.counters[keysetId]
}

func (mc *memoryCounters) IncrementKeysetCounter(keysetId string, num uint32) error {
	mc.counters[keysetId] += num
	return nil
}
