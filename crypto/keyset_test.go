package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func testMaster(t *testing.T) *hdkeychain.ExtendedKey {
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	if err != nil {
		t.Fatal(err)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}
	return master
}

func TestGenerateKeyset(t *testing.T) {
	master := testMaster(t)

	keyset, err := GenerateKeyset(master, 0)
	if err != nil {
		t.Fatalf("error generating keyset: %v", err)
	}

	if len(keyset.Keys) != maxOrder {
		t.Fatalf("expected '%v' keys but got '%v'", maxOrder, len(keyset.Keys))
	}

	for i := 0; i < maxOrder; i++ {
		if _, ok := keyset.Keys[1<<i]; !ok {
			t.Fatalf("missing key for amount '%v'", uint64(1)<<i)
		}
	}

	if len(keyset.Id) != 16 || !strings.HasPrefix(keyset.Id, "00") {
		t.Fatalf("invalid keyset id '%v'", keyset.Id)
	}

	// same master and index give the same keyset
	keyset2, err := GenerateKeyset(master, 0)
	if err != nil {
		t.Fatalf("error generating keyset: %v", err)
	}
	if keyset.Id != keyset2.Id {
		t.Fatalf("expected '%v' but got '%v'", keyset.Id, keyset2.Id)
	}

	keyset3, err := GenerateKeyset(master, 1)
	if err != nil {
		t.Fatalf("error generating keyset: %v", err)
	}
	if keyset.Id == keyset3.Id {
		t.Fatal("expected different keyset ids for different derivation index")
	}
}

func TestMapPubKeysAndDeriveId(t *testing.T) {
	keyset, err := GenerateKeyset(testMaster(t), 0)
	if err != nil {
		t.Fatal(err)
	}

	keys, err := MapPubKeys(keyset.PublicKeys())
	if err != nil {
		t.Fatalf("error mapping keys: %v", err)
	}

	if id := DeriveKeysetId(keys); id != keyset.Id {
		t.Fatalf("expected '%v' but got '%v'", keyset.Id, id)
	}

	mintKeys := MintKeys{Id: keyset.Id, Keys: keys}
	if _, err := mintKeys.PublicKey(3); err == nil {
		t.Fatal("expected error for amount without key")
	}
	pubkey, err := mintKeys.PublicKey(4)
	if err != nil {
		t.Fatal(err)
	}
	if !pubkey.IsEqual(keyset.Keys[4].PublicKey) {
		t.Fatal("public key for amount 4 does not match")
	}

	if _, err := MapPubKeys(map[uint64]string{1: "nothex"}); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestDLEQ(t *testing.T) {
	a, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	A := a.PubKey()

	r, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	B_, _ := BlindMessage("test_message", r)
	C_ := SignBlindedMessage(B_, a)

	e, s, err := GenerateDLEQ(a, B_, C_)
	if err != nil {
		t.Fatalf("error generating DLEQ: %v", err)
	}

	if !VerifyDLEQ(e, s, A, B_, C_) {
		t.Fatal("DLEQ verification failed")
	}

	// signature from a different key must not verify against A
	other, _ := secp256k1.GeneratePrivateKey()
	otherC_ := SignBlindedMessage(B_, other)
	if VerifyDLEQ(e, s, A, B_, otherC_) {
		t.Fatal("expected DLEQ verification to fail")
	}
}
