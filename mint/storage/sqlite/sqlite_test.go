package sqlite

import (
	"bytes"
	"encoding/hex"
	"errors"
	"log"
	"math/rand"
	"os"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/crypto"
	"github.com/elnosh/nutsplit/mint/storage"
)

var (
	db *SQLiteDB
)

func TestMain(m *testing.M) {
	code, err := testMain(m)
	if err != nil {
		log.Println(err)
	}
	os.Exit(code)
}

func testMain(m *testing.M) (int, error) {
	dbpath := "./testsqlite"
	err := os.MkdirAll(dbpath, 0750)
	if err != nil {
		return 1, err
	}

	db, err = InitSQLite(dbpath)
	if err != nil {
		return 1, err
	}
	defer os.RemoveAll(dbpath)
	defer db.Close()

	return m.Run(), nil
}

func TestSeed(t *testing.T) {
	seed := []byte("0123456789abcdef0123456789abcdef")
	if err := db.SaveSeed(seed); err != nil {
		t.Fatalf("error saving seed: %v", err)
	}

	dbSeed, err := db.GetSeed()
	if err != nil {
		t.Fatalf("error getting seed: %v", err)
	}
	if !bytes.Equal(seed, dbSeed) {
		t.Fatalf("expected '%x' but got '%x'", seed, dbSeed)
	}
}

func TestKeysets(t *testing.T) {
	keyset := storage.DBKeyset{Id: "00aabbccddeeff00", Unit: "sat", Active: true, DerivationPathIdx: 0}
	if err := db.SaveKeyset(keyset); err != nil {
		t.Fatalf("error saving keyset: %v", err)
	}
	if err := db.UpdateKeysetActive(keyset.Id, false); err != nil {
		t.Fatalf("error updating keyset: %v", err)
	}

	keysets, err := db.GetKeysets()
	if err != nil {
		t.Fatalf("error getting keysets: %v", err)
	}
	keyset.Active = false
	if !slices.Contains(keysets, keyset) {
		t.Fatalf("expected keyset '%v' in '%v'", keyset, keysets)
	}

	if err := db.UpdateKeysetActive("nonexistent", true); err == nil {
		t.Fatal("expected error updating keyset that does not exist")
	}
}

func TestProofs(t *testing.T) {
	proofs := generateRandomProofs(50)

	if err := db.SaveProofs(proofs); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}

	Ys := make([]string, 20)
	expectedProofs := make([]storage.DBProof, 20)
	for i := 0; i < 20; i++ {
		Y := crypto.HashToCurve([]byte(proofs[i].Secret))
		Yhex := hex.EncodeToString(Y.SerializeCompressed())
		Ys[i] = Yhex
		expectedProofs[i] = toDBProof(proofs[i], Yhex)
	}

	dbProofs, err := db.GetProofsUsed(Ys)
	if err != nil {
		t.Fatalf("error getting used proofs: %v", err)
	}

	if len(dbProofs) != 20 {
		t.Fatalf("got incorrect number of proofs from db. Expected %v but got %v", 20, len(dbProofs))
	}

	sortDBProofs(expectedProofs)
	sortDBProofs(dbProofs)

	if !reflect.DeepEqual(dbProofs, expectedProofs) {
		t.Fatal("proofs from db do not match generated ones saved to db")
	}

	// saving a batch with one spent proof fails and saves none of them
	newProofs := generateRandomProofs(5)
	batch := append(newProofs, proofs[0])
	err = db.SaveProofs(batch)
	if !errors.Is(err, storage.ErrProofAlreadySpent) {
		t.Fatalf("expected error '%v' but got '%v'", storage.ErrProofAlreadySpent, err)
	}

	newYs := make([]string, len(newProofs))
	for i, proof := range newProofs {
		newYs[i] = hex.EncodeToString(crypto.HashToCurve([]byte(proof.Secret)).SerializeCompressed())
	}
	dbProofs, err = db.GetProofsUsed(newYs)
	if err != nil {
		t.Fatalf("error getting used proofs: %v", err)
	}
	if len(dbProofs) != 0 {
		t.Fatalf("expected no proofs saved but got %v", len(dbProofs))
	}

	if err := db.DeleteProofs(Ys[:5]); err != nil {
		t.Fatalf("error deleting proofs: %v", err)
	}
	dbProofs, err = db.GetProofsUsed(Ys)
	if err != nil {
		t.Fatalf("error getting used proofs: %v", err)
	}
	if len(dbProofs) != 15 {
		t.Fatalf("expected %v proofs but got %v", 15, len(dbProofs))
	}
	// deleted proofs can be saved again
	if err := db.SaveProofs(proofs[:5]); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}
}

func TestInvoices(t *testing.T) {
	invoice := storage.Invoice{
		PaymentHash:    generateRandomString(64),
		PaymentRequest: "lnbc" + generateRandomString(100),
		Amount:         2100,
		Issued:         false,
		Expiry:         1700000000,
	}

	if err := db.SaveInvoice(invoice); err != nil {
		t.Fatalf("error saving invoice: %v", err)
	}

	dbInvoice, err := db.GetInvoice(invoice.PaymentHash)
	if err != nil {
		t.Fatalf("error getting invoice: %v", err)
	}
	if !reflect.DeepEqual(invoice, dbInvoice) {
		t.Fatalf("expected '%v' but got '%v'", invoice, dbInvoice)
	}

	if err := db.UpdateInvoiceIssued(invoice.PaymentHash, true); err != nil {
		t.Fatalf("error updating invoice: %v", err)
	}
	dbInvoice, _ = db.GetInvoice(invoice.PaymentHash)
	if !dbInvoice.Issued {
		t.Fatal("expected invoice to be issued")
	}

	if _, err := db.GetInvoice("nonexistent"); err == nil {
		t.Fatal("expected error getting invoice that does not exist")
	}
}

func generateRandomString(length int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

func generateRandomProofs(num int) cashu.Proofs {
	proofs := make(cashu.Proofs, num)

	for i := 0; i < num; i++ {
		proof := cashu.Proof{
			Amount: 21,
			Id:     generateRandomString(32),
			Secret: generateRandomString(64),
			C:      generateRandomString(64),
		}
		proofs[i] = proof
	}

	return proofs
}

func toDBProof(proof cashu.Proof, Y string) storage.DBProof {
	return storage.DBProof{
		Y:      Y,
		Amount: proof.Amount,
		Id:     proof.Id,
		Secret: proof.Secret,
		C:      proof.C,
	}
}

func sortDBProofs(proofs []storage.DBProof) {
	slices.SortFunc(proofs, func(a, b storage.DBProof) int {
		return strings.Compare(a.Secret, b.Secret)
	})
}
