package storage

import (
	"errors"
	"log"
	"math/rand"
	"os"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/elnosh/nutsplit/cashu"
)

var (
	db *BoltDB
)

func TestMain(m *testing.M) {
	code, err := testMain(m)
	if err != nil {
		log.Println(err)
	}
	os.Exit(code)
}

func testMain(m *testing.M) (int, error) {
	dbpath := "./testdbbolt"
	err := os.MkdirAll(dbpath, 0750)
	if err != nil {
		return 1, err
	}
	db, err = InitBolt(dbpath)
	if err != nil {
		return 1, err
	}
	defer os.RemoveAll(dbpath)
	defer db.Close()

	return m.Run(), nil
}

func TestProofs(t *testing.T) {
	stores := []struct {
		name  string
		store ProofStore
	}{
		{name: "bolt", store: db},
		{name: "memory", store: NewMemoryStore()},
	}

	for _, test := range stores {
		t.Run(test.name, func(t *testing.T) {
			testProofStore(t, test.store)
		})
	}
}

func testProofStore(t *testing.T, store ProofStore) {
	keysetId1 := "00keysetId12345"
	numProofsKeysetId1 := 50
	randomProofs1 := generateRandomProofs(keysetId1, numProofsKeysetId1)

	if err := store.SaveProofs(randomProofs1); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}

	proofs := store.GetProofs()
	if len(proofs) != numProofsKeysetId1 {
		t.Fatalf("expected '%v' proofs from db but got '%v'", numProofsKeysetId1, len(proofs))
	}

	keysetId2 := "00someotherKeysetId"
	numProofsKeysetId2 := 100
	randomProofs2 := generateRandomProofs(keysetId2, numProofsKeysetId2)

	if err := store.SaveProofs(randomProofs2); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}

	proofsById := store.GetProofsByKeysetId(keysetId1)
	if len(proofsById) != numProofsKeysetId1 {
		t.Fatalf("expected '%v' proofs from db for keyset '%v' but got '%v'",
			numProofsKeysetId1, keysetId1, len(proofsById))
	}

	expected := slices.Clone(randomProofs1)
	sortProofs(expected)
	sortProofs(proofsById)
	if !reflect.DeepEqual(expected, proofsById) {
		t.Fatal("proofs from db do not match randomly generated ones saved to db")
	}

	// saving the same proof again does not duplicate it
	if err := store.SaveProofs(randomProofs1[:1]); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}
	if total := len(store.GetProofs()); total != numProofsKeysetId1+numProofsKeysetId2 {
		t.Fatalf("expected '%v' proofs but got '%v'", numProofsKeysetId1+numProofsKeysetId2, total)
	}

	// delete proofs from db and check correct response
	numToDelete := 3
	for i := 0; i < numToDelete; i++ {
		if err := store.DeleteProof(randomProofs1[i].Secret); err != nil {
			t.Fatalf("error deleting proof: %v", err)
		}
	}

	proofsById = store.GetProofsByKeysetId(keysetId1)
	expectedNumProofs := numProofsKeysetId1 - numToDelete
	if len(proofsById) != expectedNumProofs {
		t.Fatalf("expected '%v' proofs from db for keyset '%v' but got '%v'",
			expectedNumProofs, keysetId1, len(proofsById))
	}

	err := store.DeleteProof("secretthatdoesnotexist")
	if !errors.Is(err, ErrProofNotFound) {
		t.Fatalf("expected error '%v' but got '%v'", ErrProofNotFound, err)
	}
}

func TestKeysetCounter(t *testing.T) {
	stores := []struct {
		name  string
		store ProofStore
	}{
		{name: "bolt", store: db},
		{name: "memory", store: NewMemoryStore()},
	}

	for _, test := range stores {
		t.Run(test.name, func(t *testing.T) {
			keysetId := "00counterkeyset" + test.name
			if counter := test.store.GetKeysetCounter(keysetId); counter != 0 {
				t.Fatalf("expected counter '0' but got '%v'", counter)
			}

			if err := test.store.IncrementKeysetCounter(keysetId, 5); err != nil {
				t.Fatalf("error incrementing counter: %v", err)
			}
			if err := test.store.IncrementKeysetCounter(keysetId, 3); err != nil {
				t.Fatalf("error incrementing counter: %v", err)
			}

			if counter := test.store.GetKeysetCounter(keysetId); counter != 8 {
				t.Fatalf("expected counter '8' but got '%v'", counter)
			}
		})
	}
}

func TestBoltReopen(t *testing.T) {
	path := t.TempDir()
	store, err := InitBolt(path)
	if err != nil {
		t.Fatal(err)
	}

	proofs := generateRandomProofs("00reopenkeyset00", 10)
	if err := store.SaveProofs(proofs); err != nil {
		t.Fatal(err)
	}
	if err := store.IncrementKeysetCounter("00reopenkeyset00", 10); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = InitBolt(path)
	if err != nil {
		t.Fatalf("error reopening db: %v", err)
	}
	defer store.Close()

	if total := store.GetProofs().Amount(); total != proofs.Amount() {
		t.Fatalf("expected '%v' but got '%v'", proofs.Amount(), total)
	}
	if counter := store.GetKeysetCounter("00reopenkeyset00"); counter != 10 {
		t.Fatalf("expected counter '10' but got '%v'", counter)
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

func generateRandomProofs(keysetId string, num int) cashu.Proofs {
	proofs := make(cashu.Proofs, num)

	for i := 0; i < num; i++ {
		proof := cashu.Proof{
			Amount: 21,
			Id:     keysetId,
			Secret: generateRandomString(64),
			C:      generateRandomString(64),
		}
		proofs[i] = proof
	}

	return proofs
}

func sortProofs(proofs cashu.Proofs) {
	slices.SortFunc(proofs, func(a, b cashu.Proof) int {
		return strings.Compare(a.Secret, b.Secret)
	})
}
