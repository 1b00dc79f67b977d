package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/elnosh/nutsplit/cashu"
	bolt "go.etcd.io/bbolt"
)

const (
	proofsBucket   = "proofs"
	countersBucket = "counters"
)

type BoltDB struct {
	bolt *bolt.DB
}

// InitBolt opens (or creates) wallet.db inside path.
func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(filepath.Join(path, "wallet.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error setting bolt db: %v", err)
	}

	boltdb := &BoltDB{bolt: db}
	if err := boltdb.initWalletBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting bolt db: %v", err)
	}

	return boltdb, nil
}

func (db *BoltDB) initWalletBuckets() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(proofsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(countersBucket)); err != nil {
			return err
		}
		return nil
	})
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}

func (db *BoltDB) GetProofs() cashu.Proofs {
	return db.filterProofs(func(cashu.Proof) bool { return true })
}

func (db *BoltDB) GetProofsByKeysetId(id string) cashu.Proofs {
	return db.filterProofs(func(proof cashu.Proof) bool { return proof.Id == id })
}

func (db *BoltDB) filterProofs(keep func(cashu.Proof) bool) cashu.Proofs {
	proofs := cashu.Proofs{}

	if err := db.bolt.View(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))

		c := proofsb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				return fmt.Errorf("error getting proofs: %v", err)
			}
			if keep(proof) {
				proofs = append(proofs, proof)
			}
		}
		return nil
	}); err != nil {
		return cashu.Proofs{}
	}

	return proofs
}

func (db *BoltDB) SaveProofs(proofs cashu.Proofs) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		for _, proof := range proofs {
			jsonProof, err := json.Marshal(proof)
			if err != nil {
				return fmt.Errorf("invalid proof format: %v", err)
			}
			if err := proofsb.Put([]byte(proof.Secret), jsonProof); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) DeleteProof(secret string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		if proofsb.Get([]byte(secret)) == nil {
			return ErrProofNotFound
		}
		return proofsb.Delete([]byte(secret))
	})
}

func (db *BoltDB) GetKeysetCounter(id string) uint32 {
	var counter uint32 = 0

	db.bolt.View(func(tx *bolt.Tx) error {
		countersb := tx.Bucket([]byte(countersBucket))
		if v := countersb.Get([]byte(id)); len(v) == 4 {
			counter = binary.BigEndian.Uint32(v)
		}
		return nil
	})

	return counter
}

func (db *BoltDB) IncrementKeysetCounter(id string, num uint32) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		countersb := tx.Bucket([]byte(countersBucket))

		var counter uint32 = 0
		if v := countersb.Get([]byte(id)); len(v) == 4 {
			counter = binary.BigEndian.Uint32(v)
		}

		value := make([]byte, 4)
		binary.BigEndian.PutUint32(value, counter+num)
		return countersb.Put([]byte(id), value)
	})
}
