package storage

import (
	"errors"
	"sync"

	"github.com/elnosh/nutsplit/cashu"
)

var ErrProofNotFound = errors.New("proof not found")

// MemoryStore keeps proofs in memory in the order they were saved.
type MemoryStore struct {
	mu       sync.RWMutex
	proofs   cashu.Proofs
	counters map[string]uint32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{proofs: cashu.Proofs{}, counters: make(map[string]uint32)}
}

func (ms *MemoryStore) GetProofs() cashu.Proofs {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	proofs := make(cashu.Proofs, len(ms.proofs))
	copy(proofs, ms.proofs)
	return proofs
}

func (ms *MemoryStore) GetProofsByKeysetId(id string) cashu.Proofs {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	proofs := cashu.Proofs{}
	for _, proof := range ms.proofs {
		if proof.Id == id {
			proofs = append(proofs, proof)
		}
	}
	return proofs
}

func (ms *MemoryStore) SaveProofs(proofs cashu.Proofs) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, proof := range proofs {
		replaced := false
		for i := range ms.proofs {
			if ms.proofs[i].Secret == proof.Secret {
				ms.proofs[i] = proof
				replaced = true
				break
			}
		}
		if !replaced {
			ms.proofs = append(ms.proofs, proof)
		}
	}
	return nil
}

func (ms *MemoryStore) DeleteProof(secret string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for i, proof := range ms.proofs {
		if proof.Secret == secret {
			ms.proofs = append(ms.proofs[:i], ms.proofs[i+1:]...)
			return nil
		}
	}
	return ErrProofNotFound
}

func (ms *MemoryStore) GetKeysetCounter(id string) uint32 {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.counters[id]
}

func (ms *MemoryStore) IncrementKeysetCounter(id string, num uint32) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.counters[id] += num
	return nil
}

func (ms *MemoryStore) Close() error { return nil }
