package storage

import (
	"errors"

	"github.com/elnosh/nutsplit/cashu"
)

var ErrProofAlreadySpent = errors.New("proof already spent")

type MintDB interface {
	SaveSeed([]byte) error
	GetSeed() ([]byte, error)

	SaveKeyset(DBKeyset) error
	GetKeysets() ([]DBKeyset, error)
	UpdateKeysetActive(keysetId string, active bool) error

	// SaveProofs marks the proofs as spent. It fails with
	// ErrProofAlreadySpent, saving none, if any of them was already spent.
	SaveProofs(cashu.Proofs) error
	GetProofsUsed(Ys []string) ([]DBProof, error)
	// DeleteProofs makes the proofs with the Ys passed spendable again.
	DeleteProofs(Ys []string) error

	SaveInvoice(Invoice) error
	GetInvoice(paymentHash string) (Invoice, error)
	UpdateInvoiceIssued(paymentHash string, issued bool) error

	Close()
}

type DBKeyset struct {
	Id                string
	Unit              string
	Active            bool
	DerivationPathIdx uint32
}

type DBProof struct {
	Y      string
	Amount uint64
	Id     string
	Secret string
	C      string
}

// Invoice is a lightning invoice the mint created for a mint request.
type Invoice struct {
	PaymentHash    string
	PaymentRequest string
	Amount         uint64
	Issued         bool
	Expiry         uint64
}
