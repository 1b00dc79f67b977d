package lightning

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

const (
	FakePreimage  = "0000000000000000"
	invoiceExpiry = time.Hour
)

// FakeBackend creates real bolt11 invoices but never talks to a node.
// Invoices are settled as soon as they are created unless
// ManualSettle is set, and every payment succeeds.
type FakeBackend struct {
	mu       sync.Mutex
	invoices []Invoice

	// fee reserve asked for every payment
	Fee uint64
	// fee reported as paid, must not be over Fee
	PaidFee      uint64
	ManualSettle bool
	// outgoing payments fail when set
	PaymentFailed bool
}

func (fb *FakeBackend) CreateInvoice(amount uint64) (Invoice, error) {
	req, preimage, paymentHash, err := CreateFakeInvoice(amount)
	if err != nil {
		return Invoice{}, err
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	invoice := Invoice{
		PaymentRequest: req,
		PaymentHash:    paymentHash,
		Preimage:       preimage,
		Settled:        !fb.ManualSettle,
		Amount:         amount,
		Expiry:         uint64(time.Now().Add(invoiceExpiry).Unix()),
	}
	fb.invoices = append(fb.invoices, invoice)

	return invoice, nil
}

func (fb *FakeBackend) InvoiceStatus(hash string) (Invoice, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	invoiceIdx := slices.IndexFunc(fb.invoices, func(i Invoice) bool {
		return i.PaymentHash == hash
	})
	if invoiceIdx == -1 {
		return Invoice{}, errors.New("invoice does not exist")
	}

	return fb.invoices[invoiceIdx], nil
}

// SettleInvoice marks the invoice with hash as paid.
func (fb *FakeBackend) SettleInvoice(hash string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	invoiceIdx := slices.IndexFunc(fb.invoices, func(i Invoice) bool {
		return i.PaymentHash == hash
	})
	if invoiceIdx == -1 {
		return errors.New("invoice does not exist")
	}
	fb.invoices[invoiceIdx].Settled = true
	return nil
}

func (fb *FakeBackend) SendPayment(ctx context.Context, request string, amount uint64) (PaymentStatus, error) {
	invoice, err := decodepay.Decodepay(request)
	if err != nil {
		return PaymentStatus{}, fmt.Errorf("error decoding invoice: %v", err)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.PaymentFailed {
		return PaymentStatus{PaymentStatus: Failed}, nil
	}

	outgoingPayment := Invoice{
		PaymentRequest: request,
		PaymentHash:    invoice.PaymentHash,
		Preimage:       FakePreimage,
		Settled:        true,
		Amount:         amount,
	}
	fb.invoices = append(fb.invoices, outgoingPayment)

	return PaymentStatus{
		Preimage:      FakePreimage,
		PaymentStatus: Succeeded,
		Fee:           min(fb.PaidFee, fb.Fee),
	}, nil
}

func (fb *FakeBackend) FeeReserve(amount uint64) uint64 {
	return fb.Fee
}

// CreateFakeInvoice returns a bolt11 invoice for amount signed with a random
// key along with its preimage and payment hash.
func CreateFakeInvoice(amount uint64) (string, string, string, error) {
	var random [32]byte
	_, err := rand.Read(random[:])
	if err != nil {
		return "", "", "", err
	}
	preimage := hex.EncodeToString(random[:])
	paymentHash := sha256.Sum256(random[:])
	hash := hex.EncodeToString(paymentHash[:])

	invoice, err := zpay32.NewInvoice(
		&chaincfg.SigNetParams,
		paymentHash,
		time.Now(),
		zpay32.Amount(lnwire.MilliSatoshi(amount*1000)),
		zpay32.Description("nutsplit"),
		zpay32.Expiry(invoiceExpiry),
	)
	if err != nil {
		return "", "", "", err
	}

	invoiceStr, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			key, err := secp256k1.GeneratePrivateKey()
			if err != nil {
				return []byte{}, err
			}
			return ecdsa.SignCompact(key, msg, true), nil
		},
	})
	if err != nil {
		return "", "", "", err
	}

	return invoiceStr, preimage, hash, nil
}
