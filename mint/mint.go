// Package mint implements a mint speaking the legacy cashu API. It signs
// blinded messages, verifies and invalidates proofs, and pays invoices
// through a lightning backend.
package mint

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut01"
	"github.com/elnosh/nutsplit/cashu/nuts/nut03"
	"github.com/elnosh/nutsplit/cashu/nuts/nut05"
	"github.com/elnosh/nutsplit/cashu/nuts/nut09"
	"github.com/elnosh/nutsplit/cashu/nuts/nut12"
	"github.com/elnosh/nutsplit/crypto"
	"github.com/elnosh/nutsplit/mint/lightning"
	"github.com/elnosh/nutsplit/mint/storage"
	"github.com/elnosh/nutsplit/mint/storage/sqlite"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

type Mint struct {
	db storage.MintDB

	// active keyset
	activeKeyset *crypto.MintKeyset

	// map of all keysets (both active and inactive)
	keysets map[string]crypto.MintKeyset

	lightningClient lightning.Client
	mintInfo        nut09.MintInfo
	logger          *slog.Logger

	// held while proofs are verified and invalidated
	mu sync.Mutex
}

func LoadMint(config Config) (*Mint, error) {
	if err := os.MkdirAll(config.MintPath, 0700); err != nil {
		return nil, err
	}

	db, err := sqlite.InitSQLite(config.MintPath)
	if err != nil {
		return nil, fmt.Errorf("error setting up sqlite: %v", err)
	}

	logger := newLogger(config.LogLevel)

	seed, err := mintSeed(db, config.Seed)
	if err != nil {
		db.Close()
		return nil, err
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating master key: %v", err)
	}

	activeKeyset, err := crypto.GenerateKeyset(master, config.DerivationPathIdx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error generating keyset: %v", err)
	}

	mint := &Mint{
		db:              db,
		activeKeyset:    activeKeyset,
		keysets:         map[string]crypto.MintKeyset{activeKeyset.Id: *activeKeyset},
		lightningClient: config.LightningClient,
		logger:          logger,
	}
	if mint.lightningClient == nil {
		mint.lightningClient = &lightning.FakeBackend{}
	}

	dbKeysets, err := db.GetKeysets()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error reading keysets: %v", err)
	}

	activeSaved := false
	for _, dbKeyset := range dbKeysets {
		if dbKeyset.Id == activeKeyset.Id {
			activeSaved = true
			if !dbKeyset.Active {
				if err := db.UpdateKeysetActive(dbKeyset.Id, true); err != nil {
					db.Close()
					return nil, err
				}
			}
			continue
		}

		// keep older keysets to verify proofs signed with them
		keyset, err := crypto.GenerateKeyset(master, dbKeyset.DerivationPathIdx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("error generating keyset: %v", err)
		}
		keyset.Active = false
		mint.keysets[keyset.Id] = *keyset

		if dbKeyset.Active {
			logger.Info("deactivating keyset", slog.String("id", dbKeyset.Id))
			if err := db.UpdateKeysetActive(dbKeyset.Id, false); err != nil {
				db.Close()
				return nil, err
			}
		}
	}

	if !activeSaved {
		dbKeyset := storage.DBKeyset{
			Id:                activeKeyset.Id,
			Unit:              activeKeyset.Unit,
			Active:            true,
			DerivationPathIdx: activeKeyset.DerivationPathIdx,
		}
		if err := db.SaveKeyset(dbKeyset); err != nil {
			db.Close()
			return nil, fmt.Errorf("error saving keyset: %v", err)
		}
	}

	pubkey, err := master.ECPubKey()
	if err != nil {
		db.Close()
		return nil, err
	}
	mint.mintInfo = nut09.MintInfo{
		Name:            config.MintInfo.Name,
		Pubkey:          hex.EncodeToString(pubkey.SerializeCompressed()),
		Version:         "nutsplit/0.1.0",
		Description:     config.MintInfo.Description,
		LongDescription: config.MintInfo.LongDescription,
		Contact:         config.MintInfo.Contact,
		Nuts:            []string{"NUT-07", "NUT-08", "NUT-09", "NUT-12"},
		Motd:            config.MintInfo.Motd,
	}

	logger.Info("mint loaded", slog.String("active_keyset", activeKeyset.Id))
	return mint, nil
}

func newLogger(level LogLevel) *slog.Logger {
	if level == Disable {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level.slogLevel()}))
}

// mintSeed returns the hex seed passed in the config, the one saved in the
// db or a newly generated one, in that order.
func mintSeed(db storage.MintDB, hexSeed string) ([]byte, error) {
	if len(hexSeed) > 0 {
		seed, err := hex.DecodeString(hexSeed)
		if err != nil {
			return nil, fmt.Errorf("invalid seed: %v", err)
		}
		return seed, nil
	}

	seed, err := db.GetSeed()
	if err == nil {
		return seed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error reading seed: %v", err)
	}

	seed, err = hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		return nil, err
	}
	if err := db.SaveSeed(seed); err != nil {
		return nil, fmt.Errorf("error saving seed: %v", err)
	}
	return seed, nil
}

func (m *Mint) Close() {
	m.db.Close()
}

// Keys returns the public keys of the active keyset.
func (m *Mint) Keys() nut01.KeysMap {
	return m.activeKeyset.PublicKeys()
}

func (m *Mint) KeysetIds() []string {
	ids := make([]string, 0, len(m.keysets))
	for id := range m.keysets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Mint) Info() nut09.MintInfo {
	return m.mintInfo
}

// RequestMint creates an invoice that, once paid, allows
// minting amount.
func (m *Mint) RequestMint(amount uint64) (*nut03.PostRequestMintResponse, error) {
	if amount == 0 {
		return nil, cashu.BuildCashuError("amount must be greater than zero", cashu.StandardErrCode)
	}

	invoice, err := m.lightningClient.CreateInvoice(amount)
	if err != nil {
		m.logger.Error("error creating invoice", slog.String("error", err.Error()))
		return nil, cashu.BuildCashuError(err.Error(), cashu.LightningBackendErrCode)
	}

	dbInvoice := storage.Invoice{
		PaymentHash:    invoice.PaymentHash,
		PaymentRequest: invoice.PaymentRequest,
		Amount:         amount,
		Expiry:         invoice.Expiry,
	}
	if err := m.db.SaveInvoice(dbInvoice); err != nil {
		m.logger.Error("error saving invoice", slog.String("error", err.Error()))
		return nil, cashu.StandardErr
	}

	m.logger.Info("created mint invoice", slog.Uint64("amount", amount), slog.String("hash", invoice.PaymentHash))
	return &nut03.PostRequestMintResponse{PR: invoice.PaymentRequest, Hash: invoice.PaymentHash}, nil
}

// MintTokens signs the outputs if the invoice with the payment hash
// was paid and has not been issued yet.
func (m *Mint) MintTokens(hash string, outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	invoice, err := m.db.GetInvoice(hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cashu.InvoiceNotExistErr
		}
		return nil, cashu.StandardErr
	}
	if invoice.Issued {
		return nil, cashu.MintQuoteAlreadyIssued
	}

	status, err := m.lightningClient.InvoiceStatus(hash)
	if err != nil {
		return nil, cashu.BuildCashuError(err.Error(), cashu.LightningBackendErrCode)
	}
	if !status.Settled {
		return nil, cashu.MintQuoteRequestNotPaid
	}

	outputsAmount, err := checkedOutputsAmount(outputs)
	if err != nil {
		return nil, err
	}
	if outputsAmount > invoice.Amount {
		return nil, cashu.OutputsOverQuoteAmountErr
	}

	signatures, err := m.signBlindedMessages(outputs)
	if err != nil {
		return nil, err
	}

	if err := m.db.UpdateInvoiceIssued(hash, true); err != nil {
		m.logger.Error("error updating invoice", slog.String("error", err.Error()))
		return nil, cashu.StandardErr
	}

	m.logger.Info("issued proofs", slog.Uint64("amount", outputsAmount), slog.String("hash", hash))
	return signatures, nil
}

// Split invalidates the proofs and signs the outputs. The outputs must add
// up to the proofs amount. The first outputs adding up to (total - amount)
// are returned in fst and the rest, adding up to amount, in snd.
func (m *Mint) Split(proofs cashu.Proofs, amount uint64, outputs cashu.BlindedMessages) (
	fst cashu.BlindedSignatures, snd cashu.BlindedSignatures, err error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(proofs) == 0 {
		return nil, nil, cashu.NoProofsProvided
	}

	proofsAmount, err := proofs.CheckedAmount()
	if err != nil {
		return nil, nil, cashu.InvalidProofErr
	}
	outputsAmount, err := checkedOutputsAmount(outputs)
	if err != nil {
		return nil, nil, err
	}
	if proofsAmount != outputsAmount || amount > proofsAmount {
		return nil, nil, cashu.UnbalancedSplitErr
	}

	// find where the outputs for the amount to keep end
	keepAmount := proofsAmount - amount
	boundary := -1
	var sum uint64 = 0
	for i := 0; i <= len(outputs); i++ {
		if sum == keepAmount {
			boundary = i
			break
		}
		if i < len(outputs) {
			sum += outputs[i].Amount
		}
	}
	if boundary == -1 {
		return nil, nil, cashu.UnbalancedSplitErr
	}

	if err := m.verifyProofs(proofs); err != nil {
		return nil, nil, err
	}

	signatures, err := m.signBlindedMessages(outputs)
	if err != nil {
		return nil, nil, err
	}

	if err := m.invalidateProofs(proofs); err != nil {
		return nil, nil, err
	}

	m.logger.Info("split proofs",
		slog.Uint64("amount", proofsAmount),
		slog.Int("inputs", len(proofs)),
		slog.Int("outputs", len(outputs)))

	return signatures[:boundary], signatures[boundary:], nil
}

// CheckSpendable returns, for each proof, whether it has not been spent yet.
func (m *Mint) CheckSpendable(proofs cashu.Proofs) ([]bool, error) {
	Ys := make([]string, len(proofs))
	for i, proof := range proofs {
		Ys[i] = hashSecret(proof.Secret)
	}

	usedProofs, err := m.db.GetProofsUsed(Ys)
	if err != nil {
		m.logger.Error("error reading used proofs", slog.String("error", err.Error()))
		return nil, cashu.StandardErr
	}

	used := make(map[string]bool, len(usedProofs))
	for _, proof := range usedProofs {
		used[proof.Y] = true
	}

	spendable := make([]bool, len(proofs))
	for i, Y := range Ys {
		spendable[i] = !used[Y]
	}
	return spendable, nil
}

// CheckFees returns the fee reserve needed to pay the invoice.
func (m *Mint) CheckFees(request string) (uint64, error) {
	amount, err := invoiceAmount(request)
	if err != nil {
		return 0, err
	}
	return m.lightningClient.FeeReserve(amount), nil
}

// Melt pays the invoice with the proofs. What is not spent from the
// fee reserve is returned as change signed on the blank outputs.
func (m *Mint) Melt(ctx context.Context, proofs cashu.Proofs, request string, outputs cashu.BlindedMessages) (
	*nut05.PostMeltResponse, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(proofs) == 0 {
		return nil, cashu.NoProofsProvided
	}

	amount, err := invoiceAmount(request)
	if err != nil {
		return nil, err
	}
	feeReserve := m.lightningClient.FeeReserve(amount)

	if err := m.verifyProofs(proofs); err != nil {
		return nil, err
	}

	proofsAmount, err := proofs.CheckedAmount()
	if err != nil {
		return nil, cashu.InvalidProofErr
	}
	needed, err := cashu.CheckedAdd(amount, feeReserve)
	if err != nil || proofsAmount < needed {
		return nil, cashu.InsufficientProofsAmount
	}

	// proofs are spent before paying and restored if the payment fails
	if err := m.invalidateProofs(proofs); err != nil {
		return nil, err
	}

	payment, err := m.lightningClient.SendPayment(ctx, request, amount)
	if err != nil {
		m.logger.Error("error paying invoice", slog.String("error", err.Error()))
		if err := m.restoreProofs(proofs); err != nil {
			return nil, err
		}
		return nil, cashu.BuildCashuError(err.Error(), cashu.LightningBackendErrCode)
	}
	switch payment.PaymentStatus {
	case lightning.Failed:
		if err := m.restoreProofs(proofs); err != nil {
			return nil, err
		}
		return &nut05.PostMeltResponse{Paid: false}, nil
	case lightning.Pending:
		// a pending payment can still go through so proofs stay spent
		return &nut05.PostMeltResponse{Paid: false}, nil
	}

	response := &nut05.PostMeltResponse{Paid: true, Preimage: payment.Preimage}

	overpaid := proofsAmount - amount - min(payment.Fee, proofsAmount-amount)
	if overpaid > 0 && len(outputs) > 0 {
		changeAmounts := cashu.AmountSplit(overpaid)
		slices.Reverse(changeAmounts)
		if len(changeAmounts) > len(outputs) {
			changeAmounts = changeAmounts[:len(outputs)]
		}

		changeOutputs := make(cashu.BlindedMessages, len(changeAmounts))
		for i, changeAmount := range changeAmounts {
			changeOutputs[i] = outputs[i]
			changeOutputs[i].Amount = changeAmount
		}

		change, err := m.signBlindedMessages(changeOutputs)
		if err != nil {
			return nil, err
		}
		response.Change = change
	}

	m.logger.Info("paid invoice",
		slog.Uint64("amount", amount),
		slog.Uint64("fee", payment.Fee),
		slog.Int("change_outputs", len(response.Change)))

	return response, nil
}

func (m *Mint) verifyProofs(proofs cashu.Proofs) error {
	if cashu.CheckDuplicateProofs(proofs) {
		return cashu.DuplicateProofs
	}

	spendable, err := m.CheckSpendable(proofs)
	if err != nil {
		return err
	}
	if slices.Contains(spendable, false) {
		return cashu.ProofAlreadyUsedErr
	}

	for _, proof := range proofs {
		// check that id in the proof matches id of any
		// of the mint's keyset
		keyset, ok := m.keysets[proof.Id]
		if !ok {
			return cashu.UnknownKeysetErr
		}
		key, ok := keyset.Keys[proof.Amount]
		if !ok {
			return cashu.InvalidProofErr
		}

		Cbytes, err := hex.DecodeString(proof.C)
		if err != nil {
			return cashu.InvalidProofErr
		}
		C, err := secp256k1.ParsePubKey(Cbytes)
		if err != nil {
			return cashu.InvalidProofErr
		}

		if !crypto.Verify(proof.Secret, key.PrivateKey, C) {
			return cashu.InvalidProofErr
		}
	}
	return nil
}

func (m *Mint) invalidateProofs(proofs cashu.Proofs) error {
	if err := m.db.SaveProofs(proofs); err != nil {
		if errors.Is(err, storage.ErrProofAlreadySpent) {
			return cashu.ProofAlreadyUsedErr
		}
		m.logger.Error("error invalidating proofs", slog.String("error", err.Error()))
		return cashu.StandardErr
	}
	return nil
}

// restoreProofs makes proofs invalidated for a payment that did not
// go through spendable again.
func (m *Mint) restoreProofs(proofs cashu.Proofs) error {
	Ys := make([]string, len(proofs))
	for i, proof := range proofs {
		Ys[i] = hashSecret(proof.Secret)
	}
	if err := m.db.DeleteProofs(Ys); err != nil {
		m.logger.Error("error restoring proofs", slog.String("error", err.Error()))
		return cashu.StandardErr
	}
	return nil
}

// signBlindedMessages signs the outputs with the active keyset and
// attaches a DLEQ proof to each signature.
func (m *Mint) signBlindedMessages(outputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	signatures := make(cashu.BlindedSignatures, len(outputs))
	seen := make(map[string]bool, len(outputs))

	for i, msg := range outputs {
		if msg.Id != "" && msg.Id != m.activeKeyset.Id {
			return nil, cashu.UnknownKeysetErr
		}
		if seen[msg.B_] {
			return nil, cashu.BlindedMessageAlreadySigned
		}
		seen[msg.B_] = true

		key, ok := m.activeKeyset.Keys[msg.Amount]
		if !ok {
			return nil, cashu.InvalidBlindedMessageAmount
		}

		B_bytes, err := hex.DecodeString(msg.B_)
		if err != nil {
			return nil, cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
		}
		B_, err := secp256k1.ParsePubKey(B_bytes)
		if err != nil {
			return nil, cashu.BuildCashuError(err.Error(), cashu.StandardErrCode)
		}

		C_ := crypto.SignBlindedMessage(B_, key.PrivateKey)
		e, s, err := crypto.GenerateDLEQ(key.PrivateKey, B_, C_)
		if err != nil {
			return nil, cashu.StandardErr
		}

		signatures[i] = cashu.BlindedSignature{
			Amount: msg.Amount,
			C_:     hex.EncodeToString(C_.SerializeCompressed()),
			Id:     m.activeKeyset.Id,
			DLEQ:   nut12.NewDLEQ(e, s),
		}
	}

	return signatures, nil
}

func checkedOutputsAmount(outputs cashu.BlindedMessages) (uint64, error) {
	var total uint64 = 0
	for _, output := range outputs {
		var err error
		total, err = cashu.CheckedAdd(total, output.Amount)
		if err != nil {
			return 0, cashu.InvalidBlindedMessageAmount
		}
	}
	return total, nil
}

func invoiceAmount(request string) (uint64, error) {
	bolt11, err := decodepay.Decodepay(request)
	if err != nil {
		msg := fmt.Sprintf("invalid invoice: %v", err)
		return 0, cashu.BuildCashuError(msg, cashu.InvoiceErrCode)
	}
	if bolt11.MSatoshi <= 0 {
		return 0, cashu.BuildCashuError("invoice has no amount", cashu.InvoiceErrCode)
	}
	return uint64(bolt11.MSatoshi+999) / 1000, nil
}

func hashSecret(secret string) string {
	Y := crypto.HashToCurve([]byte(secret))
	return hex.EncodeToString(Y.SerializeCompressed())
}
