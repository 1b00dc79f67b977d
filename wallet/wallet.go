// Package wallet implements the client side of a cashu mint: creating
// blinded outputs, selecting proofs, and splitting, receiving and
// spending proofs held by the caller.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut03"
	"github.com/elnosh/nutsplit/cashu/nuts/nut04"
	"github.com/elnosh/nutsplit/cashu/nuts/nut05"
	"github.com/elnosh/nutsplit/cashu/nuts/nut07"
	"github.com/elnosh/nutsplit/cashu/nuts/nut12"
	"github.com/elnosh/nutsplit/crypto"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

var (
	ErrInsufficientFunds   = errors.New("not enough funds")
	ErrAmountMismatch      = errors.New("input and output amounts do not match")
	ErrProofReconstruction = errors.New("could not construct proofs from mint response")
	ErrMintUnreachable     = errors.New("mint unreachable")
	ErrUnknownMint         = errors.New("token is from a mint the wallet has no keys for")
	ErrAmount              = errors.New("amount not supported by keyset")
	ErrInvalidDLEQ         = errors.New("invalid DLEQ proof")
)

// Wallet operates on proofs held by the caller against a single mint and
// keyset. It keeps no proofs and no state between calls.
type Wallet struct {
	client    MintClient
	keys      crypto.MintKeys
	mintURL   string
	scheme    BlindSignatureScheme
	source    SecretSource
	generator *Generator
	logger    *slog.Logger
}

type Option func(*Wallet)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		w.logger = logger
	}
}

func WithScheme(scheme BlindSignatureScheme) Option {
	return func(w *Wallet) {
		w.scheme = scheme
	}
}

// WithSecretSource sets where secrets and blinding factors come from.
// Defaults to RandomSource.
func WithSecretSource(source SecretSource) Option {
	return func(w *Wallet) {
		w.source = source
	}
}

// New returns a wallet bound to the mint keys passed.
func New(client MintClient, keys crypto.MintKeys, opts ...Option) *Wallet {
	wallet := &Wallet{
		client: client,
		keys:   keys,
		scheme: BDHKE{},
		source: RandomSource{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(wallet)
	}

	if mintURL, err := NormalizeMintURL(keys.MintURL); err == nil {
		wallet.mintURL = mintURL
	} else {
		wallet.mintURL = keys.MintURL
	}
	wallet.generator = NewGenerator(keys, wallet.scheme, wallet.source)

	return wallet
}

func (w *Wallet) MintURL() string {
	return w.mintURL
}

func (w *Wallet) Keys() crypto.MintKeys {
	return w.keys
}

type ProofsStatus struct {
	Spendable cashu.Proofs
	Spent     cashu.Proofs
}

type SendProofs struct {
	SendProofs   cashu.Proofs
	ChangeProofs cashu.Proofs
}

// CheckProofsSpent asks the mint which proofs are still spendable.
// The order of the proofs is kept in each group.
func (w *Wallet) CheckProofsSpent(ctx context.Context, proofs cashu.Proofs) (*ProofsStatus, error) {
	checkResponse, err := w.client.CheckSpendable(ctx, nut07.CheckSpendableRequest{Proofs: proofs})
	if err != nil {
		return nil, err
	}

	if len(checkResponse.Spendable) != len(proofs) {
		return nil, fmt.Errorf("%w: got %v states for %v proofs",
			ErrProofReconstruction, len(checkResponse.Spendable), len(proofs))
	}

	status := &ProofsStatus{Spendable: cashu.Proofs{}, Spent: cashu.Proofs{}}
	for i, proof := range proofs {
		if checkResponse.Spendable[i] {
			status.Spendable = append(status.Spendable, proof)
		} else {
			status.Spent = append(status.Spent, proof)
		}
	}
	return status, nil
}

// RequestMint requests an invoice from the mint that, once paid,
// allows minting amount.
func (w *Wallet) RequestMint(ctx context.Context, amount uint64) (*nut03.PostRequestMintResponse, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrAmount)
	}
	return w.client.RequestMint(ctx, amount)
}

// CheckFee returns the fee reserve the mint asks for to pay invoice.
func (w *Wallet) CheckFee(ctx context.Context, invoice string) (uint64, error) {
	feesResponse, err := w.client.CheckFees(ctx, nut05.CheckFeesRequest{PR: invoice})
	if err != nil {
		return 0, err
	}
	return feesResponse.Fee, nil
}

// Mint gets new proofs for amount once the invoice with the
// payment hash from RequestMint has been paid.
func (w *Wallet) Mint(ctx context.Context, amount uint64, hash string) (cashu.Proofs, error) {
	outputs, err := w.generator.Random(amount)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("requesting mint of proofs", "mint", w.mintURL, "amount", amount, "outputs", outputs.Len())
	mintResponse, err := w.client.Mint(ctx, hash, nut04.PostMintRequest{Outputs: outputs.Messages})
	if err != nil {
		return nil, err
	}

	return constructProofs(mintResponse.Promises, outputs, w.keys, w.scheme, true)
}

// Receive redeems every group of proofs in the token by splitting them
// for new proofs. All groups must come from the wallet mint and any
// DLEQ proofs they carry must verify before the mint is contacted.
func (w *Wallet) Receive(ctx context.Context, encodedToken string) (cashu.Proofs, error) {
	token, err := cashu.DecodeToken(encodedToken)
	if err != nil {
		return nil, err
	}

	groups := token.Groups()
	for _, group := range groups {
		if len(group.Proofs) == 0 {
			continue
		}
		groupMint, err := NormalizeMintURL(group.Mint)
		if err != nil || groupMint != w.mintURL {
			return nil, fmt.Errorf("%w: %v", ErrUnknownMint, group.Mint)
		}
		if !nut12.VerifyProofsDLEQ(group.Proofs, w.keys) {
			return nil, fmt.Errorf("%w in token proofs", ErrInvalidDLEQ)
		}
	}

	proofs := cashu.Proofs{}
	for _, group := range groups {
		if len(group.Proofs) == 0 {
			continue
		}

		amount, err := group.Proofs.CheckedAmount()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAmountMismatch, err)
		}

		payload, err := w.CreateSplit(0, amount, group.Proofs)
		if err != nil {
			return nil, err
		}

		keep, send, err := w.ExecuteSplit(ctx, payload)
		if err != nil {
			return nil, err
		}

		w.logger.Info("received proofs from token", "mint", w.mintURL, "amount", amount)
		proofs = append(proofs, keep...)
		proofs = append(proofs, send...)
	}

	return proofs, nil
}

// Send selects proofs for amount. If the selected proofs go over the
// amount, all of them are split into proofs worth amount to send and
// the rest as change. Proofs not selected are not part of the result
// and stay with the caller.
func (w *Wallet) Send(ctx context.Context, amount uint64, proofs cashu.Proofs) (*SendProofs, error) {
	selection, err := SelectProofs(amount, proofs)
	if err != nil {
		return nil, err
	}

	if !selection.NeedsSplit() {
		return &SendProofs{SendProofs: selection.SendProofs, ChangeProofs: cashu.Proofs{}}, nil
	}

	amountToKeep, err := cashu.CheckedSub(selection.Total, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmountMismatch, err)
	}

	payload, err := w.CreateSplit(amountToKeep, amount, selection.Proofs())
	if err != nil {
		return nil, err
	}

	keep, send, err := w.ExecuteSplit(ctx, payload)
	if err != nil {
		return nil, err
	}

	return &SendProofs{SendProofs: send, ChangeProofs: keep}, nil
}

type MeltResult struct {
	Paid     bool
	Preimage string
	// proofs given to the mint
	Inputs cashu.Proofs
	// proofs returned for the unused fee reserve
	Change cashu.Proofs
}

// Melt pays the invoice with proofs. Proofs are selected for the
// invoice amount plus the fee reserve and blank outputs are sent so
// the mint can return what was not spent.
func (w *Wallet) Melt(ctx context.Context, invoice string, proofs cashu.Proofs) (*MeltResult, error) {
	bolt11, err := decodepay.Decodepay(invoice)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice: %v", err)
	}
	if bolt11.MSatoshi <= 0 {
		return nil, fmt.Errorf("%w: invoice has no amount", ErrAmount)
	}
	invoiceAmount := uint64(bolt11.MSatoshi+999) / 1000

	fee, err := w.CheckFee(ctx, invoice)
	if err != nil {
		return nil, err
	}

	amountNeeded, err := cashu.CheckedAdd(invoiceAmount, fee)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmountMismatch, err)
	}

	selection, err := SelectProofs(amountNeeded, proofs)
	if err != nil {
		return nil, err
	}
	inputs := selection.Proofs()

	// everything over the invoice amount can come back as change
	blank, err := w.generator.Blank(selection.Total - invoiceAmount)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("sending melt request to mint",
		"mint", w.mintURL, "amount", invoiceAmount, "fee_reserve", fee, "inputs", len(inputs))

	meltResponse, err := w.client.Melt(ctx, nut05.PostMeltRequest{
		Proofs:  inputs,
		PR:      invoice,
		Outputs: blank.Messages,
	})
	if err != nil {
		return nil, err
	}

	result := &MeltResult{
		Paid:     meltResponse.Paid,
		Preimage: meltResponse.Preimage,
		Inputs:   inputs,
		Change:   cashu.Proofs{},
	}

	if meltResponse.Paid && len(meltResponse.Change) > 0 {
		change, err := constructProofs(meltResponse.Change, blank, w.keys, w.scheme, false)
		if err != nil {
			return nil, fmt.Errorf("change proofs: %w", err)
		}
		result.Change = change
	}

	return result, nil
}
