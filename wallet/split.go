package wallet

import (
	"context"
	"fmt"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut06"
)

// SplitPayload is a split request ready to be sent to the mint along
// with the outputs needed to unblind each half of the response.
type SplitPayload struct {
	Keep    BlindedMessages
	Send    BlindedMessages
	Request nut06.PostSplitRequest
}

// CreateSplit builds a request exchanging proofs for new outputs worth
// keepAmount followed by outputs worth sendAmount. Their sum must equal
// the amount of the proofs.
func (w *Wallet) CreateSplit(keepAmount, sendAmount uint64, proofs cashu.Proofs) (*SplitPayload, error) {
	inputAmount, err := proofs.CheckedAmount()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmountMismatch, err)
	}
	outputAmount, err := cashu.CheckedAdd(keepAmount, sendAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmountMismatch, err)
	}
	if inputAmount != outputAmount {
		return nil, fmt.Errorf("%w: inputs %v, outputs %v (keep %v + send %v)",
			ErrAmountMismatch, inputAmount, outputAmount, keepAmount, sendAmount)
	}

	keep, err := w.generator.Random(keepAmount)
	if err != nil {
		return nil, err
	}
	send, err := w.generator.Random(sendAmount)
	if err != nil {
		return nil, err
	}

	outputs := make(cashu.BlindedMessages, 0, keep.Len()+send.Len())
	outputs = append(outputs, keep.Messages...)
	outputs = append(outputs, send.Messages...)

	return &SplitPayload{
		Keep: keep,
		Send: send,
		Request: nut06.PostSplitRequest{
			Amount:  sendAmount,
			Proofs:  proofs,
			Outputs: outputs,
		},
	}, nil
}

// ExecuteSplit sends the request to the mint and unblinds the keep half
// (fst) and the send half (snd) of the response.
func (w *Wallet) ExecuteSplit(ctx context.Context, payload *SplitPayload) (keep, send cashu.Proofs, err error) {
	w.logger.Debug("sending split request to mint",
		"mint", w.mintURL,
		"inputs", len(payload.Request.Proofs),
		"keep_outputs", payload.Keep.Len(),
		"send_outputs", payload.Send.Len())

	splitResponse, err := w.client.Split(ctx, payload.Request)
	if err != nil {
		return nil, nil, err
	}

	keep, err = constructProofs(splitResponse.Fst, payload.Keep, w.keys, w.scheme, true)
	if err != nil {
		return nil, nil, fmt.Errorf("keep proofs: %w", err)
	}
	send, err = constructProofs(splitResponse.Snd, payload.Send, w.keys, w.scheme, true)
	if err != nil {
		return nil, nil, fmt.Errorf("send proofs: %w", err)
	}

	return keep, send, nil
}
