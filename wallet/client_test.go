package wallet

import (
	"context"
	"testing"

	"github.com/elnosh/nutsplit/cashu/nuts/nut06"
	"github.com/elnosh/nutsplit/crypto"
)

// fakeClient signs split outputs with a local keyset. Calling any other
// endpoint panics.
type fakeClient struct {
	MintClient
	t           *testing.T
	keyset      *crypto.MintKeyset
	splitCalls  int
	dropPromise bool
}

func (fc *fakeClient) Split(ctx context.Context, splitRequest nut06.PostSplitRequest) (
	*nut06.PostSplitResponse, error) {
	fc.splitCalls++
	if fc.keyset == nil {
		fc.t.Fatal("unexpected split request")
	}

	keepAmount := splitRequest.Proofs.Amount() - splitRequest.Amount
	boundary := 0
	var sum uint64 = 0
	for sum < keepAmount {
		sum += splitRequest.Outputs[boundary].Amount
		boundary++
	}

	signatures := signOutputs(fc.t, fc.keyset, splitRequest.Outputs)
	response := &nut06.PostSplitResponse{Fst: signatures[:boundary], Snd: signatures[boundary:]}
	if fc.dropPromise {
		response.Snd = response.Snd[:len(response.Snd)-1]
	}
	return response, nil
}
