package mint

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut01"
	"github.com/elnosh/nutsplit/cashu/nuts/nut02"
	"github.com/elnosh/nutsplit/cashu/nuts/nut03"
	"github.com/elnosh/nutsplit/cashu/nuts/nut04"
	"github.com/elnosh/nutsplit/cashu/nuts/nut06"
	"github.com/elnosh/nutsplit/cashu/nuts/nut07"
	"github.com/elnosh/nutsplit/mint/lightning"
)

func testServer(t *testing.T) *MintServer {
	t.Helper()
	return NewMintServer(testMint(t, &lightning.FakeBackend{}), "0")
}

func doRequest(t *testing.T, ms *MintServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &reqBody)
	rw := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rw, req)
	return rw
}

func decodeCashuErr(t *testing.T, rw *httptest.ResponseRecorder) cashu.Error {
	t.Helper()
	var cashuErr cashu.Error
	if err := json.Unmarshal(rw.Body.Bytes(), &cashuErr); err != nil {
		t.Fatalf("error decoding error response: %v", err)
	}
	return cashuErr
}

func TestKeysHandler(t *testing.T) {
	ms := testServer(t)

	rw := doRequest(t, ms, http.MethodGet, "/keys", nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusOK, rw.Code)
	}

	var keys nut01.GetKeysResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &keys); err != nil {
		t.Fatal(err)
	}
	expectedKeys := ms.mint.activeKeyset.PublicKeys()
	if !reflect.DeepEqual(map[uint64]string(keys), expectedKeys) {
		t.Fatal("keys in response do not match active keyset")
	}
}

func TestKeysetsHandler(t *testing.T) {
	ms := testServer(t)

	rw := doRequest(t, ms, http.MethodGet, "/keysets", nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusOK, rw.Code)
	}

	var keysets nut02.GetKeysetsResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &keysets); err != nil {
		t.Fatal(err)
	}
	expected := []string{ms.mint.activeKeyset.Id}
	if !reflect.DeepEqual(keysets.Keysets, expected) {
		t.Fatalf("expected '%v' but got '%v'", expected, keysets.Keysets)
	}
}

func TestMintHandlers(t *testing.T) {
	ms := testServer(t)

	rw := doRequest(t, ms, http.MethodGet, "/mint?amount=notanumber", nil)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusBadRequest, rw.Code)
	}

	rw = doRequest(t, ms, http.MethodGet, "/mint?amount=21", nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusOK, rw.Code)
	}
	var mintRequest nut03.PostRequestMintResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &mintRequest); err != nil {
		t.Fatal(err)
	}

	outputs := createOutputs(t, ms.mint.activeKeyset.Id, cashu.AmountSplit(21))
	rw = doRequest(t, ms, http.MethodPost, "/mint?hash="+mintRequest.Hash,
		nut04.PostMintRequest{Outputs: outputs.messages})
	if rw.Code != http.StatusOK {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusOK, rw.Code)
	}
	var mintResponse nut04.PostMintResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &mintResponse); err != nil {
		t.Fatal(err)
	}
	if mintResponse.Promises.Amount() != 21 {
		t.Fatalf("expected '21' but got '%v'", mintResponse.Promises.Amount())
	}

	// second request for same hash
	rw = doRequest(t, ms, http.MethodPost, "/mint?hash="+mintRequest.Hash,
		nut04.PostMintRequest{Outputs: outputs.messages})
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusBadRequest, rw.Code)
	}
	if cashuErr := decodeCashuErr(t, rw); cashuErr != cashu.MintQuoteAlreadyIssued {
		t.Fatalf("expected '%v' but got '%v'", cashu.MintQuoteAlreadyIssued, cashuErr)
	}
}

func TestSplitHandler(t *testing.T) {
	ms := testServer(t)
	proofs := mintProofs(t, ms.mint, 5)

	rw := doRequest(t, ms, http.MethodPost, "/split", nil)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusBadRequest, rw.Code)
	}
	if cashuErr := decodeCashuErr(t, rw); cashuErr != cashu.EmptyBodyErr {
		t.Fatalf("expected '%v' but got '%v'", cashu.EmptyBodyErr, cashuErr)
	}

	unbalanced := createOutputs(t, ms.mint.activeKeyset.Id, []uint64{8})
	rw = doRequest(t, ms, http.MethodPost, "/split", nut06.PostSplitRequest{
		Amount:  3,
		Proofs:  proofs,
		Outputs: unbalanced.messages,
	})
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusBadRequest, rw.Code)
	}
	if cashuErr := decodeCashuErr(t, rw); cashuErr.Code != cashu.UnbalancedSplitErrCode {
		t.Fatalf("expected code '%v' but got '%v'", cashu.UnbalancedSplitErrCode, cashuErr.Code)
	}

	outputs := createOutputs(t, ms.mint.activeKeyset.Id, []uint64{2, 1, 2})
	rw = doRequest(t, ms, http.MethodPost, "/split", nut06.PostSplitRequest{
		Amount:  3,
		Proofs:  proofs,
		Outputs: outputs.messages,
	})
	if rw.Code != http.StatusOK {
		t.Fatalf("expected status code '%v' but got '%v'", http.StatusOK, rw.Code)
	}
	var splitResponse nut06.PostSplitResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &splitResponse); err != nil {
		t.Fatal(err)
	}
	if splitResponse.Fst.Amount() != 2 || splitResponse.Snd.Amount() != 3 {
		t.Fatalf("expected fst '2' and snd '3' but got '%v' and '%v'",
			splitResponse.Fst.Amount(), splitResponse.Snd.Amount())
	}

	rw = doRequest(t, ms, http.MethodPost, "/check", nut07.CheckSpendableRequest{Proofs: proofs})
	var checkResponse nut07.CheckSpendableResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &checkResponse); err != nil {
		t.Fatal(err)
	}
	expected := []bool{false, false}
	if !reflect.DeepEqual(checkResponse.Spendable, expected) {
		t.Fatalf("expected '%v' but got '%v'", expected, checkResponse.Spendable)
	}
}

func TestWriteErr(t *testing.T) {
	ms := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/split", nil)

	tests := []struct {
		err          error
		expectedCode int
		expectedErr  cashu.Error
	}{
		{cashu.ProofAlreadyUsedErr, http.StatusBadRequest, cashu.ProofAlreadyUsedErr},
		{cashu.BuildCashuError("invalid invoice", cashu.InvoiceErrCode), http.StatusBadRequest,
			cashu.Error{Detail: "invalid invoice", Code: cashu.InvoiceErrCode}},
		{cashu.BuildCashuError("node offline", cashu.LightningBackendErrCode), http.StatusBadRequest, cashu.StandardErr},
		{errors.New("something failed"), http.StatusInternalServerError, cashu.StandardErr},
	}

	for _, test := range tests {
		rw := httptest.NewRecorder()
		ms.writeErr(rw, req, test.err)
		if rw.Code != test.expectedCode {
			t.Fatalf("expected status code '%v' but got '%v'", test.expectedCode, rw.Code)
		}
		if cashuErr := decodeCashuErr(t, rw); cashuErr != test.expectedErr {
			t.Fatalf("expected '%v' but got '%v'", test.expectedErr, cashuErr)
		}
	}
}
