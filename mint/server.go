package mint

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut02"
	"github.com/elnosh/nutsplit/cashu/nuts/nut04"
	"github.com/elnosh/nutsplit/cashu/nuts/nut05"
	"github.com/elnosh/nutsplit/cashu/nuts/nut06"
	"github.com/elnosh/nutsplit/cashu/nuts/nut07"
	"github.com/gorilla/mux"
)

type MintServer struct {
	httpServer *http.Server
	mint       *Mint
	logger     *slog.Logger
}

func (ms *MintServer) Start() error {
	ms.logger.Info("mint server listening on: " + ms.httpServer.Addr)
	err := ms.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (ms *MintServer) Shutdown(ctx context.Context) error {
	ms.logger.Info("shutting down mint server")
	err := ms.httpServer.Shutdown(ctx)
	ms.mint.Close()
	return err
}

func (ms *MintServer) Handler() http.Handler {
	return ms.httpServer.Handler
}

func (ms *MintServer) Mint() *Mint {
	return ms.mint
}

func SetupMintServer(config Config) (*MintServer, error) {
	mint, err := LoadMint(config)
	if err != nil {
		return nil, err
	}
	return NewMintServer(mint, config.Port), nil
}

func NewMintServer(mint *Mint, port string) *MintServer {
	mintServer := &MintServer{mint: mint, logger: mint.logger}
	mintServer.setupHttpServer(port)
	return mintServer
}

func (ms *MintServer) setupHttpServer(port string) {
	r := mux.NewRouter()

	r.HandleFunc("/keys", ms.getKeys).Methods(http.MethodGet)
	r.HandleFunc("/keysets", ms.getKeysets).Methods(http.MethodGet)
	r.HandleFunc("/info", ms.getInfo).Methods(http.MethodGet)
	r.HandleFunc("/mint", ms.requestMint).Methods(http.MethodGet)
	r.HandleFunc("/mint", ms.mintTokens).Methods(http.MethodPost)
	r.HandleFunc("/checkfees", ms.checkFees).Methods(http.MethodPost)
	r.HandleFunc("/check", ms.checkSpendable).Methods(http.MethodPost)
	r.HandleFunc("/split", ms.split).Methods(http.MethodPost)
	r.HandleFunc("/melt", ms.melt).Methods(http.MethodPost)

	r.Use(setupHeaders)

	ms.httpServer = &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func setupHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		rw.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(rw, req)
	})
}

func (ms *MintServer) writeResponse(rw http.ResponseWriter, req *http.Request, response []byte, logmsg string) {
	ms.logger.Debug(logmsg, slog.String("method", req.Method), slog.String("path", req.URL.Path))
	rw.Write(response)
}

// writeErr writes errors from the mint as a 400 with a cashu error body.
// Any other error is logged and written as a 500.
func (ms *MintServer) writeErr(rw http.ResponseWriter, req *http.Request, err error) {
	var cashuErr cashu.Error
	var cashuErrPtr *cashu.Error
	switch {
	case errors.As(err, &cashuErrPtr):
		cashuErr = *cashuErrPtr
	case errors.As(err, &cashuErr):
	default:
		ms.logger.Error(err.Error(), slog.String("method", req.Method), slog.String("path", req.URL.Path))
		rw.WriteHeader(http.StatusInternalServerError)
		errRes, _ := json.Marshal(cashu.StandardErr)
		rw.Write(errRes)
		return
	}

	// internal codes are not returned as is
	if cashuErr.Code == cashu.DBErrCode || cashuErr.Code == cashu.LightningBackendErrCode {
		ms.logger.Error(cashuErr.Detail, slog.String("method", req.Method), slog.String("path", req.URL.Path))
		cashuErr = cashu.StandardErr
	} else {
		ms.logger.Debug("returning error", slog.String("detail", cashuErr.Detail), slog.Int("code", int(cashuErr.Code)))
	}

	rw.WriteHeader(http.StatusBadRequest)
	errRes, _ := json.Marshal(cashuErr)
	rw.Write(errRes)
}

func decodeJsonReqBody(req *http.Request, dst any) error {
	if req.ContentLength == 0 {
		return cashu.EmptyBodyErr
	}

	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return cashu.BuildCashuError("bad request: "+err.Error(), cashu.StandardErrCode)
	}
	return nil
}

func (ms *MintServer) getKeys(rw http.ResponseWriter, req *http.Request) {
	jsonRes, err := json.Marshal(ms.mint.Keys())
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning active keys")
}

func (ms *MintServer) getKeysets(rw http.ResponseWriter, req *http.Request) {
	jsonRes, err := json.Marshal(nut02.GetKeysetsResponse{Keysets: ms.mint.KeysetIds()})
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning keysets")
}

func (ms *MintServer) getInfo(rw http.ResponseWriter, req *http.Request) {
	jsonRes, err := json.Marshal(ms.mint.Info())
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning mint info")
}

func (ms *MintServer) requestMint(rw http.ResponseWriter, req *http.Request) {
	amount, err := strconv.ParseUint(req.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		ms.writeErr(rw, req, cashu.BuildCashuError("invalid amount", cashu.StandardErrCode))
		return
	}

	response, err := ms.mint.RequestMint(amount)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	jsonRes, err := json.Marshal(response)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning mint request")
}

func (ms *MintServer) mintTokens(rw http.ResponseWriter, req *http.Request) {
	hash := req.URL.Query().Get("hash")
	if len(hash) == 0 {
		ms.writeErr(rw, req, cashu.BuildCashuError("hash cannot be empty", cashu.StandardErrCode))
		return
	}

	var mintRequest nut04.PostMintRequest
	if err := decodeJsonReqBody(req, &mintRequest); err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	promises, err := ms.mint.MintTokens(hash, mintRequest.Outputs)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	jsonRes, err := json.Marshal(nut04.PostMintResponse{Promises: promises})
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning promises")
}

func (ms *MintServer) checkFees(rw http.ResponseWriter, req *http.Request) {
	var feesRequest nut05.CheckFeesRequest
	if err := decodeJsonReqBody(req, &feesRequest); err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	fee, err := ms.mint.CheckFees(feesRequest.PR)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	jsonRes, err := json.Marshal(nut05.CheckFeesResponse{Fee: fee})
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning fee reserve")
}

func (ms *MintServer) checkSpendable(rw http.ResponseWriter, req *http.Request) {
	var checkRequest nut07.CheckSpendableRequest
	if err := decodeJsonReqBody(req, &checkRequest); err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	spendable, err := ms.mint.CheckSpendable(checkRequest.Proofs)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	jsonRes, err := json.Marshal(nut07.CheckSpendableResponse{
		Spendable: spendable,
		Pending:   make([]bool, len(spendable)),
	})
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning proofs state")
}

func (ms *MintServer) split(rw http.ResponseWriter, req *http.Request) {
	var splitRequest nut06.PostSplitRequest
	if err := decodeJsonReqBody(req, &splitRequest); err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	fst, snd, err := ms.mint.Split(splitRequest.Proofs, splitRequest.Amount, splitRequest.Outputs)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	jsonRes, err := json.Marshal(nut06.PostSplitResponse{Fst: fst, Snd: snd})
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning split promises")
}

func (ms *MintServer) melt(rw http.ResponseWriter, req *http.Request) {
	var meltRequest nut05.PostMeltRequest
	if err := decodeJsonReqBody(req, &meltRequest); err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	meltResponse, err := ms.mint.Melt(req.Context(), meltRequest.Proofs, meltRequest.PR, meltRequest.Outputs)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}

	jsonRes, err := json.Marshal(meltResponse)
	if err != nil {
		ms.writeErr(rw, req, err)
		return
	}
	ms.writeResponse(rw, req, jsonRes, "returning melt response")
}
