package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/cashu/nuts/nut01"
	"github.com/elnosh/nutsplit/cashu/nuts/nut02"
	"github.com/elnosh/nutsplit/cashu/nuts/nut03"
	"github.com/elnosh/nutsplit/cashu/nuts/nut04"
	"github.com/elnosh/nutsplit/cashu/nuts/nut05"
	"github.com/elnosh/nutsplit/cashu/nuts/nut06"
	"github.com/elnosh/nutsplit/cashu/nuts/nut07"
	"github.com/elnosh/nutsplit/cashu/nuts/nut09"
)

// MintClient is the set of mint endpoints used by the wallet.
type MintClient interface {
	GetKeys(ctx context.Context) (nut01.GetKeysResponse, error)
	GetKeysets(ctx context.Context) (*nut02.GetKeysetsResponse, error)
	GetInfo(ctx context.Context) (*nut09.MintInfo, error)
	RequestMint(ctx context.Context, amount uint64) (*nut03.PostRequestMintResponse, error)
	Mint(ctx context.Context, hash string, mintRequest nut04.PostMintRequest) (*nut04.PostMintResponse, error)
	CheckFees(ctx context.Context, feesRequest nut05.CheckFeesRequest) (*nut05.CheckFeesResponse, error)
	CheckSpendable(ctx context.Context, checkRequest nut07.CheckSpendableRequest) (*nut07.CheckSpendableResponse, error)
	Split(ctx context.Context, splitRequest nut06.PostSplitRequest) (*nut06.PostSplitResponse, error)
	Melt(ctx context.Context, meltRequest nut05.PostMeltRequest) (*nut05.PostMeltResponse, error)
}

// HTTPClient talks to a mint over its REST API.
type HTTPClient struct {
	mintURL string
	client  *http.Client
}

// NewHTTPClient returns a client for the mint at mintURL. If client is nil
// one with a 30 second timeout is used.
func NewHTTPClient(mintURL string, client *http.Client) (*HTTPClient, error) {
	normalized, err := NormalizeMintURL(mintURL)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{mintURL: normalized, client: client}, nil
}

// NormalizeMintURL lowercases scheme and host and drops any trailing
// slash so urls of the same mint compare equal.
func NormalizeMintURL(mintURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(mintURL))
	if err != nil {
		return "", fmt.Errorf("invalid mint url: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid mint url '%v'", mintURL)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String(), nil
}

func (c *HTTPClient) GetKeys(ctx context.Context) (nut01.GetKeysResponse, error) {
	var keysResponse nut01.GetKeysResponse
	if err := c.get(ctx, "/keys", &keysResponse); err != nil {
		return nil, err
	}
	return keysResponse, nil
}

func (c *HTTPClient) GetKeysets(ctx context.Context) (*nut02.GetKeysetsResponse, error) {
	var keysetsResponse nut02.GetKeysetsResponse
	if err := c.get(ctx, "/keysets", &keysetsResponse); err != nil {
		return nil, err
	}
	return &keysetsResponse, nil
}

func (c *HTTPClient) GetInfo(ctx context.Context) (*nut09.MintInfo, error) {
	var mintInfo nut09.MintInfo
	if err := c.get(ctx, "/info", &mintInfo); err != nil {
		return nil, err
	}
	return &mintInfo, nil
}

func (c *HTTPClient) RequestMint(ctx context.Context, amount uint64) (*nut03.PostRequestMintResponse, error) {
	var requestMintResponse nut03.PostRequestMintResponse
	path := "/mint?amount=" + strconv.FormatUint(amount, 10)
	if err := c.get(ctx, path, &requestMintResponse); err != nil {
		return nil, err
	}
	return &requestMintResponse, nil
}

func (c *HTTPClient) Mint(ctx context.Context, hash string, mintRequest nut04.PostMintRequest) (
	*nut04.PostMintResponse, error) {
	var mintResponse nut04.PostMintResponse
	path := "/mint?hash=" + url.QueryEscape(hash)
	if err := c.post(ctx, path, mintRequest, &mintResponse); err != nil {
		return nil, err
	}
	return &mintResponse, nil
}

func (c *HTTPClient) CheckFees(ctx context.Context, feesRequest nut05.CheckFeesRequest) (
	*nut05.CheckFeesResponse, error) {
	var feesResponse nut05.CheckFeesResponse
	if err := c.post(ctx, "/checkfees", feesRequest, &feesResponse); err != nil {
		return nil, err
	}
	return &feesResponse, nil
}

func (c *HTTPClient) CheckSpendable(ctx context.Context, checkRequest nut07.CheckSpendableRequest) (
	*nut07.CheckSpendableResponse, error) {
	var checkResponse nut07.CheckSpendableResponse
	if err := c.post(ctx, "/check", checkRequest, &checkResponse); err != nil {
		return nil, err
	}
	return &checkResponse, nil
}

func (c *HTTPClient) Split(ctx context.Context, splitRequest nut06.PostSplitRequest) (
	*nut06.PostSplitResponse, error) {
	var splitResponse nut06.PostSplitResponse
	if err := c.post(ctx, "/split", splitRequest, &splitResponse); err != nil {
		return nil, err
	}
	return &splitResponse, nil
}

func (c *HTTPClient) Melt(ctx context.Context, meltRequest nut05.PostMeltRequest) (
	*nut05.PostMeltResponse, error) {
	var meltResponse nut05.PostMeltResponse
	if err := c.post(ctx, "/melt", meltRequest, &meltResponse); err != nil {
		return nil, err
	}
	return &meltResponse, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mintURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, dst any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("json.Marshal: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mintURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *HTTPClient) do(req *http.Request, dst any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		// keep cancellation distinguishable from an unreachable mint
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrMintUnreachable, err)
	}
	defer resp.Body.Close()

	if err := parse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMintUnreachable, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("error reading response from mint: %v", err)
	}
	return nil
}

func parse(response *http.Response) error {
	if response.StatusCode == http.StatusBadRequest {
		var errResponse cashu.Error
		if err := json.NewDecoder(response.Body).Decode(&errResponse); err != nil {
			return fmt.Errorf("could not decode error response from mint: %v", err)
		}
		return errResponse
	}

	if response.StatusCode != http.StatusOK {
		body, err := io.ReadAll(response.Body)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: status %v: %s", ErrMintUnreachable, response.StatusCode, body)
	}

	return nil
}

// IsMintError reports whether err is an error returned by the mint
// with the given code.
func IsMintError(err error, code cashu.CashuErrCode) bool {
	var mintErr cashu.Error
	if errors.As(err, &mintErr) {
		return mintErr.Code == code
	}
	return false
}
