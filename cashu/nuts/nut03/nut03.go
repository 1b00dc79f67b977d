// Package nut03 contains structs as defined in [NUT-03]
//
// [NUT-03]: https://github.com/cashubtc/nuts/blob/main/03.md
package nut03

// PostRequestMintResponse is returned by GET /mint?amount=<amount>.
// PR is the invoice the caller pays out of band and Hash
// identifies it when minting.
type PostRequestMintResponse struct {
	PR   string `json:"pr"`
	Hash string `json:"hash"`
}
