package wallet

import (
	"context"
	"fmt"
	"slices"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/crypto"
)

// LoadMintKeys gets the active keys of the mint and checks that the id
// derived from them is one of the keysets the mint lists.
func LoadMintKeys(ctx context.Context, client MintClient, mintURL string) (crypto.MintKeys, error) {
	normalized, err := NormalizeMintURL(mintURL)
	if err != nil {
		return crypto.MintKeys{}, err
	}

	keysResponse, err := client.GetKeys(ctx)
	if err != nil {
		return crypto.MintKeys{}, fmt.Errorf("error getting keys from mint: %w", err)
	}

	keys, err := crypto.MapPubKeys(keysResponse)
	if err != nil {
		return crypto.MintKeys{}, fmt.Errorf("invalid keys from mint: %v", err)
	}
	if len(keys) == 0 {
		return crypto.MintKeys{}, fmt.Errorf("mint returned no keys")
	}
	id := crypto.DeriveKeysetId(keys)

	keysets, err := client.GetKeysets(ctx)
	if err != nil {
		return crypto.MintKeys{}, fmt.Errorf("error getting keysets from mint: %w", err)
	}
	if !slices.Contains(keysets.Keysets, id) {
		return crypto.MintKeys{}, fmt.Errorf("got invalid keyset. Derived id '%v' is not in keysets from mint %v",
			id, keysets.Keysets)
	}

	return crypto.MintKeys{
		Id:      id,
		MintURL: normalized,
		Unit:    cashu.Sat.String(),
		Keys:    keys,
	}, nil
}
