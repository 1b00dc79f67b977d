package wallet

type Config struct {
	WalletPath     string
	CurrentMintURL string
	// if set, secrets are derived from the mnemonic instead of
	// generated at random
	Mnemonic string
}
