package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/elnosh/nutsplit/cashu"
	"github.com/elnosh/nutsplit/wallet"
	"github.com/elnosh/nutsplit/wallet/storage"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	nutw  *wallet.Wallet
	store storage.ProofStore
)

func walletConfig() wallet.Config {
	path := setWalletPath()
	// default config
	config := wallet.Config{WalletPath: path, CurrentMintURL: "http://127.0.0.1:3338"}

	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err != nil {
		wd, err := os.Getwd()
		if err != nil {
			envPath = ""
		} else {
			envPath = filepath.Join(wd, ".env")
		}
	}

	if len(envPath) > 0 {
		// values already set in the environment are not overridden
		godotenv.Load(envPath)
	}
	config.CurrentMintURL = getMintURL()
	config.Mnemonic = os.Getenv("WALLET_MNEMONIC")

	return config
}

func setWalletPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}

	path := filepath.Join(homedir, ".nutsplit", "wallet")
	err = os.MkdirAll(path, 0700)
	if err != nil {
		log.Fatal(err)
	}
	return path
}

func getMintURL() string {
	mintUrl := os.Getenv("MINT_URL")
	if len(mintUrl) > 0 {
		return mintUrl
	} else {
		mintHost := os.Getenv("MINT_HOST")
		mintPort := os.Getenv("MINT_PORT")
		if len(mintHost) == 0 || len(mintPort) == 0 {
			return "http://127.0.0.1:3338"
		}

		url := &url.URL{
			Scheme: "http",
			Host:   mintHost + ":" + mintPort,
		}
		mintUrl = url.String()
	}
	return mintUrl
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func setupWallet(ctx *cli.Context) error {
	config := walletConfig()

	db, err := storage.InitBolt(config.WalletPath)
	if err != nil {
		printErr(fmt.Errorf("error opening wallet db: %v", err))
	}
	store = db

	client, err := wallet.NewHTTPClient(config.CurrentMintURL, nil)
	if err != nil {
		printErr(err)
	}

	keys, err := wallet.LoadMintKeys(ctx.Context, client, config.CurrentMintURL)
	if err != nil {
		printErr(err)
	}

	opts := []wallet.Option{wallet.WithLogger(logger())}
	if len(config.Mnemonic) > 0 {
		source, err := wallet.NewDeterministicSource(config.Mnemonic, store)
		if err != nil {
			printErr(err)
		}
		opts = append(opts, wallet.WithSecretSource(source))
	}

	nutw = wallet.New(client, keys, opts...)
	return nil
}

func closeWallet(ctx *cli.Context) error {
	if store != nil {
		return store.Close()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "nutw",
		Usage: "cashu cli wallet",
		Commands: []*cli.Command{
			balanceCmd,
			mintCmd,
			sendCmd,
			receiveCmd,
			payCmd,
			checkCmd,
			mnemonicCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Before: setupWallet,
	After:  closeWallet,
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	balance := store.GetProofsByKeysetId(nutw.Keys().Id).Amount()
	fmt.Printf("%v sats\n", balance)
	return nil
}

var receiveCmd = &cli.Command{
	Name:   "receive",
	Before: setupWallet,
	After:  closeWallet,
	Action: receive,
}

func receive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("cashu token not provided"))
	}

	proofs, err := nutw.Receive(ctx.Context, args.First())
	if err != nil {
		printErr(err)
	}

	if err := store.SaveProofs(proofs); err != nil {
		printErr(fmt.Errorf("error storing proofs: %v", err))
	}

	fmt.Printf("%v sats received\n", proofs.Amount())
	return nil
}

const hashFlag = "hash"

var mintCmd = &cli.Command{
	Name:      "mint",
	Usage:     "Request an invoice to mint tokens",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	After:     closeWallet,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  hashFlag,
			Usage: "Specify payment hash of paid invoice to mint tokens",
		},
	},
	Action: mint,
}

func mint(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to mint"))
	}
	amount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(errors.New("invalid amount"))
	}

	// if hash of paid invoice was passed, request tokens from mint
	if ctx.IsSet(hashFlag) {
		if err := mintTokens(ctx.Context, amount, ctx.String(hashFlag)); err != nil {
			printErr(err)
		}
		return nil
	}

	mintResponse, err := nutw.RequestMint(ctx.Context, amount)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("invoice: %v\n\n", mintResponse.PR)
	fmt.Printf("after paying the invoice you can redeem the ecash with: nutw mint --hash %v %v\n",
		mintResponse.Hash, amount)
	return nil
}

func mintTokens(ctx context.Context, amount uint64, hash string) error {
	proofs, err := nutw.Mint(ctx, amount, hash)
	if err != nil {
		return err
	}

	if err := store.SaveProofs(proofs); err != nil {
		return fmt.Errorf("error storing proofs: %v", err)
	}

	fmt.Printf("%v sats successfully minted\n", proofs.Amount())
	return nil
}

var sendCmd = &cli.Command{
	Name:      "send",
	ArgsUsage: "[AMOUNT]",
	Before:    setupWallet,
	After:     closeWallet,
	Action:    send,
}

func send(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to send"))
	}
	sendAmount, err := strconv.ParseUint(args.First(), 10, 64)
	if err != nil {
		printErr(err)
	}

	selection, err := wallet.SelectProofs(sendAmount, store.GetProofsByKeysetId(nutw.Keys().Id))
	if err != nil {
		printErr(err)
	}
	inputs := selection.Proofs()

	sendProofs, err := nutw.Send(ctx.Context, sendAmount, inputs)
	if err != nil {
		printErr(err)
	}

	if err := replaceProofs(inputs, sendProofs.ChangeProofs); err != nil {
		printErr(err)
	}

	token, err := cashu.NewTokenV3(sendProofs.SendProofs, nutw.MintURL(), cashu.Sat, false)
	if err != nil {
		printErr(err)
	}
	tokenstr, err := token.Serialize()
	if err != nil {
		printErr(err)
	}

	fmt.Printf("%v\n", tokenstr)
	return nil
}

var payCmd = &cli.Command{
	Name:      "pay",
	ArgsUsage: "[INVOICE]",
	Before:    setupWallet,
	After:     closeWallet,
	Action:    pay,
}

func pay(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a lightning invoice to pay"))
	}

	meltResult, err := nutw.Melt(ctx.Context, args.First(), store.GetProofsByKeysetId(nutw.Keys().Id))
	if err != nil {
		printErr(err)
	}

	if meltResult.Paid {
		if err := replaceProofs(meltResult.Inputs, meltResult.Change); err != nil {
			printErr(err)
		}
	}

	fmt.Printf("invoice paid: %v\n", meltResult.Paid)
	if meltResult.Change.Amount() > 0 {
		fmt.Printf("%v sats returned as change\n", meltResult.Change.Amount())
	}
	return nil
}

var checkCmd = &cli.Command{
	Name:   "check",
	Usage:  "Remove proofs already spent from the wallet",
	Before: setupWallet,
	After:  closeWallet,
	Action: check,
}

func check(ctx *cli.Context) error {
	status, err := nutw.CheckProofsSpent(ctx.Context, store.GetProofsByKeysetId(nutw.Keys().Id))
	if err != nil {
		printErr(err)
	}

	if err := replaceProofs(status.Spent, nil); err != nil {
		printErr(err)
	}

	fmt.Printf("%v spent proofs removed. Balance: %v sats\n", len(status.Spent), status.Spendable.Amount())
	return nil
}

var mnemonicCmd = &cli.Command{
	Name:  "mnemonic",
	Usage: "Generate a mnemonic to set as WALLET_MNEMONIC",
	Action: func(ctx *cli.Context) error {
		mnemonic, err := wallet.NewMnemonic()
		if err != nil {
			printErr(err)
		}
		fmt.Println(mnemonic)
		return nil
	},
}

// replaceProofs deletes the spent proofs from the store and saves the new ones.
func replaceProofs(spent, proofs cashu.Proofs) error {
	if len(proofs) > 0 {
		if err := store.SaveProofs(proofs); err != nil {
			return fmt.Errorf("error storing proofs: %v", err)
		}
	}
	for _, proof := range spent {
		if err := store.DeleteProof(proof.Secret); err != nil {
			return fmt.Errorf("error deleting proof: %v", err)
		}
	}
	return nil
}

func printErr(msg error) {
	fmt.Println(msg.Error())
	os.Exit(0)
}
