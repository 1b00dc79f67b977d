package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elnosh/nutsplit/mint"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env file: %v", err)
	}

	mintConfig, err := mint.GetConfig()
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	mintServer, err := mint.SetupMintServer(mintConfig)
	if err != nil {
		log.Fatalf("error setting up mint server: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- mintServer.Start()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			log.Fatalf("error starting mint server: %v", err)
		}
	case <-sigc:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mintServer.Shutdown(ctx); err != nil {
			log.Fatalf("error shutting down mint server: %v", err)
		}
	}
}
