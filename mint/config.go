package mint

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/elnosh/nutsplit/mint/lightning"
)

type LogLevel int

const (
	Info LogLevel = iota
	Debug
	Disable
)

type Config struct {
	DerivationPathIdx uint32
	Port              string
	MintPath          string
	// hex encoded seed for the keysets. If empty, the seed saved
	// in the db is used or a new one is generated.
	Seed            string
	MintInfo        MintInfo
	LightningClient lightning.Client
	LogLevel        LogLevel
}

type MintInfo struct {
	Name            string
	Description     string
	LongDescription string
	Contact         [][]string
	Motd            string
}

// GetConfig reads the mint config from the environment:
// MINT_PORT, MINT_DB_PATH, MINT_PRIVATE_KEY, MINT_DERIVATION_PATH_IDX,
// MINT_FEE_RESERVE, MINT_NAME, MINT_DESCRIPTION, MINT_MOTD and LOG_LEVEL.
func GetConfig() (Config, error) {
	config := Config{
		Port:     "3338",
		MintPath: os.Getenv("MINT_DB_PATH"),
		Seed:     os.Getenv("MINT_PRIVATE_KEY"),
		MintInfo: MintInfo{
			Name:        os.Getenv("MINT_NAME"),
			Description: os.Getenv("MINT_DESCRIPTION"),
			Motd:        os.Getenv("MINT_MOTD"),
		},
		LogLevel: ParseLogLevel(os.Getenv("LOG_LEVEL")),
	}

	if port := os.Getenv("MINT_PORT"); len(port) > 0 {
		config.Port = port
	}

	if len(config.MintPath) == 0 {
		homedir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		config.MintPath = filepath.Join(homedir, ".nutsplit", "mint")
	}

	if idx := os.Getenv("MINT_DERIVATION_PATH_IDX"); len(idx) > 0 {
		derivationPathIdx, err := strconv.ParseUint(idx, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MINT_DERIVATION_PATH_IDX: %v", err)
		}
		config.DerivationPathIdx = uint32(derivationPathIdx)
	}

	backend := &lightning.FakeBackend{}
	if fee := os.Getenv("MINT_FEE_RESERVE"); len(fee) > 0 {
		feeReserve, err := strconv.ParseUint(fee, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MINT_FEE_RESERVE: %v", err)
		}
		backend.Fee = feeReserve
	}
	config.LightningClient = backend

	return config, nil
}

func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return Debug
	case "disable":
		return Disable
	default:
		return Info
	}
}

func (level LogLevel) slogLevel() slog.Level {
	if level == Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
