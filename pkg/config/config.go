// Package config loads ledger configuration from defaults, a YAML file,
// TOKENLEDGER_ environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
)

// DefaultConfigFile is read when no explicit config path is given and it exists.
const DefaultConfigFile = "tokenledger.yaml"

// EnvPrefix prefixes every environment override. A double underscore
// separates nested keys: TOKENLEDGER_LOG__LEVEL sets log.level.
const EnvPrefix = "TOKENLEDGER_"

// Storage backends.
const (
	StorageBadger = "badger"
	StorageMemory = "memory"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full ledger configuration.
type Config struct {
	DataDir string     `koanf:"data_dir"`
	KeysDir string     `koanf:"keys_dir"`
	Storage string     `koanf:"storage"`
	Log     LogConfig  `koanf:"log"`
	Bank    BankConfig `koanf:"bank"`
	Rent    RentConfig `koanf:"rent"`
	RPC     RPCConfig  `koanf:"rpc"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// BankConfig configures transaction processing.
type BankConfig struct {
	VerifySignatures bool `koanf:"verify_signatures"`
}

// RentConfig holds the rent sysvar parameters.
type RentConfig struct {
	LamportsPerByteYear uint64  `koanf:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `koanf:"exemption_threshold"`
	BurnPercent         int     `koanf:"burn_percent"`
}

// RPCConfig configures the JSON-RPC server.
type RPCConfig struct {
	Listen string `koanf:"listen"`
}

// Sysvar converts the configured parameters to a sysvar.Rent.
func (r RentConfig) Sysvar() sysvar.Rent {
	return sysvar.Rent{
		LamportsPerByteYear: r.LamportsPerByteYear,
		ExemptionThreshold:  r.ExemptionThreshold,
		BurnPercent:         uint8(r.BurnPercent),
	}
}

// Defaults returns the built-in configuration values keyed by config path.
func Defaults() map[string]any {
	return map[string]any{
		"data_dir":                    "./ledger-data",
		"keys_dir":                    "./keys",
		"storage":                     StorageBadger,
		"log.level":                   "info",
		"log.format":                  "console",
		"bank.verify_signatures":      true,
		"rent.lamports_per_byte_year": sysvar.DefaultLamportsPerByteYear,
		"rent.exemption_threshold":    sysvar.DefaultExemptionThreshold,
		"rent.burn_percent":           sysvar.DefaultBurnPercent,
		"rpc.listen":                  ":8899",
	}
}

// Load builds a Config. path may be empty, in which case DefaultConfigFile
// is used if present. Only flags the user changed override lower layers;
// a flag named log-level maps to log.level.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TOKENLEDGER_LOG__LEVEL to log.level.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

var flagKeys = map[string]string{
	"data-dir":          "data_dir",
	"keys-dir":          "keys_dir",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"verify-signatures": "bank.verify_signatures",
	"listen":            "rpc.listen",
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageBadger, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	}
	if c.Storage == StorageBadger && c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required for badger storage", ErrInvalidConfig)
	}
	if c.Rent.ExemptionThreshold < 0 {
		return fmt.Errorf("%w: negative exemption threshold %v", ErrInvalidConfig, c.Rent.ExemptionThreshold)
	}
	if c.Rent.BurnPercent < 0 || c.Rent.BurnPercent > 100 {
		return fmt.Errorf("%w: burn percent %d outside 0..100", ErrInvalidConfig, c.Rent.BurnPercent)
	}
	return nil
}
