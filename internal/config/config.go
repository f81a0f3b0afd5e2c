package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix       = "SWAPWATCH"
	DefaultContract = "0x5777d92f208679db4b9778590fa3cab3ac9e2168"
	DefaultEvent    = "Swap"
)

// DecoderSettings configures which event is decoded and how amounts are scaled.
type DecoderSettings struct {
	Contract           string
	Event              string
	ABIPath            string
	Token0Symbol       string
	Token1Symbol       string
	Decimals0          uint8
	Decimals1          uint8
	TokenMetaFromChain bool
	ZeroDirection      string
}

// Config holds configuration for the run command.
type Config struct {
	DecoderSettings

	RPCURL            string
	Confirmations     int
	PrefetchLogs      bool
	PrefetchTTL       time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	PGDSN             string
	MetricsAddr       string
	LogLevel          string
	LogFile           string
}

// RegisterDecoderFlags adds the flags shared by every command that decodes swaps.
func RegisterDecoderFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "websocket RPC URL")
	fs.String("contract", DefaultContract, "pool contract address")
	fs.String("event", DefaultEvent, "event name in the ABI")
	fs.String("abi", "", "contract ABI JSON path (default: embedded Uniswap V3 pool ABI)")
	fs.String("token0-symbol", "DAI", "token0 symbol")
	fs.String("token1-symbol", "USDC", "token1 symbol")
	fs.Uint("decimals0", 18, "token0 decimals")
	fs.Uint("decimals1", 6, "token1 decimals")
	fs.Bool("token-meta-from-chain", false, "read token decimals and symbols from the pool's tokens")
	fs.String("zero-direction", "token1-to-token0", "direction for a zero amount0 (token1-to-token0, neutral)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

// RegisterRunFlags adds the flags of the run command.
func RegisterRunFlags(fs *pflag.FlagSet) {
	RegisterDecoderFlags(fs)
	fs.Int("confirmations", 6, "confirmation depth in blocks")
	fs.Bool("prefetch-logs", false, "fetch logs when a header arrives and reuse them at confirmation")
	fs.Duration("prefetch-ttl", 10*time.Minute, "how long prefetched logs stay valid")
	fs.Int("max-retries", 5, "maximum retry attempts for log fetches")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.String("out", "", "optional output JSONL path for decoded swaps")
	fs.String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	fs.Bool("checkpoint-enabled", false, "skip blocks already processed by a previous run")
	fs.String("pg-dsn", "", "Postgres DSN; stores the checkpoint in Postgres instead of a file")
	fs.String("metrics-addr", "", "listen address for Prometheus metrics (e.g. :9090)")
	fs.String("log-file", "", "optional rotating log file")
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setDecoderDefaults(v)
		v.SetDefault("confirmations", 6)
		v.SetDefault("prefetch-logs", false)
		v.SetDefault("prefetch-ttl", 10*time.Minute)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", false)
	})
	if err != nil {
		return Config{}, err
	}

	settings, err := decoderSettings(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DecoderSettings:   settings,
		RPCURL:            v.GetString("rpc"),
		Confirmations:     v.GetInt("confirmations"),
		PrefetchLogs:      v.GetBool("prefetch-logs"),
		PrefetchTTL:       v.GetDuration("prefetch-ttl"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		PGDSN:             v.GetString("pg-dsn"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
		LogFile:           v.GetString("log-file"),
	}

	return cfg, nil
}

// Validate checks the values the run command cannot start without.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.Confirmations < 1 {
		return fmt.Errorf("confirmations must be at least 1, got %d", c.Confirmations)
	}
	if c.PrefetchLogs && c.PrefetchTTL <= 0 {
		return fmt.Errorf("prefetch ttl must be positive")
	}
	if c.CheckpointEnabled && c.PGDSN == "" && c.Checkpoint == "" {
		return fmt.Errorf("checkpoint path or pg dsn is required when checkpointing is enabled")
	}
	return c.DecoderSettings.Validate()
}

// Validate checks the decoder settings.
func (s DecoderSettings) Validate() error {
	if _, err := ParseAddress(s.Contract); err != nil {
		return err
	}
	if strings.TrimSpace(s.Event) == "" {
		return fmt.Errorf("event name is required")
	}
	switch s.ZeroDirection {
	case "", "token1-to-token0", "neutral":
	default:
		return fmt.Errorf("unsupported zero direction: %s", s.ZeroDirection)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func setDecoderDefaults(v *viper.Viper) {
	v.SetDefault("contract", DefaultContract)
	v.SetDefault("event", DefaultEvent)
	v.SetDefault("token0-symbol", "DAI")
	v.SetDefault("token1-symbol", "USDC")
	v.SetDefault("decimals0", 18)
	v.SetDefault("decimals1", 6)
	v.SetDefault("zero-direction", "token1-to-token0")
}

func decoderSettings(v *viper.Viper) (DecoderSettings, error) {
	decimals0, err := getUint8(v, "decimals0")
	if err != nil {
		return DecoderSettings{}, err
	}
	decimals1, err := getUint8(v, "decimals1")
	if err != nil {
		return DecoderSettings{}, err
	}
	return DecoderSettings{
		Contract:           strings.TrimSpace(v.GetString("contract")),
		Event:              strings.TrimSpace(v.GetString("event")),
		ABIPath:            v.GetString("abi"),
		Token0Symbol:       v.GetString("token0-symbol"),
		Token1Symbol:       v.GetString("token1-symbol"),
		Decimals0:          decimals0,
		Decimals1:          decimals1,
		TokenMetaFromChain: v.GetBool("token-meta-from-chain"),
		ZeroDirection:      v.GetString("zero-direction"),
	}, nil
}

func getUint8(v *viper.Viper, key string) (uint8, error) {
	n := v.GetInt(key)
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("%s out of range: %d", key, n)
	}
	return uint8(n), nil
}
