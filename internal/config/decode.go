package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	DecoderSettings

	RPCURL    string
	BlockHash string
	Out       string
	LogLevel  string
}

// RegisterDecodeFlags adds the flags of the decode command.
func RegisterDecodeFlags(fs *pflag.FlagSet) {
	RegisterDecoderFlags(fs)
	fs.String("block-hash", "", "hash of the block whose swaps are decoded")
	fs.String("out", "", "optional output JSONL path for decoded swaps")
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, setDecoderDefaults)
	if err != nil {
		return DecodeConfig{}, err
	}

	settings, err := decoderSettings(v)
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		DecoderSettings: settings,
		RPCURL:          v.GetString("rpc"),
		BlockHash:       v.GetString("block-hash"),
		Out:             v.GetString("out"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

func (c DecodeConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if _, err := ParseHash(c.BlockHash); err != nil {
		return fmt.Errorf("block hash: %w", err)
	}
	return c.DecoderSettings.Validate()
}
