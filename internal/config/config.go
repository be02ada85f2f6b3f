package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PrepareConfig holds configuration for the prepare command.
type PrepareConfig struct {
	RPCURL           string
	Pool             string
	WidthBps         uint32
	MaxTickDeviation int32
	Format           string
	MaxRetries       int
	RetryBackoff     time.Duration
	BreakerTimeout   time.Duration
	LogLevel         string
}

// LoadPrepare merges config file, environment variables, and flags into PrepareConfig.
func LoadPrepare(cfgFile string, flags *pflag.FlagSet) (PrepareConfig, error) {
	v, err := newViper(cfgFile, flags, setPrepareDefaults)
	if err != nil {
		return PrepareConfig{}, err
	}

	cfg := readPrepare(v)
	if err := cfg.validate(); err != nil {
		return PrepareConfig{}, err
	}
	return cfg, nil
}

func setPrepareDefaults(v *viper.Viper) {
	v.SetDefault("width-bps", uint32(500))
	v.SetDefault("max-tick-deviation", int32(200))
	v.SetDefault("format", "json")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("breaker-timeout", 30*time.Second)
	v.SetDefault("log-level", "info")
}

func readPrepare(v *viper.Viper) PrepareConfig {
	return PrepareConfig{
		RPCURL:           v.GetString("rpc"),
		Pool:             strings.TrimSpace(v.GetString("pool")),
		WidthBps:         v.GetUint32("width-bps"),
		MaxTickDeviation: v.GetInt32("max-tick-deviation"),
		Format:           strings.ToLower(v.GetString("format")),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		BreakerTimeout:   v.GetDuration("breaker-timeout"),
		LogLevel:         v.GetString("log-level"),
	}
}

func (c PrepareConfig) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.Pool == "" {
		return fmt.Errorf("pool address is required")
	}
	if c.MaxTickDeviation < 0 {
		return fmt.Errorf("max-tick-deviation must be >= 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must be >= 0")
	}
	switch c.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("unsupported format %q (json, yaml)", c.Format)
	}
	return nil
}

// newViper layers defaults, an optional config file, RANGER_* environment variables and flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("RANGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

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
