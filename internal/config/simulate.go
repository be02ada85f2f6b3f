package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	PrepareConfig

	Amount0     string
	Amount1     string
	SlippageBps uint32
	Deadline    time.Duration
	Payer       string
	Recipient   string
	Events      string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setPrepareDefaults(v)
		v.SetDefault("slippage-bps", uint32(50))
		v.SetDefault("deadline", 20*time.Minute)
		v.SetDefault("payer", "0x000000000000000000000000000000000000dEaD")
		v.SetDefault("events", "./data/events.jsonl")
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		PrepareConfig: readPrepare(v),
		Amount0:       strings.TrimSpace(v.GetString("amount0")),
		Amount1:       strings.TrimSpace(v.GetString("amount1")),
		SlippageBps:   v.GetUint32("slippage-bps"),
		Deadline:      v.GetDuration("deadline"),
		Payer:         strings.TrimSpace(v.GetString("payer")),
		Recipient:     strings.TrimSpace(v.GetString("recipient")),
		Events:        v.GetString("events"),
	}
	if err := cfg.PrepareConfig.validate(); err != nil {
		return SimulateConfig{}, err
	}
	if cfg.Amount0 == "" || cfg.Amount1 == "" {
		return SimulateConfig{}, fmt.Errorf("amount0 and amount1 are required")
	}
	if cfg.SlippageBps >= 10000 {
		return SimulateConfig{}, fmt.Errorf("slippage-bps must be < 10000")
	}
	if cfg.Deadline <= 0 {
		return SimulateConfig{}, fmt.Errorf("deadline must be positive")
	}
	if cfg.Payer == "" {
		return SimulateConfig{}, fmt.Errorf("payer address is required")
	}
	return cfg, nil
}
