package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"ranger/internal/chain"
	"ranger/internal/config"
	"ranger/internal/dex"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ranger",
		Short:        "Concentrated liquidity range calculator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newPrepareCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newTickCmd())
	root.AddCommand(newSqrtPriceCmd())
	root.AddCommand(newAlignCmd())

	return root
}

// addPoolFlags registers the flags shared by commands that read a live pool.
func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().Uint32("width-bps", 500, "range width in basis points of price on each side")
	cmd.Flags().Int32("max-tick-deviation", 200, "maximum |current tick| allowed (band around tick 0)")
	cmd.Flags().String("format", "json", "output format (json, yaml)")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 0, "initial retry backoff")
	cmd.Flags().Duration("breaker-timeout", 0, "circuit breaker open timeout")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newPoolReader(ctx context.Context, cfg config.PrepareConfig, logger *zap.Logger) (*chain.Client, *dex.PoolStateReader, common.Address, error) {
	if !common.IsHexAddress(cfg.Pool) {
		return nil, nil, common.Address{}, fmt.Errorf("invalid pool address: %s", cfg.Pool)
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, common.Address{}, fmt.Errorf("connect rpc: %w", err)
	}

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		chainClient.Close()
		return nil, nil, common.Address{}, fmt.Errorf("chain id: %w", err)
	}
	logger.Info("rpc connected",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.String("pool", cfg.Pool),
	)

	reader, err := dex.NewPoolStateReader(chainClient, dex.ReaderConfig{
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		BreakerTimeout: cfg.BreakerTimeout,
	}, logger)
	if err != nil {
		chainClient.Close()
		return nil, nil, common.Address{}, err
	}

	return chainClient, reader, common.HexToAddress(cfg.Pool), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeOutput(w io.Writer, format string, value interface{}) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
