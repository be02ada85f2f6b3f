package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ranger/internal/config"
	"ranger/internal/dex"
	"ranger/internal/model"
	"ranger/internal/provision"
	"ranger/internal/storage"
)

// custodyAccount holds pulled tokens between the pull and the mint in a simulation.
var custodyAccount = common.HexToAddress("0x00000000000000000000000000000000000c0575")

type simulateView struct {
	Position   model.PositionView `json:"position" yaml:"position"`
	PositionID string             `json:"position_id" yaml:"position_id"`
	Liquidity  string             `json:"liquidity" yaml:"liquidity"`
	Amount0    string             `json:"amount0" yaml:"amount0"`
	Amount1    string             `json:"amount1" yaml:"amount1"`
	Refund0    string             `json:"refund0" yaml:"refund0"`
	Refund1    string             `json:"refund1" yaml:"refund1"`
	Deadline   uint64             `json:"deadline" yaml:"deadline"`
	Calldata   string             `json:"calldata" yaml:"calldata"`
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Prepare and mint a position against a simulated ledger",
		RunE:  runSimulate,
	}
	addPoolFlags(cmd)
	cmd.Flags().String("amount0", "", "desired token0 amount (base units)")
	cmd.Flags().String("amount1", "", "desired token1 amount (base units)")
	cmd.Flags().Uint32("slippage-bps", 50, "slippage tolerance in basis points")
	cmd.Flags().Duration("deadline", 0, "mint deadline window")
	cmd.Flags().String("payer", "", "payer address")
	cmd.Flags().String("recipient", "", "position recipient, defaults to payer")
	cmd.Flags().String("events", "./data/events.jsonl", "notification JSONL path")
	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount0, err := uint256.FromDecimal(cfg.Amount0)
	if err != nil {
		return fmt.Errorf("parse amount0: %w", err)
	}
	amount1, err := uint256.FromDecimal(cfg.Amount1)
	if err != nil {
		return fmt.Errorf("parse amount1: %w", err)
	}
	payer, err := parseAddress("payer", cfg.Payer)
	if err != nil {
		return err
	}
	var recipient common.Address
	if cfg.Recipient != "" {
		if recipient, err = parseAddress("recipient", cfg.Recipient); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, reader, pool, err := newPoolReader(ctx, cfg.PrepareConfig, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	state, err := reader.PoolState(ctx, pool)
	if err != nil {
		return err
	}

	ledger := provision.NewLedger(custodyAccount)
	ledger.Credit(state.Token0, payer, amount0)
	ledger.Credit(state.Token1, payer, amount1)

	prov, err := provision.NewProvisioner(provision.Config{
		MaxTickDeviation: cfg.MaxTickDeviation,
		SlippageBps:      cfg.SlippageBps,
		DeadlineWindow:   cfg.Deadline,
	},
		reader,
		ledger,
		provision.NewSimulatedMinter(reader, pool),
		storage.NewJsonlStorage(cfg.Events),
		provision.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("pool", pool.Hex()),
		zap.Uint32("width_bps", cfg.WidthBps),
		zap.Uint32("slippage_bps", cfg.SlippageBps),
		zap.String("events", cfg.Events),
	)

	res, err := prov.Provide(ctx, provision.Request{
		Pool:           pool,
		WidthBps:       cfg.WidthBps,
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Payer:          payer,
		Recipient:      recipient,
	})
	if err != nil {
		return err
	}

	calldata, err := dex.MintCalldata(res.Params)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), cfg.Format, simulateView{
		Position:   model.NewPositionView(res.State, res.Metadata),
		PositionID: res.Minted.PositionID.Dec(),
		Liquidity:  res.Minted.Liquidity.Dec(),
		Amount0:    res.Minted.Amount0.Dec(),
		Amount1:    res.Minted.Amount1.Dec(),
		Refund0:    res.Refund0.Dec(),
		Refund1:    res.Refund1.Dec(),
		Deadline:   res.Params.Deadline,
		Calldata:   hexutil.Encode(calldata),
	})
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", name, value)
	}
	return common.HexToAddress(value), nil
}
