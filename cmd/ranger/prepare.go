package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ranger/internal/config"
	"ranger/internal/model"
	"ranger/internal/rangecalc"
)

func newPrepareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Compute an aligned tick range around a pool's current price",
		RunE:  runPrepare,
	}
	addPoolFlags(cmd)
	return cmd
}

func runPrepare(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrepare(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	chainClient, reader, pool, err := newPoolReader(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	state, err := reader.PoolState(ctx, pool)
	if err != nil {
		return err
	}

	meta, err := rangecalc.PreparePosition(state, cfg.WidthBps, cfg.MaxTickDeviation)
	if err != nil {
		logger.Warn("position rejected",
			zap.String("pool", pool.Hex()),
			zap.Int32("tick", state.Tick),
			zap.String("reason", rangecalc.Reason(err)),
			zap.Error(err),
		)
		return err
	}

	logger.Debug("position prepared",
		zap.String("pool", pool.Hex()),
		zap.Uint64("block", state.BlockNumber),
		zap.Int32("tick_lower", meta.LowerTick),
		zap.Int32("tick_upper", meta.UpperTick),
	)

	return writeOutput(cmd.OutOrStdout(), cfg.Format, model.NewPositionView(state, meta))
}
