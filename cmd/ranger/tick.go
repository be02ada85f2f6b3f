package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"ranger/internal/rangecalc"
	"ranger/internal/tickmath"
)

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Print the tick of a Q64.96 sqrt price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("sqrt-price")
			sqrtPrice, err := uint256.FromDecimal(raw)
			if err != nil {
				return fmt.Errorf("parse sqrt-price: %w", err)
			}
			tick, err := tickmath.TickAtSqrtRatio(sqrtPrice)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tick)
			return err
		},
	}
	cmd.Flags().String("sqrt-price", "", "sqrt price as Q64.96 decimal")
	_ = cmd.MarkFlagRequired("sqrt-price")
	return cmd
}

func newSqrtPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqrt-price",
		Short: "Print the Q64.96 sqrt price of a tick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tick, _ := cmd.Flags().GetInt32("tick")
			sqrtPrice, err := tickmath.SqrtRatioAtTick(tick)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sqrtPrice.Dec())
			return err
		},
	}
	cmd.Flags().Int32("tick", 0, "tick index")
	_ = cmd.MarkFlagRequired("tick")
	return cmd
}

func newAlignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Round a tick down to a multiple of the tick spacing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tick, _ := cmd.Flags().GetInt32("tick")
			spacing, _ := cmd.Flags().GetInt32("spacing")
			if spacing <= 0 {
				return fmt.Errorf("spacing must be positive")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), rangecalc.AlignTick(tick, spacing))
			return err
		},
	}
	cmd.Flags().Int32("tick", 0, "tick index")
	cmd.Flags().Int32("spacing", 0, "tick spacing")
	_ = cmd.MarkFlagRequired("tick")
	_ = cmd.MarkFlagRequired("spacing")
	return cmd
}
