package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PositionMetadata is the tick-aligned range produced for a single mint request.
type PositionMetadata struct {
	Token0            common.Address
	Token1            common.Address
	Fee               uint32
	LowerSqrtPriceX96 *uint256.Int
	UpperSqrtPriceX96 *uint256.Int
	LowerTick         int32
	UpperTick         int32
}

// PositionView is the printable form of PositionMetadata.
type PositionView struct {
	Pool              string `json:"pool,omitempty" yaml:"pool,omitempty"`
	BlockNumber       uint64 `json:"block_number,omitempty" yaml:"block_number,omitempty"`
	Token0            string `json:"token0" yaml:"token0"`
	Token1            string `json:"token1" yaml:"token1"`
	Fee               uint32 `json:"fee" yaml:"fee"`
	CurrentTick       int32  `json:"current_tick" yaml:"current_tick"`
	TickSpacing       int32  `json:"tick_spacing" yaml:"tick_spacing"`
	LowerSqrtPriceX96 string `json:"lower_sqrt_price_x96" yaml:"lower_sqrt_price_x96"`
	UpperSqrtPriceX96 string `json:"upper_sqrt_price_x96" yaml:"upper_sqrt_price_x96"`
	LowerTick         int32  `json:"lower_tick" yaml:"lower_tick"`
	UpperTick         int32  `json:"upper_tick" yaml:"upper_tick"`
}

// NewPositionView renders metadata together with the snapshot it was derived from.
func NewPositionView(state PoolState, meta PositionMetadata) PositionView {
	view := PositionView{
		Token0:            meta.Token0.Hex(),
		Token1:            meta.Token1.Hex(),
		Fee:               meta.Fee,
		CurrentTick:       state.Tick,
		TickSpacing:       state.TickSpacing,
		LowerSqrtPriceX96: decimal(meta.LowerSqrtPriceX96),
		UpperSqrtPriceX96: decimal(meta.UpperSqrtPriceX96),
		LowerTick:         meta.LowerTick,
		UpperTick:         meta.UpperTick,
		BlockNumber:       state.BlockNumber,
	}
	if state.Address != (common.Address{}) {
		view.Pool = state.Address.Hex()
	}
	return view
}

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
