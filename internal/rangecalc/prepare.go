package rangecalc

import (
	"fmt"

	"ranger/internal/model"
	"ranger/internal/tickmath"
)

// DefaultMaxTickDeviation is the band around tick zero inside which positions are allowed.
const DefaultMaxTickDeviation int32 = 200

// PreparePosition computes the aligned tick range for a symmetric position of
// widthBps around the pool's current price. It reads only the given snapshot.
func PreparePosition(state model.PoolState, widthBps uint32, maxTickDeviation int32) (model.PositionMetadata, error) {
	if state.TickSpacing <= 0 {
		return model.PositionMetadata{}, fmt.Errorf("%w: tick spacing %d", ErrArithmeticDomain, state.TickSpacing)
	}
	if state.Tick > maxTickDeviation || state.Tick < -maxTickDeviation {
		return model.PositionMetadata{}, fmt.Errorf("%w: tick %d outside ±%d", ErrExcessiveTickDeviation, state.Tick, maxTickDeviation)
	}

	lowerSqrtPrice, upperSqrtPrice, err := ResolvePriceRange(state.SqrtPriceX96, widthBps)
	if err != nil {
		return model.PositionMetadata{}, err
	}

	lowerTick, err := tickToDomain(tickmath.TickAtSqrtRatio(lowerSqrtPrice))
	if err != nil {
		return model.PositionMetadata{}, err
	}
	upperTick, err := tickToDomain(tickmath.TickAtSqrtRatio(upperSqrtPrice))
	if err != nil {
		return model.PositionMetadata{}, err
	}

	lowerTick = AlignTick(lowerTick, state.TickSpacing)
	upperTick = AlignTick(upperTick, state.TickSpacing)
	if lowerTick < tickmath.MinTick || upperTick > tickmath.MaxTick {
		return model.PositionMetadata{}, fmt.Errorf("%w: aligned ticks [%d, %d) outside tick bounds", ErrArithmeticDomain, lowerTick, upperTick)
	}
	if lowerTick >= upperTick {
		return model.PositionMetadata{}, fmt.Errorf("%w: [%d, %d) after aligning to spacing %d", ErrInvalidTickRange, lowerTick, upperTick, state.TickSpacing)
	}

	return model.PositionMetadata{
		Token0:            state.Token0,
		Token1:            state.Token1,
		Fee:               state.Fee,
		LowerSqrtPriceX96: lowerSqrtPrice,
		UpperSqrtPriceX96: upperSqrtPrice,
		LowerTick:         lowerTick,
		UpperTick:         upperTick,
	}, nil
}
