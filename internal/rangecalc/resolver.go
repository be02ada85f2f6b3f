package rangecalc

import (
	"fmt"

	"github.com/holiman/uint256"

	"ranger/internal/tickmath"
)

// BasisPoints is the denominator of a width expressed in basis points.
const BasisPoints = 10000

// ResolvePriceRange derives tick-snapped sqrt price bounds for a band of
// ±widthBps around currentSqrtPriceX96.
//
// The band is applied to the price, i.e. bound = sqrt(P * (10000 ± w) / 10000).
// Since sqrt(P) is the input, this is computed as sqrtP * sqrt((10000 ± w) / 10000)
// with the factor held in Q96, which keeps every intermediate inside 256 bits.
// Each raw bound is then floored to a tick and mapped back to that tick's sqrt price.
func ResolvePriceRange(currentSqrtPriceX96 *uint256.Int, widthBps uint32) (*uint256.Int, *uint256.Int, error) {
	if widthBps == 0 || widthBps >= BasisPoints {
		return nil, nil, fmt.Errorf("%w: %d bps", ErrInvalidWidth, widthBps)
	}
	if currentSqrtPriceX96 == nil || currentSqrtPriceX96.IsZero() {
		return nil, nil, fmt.Errorf("%w: zero sqrt price", ErrArithmeticDomain)
	}

	lowerRaw, err := scaleSqrtPrice(currentSqrtPriceX96, BasisPoints-widthBps, false)
	if err != nil {
		return nil, nil, fmt.Errorf("lower bound: %w", err)
	}
	upperRaw, err := scaleSqrtPrice(currentSqrtPriceX96, BasisPoints+widthBps, true)
	if err != nil {
		return nil, nil, fmt.Errorf("upper bound: %w", err)
	}

	lower, upper, err := snapRange(lowerRaw, upperRaw)
	if err != nil {
		return nil, nil, err
	}

	// A factor of at least 1.0001 on the price always crosses the next tick
	// boundary; fixed-point error at w = 1 must not keep the bound on the current tick.
	if !currentSqrtPriceX96.Lt(upper) {
		if upper, err = nextTickSqrtPrice(currentSqrtPriceX96); err != nil {
			return nil, nil, fmt.Errorf("upper bound: %w", err)
		}
	}
	return lower, upper, nil
}

// scaleSqrtPrice returns sqrtPriceX96 * sqrt(numeratorBps / 10000), rounded
// up when roundUp is set and down otherwise.
func scaleSqrtPrice(sqrtPriceX96 *uint256.Int, numeratorBps uint32, roundUp bool) (*uint256.Int, error) {
	factor, rem := new(uint256.Int), new(uint256.Int)
	factor.DivMod(new(uint256.Int).Lsh(uint256.NewInt(uint64(numeratorBps)), 192), uint256.NewInt(BasisPoints), rem)
	if roundUp && !rem.IsZero() {
		factor.AddUint64(factor, 1)
	}
	radicand := new(uint256.Int).Set(factor)
	factor.Sqrt(factor)
	if roundUp && new(uint256.Int).Mul(factor, factor).Lt(radicand) {
		factor.AddUint64(factor, 1)
	}

	scaled, overflow := new(uint256.Int).MulDivOverflow(sqrtPriceX96, factor, tickmath.Q96)
	if overflow {
		return nil, fmt.Errorf("%w: sqrt price overflow", ErrArithmeticDomain)
	}
	if roundUp && !new(uint256.Int).MulMod(sqrtPriceX96, factor, tickmath.Q96).IsZero() {
		if scaled.Eq(new(uint256.Int).SetAllOne()) {
			return nil, fmt.Errorf("%w: sqrt price overflow", ErrArithmeticDomain)
		}
		scaled.AddUint64(scaled, 1)
	}
	return scaled, nil
}

// nextTickSqrtPrice returns the sqrt price of the first tick boundary above sqrtPriceX96.
func nextTickSqrtPrice(sqrtPriceX96 *uint256.Int) (*uint256.Int, error) {
	tick, err := tickToDomain(tickmath.TickAtSqrtRatio(sqrtPriceX96))
	if err != nil {
		return nil, err
	}
	return sqrtPriceToDomain(tickmath.SqrtRatioAtTick(tick + 1))
}

// snapRange maps both raw bounds onto tick boundaries and checks ordering.
func snapRange(lowerRaw, upperRaw *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	lower, err := snapToTick(lowerRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("lower bound: %w", err)
	}
	upper, err := snapToTick(upperRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("upper bound: %w", err)
	}

	if !lower.Lt(upper) {
		return nil, nil, fmt.Errorf("%w: lower %s >= upper %s", ErrInvalidPriceRange, lower.Dec(), upper.Dec())
	}
	return lower, upper, nil
}

func snapToTick(sqrtPriceX96 *uint256.Int) (*uint256.Int, error) {
	tick, err := tickToDomain(tickmath.TickAtSqrtRatio(sqrtPriceX96))
	if err != nil {
		return nil, err
	}
	return sqrtPriceToDomain(tickmath.SqrtRatioAtTick(tick))
}

func tickToDomain(tick int32, err error) (int32, error) {
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrArithmeticDomain, err)
	}
	return tick, nil
}

func sqrtPriceToDomain(price *uint256.Int, err error) (*uint256.Int, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArithmeticDomain, err)
	}
	return price, nil
}
