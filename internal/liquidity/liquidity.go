package liquidity

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"ranger/internal/tickmath"
)

var (
	ErrInvalidRange = errors.New("invalid sqrt price range")
	ErrOverflow     = errors.New("liquidity overflow")
)

var maxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// ForAmount0 returns the liquidity provided by amount0 between two sqrt prices, rounded down.
func ForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	intermediate, overflow := new(uint256.Int).MulDivOverflow(sqrtA, sqrtB, tickmath.Q96)
	if overflow {
		return nil, ErrOverflow
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	liquidity, overflow := new(uint256.Int).MulDivOverflow(amount0, intermediate, diff)
	if overflow {
		return nil, ErrOverflow
	}
	return liquidity, nil
}

// ForAmount1 returns the liquidity provided by amount1 between two sqrt prices, rounded down.
func ForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	liquidity, overflow := new(uint256.Int).MulDivOverflow(amount1, tickmath.Q96, diff)
	if overflow {
		return nil, ErrOverflow
	}
	return liquidity, nil
}

// ForAmounts returns the largest liquidity both amounts can back at sqrtPrice for
// the range [sqrtA, sqrtB). The result must fit in 128 bits.
func ForAmounts(sqrtPrice, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}

	var liquidity *uint256.Int
	switch {
	case !sqrtPrice.Gt(sqrtA):
		liquidity, err = ForAmount0(sqrtA, sqrtB, amount0)
	case sqrtPrice.Lt(sqrtB):
		var l0, l1 *uint256.Int
		if l0, err = ForAmount0(sqrtPrice, sqrtB, amount0); err != nil {
			return nil, err
		}
		if l1, err = ForAmount1(sqrtA, sqrtPrice, amount1); err != nil {
			return nil, err
		}
		liquidity = l0
		if l1.Lt(l0) {
			liquidity = l1
		}
	default:
		liquidity, err = ForAmount1(sqrtA, sqrtB, amount1)
	}
	if err != nil {
		return nil, err
	}
	if liquidity.Gt(maxUint128) {
		return nil, fmt.Errorf("%w: %s", ErrOverflow, liquidity.Dec())
	}
	return liquidity, nil
}

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB) in token0 units.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if !roundUp {
		amount, overflow := new(uint256.Int).MulDivOverflow(numerator1, numerator2, sqrtB)
		if overflow {
			return nil, ErrOverflow
		}
		return amount.Div(amount, sqrtA), nil
	}

	amount, err := mulDivRoundingUp(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return divRoundingUp(amount, sqrtA), nil
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA) in token1 units.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, err
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, tickmath.Q96)
	}
	amount, overflow := new(uint256.Int).MulDivOverflow(liquidity, diff, tickmath.Q96)
	if overflow {
		return nil, ErrOverflow
	}
	return amount, nil
}

// AmountsForLiquidity returns the token amounts owed for liquidity over [sqrtA, sqrtB)
// at sqrtPrice, rounded up the way a pool charges a minter.
func AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	sqrtA, sqrtB, err := ordered(sqrtA, sqrtB)
	if err != nil {
		return nil, nil, err
	}

	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	switch {
	case !sqrtPrice.Gt(sqrtA):
		amount0, err = Amount0Delta(sqrtA, sqrtB, liquidity, true)
	case sqrtPrice.Lt(sqrtB):
		if amount0, err = Amount0Delta(sqrtPrice, sqrtB, liquidity, true); err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1Delta(sqrtA, sqrtPrice, liquidity, true)
	default:
		amount1, err = Amount1Delta(sqrtA, sqrtB, liquidity, true)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func ordered(a, b *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if a == nil || b == nil || a.IsZero() || b.IsZero() || a.Eq(b) {
		return nil, nil, ErrInvalidRange
	}
	if a.Gt(b) {
		return b, a, nil
	}
	return a, b, nil
}

func mulDivRoundingUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	result, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	if !new(uint256.Int).MulMod(x, y, d).IsZero() {
		if result.Eq(new(uint256.Int).SetAllOne()) {
			return nil, ErrOverflow
		}
		result.AddUint64(result, 1)
	}
	return result, nil
}

func divRoundingUp(x, d *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(x, d, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}
