package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ranger/internal/liquidity"
	"ranger/internal/model"
	"ranger/internal/tickmath"
)

// Errors a position manager reports for a rejected mint.
var (
	ErrDeadlineExpired = errors.New("transaction too old")
	ErrSlippageCheck   = errors.New("price slippage check")
	ErrInvalidTicks    = errors.New("invalid ticks")
	ErrPoolMismatch    = errors.New("pool mismatch")
)

// SimulatedMinter mints against a pool snapshot the way a position manager
// would, without sending a transaction.
type SimulatedMinter struct {
	pools PoolStateProvider
	pool  common.Address
	now   func() time.Time

	mu     sync.Mutex
	nextID uint64
}

// NewSimulatedMinter mints into pool, reading its state from pools on every call.
func NewSimulatedMinter(pools PoolStateProvider, pool common.Address) *SimulatedMinter {
	return &SimulatedMinter{pools: pools, pool: pool, now: time.Now, nextID: 1}
}

// Mint checks the deadline and ticks, takes the largest liquidity the desired
// amounts allow and charges the rounded-up amounts for it. It fails with
// ErrSlippageCheck when either amount falls below its minimum.
func (m *SimulatedMinter) Mint(ctx context.Context, params model.MintParams) (model.MintResult, error) {
	if uint64(m.now().Unix()) > params.Deadline {
		return model.MintResult{}, ErrDeadlineExpired
	}

	state, err := m.pools.PoolState(ctx, m.pool)
	if err != nil {
		return model.MintResult{}, fmt.Errorf("read pool state: %w", err)
	}
	if state.Token0 != params.Token0 || state.Token1 != params.Token1 || state.Fee != params.Fee {
		return model.MintResult{}, ErrPoolMismatch
	}
	if state.TickSpacing <= 0 {
		return model.MintResult{}, fmt.Errorf("%w: tick spacing %d", ErrInvalidTicks, state.TickSpacing)
	}
	if params.TickLower >= params.TickUpper || params.TickLower < tickmath.MinTick || params.TickUpper > tickmath.MaxTick ||
		params.TickLower%state.TickSpacing != 0 || params.TickUpper%state.TickSpacing != 0 {
		return model.MintResult{}, fmt.Errorf("%w: [%d, %d) spacing %d", ErrInvalidTicks, params.TickLower, params.TickUpper, state.TickSpacing)
	}

	sqrtA, err := tickmath.SqrtRatioAtTick(params.TickLower)
	if err != nil {
		return model.MintResult{}, err
	}
	sqrtB, err := tickmath.SqrtRatioAtTick(params.TickUpper)
	if err != nil {
		return model.MintResult{}, err
	}

	liq, err := liquidity.ForAmounts(state.SqrtPriceX96, sqrtA, sqrtB, params.Amount0Desired, params.Amount1Desired)
	if err != nil {
		return model.MintResult{}, err
	}
	if liq.IsZero() {
		return model.MintResult{}, fmt.Errorf("zero liquidity")
	}

	amount0, amount1, err := liquidity.AmountsForLiquidity(state.SqrtPriceX96, sqrtA, sqrtB, liq)
	if err != nil {
		return model.MintResult{}, err
	}
	if amount0.Lt(params.Amount0Min) || amount1.Lt(params.Amount1Min) {
		return model.MintResult{}, fmt.Errorf("%w: got %s/%s, min %s/%s", ErrSlippageCheck, amount0.Dec(), amount1.Dec(), params.Amount0Min.Dec(), params.Amount1Min.Dec())
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	return model.MintResult{
		PositionID: uint256.NewInt(id),
		Liquidity:  liq,
		Amount0:    amount0,
		Amount1:    amount1,
	}, nil
}
