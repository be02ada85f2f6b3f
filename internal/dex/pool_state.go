package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ranger/internal/chain"
	"ranger/internal/model"
)

// ErrInvalidPoolState marks a pool whose reported state cannot be used for range math.
var ErrInvalidPoolState = errors.New("invalid pool state")

// Caller is the subset of chain.Client used to read pool state.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	LatestHead(ctx context.Context) (chain.Head, error)
}

// ReaderConfig configures retries and the circuit breaker around RPC reads.
type ReaderConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// PoolStateReader reads consistent pool snapshots over JSON-RPC.
type PoolStateReader struct {
	caller  Caller
	cfg     ReaderConfig
	poolABI abi.ABI
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewPoolStateReader builds a reader with its dependencies.
func NewPoolStateReader(caller Caller, cfg ReaderConfig, logger *zap.Logger) (*PoolStateReader, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "pool-state-rpc",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// A pool reporting unusable values is not an RPC fault.
			return err == nil || errors.Is(err, ErrInvalidPoolState)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &PoolStateReader{
		caller:  caller,
		cfg:     cfg,
		poolABI: poolABI,
		breaker: breaker,
		logger:  logger,
	}, nil
}

// PoolState reads token0, token1, fee, tickSpacing and slot0 pinned to the latest block.
func (r *PoolStateReader) PoolState(ctx context.Context, pool common.Address) (model.PoolState, error) {
	res, err := r.breaker.Execute(func() (interface{}, error) {
		return r.fetch(ctx, pool)
	})
	if err != nil {
		return model.PoolState{}, err
	}
	return res.(model.PoolState), nil
}

func (r *PoolStateReader) fetch(ctx context.Context, pool common.Address) (model.PoolState, error) {
	var head chain.Head
	err := r.retry(ctx, "latest head", func(ctx context.Context) error {
		var err error
		head, err = r.caller.LatestHead(ctx)
		return err
	})
	if err != nil {
		return model.PoolState{}, fmt.Errorf("latest head: %w", err)
	}
	block := new(big.Int).SetUint64(head.Number)

	state := model.PoolState{Address: pool, BlockNumber: head.Number}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := r.call(gctx, pool, "token0", block)
		if err != nil {
			return err
		}
		if state.Token0, err = asAddress(values[0]); err != nil {
			return fmt.Errorf("token0: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		values, err := r.call(gctx, pool, "token1", block)
		if err != nil {
			return err
		}
		if state.Token1, err = asAddress(values[0]); err != nil {
			return fmt.Errorf("token1: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		values, err := r.call(gctx, pool, "fee", block)
		if err != nil {
			return err
		}
		fee, err := asBigInt(values[0])
		if err != nil {
			return fmt.Errorf("fee: %w", err)
		}
		if state.Fee, err = uint24FromBig(fee); err != nil {
			return fmt.Errorf("fee: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		values, err := r.call(gctx, pool, "tickSpacing", block)
		if err != nil {
			return err
		}
		spacing, err := asBigInt(values[0])
		if err != nil {
			return fmt.Errorf("tick spacing: %w", err)
		}
		if state.TickSpacing, err = int24FromBig(spacing); err != nil {
			return fmt.Errorf("tick spacing: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		values, err := r.call(gctx, pool, "slot0", block)
		if err != nil {
			return err
		}
		if len(values) < 2 {
			return fmt.Errorf("slot0: unexpected values: %d", len(values))
		}
		sqrtPrice, err := asBigInt(values[0])
		if err != nil {
			return fmt.Errorf("slot0 sqrt price: %w", err)
		}
		converted, overflow := uint256.FromBig(sqrtPrice)
		if overflow || sqrtPrice.Sign() < 0 {
			return fmt.Errorf("slot0 sqrt price overflow: %s", sqrtPrice)
		}
		state.SqrtPriceX96 = converted

		tick, err := asBigInt(values[1])
		if err != nil {
			return fmt.Errorf("slot0 tick: %w", err)
		}
		if state.Tick, err = int24FromBig(tick); err != nil {
			return fmt.Errorf("slot0 tick: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.PoolState{}, err
	}

	if state.SqrtPriceX96.IsZero() {
		return model.PoolState{}, fmt.Errorf("%w: pool %s is not initialized", ErrInvalidPoolState, pool.Hex())
	}
	if state.TickSpacing <= 0 {
		return model.PoolState{}, fmt.Errorf("%w: tick spacing %d", ErrInvalidPoolState, state.TickSpacing)
	}

	r.logger.Debug("pool state",
		zap.String("pool", pool.Hex()),
		zap.Uint64("block", head.Number),
		zap.Int32("tick", state.Tick),
		zap.Int32("tick_spacing", state.TickSpacing),
		zap.String("sqrt_price_x96", state.SqrtPriceX96.Dec()),
	)
	return state, nil
}

func (r *PoolStateReader) call(ctx context.Context, pool common.Address, method string, block *big.Int) ([]interface{}, error) {
	data, err := r.poolABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	var resp []byte
	err = r.retry(ctx, method+" "+pool.Hex(), func(ctx context.Context) error {
		var err error
		resp, err = r.caller.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, block)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := r.poolABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}
