package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ranger/internal/model"
	"ranger/internal/rangecalc"
	"ranger/internal/storage"
)

// Provisioning errors.
var (
	ErrZeroAmount      = errors.New("zero amount")
	ErrInvalidSlippage = errors.New("invalid slippage")
	ErrOverspend       = errors.New("mint consumed more than desired")
)

// PoolStateProvider supplies pool snapshots.
type PoolStateProvider interface {
	PoolState(ctx context.Context, pool common.Address) (model.PoolState, error)
}

// Minter provisions liquidity for a prepared range.
type Minter interface {
	Mint(ctx context.Context, params model.MintParams) (model.MintResult, error)
}

// Custody moves tokens between accounts and the provisioner's holding account.
type Custody interface {
	Pull(ctx context.Context, token, from common.Address, amount *uint256.Int) error
	Push(ctx context.Context, token, to common.Address, amount *uint256.Int) error
}

// Config holds the provisioning policy.
type Config struct {
	MaxTickDeviation int32
	SlippageBps      uint32
	DeadlineWindow   time.Duration
}

// Request asks for a symmetric position of WidthBps around the pool's current price.
type Request struct {
	Pool           common.Address
	WidthBps       uint32
	Amount0Desired *uint256.Int
	Amount1Desired *uint256.Int
	Payer          common.Address
	Recipient      common.Address
}

// Result describes a completed provisioning.
type Result struct {
	State    model.PoolState
	Metadata model.PositionMetadata
	Params   model.MintParams
	Minted   model.MintResult
	Refund0  *uint256.Int
	Refund1  *uint256.Int
}

// Provisioner runs the range calculation and then, only if it succeeds, moves
// custody, mints and refunds. Custody and mint calls are serialised.
type Provisioner struct {
	mu sync.Mutex

	cfg     Config
	pools   PoolStateProvider
	custody Custody
	minter  Minter
	sink    storage.Sink
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewProvisioner builds a Provisioner with its collaborators.
func NewProvisioner(cfg Config, pools PoolStateProvider, custody Custody, minter Minter, sink storage.Sink, metrics *Metrics, logger *zap.Logger) (*Provisioner, error) {
	if pools == nil || custody == nil || minter == nil {
		return nil, fmt.Errorf("pool state provider, custody and minter are required")
	}
	if cfg.SlippageBps >= rangecalc.BasisPoints {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidSlippage, cfg.SlippageBps)
	}
	if cfg.MaxTickDeviation < 0 {
		return nil, fmt.Errorf("max tick deviation must be >= 0")
	}
	if cfg.DeadlineWindow <= 0 {
		cfg.DeadlineWindow = 20 * time.Minute
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		cfg:     cfg,
		pools:   pools,
		custody: custody,
		minter:  minter,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Provide prepares, funds and mints a position, refunding whatever the mint did not use.
func (p *Provisioner) Provide(ctx context.Context, req Request) (Result, error) {
	res, reason, err := p.plan(ctx, req)
	if err != nil {
		p.metrics.rejected.WithLabelValues(reason).Inc()
		p.logger.Warn("position rejected", zap.String("pool", req.Pool.Hex()), zap.Uint32("width_bps", req.WidthBps), zap.String("reason", reason), zap.Error(err))
		return Result{}, err
	}
	p.metrics.prepared.Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	meta := res.Metadata
	if err := p.custody.Pull(ctx, meta.Token0, req.Payer, req.Amount0Desired); err != nil {
		return Result{}, fmt.Errorf("pull token0: %w", err)
	}
	if err := p.custody.Pull(ctx, meta.Token1, req.Payer, req.Amount1Desired); err != nil {
		p.giveBack(ctx, meta.Token0, req.Payer, req.Amount0Desired)
		return Result{}, fmt.Errorf("pull token1: %w", err)
	}

	minted, err := p.minter.Mint(ctx, res.Params)
	if err == nil && (minted.Amount0.Gt(req.Amount0Desired) || minted.Amount1.Gt(req.Amount1Desired)) {
		err = fmt.Errorf("%w: %s/%s", ErrOverspend, minted.Amount0.Dec(), minted.Amount1.Dec())
	}
	if err != nil {
		p.giveBack(ctx, meta.Token0, req.Payer, req.Amount0Desired)
		p.giveBack(ctx, meta.Token1, req.Payer, req.Amount1Desired)
		p.metrics.failed.Inc()
		return Result{}, fmt.Errorf("mint: %w", err)
	}
	res.Minted = minted

	if err := p.custody.Push(ctx, meta.Token0, res.State.Address, minted.Amount0); err != nil {
		p.settleFailed("settle", meta.Token0, res.State.Address, minted, err)
		return Result{}, fmt.Errorf("settle token0: %w", err)
	}
	if err := p.custody.Push(ctx, meta.Token1, res.State.Address, minted.Amount1); err != nil {
		p.settleFailed("settle", meta.Token1, res.State.Address, minted, err)
		return Result{}, fmt.Errorf("settle token1: %w", err)
	}

	at := p.now()
	var events []model.Event

	res.Refund0 = new(uint256.Int).Sub(req.Amount0Desired, minted.Amount0)
	res.Refund1 = new(uint256.Int).Sub(req.Amount1Desired, minted.Amount1)
	for _, refund := range []struct {
		token  common.Address
		amount *uint256.Int
	}{{meta.Token0, res.Refund0}, {meta.Token1, res.Refund1}} {
		if refund.amount.IsZero() {
			continue
		}
		if err := p.custody.Push(ctx, refund.token, req.Payer, refund.amount); err != nil {
			p.settleFailed("refund", refund.token, req.Payer, minted, err)
			return Result{}, fmt.Errorf("refund %s: %w", refund.token.Hex(), err)
		}
		p.metrics.refunds.WithLabelValues(refund.token.Hex()).Inc()
		events = append(events, storage.NewEvent(model.EventExcessRefunded, model.ExcessRefundedData{
			Token:  refund.token.Hex(),
			To:     req.Payer.Hex(),
			Amount: refund.amount.Dec(),
		}, at))
	}

	events = append(events, storage.NewEvent(model.EventPositionCreated, model.PositionCreatedData{
		Pool:       res.State.Address.Hex(),
		PositionID: minted.PositionID.Dec(),
		Recipient:  res.Params.Recipient.Hex(),
		Liquidity:  minted.Liquidity.Dec(),
		Amount0:    minted.Amount0.Dec(),
		Amount1:    minted.Amount1.Dec(),
		TickLower:  meta.LowerTick,
		TickUpper:  meta.UpperTick,
		WidthBps:   req.WidthBps,
	}, at))

	if p.sink != nil {
		if err := p.sink.PutEvents(events); err != nil {
			// Funds have already moved; a lost notification must not report the mint as failed.
			p.logger.Error("notify failed", zap.Error(err))
		}
	}
	p.metrics.minted.Inc()

	p.logger.Info("position created",
		zap.String("pool", res.State.Address.Hex()),
		zap.String("position_id", minted.PositionID.Dec()),
		zap.String("liquidity", minted.Liquidity.Dec()),
		zap.Int32("tick_lower", meta.LowerTick),
		zap.Int32("tick_upper", meta.UpperTick),
		zap.String("refund0", res.Refund0.Dec()),
		zap.String("refund1", res.Refund1.Dec()),
	)
	return res, nil
}

// plan validates the request and computes the mint parameters without touching custody.
func (p *Provisioner) plan(ctx context.Context, req Request) (Result, string, error) {
	if req.Amount0Desired == nil || req.Amount0Desired.IsZero() || req.Amount1Desired == nil || req.Amount1Desired.IsZero() {
		return Result{}, "zero_amount", ErrZeroAmount
	}

	state, err := p.pools.PoolState(ctx, req.Pool)
	if err != nil {
		return Result{}, "pool_state", fmt.Errorf("read pool state: %w", err)
	}

	meta, err := rangecalc.PreparePosition(state, req.WidthBps, p.cfg.MaxTickDeviation)
	if err != nil {
		return Result{}, rangecalc.Reason(err), err
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = req.Payer
	}

	params := model.MintParams{
		Token0:         meta.Token0,
		Token1:         meta.Token1,
		Fee:            meta.Fee,
		TickLower:      meta.LowerTick,
		TickUpper:      meta.UpperTick,
		Amount0Desired: new(uint256.Int).Set(req.Amount0Desired),
		Amount1Desired: new(uint256.Int).Set(req.Amount1Desired),
		Amount0Min:     MinAmount(req.Amount0Desired, p.cfg.SlippageBps),
		Amount1Min:     MinAmount(req.Amount1Desired, p.cfg.SlippageBps),
		Recipient:      recipient,
		Deadline:       uint64(p.now().Add(p.cfg.DeadlineWindow).Unix()),
	}

	return Result{State: state, Metadata: meta, Params: params}, "", nil
}

// MinAmount returns desired * (10000 - slippageBps) / 10000.
func MinAmount(desired *uint256.Int, slippageBps uint32) *uint256.Int {
	if slippageBps >= rangecalc.BasisPoints {
		return new(uint256.Int)
	}
	out, _ := new(uint256.Int).MulDivOverflow(
		desired,
		uint256.NewInt(uint64(rangecalc.BasisPoints-slippageBps)),
		uint256.NewInt(rangecalc.BasisPoints),
	)
	return out
}

// settleFailed records a transfer that failed after the mint succeeded. The
// position exists and the untransferred balance stays in custody.
func (p *Provisioner) settleFailed(stage string, token, to common.Address, minted model.MintResult, err error) {
	p.metrics.settleFailures.WithLabelValues(stage).Inc()
	p.logger.Error("post-mint transfer failed",
		zap.String("stage", stage),
		zap.String("token", token.Hex()),
		zap.String("to", to.Hex()),
		zap.String("position_id", minted.PositionID.Dec()),
		zap.Error(err),
	)
}

func (p *Provisioner) giveBack(ctx context.Context, token, to common.Address, amount *uint256.Int) {
	if err := p.custody.Push(ctx, token, to, amount); err != nil {
		p.logger.Error("return funds failed", zap.String("token", token.Hex()), zap.String("to", to.Hex()), zap.String("amount", amount.Dec()), zap.Error(err))
	}
}
