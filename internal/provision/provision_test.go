package provision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ranger/internal/model"
	"ranger/internal/rangecalc"
	"ranger/internal/storage"
	"ranger/internal/tickmath"
)

var (
	poolAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1     = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	payer      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	custodian  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	oneToken   = uint256.MustFromDecimal("1000000000000000000")
	tenTokens  = uint256.MustFromDecimal("10000000000000000000")
	fixedClock = time.Unix(1_700_000_000, 0)
)

type staticPools struct {
	mu    sync.Mutex
	state model.PoolState
	err   error
	calls int
}

func (s *staticPools) PoolState(context.Context, common.Address) (model.PoolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.state, s.err
}

type countingMinter struct {
	Minter
	calls int
}

func (c *countingMinter) Mint(ctx context.Context, params model.MintParams) (model.MintResult, error) {
	c.calls++
	return c.Minter.Mint(ctx, params)
}

type failingMinter struct{}

func (failingMinter) Mint(context.Context, model.MintParams) (model.MintResult, error) {
	return model.MintResult{}, errors.New("execution reverted")
}

func poolState(t *testing.T, sqrtTick, reportedTick, spacing int32) model.PoolState {
	t.Helper()
	sqrtPrice, err := tickmath.SqrtRatioAtTick(sqrtTick)
	require.NoError(t, err)
	return model.PoolState{
		Address:      poolAddr,
		Token0:       token0,
		Token1:       token1,
		Fee:          500,
		SqrtPriceX96: sqrtPrice,
		Tick:         reportedTick,
		TickSpacing:  spacing,
	}
}

type fixture struct {
	pools   *staticPools
	ledger  *Ledger
	minter  *countingMinter
	sink    *storage.MemorySink
	metrics *Metrics
	prov    *Provisioner
}

func newFixture(t *testing.T, state model.PoolState, slippageBps uint32) *fixture {
	t.Helper()
	f := &fixture{
		pools:   &staticPools{state: state},
		ledger:  NewLedger(custodian),
		sink:    &storage.MemorySink{},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	sim := NewSimulatedMinter(f.pools, poolAddr)
	sim.now = func() time.Time { return fixedClock }
	f.minter = &countingMinter{Minter: sim}

	f.ledger.Credit(token0, payer, tenTokens)
	f.ledger.Credit(token1, payer, tenTokens)

	prov, err := NewProvisioner(Config{
		MaxTickDeviation: rangecalc.DefaultMaxTickDeviation,
		SlippageBps:      slippageBps,
		DeadlineWindow:   10 * time.Minute,
	}, f.pools, f.ledger, f.minter, f.sink, f.metrics, zap.NewNop())
	require.NoError(t, err)
	prov.now = func() time.Time { return fixedClock }
	f.prov = prov
	return f
}

func request() Request {
	return Request{
		Pool:           poolAddr,
		WidthBps:       500,
		Amount0Desired: new(uint256.Int).Set(oneToken),
		Amount1Desired: new(uint256.Int).Set(oneToken),
		Payer:          payer,
		Recipient:      recipient,
	}
}

func (f *fixture) assertUntouched(t *testing.T) {
	t.Helper()
	for _, token := range []common.Address{token0, token1} {
		assert.True(t, f.ledger.Balance(token, payer).Eq(tenTokens), "payer balance of %s", token.Hex())
		assert.True(t, f.ledger.Balance(token, custodian).IsZero(), "custody balance of %s", token.Hex())
		assert.True(t, f.ledger.Balance(token, poolAddr).IsZero(), "pool balance of %s", token.Hex())
	}
}

func TestProvide(t *testing.T) {
	f := newFixture(t, poolState(t, 0, 0, 10), 1000)

	res, err := f.prov.Provide(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, int32(-520), res.Params.TickLower)
	assert.Equal(t, int32(480), res.Params.TickUpper)
	assert.Equal(t, recipient, res.Params.Recipient)
	assert.Equal(t, uint64(fixedClock.Add(10*time.Minute).Unix()), res.Params.Deadline)
	assert.Equal(t, "900000000000000000", res.Params.Amount0Min.Dec())
	assert.Equal(t, "900000000000000000", res.Params.Amount1Min.Dec())

	assert.True(t, res.Minted.PositionID.Eq(uint256.NewInt(1)))
	assert.False(t, res.Minted.Liquidity.IsZero())
	require.False(t, res.Minted.Amount0.Gt(oneToken))
	require.False(t, res.Minted.Amount1.Gt(oneToken))
	// The upper side of the aligned range is narrower, so token0 is in excess.
	assert.False(t, res.Refund0.IsZero())

	for _, c := range []struct {
		token  common.Address
		minted *uint256.Int
	}{{token0, res.Minted.Amount0}, {token1, res.Minted.Amount1}} {
		want := new(uint256.Int).Sub(tenTokens, c.minted)
		assert.True(t, f.ledger.Balance(c.token, payer).Eq(want), "payer keeps everything not minted")
		assert.True(t, f.ledger.Balance(c.token, poolAddr).Eq(c.minted), "pool receives the minted amount")
		assert.True(t, f.ledger.Balance(c.token, custodian).IsZero(), "custody is flushed")
	}

	events := f.sink.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.EventPositionCreated, last.Kind)
	created, ok := last.Payload.(model.PositionCreatedData)
	require.True(t, ok)
	assert.Equal(t, "1", created.PositionID)
	assert.Equal(t, int32(-520), created.TickLower)
	assert.Equal(t, uint32(500), created.WidthBps)

	refunds := 0
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, model.EventExcessRefunded, ev.Kind)
		refunds++
	}
	want := 1
	if !res.Refund1.IsZero() {
		want = 2
	}
	assert.Equal(t, want, refunds)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.prepared))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.minted))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.refunds.WithLabelValues(token0.Hex())))
}

func TestProvideDefaultsRecipientToPayer(t *testing.T) {
	f := newFixture(t, poolState(t, 0, 0, 10), 1000)
	req := request()
	req.Recipient = common.Address{}

	res, err := f.prov.Provide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, payer, res.Params.Recipient)
}

func TestProvideRejectsBeforeCustody(t *testing.T) {
	cases := []struct {
		name   string
		state  func(t *testing.T) model.PoolState
		mutate func(*Request)
		err    error
		reason string
	}{
		{
			name:   "tick deviation",
			state:  func(t *testing.T) model.PoolState { return poolState(t, 0, 201, 10) },
			err:    rangecalc.ErrExcessiveTickDeviation,
			reason: "excessive_tick_deviation",
		},
		{
			name:   "zero width",
			state:  func(t *testing.T) model.PoolState { return poolState(t, 0, 0, 10) },
			mutate: func(r *Request) { r.WidthBps = 0 },
			err:    rangecalc.ErrInvalidWidth,
			reason: "invalid_width",
		},
		{
			name:   "zero amount",
			state:  func(t *testing.T) model.PoolState { return poolState(t, 0, 0, 10) },
			mutate: func(r *Request) { r.Amount1Desired = new(uint256.Int) },
			err:    ErrZeroAmount,
			reason: "zero_amount",
		},
		{
			name:   "collapsed range",
			state:  func(t *testing.T) model.PoolState { return poolState(t, 50, 50, 200) },
			mutate: func(r *Request) { r.WidthBps = 1 },
			err:    rangecalc.ErrInvalidTickRange,
			reason: "invalid_tick_range",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.state(t), 1000)
			req := request()
			if tc.mutate != nil {
				tc.mutate(&req)
			}

			_, err := f.prov.Provide(context.Background(), req)
			require.ErrorIs(t, err, tc.err)

			f.assertUntouched(t)
			assert.Zero(t, f.minter.calls)
			assert.Empty(t, f.sink.Events())
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.rejected.WithLabelValues(tc.reason)))
			assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.prepared))
		})
	}
}

func TestProvideZeroAmountSkipsPoolRead(t *testing.T) {
	f := newFixture(t, poolState(t, 0, 0, 10), 1000)
	req := request()
	req.Amount0Desired = nil

	_, err := f.prov.Provide(context.Background(), req)
	require.ErrorIs(t, err, ErrZeroAmount)
	assert.Zero(t, f.pools.calls)
}

func TestProvidePoolStateError(t *testing.T) {
	f := newFixture(t, model.PoolState{}, 1000)
	f.pools.err = errors.New("rpc down")

	_, err := f.prov.Provide(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.rejected.WithLabelValues("pool_state")))
	f.assertUntouched(t)
}

func TestProvideReturnsFundsOnSlippage(t *testing.T) {
	f := newFixture(t, poolState(t, 0, 0, 10), 100)

	_, err := f.prov.Provide(context.Background(), request())
	require.ErrorIs(t, err, ErrSlippageCheck)

	f.assertUntouched(t)
	assert.Equal(t, 1, f.minter.calls)
	assert.Empty(t, f.sink.Events())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.failed))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.minted))
}

func TestProvideReturnsFundsOnExpiredDeadline(t *testing.T) {
	f := newFixture(t, poolState(t, 0, 0, 10), 1000)
	sim := f.minter.Minter.(*SimulatedMinter)
	sim.now = func() time.Time { return fixedClock.Add(11 * time.Minute) }

	_, err := f.prov.Provide(context.Background(), request())
	require.ErrorIs(t, err, ErrDeadlineExpired)
	f.assertUntouched(t)
}

func TestProvideReturnsFundsOnMintRevert(t *testing.T) {
	pools := &staticPools{state: poolState(t, 0, 0, 10)}
	ledger := NewLedger(custodian)
	ledger.Credit(token0, payer, tenTokens)
	ledger.Credit(token1, payer, tenTokens)

	prov, err := NewProvisioner(Config{MaxTickDeviation: 200, SlippageBps: 50}, pools, ledger, failingMinter{}, nil, nil, nil)
	require.NoError(t, err)

	_, err = prov.Provide(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
	assert.True(t, ledger.Balance(token0, payer).Eq(tenTokens))
	assert.True(t, ledger.Balance(token1, payer).Eq(tenTokens))
}

func TestProvideInsufficientBalance(t *testing.T) {
	f := newFixture(t, poolState(t, 0, 0, 10), 1000)
	req := request()
	req.Amount1Desired = new(uint256.Int).AddUint64(tenTokens, 1)

	_, err := f.prov.Provide(context.Background(), req)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	f.assertUntouched(t)
	assert.Zero(t, f.minter.calls)
}

func TestProvideConcurrent(t *testing.T) {
	f := newFixture(t, poolState(t, 0, 0, 10), 1000)

	const workers = 8
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request()
			req.Amount0Desired = uint256.NewInt(1_000_000_000)
			req.Amount1Desired = uint256.NewInt(1_000_000_000)
			res, err := f.prov.Provide(context.Background(), req)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	ids := make(map[uint64]bool)
	spent0 := new(uint256.Int)
	for _, res := range results {
		require.NotNil(t, res.Minted.PositionID)
		ids[res.Minted.PositionID.Uint64()] = true
		spent0.Add(spent0, res.Minted.Amount0)
	}
	assert.Len(t, ids, workers)
	assert.True(t, f.ledger.Balance(token0, poolAddr).Eq(spent0))
	assert.True(t, f.ledger.Balance(token0, custodian).IsZero())
	assert.Equal(t, float64(workers), testutil.ToFloat64(f.metrics.minted))
}

type blockedCustody struct {
	*Ledger
	blocked common.Address
}

func (b blockedCustody) Push(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	if to == b.blocked {
		return errors.New("transfer blocked")
	}
	return b.Ledger.Push(ctx, token, to, amount)
}

func TestProvideCountsFailedTransfersAfterMint(t *testing.T) {
	cases := []struct {
		name    string
		blocked common.Address
		stage   string
	}{
		{"settle to pool", poolAddr, "settle"},
		{"refund to payer", payer, "refund"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, poolState(t, 0, 0, 10), 1000)
			core, logs := observer.New(zapcore.ErrorLevel)
			prov, err := NewProvisioner(Config{MaxTickDeviation: 200, SlippageBps: 1000},
				f.pools, blockedCustody{Ledger: f.ledger, blocked: tc.blocked}, f.minter, f.sink, f.metrics, zap.New(core))
			require.NoError(t, err)

			_, err = prov.Provide(context.Background(), request())
			require.Error(t, err)

			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.settleFailures.WithLabelValues(tc.stage)))
			entries := logs.FilterMessage("post-mint transfer failed").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tc.stage, entries[0].ContextMap()["stage"])
			assert.Equal(t, "1", entries[0].ContextMap()["position_id"])
			assert.Empty(t, f.sink.Events())
		})
	}
}

func TestNewProvisionerValidates(t *testing.T) {
	pools := &staticPools{}
	ledger := NewLedger(custodian)

	_, err := NewProvisioner(Config{SlippageBps: 10000}, pools, ledger, failingMinter{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSlippage)

	_, err = NewProvisioner(Config{MaxTickDeviation: -1}, pools, ledger, failingMinter{}, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewProvisioner(Config{}, nil, ledger, failingMinter{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestMinAmount(t *testing.T) {
	assert.Equal(t, "995", MinAmount(uint256.NewInt(1000), 50).Dec())
	assert.Equal(t, "1000", MinAmount(uint256.NewInt(1000), 0).Dec())
	assert.Equal(t, "0", MinAmount(uint256.NewInt(1000), 10000).Dec())
	// 999 * 9999 / 10000 = 998.9001
	assert.Equal(t, "998", MinAmount(uint256.NewInt(999), 1).Dec())
}
