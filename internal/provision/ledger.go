package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInsufficientBalance is returned when a transfer exceeds the sender balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is an in-memory Custody. Pulled tokens sit on the holder account
// until they are pushed out again.
type Ledger struct {
	mu       sync.Mutex
	holder   common.Address
	balances map[common.Address]map[common.Address]*uint256.Int
}

// NewLedger returns an empty ledger whose custody account is holder.
func NewLedger(holder common.Address) *Ledger {
	return &Ledger{
		holder:   holder,
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Holder returns the custody account.
func (l *Ledger) Holder() common.Address {
	return l.holder
}

// Credit mints amount of token to account.
func (l *Ledger) Credit(token, account common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(token, account)
	bal.Add(bal, amount)
}

// Balance returns a copy of account's balance of token.
func (l *Ledger) Balance(token, account common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balanceLocked(token, account))
}

// Pull moves amount of token from an account into custody.
func (l *Ledger) Pull(_ context.Context, token, from common.Address, amount *uint256.Int) error {
	return l.transfer(token, from, l.holder, amount)
}

// Push moves amount of token out of custody to an account.
func (l *Ledger) Push(_ context.Context, token, to common.Address, amount *uint256.Int) error {
	return l.transfer(token, l.holder, to, amount)
}

func (l *Ledger) transfer(token, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.balanceLocked(token, from)
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s has %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), src.Dec(), token.Hex(), amount.Dec())
	}
	dst := l.balanceLocked(token, to)
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

func (l *Ledger) balanceLocked(token, account common.Address) *uint256.Int {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		l.balances[token] = accounts
	}
	bal, ok := accounts[account]
	if !ok {
		bal = new(uint256.Int)
		accounts[account] = bal
	}
	return bal
}
