package ledger

import (
	"errors"
	"math"
)

// ErrInsufficientBalance is returned by Lock when the account balance
// does not cover the requested amount. No partial debit is performed.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger maps account ids to non-negative balances. Balances are created
// implicitly on first deposit or release and never deleted. All arithmetic
// saturates at the uint64 bounds instead of overflowing; the ledger never
// fails on arithmetic extremes.
//
// The ledger is not safe for concurrent use on its own. The settlement
// engine is its only writer and serializes every call under a single lock.
type Ledger struct {
	balances map[string]uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]uint64),
	}
}

// Deposit adds amount to the account balance, saturating at the maximum
// representable value.
func (l *Ledger) Deposit(account string, amount uint64) {
	l.balances[account] = satAdd(l.balances[account], amount)
}

// Lock debits amount from the account if the balance covers it.
// On ErrInsufficientBalance the balance is untouched.
func (l *Ledger) Lock(account string, amount uint64) error {
	balance := l.balances[account]
	if balance < amount {
		return ErrInsufficientBalance
	}
	l.balances[account] = satSub(balance, amount)
	return nil
}

// Release credits amount to the account, saturating at the maximum
// representable value. Used to credit a recipient on settlement.
func (l *Ledger) Release(account string, amount uint64) {
	l.balances[account] = satAdd(l.balances[account], amount)
}

// BalanceOf returns the current balance, or 0 for an account never seen.
func (l *Ledger) BalanceOf(account string) uint64 {
	return l.balances[account]
}

// TotalSupply returns the sum of all balances, saturating on overflow.
func (l *Ledger) TotalSupply() uint64 {
	var total uint64
	for _, balance := range l.balances {
		total = satAdd(total, balance)
	}
	return total
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
