package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paybridge/paybridge/internal/chains"
	"github.com/paybridge/paybridge/internal/ledger"
	"github.com/paybridge/paybridge/internal/payments"
	"github.com/paybridge/paybridge/pkg/messaging"
)

// Errors surfaced to callers. All failures are returned as values; the
// engine never panics past the call boundary and never retries internally.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidChain        = errors.New("destination chain is not supported")
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAlreadyExecuted     = errors.New("payment already executed")
	ErrUnauthorized        = errors.New("unauthorized access")
)

// DefaultSourceChain is recorded as the source chain on every payment.
// The engine does not attempt to detect the caller's true chain of origin.
const DefaultSourceChain uint32 = 1000

// DefaultSupportedChains are pre-marked as supported at construction.
var DefaultSupportedChains = []uint32{1000, 2000, 3000}

// Publisher emits settlement events. Publishing is best-effort
// observability; a failed publish never rolls back a state change.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Config holds engine construction parameters.
type Config struct {
	// Owner is the single privileged account. It gates chain configuration
	// and acts as a universal fallback relayer. Fixed for the engine's
	// lifetime; there is no ownership transfer.
	Owner string

	// SourceChain overrides DefaultSourceChain when non-zero.
	SourceChain uint32

	// SupportedChains overrides DefaultSupportedChains when non-nil.
	SupportedChains []uint32

	// Publisher receives settlement events. Optional.
	Publisher Publisher

	// Clock stamps payment creation times. Defaults to time.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

// Engine orchestrates the two-phase cross-chain settlement protocol over
// the balance ledger, chain registry and payment record store. All state
// mutation is funneled through its methods; a single mutex makes every
// call one atomic step with respect to all others, so a payment can never
// be half-created or half-settled.
type Engine struct {
	mu sync.Mutex

	ledger      *ledger.Ledger
	registry    *chains.Registry
	store       *payments.Store
	owner       string
	sourceChain uint32
	publisher   Publisher
	now         func() time.Time
	log         *slog.Logger
}

// New constructs an engine with empty stores and the configured chains
// marked as supported.
func New(cfg Config) (*Engine, error) {
	if cfg.Owner == "" {
		return nil, errors.New("engine: owner account is required")
	}

	sourceChain := cfg.SourceChain
	if sourceChain == 0 {
		sourceChain = DefaultSourceChain
	}

	supported := cfg.SupportedChains
	if supported == nil {
		supported = DefaultSupportedChains
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		ledger:      ledger.New(),
		registry:    chains.New(supported...),
		store:       payments.NewStore(),
		owner:       cfg.Owner,
		sourceChain: sourceChain,
		publisher:   cfg.Publisher,
		now:         clock,
		log:         log,
	}, nil
}

// Owner returns the privileged account fixed at construction.
func (e *Engine) Owner() string {
	return e.owner
}

// Deposit credits the caller's balance when amount is greater than zero.
// A zero deposit is a no-op. Emits balance.deposited.
func (e *Engine) Deposit(ctx context.Context, caller string, amount uint64) {
	if amount == 0 {
		return
	}

	e.mu.Lock()
	e.ledger.Deposit(caller, amount)
	e.mu.Unlock()

	e.publish(ctx, messaging.SubjectBalanceDeposited, messaging.BalanceDepositedEvent{
		Account: caller,
		Amount:  amount,
	})
}

// CreateCrossChainPayment validates and records a payment intent, debiting
// the sender immediately (the lock phase). Funds stay locked until an
// authorized relayer executes the payment; there is no timeout or automatic
// refund. Validation order is fixed: amount, then chain support, then
// balance. Emits payment.created and returns the new payment id.
func (e *Engine) CreateCrossChainPayment(ctx context.Context, sender, recipient string, amount uint64, destinationChain uint32, kind payments.Kind) (uint32, error) {
	e.mu.Lock()

	if amount == 0 {
		e.mu.Unlock()
		return 0, ErrInvalidAmount
	}

	if !e.registry.IsSupported(destinationChain) {
		e.mu.Unlock()
		return 0, ErrInvalidChain
	}

	if e.ledger.BalanceOf(sender) < amount {
		e.mu.Unlock()
		return 0, ErrInsufficientBalance
	}

	if err := e.ledger.Lock(sender, amount); err != nil {
		// Unreachable after the balance check above; a failure here means
		// the ledger and the check disagree.
		e.mu.Unlock()
		return 0, fmt.Errorf("lock funds for %s: %w", sender, err)
	}

	id := e.store.Append(sender, recipient, amount, e.sourceChain, destinationChain, kind, e.now())
	e.mu.Unlock()

	e.log.Info("payment created",
		"payment_id", id,
		"sender", sender,
		"recipient", recipient,
		"amount", amount,
		"destination_chain", destinationChain,
		"kind", kind.String(),
	)

	e.publish(ctx, messaging.SubjectPaymentCreated, messaging.PaymentCreatedEvent{
		PaymentID:        id,
		Sender:           sender,
		Recipient:        recipient,
		Amount:           amount,
		DestinationChain: destinationChain,
	})

	return id, nil
}

// ExecuteCrossChainPayment settles a previously created payment: it marks
// the record executed and credits the recipient as one atomic step. Only
// the relayer bound to the payment's destination chain, or the owner, may
// call it. A second execute on the same id fails with ErrAlreadyExecuted
// and changes nothing, so settlement happens at most once per payment.
// Emits payment.executed.
func (e *Engine) ExecuteCrossChainPayment(ctx context.Context, caller string, id uint32) error {
	e.mu.Lock()

	record, ok := e.store.Get(id)
	if !ok {
		e.mu.Unlock()
		return ErrPaymentNotFound
	}

	if record.Executed {
		e.mu.Unlock()
		return ErrAlreadyExecuted
	}

	relayer := e.registry.RelayerOf(record.DestinationChain)
	if (relayer == "" || caller != relayer) && caller != e.owner {
		e.mu.Unlock()
		return ErrUnauthorized
	}

	e.store.MarkExecuted(id)
	e.ledger.Release(record.Recipient, record.Amount)
	e.mu.Unlock()

	e.log.Info("payment executed",
		"payment_id", id,
		"sender", record.Sender,
		"recipient", record.Recipient,
		"amount", record.Amount,
		"executor", caller,
	)

	e.publish(ctx, messaging.SubjectPaymentExecuted, messaging.PaymentExecutedEvent{
		PaymentID: id,
		Sender:    record.Sender,
		Recipient: record.Recipient,
		Amount:    record.Amount,
		Executor:  caller,
	})

	return nil
}

// ConfigureChain updates the supported flag and, when relayer is non-empty,
// the relayer binding for a destination chain. Owner only. Changes take
// effect on the next create or execute; already-created records are
// unaffected. Emits chain.configured.
func (e *Engine) ConfigureChain(ctx context.Context, caller string, chainID uint32, supported bool, relayer string) error {
	e.mu.Lock()

	if caller != e.owner {
		e.mu.Unlock()
		return ErrUnauthorized
	}

	e.registry.Configure(chainID, supported, relayer)
	e.mu.Unlock()

	e.log.Info("chain configured",
		"chain_id", chainID,
		"supported", supported,
		"relayer", relayer,
	)

	e.publish(ctx, messaging.SubjectChainConfigured, messaging.ChainConfiguredEvent{
		ChainID:   chainID,
		Supported: supported,
		Relayer:   relayer,
	})

	return nil
}

// GetPaymentInfo returns a snapshot of the payment record for id.
func (e *Engine) GetPaymentInfo(id uint32) (payments.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(id)
}

// GetBalance returns the account's available balance, 0 for accounts
// never seen.
func (e *Engine) GetBalance(account string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.BalanceOf(account)
}

// IsChainSupported reports whether a destination chain is configured as
// supported.
func (e *Engine) IsChainSupported(chainID uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.IsSupported(chainID)
}

// ChainRelayer returns the relayer bound to the chain, or "" when none.
func (e *Engine) ChainRelayer(chainID uint32) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.RelayerOf(chainID)
}

// GetPendingPaymentsCount counts payments where user is sender or
// recipient and the payment has not executed. It scans every record ever
// created: the stores keep no secondary index, and an index maintained
// outside the create/execute critical sections could disagree with the
// ledger.
func (e *Engine) GetPendingPaymentsCount(user string) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var count uint32
	e.store.Scan(func(id uint32, record payments.Record) bool {
		if (record.Sender == user || record.Recipient == user) && !record.Executed {
			count++
		}
		return true
	})
	return count
}

// PaymentCount returns how many payments have ever been created.
func (e *Engine) PaymentCount() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Count()
}

func (e *Engine) publish(ctx context.Context, subject string, data interface{}) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, subject, data); err != nil {
		e.log.Warn("event publish failed", "subject", subject, "error", err)
	}
}
