package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Subjects for settlement events.
const (
	SubjectPaymentCreated   = "payment.created"
	SubjectPaymentExecuted  = "payment.executed"
	SubjectBalanceDeposited = "balance.deposited"
	SubjectChainConfigured  = "chain.configured"
)

// Event is the envelope published on every settlement subject. Events are
// append-only notifications; they are never re-emitted or retracted.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Subject       string          `json:"subject"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// PaymentCreatedEvent is emitted when the lock phase of a payment succeeds.
type PaymentCreatedEvent struct {
	PaymentID        uint32 `json:"payment_id"`
	Sender           string `json:"sender"`
	Recipient        string `json:"recipient"`
	Amount           uint64 `json:"amount"`
	DestinationChain uint32 `json:"destination_chain"`
}

// PaymentExecutedEvent is emitted when a payment settles.
type PaymentExecutedEvent struct {
	PaymentID uint32 `json:"payment_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Executor  string `json:"executor"`
}

// BalanceDepositedEvent is emitted when an account deposits funds.
type BalanceDepositedEvent struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// ChainConfiguredEvent is emitted when the owner reconfigures a chain.
// Relayer is empty when the call left the existing binding untouched.
type ChainConfiguredEvent struct {
	ChainID   uint32 `json:"chain_id"`
	Supported bool   `json:"supported"`
	Relayer   string `json:"relayer,omitempty"`
}

// NewEvent wraps a payload in an event envelope.
func NewEvent(subject string, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Subject:   subject,
		Timestamp: time.Now(),
		Data:      payload,
	}, nil
}

// ParseEventData parses the event payload into the specified type.
func ParseEventData[T any](event *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
