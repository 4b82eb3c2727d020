package payments

import (
	"fmt"
	"time"
)

// Kind classifies a cross-chain message. It is recorded and returned
// verbatim; the settlement engine attaches no behavior to it.
type Kind uint8

const (
	KindPayment Kind = iota
	KindBillSplitting
	KindTokenTransfer
	KindRefund
)

func (k Kind) String() string {
	switch k {
	case KindPayment:
		return "payment"
	case KindBillSplitting:
		return "bill_splitting"
	case KindTokenTransfer:
		return "token_transfer"
	case KindRefund:
		return "refund"
	default:
		return "unknown"
	}
}

// ParseKind parses the wire representation of a message kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "payment":
		return KindPayment, nil
	case "bill_splitting":
		return KindBillSplitting, nil
	case "token_transfer":
		return KindTokenTransfer, nil
	case "refund":
		return KindRefund, nil
	default:
		return 0, fmt.Errorf("unknown message kind %q", s)
	}
}

// Record describes one cross-chain payment intent. Amount and parties are
// immutable after creation; Executed transitions false -> true exactly once
// and never reverts.
type Record struct {
	Sender           string    `json:"sender"`
	Recipient        string    `json:"recipient"`
	Amount           uint64    `json:"amount"`
	SourceChain      uint32    `json:"source_chain"`
	DestinationChain uint32    `json:"destination_chain"`
	Kind             Kind      `json:"kind"`
	Executed         bool      `json:"executed"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store is an append-only collection of payment records keyed by a
// monotonically increasing 32-bit counter starting at 0. Ids are never
// reused; the counter advances only on successful appends.
//
// Not safe for concurrent use on its own; serialized by the engine.
type Store struct {
	records map[uint32]*Record
	counter uint32
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[uint32]*Record),
	}
}

// Append assigns the next sequential id and stores the record with
// Executed = false. Validation happens upstream in the engine; Append
// itself never fails.
func (s *Store) Append(sender, recipient string, amount uint64, sourceChain, destinationChain uint32, kind Kind, createdAt time.Time) uint32 {
	id := s.counter
	s.records[id] = &Record{
		Sender:           sender,
		Recipient:        recipient,
		Amount:           amount,
		SourceChain:      sourceChain,
		DestinationChain: destinationChain,
		Kind:             kind,
		Executed:         false,
		CreatedAt:        createdAt,
	}
	s.counter++
	return id
}

// Get returns a copy of the record for id. The store keeps exclusive
// ownership of its records; callers only ever see snapshots.
func (s *Store) Get(id uint32) (Record, bool) {
	record, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// MarkExecuted flips the executed flag. The engine guarantees this is
// called at most once per id.
func (s *Store) MarkExecuted(id uint32) {
	if record, ok := s.records[id]; ok {
		record.Executed = true
	}
}

// Count returns the number of records appended so far.
func (s *Store) Count() uint32 {
	return s.counter
}

// Scan visits every record in ascending id order, from 0 up to the current
// counter. It stops early when fn returns false. This is deliberately a
// full linear scan; the store maintains no secondary indexes.
func (s *Store) Scan(fn func(id uint32, record Record) bool) {
	for id := uint32(0); id < s.counter; id++ {
		record, ok := s.records[id]
		if !ok {
			continue
		}
		if !fn(id, *record) {
			return
		}
	}
}
