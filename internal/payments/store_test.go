package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	now := time.Now()

	t.Run("should assign sequential ids from zero", func(t *testing.T) {
		s := NewStore()

		first := s.Append("alice", "bob", 1000, 1000, 2000, KindPayment, now)
		second := s.Append("bob", "carol", 500, 1000, 3000, KindTokenTransfer, now)

		assert.Equal(t, uint32(0), first)
		assert.Equal(t, uint32(1), second)
		assert.Equal(t, uint32(2), s.Count())
	})

	t.Run("should store record with executed false", func(t *testing.T) {
		s := NewStore()

		id := s.Append("alice", "bob", 1000, 1000, 2000, KindRefund, now)

		record, ok := s.Get(id)
		require.True(t, ok)
		assert.Equal(t, "alice", record.Sender)
		assert.Equal(t, "bob", record.Recipient)
		assert.Equal(t, uint64(1000), record.Amount)
		assert.Equal(t, uint32(1000), record.SourceChain)
		assert.Equal(t, uint32(2000), record.DestinationChain)
		assert.Equal(t, KindRefund, record.Kind)
		assert.False(t, record.Executed)
		assert.Equal(t, now, record.CreatedAt)
	})
}

func TestGet(t *testing.T) {
	t.Run("should report missing id", func(t *testing.T) {
		s := NewStore()

		_, ok := s.Get(42)

		assert.False(t, ok)
	})

	t.Run("should return a snapshot, not the stored record", func(t *testing.T) {
		s := NewStore()
		id := s.Append("alice", "bob", 1000, 1000, 2000, KindPayment, time.Now())

		record, _ := s.Get(id)
		record.Executed = true

		fresh, _ := s.Get(id)
		assert.False(t, fresh.Executed)
	})
}

func TestMarkExecuted(t *testing.T) {
	t.Run("should flip executed flag", func(t *testing.T) {
		s := NewStore()
		id := s.Append("alice", "bob", 1000, 1000, 2000, KindPayment, time.Now())

		s.MarkExecuted(id)

		record, _ := s.Get(id)
		assert.True(t, record.Executed)
	})

	t.Run("should ignore unknown id", func(t *testing.T) {
		s := NewStore()

		s.MarkExecuted(7)

		assert.Equal(t, uint32(0), s.Count())
	})
}

func TestScan(t *testing.T) {
	t.Run("should visit records in insertion order", func(t *testing.T) {
		s := NewStore()
		now := time.Now()
		s.Append("alice", "bob", 1, 1000, 2000, KindPayment, now)
		s.Append("bob", "carol", 2, 1000, 2000, KindPayment, now)
		s.Append("carol", "dave", 3, 1000, 2000, KindPayment, now)

		var ids []uint32
		s.Scan(func(id uint32, record Record) bool {
			ids = append(ids, id)
			return true
		})

		assert.Equal(t, []uint32{0, 1, 2}, ids)
	})

	t.Run("should stop when fn returns false", func(t *testing.T) {
		s := NewStore()
		now := time.Now()
		s.Append("alice", "bob", 1, 1000, 2000, KindPayment, now)
		s.Append("bob", "carol", 2, 1000, 2000, KindPayment, now)

		var visits int
		s.Scan(func(id uint32, record Record) bool {
			visits++
			return false
		})

		assert.Equal(t, 1, visits)
	})

	t.Run("should be restartable", func(t *testing.T) {
		s := NewStore()
		s.Append("alice", "bob", 1, 1000, 2000, KindPayment, time.Now())

		for i := 0; i < 2; i++ {
			var visits int
			s.Scan(func(id uint32, record Record) bool {
				visits++
				return true
			})
			assert.Equal(t, 1, visits)
		}
	})
}

func TestKind(t *testing.T) {
	t.Run("should round-trip wire names", func(t *testing.T) {
		for _, kind := range []Kind{KindPayment, KindBillSplitting, KindTokenTransfer, KindRefund} {
			parsed, err := ParseKind(kind.String())
			require.NoError(t, err)
			assert.Equal(t, kind, parsed)
		}
	})

	t.Run("should reject unknown names", func(t *testing.T) {
		_, err := ParseKind("teleport")
		assert.Error(t, err)
	})
}
