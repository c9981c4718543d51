package backend

import "fmt"

// Batch is an ephemeral, fixed-capacity ordered set of token slots submitted
// to Context.Decode. Each slot carries the token id, its position in the
// sequence, the owning sequence id, and whether its logits should be
// materialized after the pass.
type Batch struct {
	Tokens    []int
	Pos       []int
	SeqID     []int
	GetLogits []bool

	capacity int
}

// NewBatch allocates a batch holding at most capacity slots.
func NewBatch(capacity int) *Batch {
	if capacity < 1 {
		capacity = 1
	}
	return &Batch{
		Tokens:    make([]int, 0, capacity),
		Pos:       make([]int, 0, capacity),
		SeqID:     make([]int, 0, capacity),
		GetLogits: make([]bool, 0, capacity),
		capacity:  capacity,
	}
}

// Add appends one slot. It fails when the batch is full; callers size the
// batch before filling it, so a full batch indicates a programming error
// upstream, not a recoverable condition.
func (b *Batch) Add(token, pos, seqID int, logits bool) error {
	if len(b.Tokens) >= b.capacity {
		return fmt.Errorf("batch full: capacity %d", b.capacity)
	}
	b.Tokens = append(b.Tokens, token)
	b.Pos = append(b.Pos, pos)
	b.SeqID = append(b.SeqID, seqID)
	b.GetLogits = append(b.GetLogits, logits)
	return nil
}

// Len reports the number of occupied slots.
func (b *Batch) Len() int { return len(b.Tokens) }

// Capacity reports the slot limit the batch was allocated with.
func (b *Batch) Capacity() int { return b.capacity }

// Clear empties the batch for reuse without releasing its storage.
func (b *Batch) Clear() {
	b.Tokens = b.Tokens[:0]
	b.Pos = b.Pos[:0]
	b.SeqID = b.SeqID[:0]
	b.GetLogits = b.GetLogits[:0]
}

// LastLogitIndex returns the index of the last slot with the logits flag
// set, or -1 if no slot requested logits.
func (b *Batch) LastLogitIndex() int {
	for i := len(b.GetLogits) - 1; i >= 0; i-- {
		if b.GetLogits[i] {
			return i
		}
	}
	return -1
}
