package pipeline

import (
	"fmt"

	"github.com/sarchlab/cyclesim/insts"
)

// InstrQueue is a fixed-capacity FIFO of shared instructions between the
// fetch and execute stages. Head and tail only grow; slots are addressed
// modulo the capacity, so 0 <= tail-head <= capacity always holds.
//
// Enqueue on a full queue and Dequeue or Peek on an empty one are contract
// violations and panic. Callers check IsFull and IsEmpty first.
type InstrQueue struct {
	entries []*insts.Instr
	head    uint64
	tail    uint64
}

// NewInstrQueue creates an empty queue holding up to capacity instructions.
func NewInstrQueue(capacity int) *InstrQueue {
	if capacity <= 0 {
		panic(fmt.Sprintf("instruction queue capacity must be > 0, got %d", capacity))
	}

	return &InstrQueue{entries: make([]*insts.Instr, capacity)}
}

func (q *InstrQueue) index(n uint64) uint64 {
	return n % uint64(len(q.entries))
}

// Enqueue appends instr at the tail.
func (q *InstrQueue) Enqueue(instr *insts.Instr) {
	if q.IsFull() {
		panic(fmt.Sprintf("enqueue on full instruction queue of capacity %d", len(q.entries)))
	}

	q.entries[q.index(q.tail)] = instr
	q.tail++
}

// Dequeue removes and returns the head instruction.
func (q *InstrQueue) Dequeue() *insts.Instr {
	if q.IsEmpty() {
		panic("dequeue on empty instruction queue")
	}

	i := q.index(q.head)
	instr := q.entries[i]
	q.entries[i] = nil
	q.head++

	return instr
}

// Peek returns the head instruction without removing it.
func (q *InstrQueue) Peek() *insts.Instr {
	if q.IsEmpty() {
		panic("peek on empty instruction queue")
	}

	return q.entries[q.index(q.head)]
}

// Size returns the number of queued instructions.
func (q *InstrQueue) Size() int {
	return int(q.tail - q.head)
}

// Capacity returns the maximum number of queued instructions.
func (q *InstrQueue) Capacity() int {
	return len(q.entries)
}

// IsEmpty reports whether Size is zero.
func (q *InstrQueue) IsEmpty() bool {
	return q.head == q.tail
}

// IsFull reports whether Size equals Capacity.
func (q *InstrQueue) IsFull() bool {
	return q.Size() == len(q.entries)
}

// Reset empties the queue.
func (q *InstrQueue) Reset() {
	for i := range q.entries {
		q.entries[i] = nil
	}
	q.head = 0
	q.tail = 0
}
