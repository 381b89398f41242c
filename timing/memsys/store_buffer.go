// Package memsys models the data memory subsystem: a flat memory array
// fronted by a store buffer that decouples store execution from commit.
package memsys

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
)

// ErrStoreBufferFull is returned by Submit when no entry is free. It is
// backpressure: the caller stalls the store and retries on a later cycle.
var ErrStoreBufferFull = errors.New("store buffer full")

// Entry is a store that has executed but has not reached memory yet. An
// entry leaves the buffer in the cycle it commits.
type Entry struct {
	Addr  insts.Word
	Value insts.Word
	Seq   uint64

	// readyAt is the buffer cycle from which the entry may commit.
	readyAt uint64
}

// StoreBufferOption is a functional option for configuring a StoreBuffer.
type StoreBufferOption func(*StoreBuffer)

// WithCommitLatency sets how many cycles an entry stays in the buffer before
// it may commit. The default of 1 lets a store commit in the cycle it was
// submitted.
func WithCommitLatency(cycles int) StoreBufferOption {
	return func(sb *StoreBuffer) {
		if cycles <= 0 {
			panic(fmt.Sprintf("store commit latency must be > 0, got %d", cycles))
		}
		sb.commitLatency = uint64(cycles)
	}
}

// StoreBuffer holds executed stores in program order. Entries are appended by
// Submit and removed from the front by DoCycle, so memory is written in
// exactly the order the stores were submitted.
type StoreBuffer struct {
	entries     []Entry
	head        uint64
	tail        uint64
	commitWidth int

	commitLatency uint64
	cycle         uint64

	lastSeq uint64
	hasSeq  bool

	logger logr.Logger
}

// NewStoreBuffer creates a store buffer with room for capacity entries that
// commits up to commitWidth entries per cycle.
func NewStoreBuffer(capacity, commitWidth int, opts ...StoreBufferOption) *StoreBuffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("store buffer capacity must be > 0, got %d", capacity))
	}
	if commitWidth <= 0 {
		panic(fmt.Sprintf("store buffer commit width must be > 0, got %d", commitWidth))
	}

	sb := &StoreBuffer{
		entries:       make([]Entry, capacity),
		commitWidth:   commitWidth,
		commitLatency: 1,
		logger:        logr.Discard(),
	}

	for _, opt := range opts {
		opt(sb)
	}

	return sb
}

// Capacity returns the maximum number of buffered stores.
func (sb *StoreBuffer) Capacity() int {
	return len(sb.entries)
}

// CommitWidth returns the number of entries committed per cycle.
func (sb *StoreBuffer) CommitWidth() int {
	return sb.commitWidth
}

// CommitLatency returns the minimum number of cycles an entry is buffered.
func (sb *StoreBuffer) CommitLatency() int {
	return int(sb.commitLatency)
}

// Size returns the number of buffered stores.
func (sb *StoreBuffer) Size() int {
	return int(sb.tail - sb.head)
}

// IsEmpty reports whether every store has been committed.
func (sb *StoreBuffer) IsEmpty() bool {
	return sb.head == sb.tail
}

// IsFull reports whether Submit would fail.
func (sb *StoreBuffer) IsFull() bool {
	return sb.Size() == len(sb.entries)
}

func (sb *StoreBuffer) slot(n uint64) *Entry {
	return &sb.entries[n%uint64(len(sb.entries))]
}

// Submit appends a store. Sequence numbers must increase in program order;
// a regression is a contract violation and panics.
func (sb *StoreBuffer) Submit(addr, value insts.Word, seq uint64) error {
	if sb.hasSeq && seq <= sb.lastSeq {
		panic(fmt.Sprintf("store sequence %d submitted after %d", seq, sb.lastSeq))
	}

	if sb.IsFull() {
		return fmt.Errorf("%w: %d entries", ErrStoreBufferFull, len(sb.entries))
	}

	*sb.slot(sb.tail) = Entry{
		Addr:    addr,
		Value:   value,
		Seq:     seq,
		readyAt: sb.cycle + sb.commitLatency,
	}
	sb.tail++
	sb.lastSeq = seq
	sb.hasSeq = true

	return nil
}

// Query returns the value of the youngest buffered store to addr.
func (sb *StoreBuffer) Query(addr insts.Word) (insts.Word, bool) {
	for n := sb.tail; n > sb.head; n-- {
		e := sb.slot(n - 1)
		if e.Addr == addr {
			return e.Value, true
		}
	}
	return 0, false
}

// DoCycle commits up to CommitWidth of the oldest ready entries to memory
// and returns how many were committed. An entry that is not ready blocks the
// younger ones behind it. Entries superseded by a younger store to the same
// address are still written in their turn.
func (sb *StoreBuffer) DoCycle(memory *emu.Memory) int {
	sb.cycle++

	committed := 0
	for committed < sb.commitWidth && !sb.IsEmpty() {
		e := sb.slot(sb.head)
		if e.readyAt > sb.cycle {
			break
		}
		memory.Write(e.Addr, e.Value)
		sb.head++
		committed++

		sb.logger.V(2).Info("store committed", "seq", e.Seq, "addr", e.Addr, "value", e.Value)
	}
	return committed
}

// Entries returns the buffered stores, oldest first.
func (sb *StoreBuffer) Entries() []Entry {
	entries := make([]Entry, 0, sb.Size())
	for n := sb.head; n < sb.tail; n++ {
		entries = append(entries, *sb.slot(n))
	}
	return entries
}

// Reset drops every buffered store and forgets the last sequence number.
func (sb *StoreBuffer) Reset() {
	for i := range sb.entries {
		sb.entries[i] = Entry{}
	}
	sb.head = 0
	sb.tail = 0
	sb.cycle = 0
	sb.lastSeq = 0
	sb.hasSeq = false
}
