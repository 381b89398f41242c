package memsys

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
)

// Config holds the memory subsystem parameters.
type Config struct {
	// MemorySize is the number of words in the memory array.
	MemorySize int
	// StoreBufferCapacity is the number of stores that can wait for commit.
	StoreBufferCapacity int
	// CommitWidth is the number of stores committed per cycle.
	CommitWidth int
	// CommitLatency is the minimum number of cycles a store is buffered.
	CommitLatency int
}

// DefaultConfig returns the default memory subsystem configuration.
func DefaultConfig() Config {
	return Config{
		MemorySize:          1024,
		StoreBufferCapacity: 16,
		CommitWidth:         1,
		CommitLatency:       1,
	}
}

// Statistics holds memory subsystem counters.
type Statistics struct {
	// Loads is the number of forwarding-aware loads.
	Loads uint64
	// LoadsForwarded is the number of loads served from the store buffer.
	LoadsForwarded uint64
	// StoresSubmitted is the number of stores accepted by the store buffer.
	StoresSubmitted uint64
	// StoresRejected is the number of submits refused because it was full.
	StoresRejected uint64
	// StoresCommitted is the number of stores written to memory.
	StoresCommitted uint64
}

// Option is a functional option for configuring the MemorySubsystem.
type Option func(*MemorySubsystem)

// WithLogger sets the logger. Commits are logged at V(2).
func WithLogger(logger logr.Logger) Option {
	return func(m *MemorySubsystem) {
		m.logger = logger
	}
}

// MemorySubsystem owns the memory array and the store buffer. It has no
// clock; the caller invokes DoCycle exactly once per simulated cycle.
type MemorySubsystem struct {
	memory *emu.Memory
	sb     *StoreBuffer
	logger logr.Logger
	stats  Statistics
}

// New creates a memory subsystem. Non-positive sizes in config are a
// programming error and panic.
func New(config Config, opts ...Option) *MemorySubsystem {
	if config.MemorySize <= 0 {
		panic(fmt.Sprintf("memory size must be > 0, got %d", config.MemorySize))
	}

	var sbOpts []StoreBufferOption
	if config.CommitLatency > 0 {
		sbOpts = append(sbOpts, WithCommitLatency(config.CommitLatency))
	}

	m := &MemorySubsystem{
		memory: emu.NewMemory(config.MemorySize),
		sb:     NewStoreBuffer(config.StoreBufferCapacity, config.CommitWidth, sbOpts...),
		logger: logr.Discard(),
	}

	for _, opt := range opts {
		opt(m)
	}
	m.sb.logger = m.logger

	return m
}

// Init zero-fills memory, writes the program's data items at their offsets
// and empties the store buffer. It may be called again for a new run.
func (m *MemorySubsystem) Init(prog *insts.Program) error {
	if err := m.memory.LoadData(prog); err != nil {
		return fmt.Errorf("failed to initialize memory: %w", err)
	}

	m.sb.Reset()
	m.stats = Statistics{}

	m.logger.Info("memory initialized",
		"words", m.memory.Size(), "dataItems", len(prog.DataNames()))

	return nil
}

// DoCycle advances the store buffer by one tick.
func (m *MemorySubsystem) DoCycle() {
	m.stats.StoresCommitted += uint64(m.sb.DoCycle(m.memory))
}

// Load returns the value a load at addr observes: the youngest buffered
// store to addr if there is one, otherwise the memory array.
func (m *MemorySubsystem) Load(addr insts.Word) insts.Word {
	m.stats.Loads++

	if value, ok := m.sb.Query(addr); ok {
		m.stats.LoadsForwarded++
		return value
	}

	return m.memory.Read(addr)
}

// Store submits a store to the store buffer. It returns an error wrapping
// ErrStoreBufferFull when the buffer has no room.
func (m *MemorySubsystem) Store(addr, value insts.Word, seq uint64) error {
	if !m.memory.Contains(addr) {
		panic(fmt.Sprintf("store to address %d outside memory of %d words", addr, m.memory.Size()))
	}

	if err := m.sb.Submit(addr, value, seq); err != nil {
		m.stats.StoresRejected++
		return err
	}

	m.stats.StoresSubmitted++
	return nil
}

// CanStore reports whether a Store would be accepted this cycle.
func (m *MemorySubsystem) CanStore() bool {
	return !m.sb.IsFull()
}

// ReadRaw returns the memory array value at addr, ignoring buffered stores.
func (m *MemorySubsystem) ReadRaw(addr insts.Word) insts.Word {
	return m.memory.Read(addr)
}

// Memory returns the backing memory array.
func (m *MemorySubsystem) Memory() *emu.Memory {
	return m.memory
}

// StoreBuffer returns the store buffer.
func (m *MemorySubsystem) StoreBuffer() *StoreBuffer {
	return m.sb
}

// Drained reports whether every submitted store has reached memory.
func (m *MemorySubsystem) Drained() bool {
	return m.sb.IsEmpty()
}

// Stats returns the memory subsystem counters.
func (m *MemorySubsystem) Stats() Statistics {
	return m.stats
}
