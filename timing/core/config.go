package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/timing/cache"
	"github.com/sarchlab/cyclesim/timing/latency"
)

// Config holds the parameters of a simulated core.
type Config struct {
	// MemorySize is the data memory size in words.
	MemorySize int `json:"memory_size" yaml:"memory_size"`

	// InstrQueueCapacity is the number of fetched instructions that can wait
	// for execution.
	InstrQueueCapacity int `json:"instr_queue_capacity" yaml:"instr_queue_capacity"`

	// StoreBufferCapacity is the number of stores that can wait for commit.
	StoreBufferCapacity int `json:"store_buffer_capacity" yaml:"store_buffer_capacity"`

	// StoreCommitWidth is the number of stores committed per cycle.
	StoreCommitWidth int `json:"store_commit_width" yaml:"store_commit_width"`

	// StoreCommitLatency is the minimum number of cycles a store stays in
	// the store buffer.
	StoreCommitLatency int `json:"store_commit_latency" yaml:"store_commit_latency"`

	// GeneralRegisters is the number of R registers programs may use.
	GeneralRegisters int `json:"general_registers" yaml:"general_registers"`

	// MaxCycles stops Run after this many cycles. 0 means no limit.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// Frequency is the clock frequency in Hz, used for simulated time.
	Frequency sim.Freq `json:"frequency" yaml:"frequency"`

	// Timing holds the instruction latencies.
	Timing *latency.TimingConfig `json:"timing" yaml:"timing"`

	// DCache enables the L1 data cache model when set.
	DCache *cache.Config `json:"dcache,omitempty" yaml:"dcache,omitempty"`
}

// DefaultConfig returns the default core configuration.
func DefaultConfig() *Config {
	return &Config{
		MemorySize:          1024,
		InstrQueueCapacity:  8,
		StoreBufferCapacity: 16,
		StoreCommitWidth:    1,
		StoreCommitLatency:  1,
		GeneralRegisters:    16,
		Frequency:           1 * sim.GHz,
		Timing:              latency.DefaultTimingConfig(),
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a Config from a JSON or YAML file, chosen by extension.
// Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read core config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse core config: %w", err)
	}

	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON or YAML file, chosen by extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize core config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write core config file: %w", err)
	}

	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MemorySize <= 0 {
		return fmt.Errorf("memory_size must be > 0")
	}
	if c.InstrQueueCapacity <= 0 {
		return fmt.Errorf("instr_queue_capacity must be > 0")
	}
	if c.StoreBufferCapacity <= 0 {
		return fmt.Errorf("store_buffer_capacity must be > 0")
	}
	if c.StoreCommitWidth <= 0 {
		return fmt.Errorf("store_commit_width must be > 0")
	}
	if c.StoreCommitLatency <= 0 {
		return fmt.Errorf("store_commit_latency must be > 0")
	}
	if c.GeneralRegisters <= 0 || c.GeneralRegisters > insts.MaxGeneralRegisters {
		return fmt.Errorf("general_registers must be in 1..%d", insts.MaxGeneralRegisters)
	}
	if c.Frequency <= 0 {
		return fmt.Errorf("frequency must be > 0")
	}
	if c.Timing == nil {
		return fmt.Errorf("timing must be set")
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("invalid timing: %w", err)
	}
	if c.DCache != nil {
		if err := c.DCache.Validate(); err != nil {
			return fmt.Errorf("invalid dcache: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Timing != nil {
		clone.Timing = c.Timing.Clone()
	}
	if c.DCache != nil {
		dcache := *c.DCache
		clone.DCache = &dcache
	}
	return &clone
}
