package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TimingConfig holds latency values, in cycles, for each instruction class.
// Every instruction currently takes one cycle, so all defaults are 1.
type TimingConfig struct {
	// ALULatency covers ADD, SUB, AND, ORR, EOR, NEG, MVN, MOV and CMP.
	ALULatency uint64 `json:"alu_latency" yaml:"alu_latency"`

	// MultiplyLatency covers MUL.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// DivideLatency covers SDIV.
	DivideLatency uint64 `json:"divide_latency" yaml:"divide_latency"`

	// BranchLatency covers every control instruction.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// LoadLatency covers LDR when no data cache is configured or the value
	// is forwarded from the store buffer.
	LoadLatency uint64 `json:"load_latency" yaml:"load_latency"`

	// StoreLatency covers STR up to its submission to the store buffer.
	StoreLatency uint64 `json:"store_latency" yaml:"store_latency"`

	// PrintLatency covers PRINTR.
	PrintLatency uint64 `json:"print_latency" yaml:"print_latency"`
}

// DefaultTimingConfig returns a TimingConfig with every latency set to 1.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:      1,
		MultiplyLatency: 1,
		DivideLatency:   1,
		BranchLatency:   1,
		LoadLatency:     1,
		StoreLatency:    1,
		PrintLatency:    1,
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a TimingConfig from a JSON or YAML file, chosen by
// extension. Fields missing from the file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file, chosen by
// extension.
func (c *TimingConfig) SaveConfig(path string) error {
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
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	checks := []struct {
		name  string
		value uint64
	}{
		{"alu_latency", c.ALULatency},
		{"multiply_latency", c.MultiplyLatency},
		{"divide_latency", c.DivideLatency},
		{"branch_latency", c.BranchLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
		{"print_latency", c.PrintLatency},
	}

	for _, check := range checks {
		if check.value == 0 {
			return fmt.Errorf("%s must be > 0", check.name)
		}
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
