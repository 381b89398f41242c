// Package cache models the timing of an L1 data cache on top of akita's cache
// directory. The model is tag-only: values always live in the memory
// subsystem, and the cache only decides how long a load takes.
package cache

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/cyclesim/insts"
)

// wordBytes is the byte width of one memory word. Word addresses are scaled
// by it before reaching the directory, which indexes sets by byte address.
const wordBytes = 8

// Config holds cache configuration parameters. Sizes are in words.
type Config struct {
	// Size is the cache capacity in words.
	Size int `json:"size" yaml:"size"`
	// Associativity is the number of ways per set.
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize is the number of words per cache line.
	BlockSize int `json:"block_size" yaml:"block_size"`
	// HitLatency is the load latency on a hit, in cycles.
	HitLatency uint64 `json:"hit_latency" yaml:"hit_latency"`
	// MissLatency is the load latency on a miss, in cycles.
	MissLatency uint64 `json:"miss_latency" yaml:"miss_latency"`
}

// DefaultConfig returns a small two-way L1 data cache suited to
// the default 1024-word memory.
func DefaultConfig() Config {
	return Config{
		Size:          64,
		Associativity: 2,
		BlockSize:     4,
		HitLatency:    1,
		MissLatency:   10,
	}
}

// UnmarshalJSON decodes a config, taking DefaultConfig values for fields
// the document leaves out.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	decoded := plain(DefaultConfig())
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*c = Config(decoded)
	return nil
}

// UnmarshalYAML decodes a config, taking DefaultConfig values for fields the
// document leaves out.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	decoded := plain(DefaultConfig())
	if err := value.Decode(&decoded); err != nil {
		return err
	}
	*c = Config(decoded)
	return nil
}

// Validate checks that the geometry describes at least one full set.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Associativity <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("cache size, associativity and block size must be > 0")
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("cache size %d is not a multiple of associativity %d x block size %d",
			c.Size, c.Associativity, c.BlockSize)
	}
	if c.HitLatency == 0 {
		return fmt.Errorf("hit_latency must be > 0")
	}
	if c.MissLatency < c.HitLatency {
		return fmt.Errorf("miss_latency %d must be >= hit_latency %d", c.MissLatency, c.HitLatency)
	}
	return nil
}

// NumSets returns the number of sets implied by the geometry.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the first word address of the evicted block.
	EvictedAddr insts.Word
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads     uint64
	Writes    uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Writebacks counts dirty blocks evicted. Memory is already up to date,
	// so a writeback costs nothing and is only recorded.
	Writebacks uint64
}

// HitRate returns hits over all accesses, or 0 before the first access.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache represents an L1 data cache using Akita cache components.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a new cache. An invalid config panics; check it with Validate.
func New(config Config) *Cache {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("invalid cache config: %v", err))
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			config.BlockSize*wordBytes,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

func (c *Cache) blockAddr(addr insts.Word) uint64 {
	block := addr / insts.Word(c.config.BlockSize)
	return uint64(block) * uint64(c.config.BlockSize) * wordBytes
}

// Contains reports whether the block holding addr is resident. It does not
// touch LRU state or statistics.
func (c *Cache) Contains(addr insts.Word) bool {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	return block != nil && block.IsValid
}

// Access looks up the block holding addr, allocating it on a miss
// (write-allocate for stores too) and updating LRU order.
func (c *Cache) Access(addr insts.Word, isWrite bool) AccessResult {
	if addr < 0 {
		panic(fmt.Sprintf("cache access to negative address %d", addr))
	}

	if isWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if isWrite {
			block.IsDirty = true
		}

		return AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	return c.handleMiss(blockAddr, isWrite)
}

func (c *Cache) handleMiss(blockAddr uint64, isWrite bool) AccessResult {
	result := AccessResult{Latency: c.config.MissLatency}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = insts.Word(victim.Tag / wordBytes)

		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim)

	return result
}

// Reset invalidates all blocks and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
