package pipeline_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/timing/cache"
	"github.com/sarchlab/cyclesim/timing/latency"
	"github.com/sarchlab/cyclesim/timing/memsys"
	"github.com/sarchlab/cyclesim/timing/pipeline"
)

const testMemorySize = 16

type machine struct {
	queueCapacity int
	sbCapacity    int
	commitWidth   int
	commitLatency int
	timing        *latency.TimingConfig
	dcache        *cache.Config
	maxCycles     uint64
	stdout        *bytes.Buffer
	ms            *memsys.MemorySubsystem
}

func defaultMachine() *machine {
	return &machine{
		queueCapacity: 8,
		sbCapacity:    16,
		commitWidth:   1,
		commitLatency: 1,
		timing:        latency.DefaultTimingConfig(),
	}
}

func (m *machine) build(prog *insts.Program) *pipeline.Pipeline {
	m.stdout = &bytes.Buffer{}
	m.ms = memsys.New(memsys.Config{
		MemorySize:          testMemorySize,
		StoreBufferCapacity: m.sbCapacity,
		CommitWidth:         m.commitWidth,
		CommitLatency:       m.commitLatency,
	}, memsys.WithLogger(GinkgoLogr))
	Expect(m.ms.Init(prog)).To(Succeed())

	opts := []pipeline.PipelineOption{
		pipeline.WithLogger(GinkgoLogr),
		pipeline.WithStdout(m.stdout),
		pipeline.WithQueueCapacity(m.queueCapacity),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(m.timing)),
		pipeline.WithMaxCycles(m.maxCycles),
	}
	if m.dcache != nil {
		opts = append(opts, pipeline.WithDCache(*m.dcache))
	}

	return pipeline.NewPipeline(prog, m.ms, opts...)
}

var _ = Describe("Pipeline", func() {
	var m *machine

	BeforeEach(func() {
		m = defaultMachine()
	})

	Describe("Timing", func() {
		It("should take one cycle per instruction plus fill", func() {
			p := m.build(mustProgram(nil,
				op(insts.OpMOV, r(0), imm(1)),
				insts.EXIT,
			))

			Expect(p.Run()).To(Succeed())
			stats := p.Stats()
			Expect(stats.Cycles).To(Equal(uint64(3)))
			Expect(stats.Instructions).To(Equal(uint64(2)))
			Expect(stats.CPI()).To(BeNumerically("~", 1.5))
			Expect(p.Halted()).To(BeTrue())
			Expect(p.Done()).To(BeTrue())
		})

		It("should stall fetch behind an unresolved branch", func() {
			m.timing.BranchLatency = 3
			p := m.build(mustProgram(nil,
				op(insts.OpB, code(2)),
				insts.NOP,
				insts.EXIT,
			))

			Expect(p.Run()).To(Succeed())
			stats := p.Stats()
			Expect(stats.Cycles).To(Equal(uint64(5)))
			Expect(stats.Instructions).To(Equal(uint64(2)))
			Expect(stats.ControlStalls).To(Equal(uint64(2)))
			Expect(stats.LatencyStalls).To(Equal(uint64(2)))
		})

		It("should apply backpressure when the queue is full", func() {
			m.queueCapacity = 1
			m.timing.ALULatency = 2
			p := m.build(mustProgram(nil,
				op(insts.OpMOV, r(0), imm(1)),
				op(insts.OpMOV, r(1), imm(2)),
				insts.EXIT,
			))

			Expect(p.Run()).To(Succeed())
			stats := p.Stats()
			Expect(stats.Cycles).To(Equal(uint64(6)))
			Expect(stats.QueueFullStalls).To(Equal(uint64(2)))
			Expect(stats.LatencyStalls).To(Equal(uint64(2)))
		})

		It("should stall stores while the store buffer is full", func() {
			m.sbCapacity = 1
			m.commitLatency = 3
			p := m.build(mustProgram(map[string]insts.Data{
				"a": {Offset: 0},
				"b": {Offset: 1},
			},
				op(insts.OpMOV, r(0), imm(5)),
				op(insts.OpSTR, r(0), mem(0)),
				op(insts.OpSTR, r(0), mem(1)),
				insts.EXIT,
			))

			Expect(p.Run()).To(Succeed())
			stats := p.Stats()
			Expect(stats.StoreStalls).To(Equal(uint64(2)))
			Expect(stats.StoresCommitted).To(Equal(uint64(2)))
			Expect(stats.Cycles).To(Equal(uint64(8)))
			Expect(m.ms.ReadRaw(0)).To(Equal(int64(5)))
			Expect(m.ms.ReadRaw(1)).To(Equal(int64(5)))
		})

		It("should keep ticking after EXIT until stores drain", func() {
			m.commitLatency = 4
			p := m.build(mustProgram(map[string]insts.Data{"a": {Offset: 0}},
				op(insts.OpMOV, r(0), imm(9)),
				op(insts.OpSTR, r(0), mem(0)),
				insts.EXIT,
			))

			for !p.Halted() {
				p.Tick()
			}
			Expect(p.Done()).To(BeFalse())
			Expect(m.ms.ReadRaw(0)).To(BeZero())

			Expect(p.Run()).To(Succeed())
			Expect(m.ms.ReadRaw(0)).To(Equal(int64(9)))
			Expect(p.Stats().Instructions).To(Equal(uint64(3)))
		})
	})

	Describe("Store forwarding", func() {
		prog := func() *insts.Program {
			return mustProgram(map[string]insts.Data{"a": {Value: 1, Offset: 0}},
				op(insts.OpMOV, r(0), imm(7)),
				op(insts.OpSTR, r(0), mem(0)),
				op(insts.OpLDR, r(1), mem(0)),
				insts.EXIT,
			)
		}

		It("should forward a buffered store to a later load", func() {
			m.commitLatency = 3
			p := m.build(prog())

			Expect(p.Run()).To(Succeed())
			Expect(p.RegFile().ReadReg(1)).To(Equal(int64(7)))
			Expect(p.Stats().LoadsForwarded).To(Equal(uint64(1)))
		})

		It("should read memory once the store has committed", func() {
			p := m.build(prog())

			Expect(p.Run()).To(Succeed())
			Expect(p.RegFile().ReadReg(1)).To(Equal(int64(7)))
			Expect(p.Stats().LoadsForwarded).To(BeZero())
		})
	})

	Describe("Data cache", func() {
		It("should charge miss latency on cold loads and hit latency after", func() {
			m.dcache = &cache.Config{
				Size:          8,
				Associativity: 1,
				BlockSize:     4,
				HitLatency:    1,
				MissLatency:   5,
			}
			p := m.build(mustProgram(map[string]insts.Data{
				"a": {Value: 3, Offset: 0},
				"b": {Value: 4, Offset: 1},
			},
				op(insts.OpLDR, r(0), mem(0)),
				op(insts.OpLDR, r(1), mem(1)),
				insts.EXIT,
			))

			Expect(p.Run()).To(Succeed())
			stats := p.Stats()
			Expect(stats.CacheMisses).To(Equal(uint64(1)))
			Expect(stats.CacheHits).To(Equal(uint64(1)))
			Expect(stats.LatencyStalls).To(Equal(uint64(4)))
			Expect(p.RegFile().ReadReg(1)).To(Equal(int64(4)))
		})
	})

	Describe("Errors", func() {
		It("should stop at the cycle limit", func() {
			m.maxCycles = 50
			p := m.build(mustProgram(nil, op(insts.OpB, code(0))))

			err := p.Run()
			Expect(err).To(MatchError(pipeline.ErrMaxCyclesExceeded))
			Expect(p.Stats().Cycles).To(Equal(uint64(50)))
		})

		It("should fail when execution runs off the end of the program", func() {
			p := m.build(mustProgram(nil, op(insts.OpMOV, r(0), imm(1))))

			Expect(p.Run()).To(MatchError(emu.ErrPCOutOfRange))
			Expect(p.Err()).To(HaveOccurred())
			Expect(p.RunCycles(10)).To(BeFalse())
		})

		It("should fail when a branch leaves the program", func() {
			p := m.build(mustProgram(nil,
				op(insts.OpMOV, r(insts.LR), imm(40)),
				op(insts.OpBX, r(insts.LR)),
				insts.EXIT,
			))

			Expect(p.Run()).To(MatchError(ContainSubstring("40")))
		})
	})

	Describe("RunCycles and Reset", func() {
		It("should run a bounded number of cycles", func() {
			p := m.build(mustProgram(nil,
				op(insts.OpMOV, r(0), imm(1)),
				op(insts.OpMOV, r(0), imm(2)),
				insts.EXIT,
			))

			Expect(p.RunCycles(2)).To(BeTrue())
			Expect(p.Stats().Cycles).To(Equal(uint64(2)))
			Expect(p.PC()).To(Equal(1))

			Expect(p.RunCycles(10)).To(BeFalse())
			Expect(p.RegFile().ReadReg(0)).To(Equal(int64(2)))
		})

		It("should run the program again after reset", func() {
			p := m.build(mustProgram(map[string]insts.Data{"a": {Value: 1, Offset: 0}},
				op(insts.OpLDR, r(0), mem(0)),
				op(insts.OpADD, r(0), r(0), imm(1)),
				op(insts.OpSTR, r(0), mem(0)),
				op(insts.OpPRINTR, r(0)),
				insts.EXIT,
			))

			Expect(p.Run()).To(Succeed())
			first := p.Stats()

			Expect(p.Reset()).To(Succeed())
			Expect(p.Run()).To(Succeed())

			Expect(p.Stats()).To(Equal(first))
			Expect(m.ms.ReadRaw(0)).To(Equal(int64(2)))
			Expect(m.stdout.String()).To(Equal("R0=2\nR0=2\n"))
		})
	})
})
