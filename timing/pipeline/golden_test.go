package pipeline_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/timing/cache"
)

func sumLoop() *insts.Program {
	return mustProgram(map[string]insts.Data{
		"n":   {Value: 5, Offset: 0},
		"sum": {Value: 0, Offset: 1},
	},
		op(insts.OpMOV, r(0), imm(0)),
		op(insts.OpMOV, r(1), imm(0)),
		op(insts.OpLDR, r(2), mem(0)),
		op(insts.OpCMP, r(0), r(2)),
		op(insts.OpBGE, code(10)),
		op(insts.OpADD, r(1), r(1), r(0)),
		op(insts.OpSTR, r(1), mem(1)),
		op(insts.OpLDR, r(3), mem(1)),
		op(insts.OpADD, r(0), r(0), imm(1)),
		op(insts.OpB, code(3)),
		op(insts.OpPRINTR, r(3)),
		insts.EXIT,
	)
}

func call() *insts.Program {
	return mustProgram(map[string]insts.Data{"x": {Offset: 0}},
		op(insts.OpMOV, r(0), imm(6)),
		op(insts.OpBL, code(5)),
		op(insts.OpPRINTR, r(0)),
		op(insts.OpSTR, r(0), mem(0)),
		insts.EXIT,
		op(insts.OpMUL, r(0), r(0), r(0)),
		op(insts.OpSUB, r(0), r(0), imm(1)),
		op(insts.OpBX, r(insts.LR)),
	)
}

func arithmetic() *insts.Program {
	return mustProgram(nil,
		op(insts.OpMOV, r(0), imm(-7)),
		op(insts.OpMOV, r(1), imm(2)),
		op(insts.OpSDIV, r(2), r(0), r(1)),
		op(insts.OpNEG, r(3), r(2)),
		op(insts.OpEOR, r(4), r(3), imm(15)),
		op(insts.OpMVN, r(5), r(4)),
		op(insts.OpCMP, r(5), imm(0)),
		op(insts.OpBLT, code(9)),
		op(insts.OpMOV, r(6), imm(1)),
		op(insts.OpCBZ, r(6), code(11)),
		op(insts.OpMOV, r(7), imm(99)),
		op(insts.OpPRINTR, r(2)),
		insts.EXIT,
	)
}

func storeStorm() *insts.Program {
	return mustProgram(map[string]insts.Data{
		"a": {Value: 1, Offset: 0},
		"b": {Value: 2, Offset: 1},
		"c": {Value: 3, Offset: 5},
	},
		op(insts.OpMOV, r(0), imm(3)),
		op(insts.OpLDR, r(1), mem(0)),
		op(insts.OpLDR, r(2), mem(1)),
		op(insts.OpADD, r(1), r(1), r(2)),
		op(insts.OpSTR, r(1), mem(0)),
		op(insts.OpSTR, r(1), mem(1)),
		op(insts.OpSTR, r(2), mem(5)),
		op(insts.OpLDR, r(2), mem(0)),
		op(insts.OpSUB, r(0), r(0), imm(1)),
		op(insts.OpCBNZ, r(0), code(1)),
		op(insts.OpLDR, r(4), mem(5)),
		op(insts.OpPRINTR, r(4)),
		insts.EXIT,
	)
}

type variant func(*machine)

var _ = Describe("Pipeline against the functional emulator", func() {
	programs := map[string]func() *insts.Program{
		"sum loop":    sumLoop,
		"call":        call,
		"arithmetic":  arithmetic,
		"store storm": storeStorm,
	}

	check := func(prog *insts.Program, v variant) {
		refOut := &bytes.Buffer{}
		ref := emu.NewEmulator(emu.WithStdout(refOut), emu.WithMemorySize(testMemorySize))
		Expect(ref.LoadProgram(prog)).To(Succeed())
		Expect(ref.Run()).To(Succeed())

		m := defaultMachine()
		v(m)
		p := m.build(prog)
		Expect(p.Run()).To(Succeed())

		Expect(p.Stats().Instructions).To(Equal(ref.InstructionCount()))
		Expect(m.ms.Memory().Snapshot()).To(Equal(ref.Memory().Snapshot()))
		Expect(m.stdout.String()).To(Equal(refOut.String()))
		for id := 0; id < insts.RegisterCount; id++ {
			reg := insts.RegisterID(id)
			Expect(p.RegFile().ReadReg(reg)).To(Equal(ref.RegFile().ReadReg(reg)), reg.String())
		}
	}

	variants := map[string]variant{
		"default": func(*machine) {},
		"tiny queue": func(m *machine) {
			m.queueCapacity = 1
		},
		"single-entry slow store buffer": func(m *machine) {
			m.sbCapacity = 1
			m.commitLatency = 4
		},
		"wide commit": func(m *machine) {
			m.sbCapacity = 4
			m.commitWidth = 2
			m.commitLatency = 3
		},
		"slow execution": func(m *machine) {
			m.timing.ALULatency = 2
			m.timing.MultiplyLatency = 4
			m.timing.DivideLatency = 7
			m.timing.BranchLatency = 3
			m.timing.LoadLatency = 2
		},
		"data cache": func(m *machine) {
			config := cache.DefaultConfig()
			m.dcache = &config
			m.commitLatency = 2
		},
	}

	for progName, build := range programs {
		for variantName, v := range variants {
			It("should match on "+progName+" with "+variantName, func() {
				check(build(), v)
			})
		}
	}
})
