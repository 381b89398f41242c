package emu_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
)

var (
	r    = insts.Register
	imm  = insts.Immediate
	mem  = insts.Memory
	code = insts.Code
	op   = insts.MustCreate
)

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
	)

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		e = emu.NewEmulator(
			emu.WithStdout(stdoutBuf),
			emu.WithMemorySize(16),
		)
	})

	load := func(data map[string]insts.Data, code ...*insts.Instr) {
		prog, err := insts.NewProgram(code, data, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.LoadProgram(prog)).To(Succeed())
	}

	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory().Size()).To(Equal(16))
		})

		It("should refuse to step without a program", func() {
			Expect(errors.Is(e.Step().Err, emu.ErrNoProgram)).To(BeTrue())
		})
	})

	Describe("LoadProgram", func() {
		It("should set the PC to the entry point and load data", func() {
			prog, err := insts.NewProgram(
				[]*insts.Instr{insts.NOP, insts.EXIT},
				map[string]insts.Data{"a": {Value: 7, Offset: 2}}, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(e.LoadProgram(prog)).To(Succeed())
			Expect(e.RegFile().PC()).To(Equal(1))
			Expect(e.Memory().Read(2)).To(Equal(insts.Word(7)))
		})
	})

	Describe("Step", func() {
		It("should execute an ALU instruction and advance PC", func() {
			load(nil, op(insts.OpMOV, r(1), imm(10)), op(insts.OpADD, r(0), r(1), imm(5)), insts.EXIT)

			Expect(e.Step().Err).To(BeNil())
			result := e.Step()

			Expect(result.Err).To(BeNil())
			Expect(result.Exited).To(BeFalse())
			Expect(e.RegFile().ReadReg(0)).To(Equal(insts.Word(15)))
			Expect(e.RegFile().PC()).To(Equal(2))
		})

		It("should load and store memory directly", func() {
			load(map[string]insts.Data{"a": {Value: 3, Offset: 0}, "b": {Offset: 1}},
				op(insts.OpLDR, r(0), mem(0)),
				op(insts.OpMUL, r(0), r(0), imm(4)),
				op(insts.OpSTR, r(0), mem(1)),
				insts.EXIT,
			)

			Expect(e.Run()).To(Succeed())
			Expect(e.Memory().Read(1)).To(Equal(insts.Word(12)))
			Expect(e.InstructionCount()).To(Equal(uint64(4)))
		})

		It("should stop at EXIT", func() {
			load(nil, insts.EXIT)

			Expect(e.Step().Exited).To(BeTrue())
			Expect(e.Halted()).To(BeTrue())
			Expect(e.Step().Exited).To(BeTrue())
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should print registers", func() {
			load(nil, op(insts.OpMOV, r(3), imm(-8)), op(insts.OpPRINTR, r(3)), insts.EXIT)

			Expect(e.Run()).To(Succeed())
			Expect(stdoutBuf.String()).To(Equal("R3=-8\n"))
		})
	})

	Describe("control flow", func() {
		It("should loop with CMP and BLT", func() {
			load(nil,
				op(insts.OpMOV, r(0), imm(0)),
				op(insts.OpADD, r(0), r(0), imm(1)),
				op(insts.OpCMP, r(0), imm(5)),
				op(insts.OpBLT, code(1)),
				insts.EXIT,
			)

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(0)).To(Equal(insts.Word(5)))
		})

		It("should count down with CBNZ", func() {
			load(nil,
				op(insts.OpMOV, r(0), imm(3)),
				op(insts.OpADD, r(1), r(1), imm(2)),
				op(insts.OpSUB, r(0), r(0), imm(1)),
				op(insts.OpCBNZ, r(0), code(1)),
				insts.EXIT,
			)

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(1)).To(Equal(insts.Word(6)))
		})

		It("should call and return with BL and BX", func() {
			load(nil,
				op(insts.OpBL, code(3)),
				op(insts.OpPRINTR, r(0)),
				op(insts.OpB, code(5)),
				op(insts.OpMOV, r(0), imm(42)),
				op(insts.OpBX, r(insts.LR)),
				insts.EXIT,
			)

			Expect(e.Run()).To(Succeed())
			Expect(stdoutBuf.String()).To(Equal("R0=42\n"))
			Expect(e.RegFile().ReadReg(insts.LR)).To(Equal(insts.Word(1)))
		})

		It("should take CBZ only on zero", func() {
			load(nil,
				op(insts.OpCBZ, r(0), code(2)),
				op(insts.OpMOV, r(1), imm(1)),
				op(insts.OpMOV, r(2), imm(1)),
				insts.EXIT,
			)

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(1)).To(Equal(insts.Word(0)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(insts.Word(1)))
		})

		It("should jump when a data operation writes PC", func() {
			load(nil,
				op(insts.OpMOV, r(insts.PC), imm(2)),
				op(insts.OpMOV, r(1), imm(1)),
				insts.EXIT,
			)

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(1)).To(Equal(insts.Word(0)))
		})

		It("should fail when BX leaves the code", func() {
			load(nil, op(insts.OpMOV, r(0), imm(10)), op(insts.OpBX, r(0)), insts.EXIT)

			err := e.Run()
			Expect(errors.Is(err, emu.ErrPCOutOfRange)).To(BeTrue())
		})

		It("should fail when running past the last instruction", func() {
			load(nil, insts.NOP)
			Expect(errors.Is(e.Run(), emu.ErrPCOutOfRange)).To(BeTrue())
		})
	})

	It("should honour the instruction limit", func() {
		e = emu.NewEmulator(emu.WithStdout(stdoutBuf), emu.WithMaxInstructions(10))
		load(nil, op(insts.OpB, code(0)))

		Expect(errors.Is(e.Run(), emu.ErrMaxInstructions)).To(BeTrue())
		Expect(e.InstructionCount()).To(Equal(uint64(10)))
	})
})
