package loader_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cyclesim/emu"
	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/loader"
)

const sumProgram = `
; sum count..1 into total
.data
count: 5
total .word 0
mask: .word 0x10

.text
.global main
helper: NOP
main:   LDR R0, [count]
        MOV R1, #0
loop:   ADD R1, R1, R0
        SUB R0, R0, #1
        CBNZ R0, loop      // back edge
        STR R1, [total]
        PRINTR R1
        B done
        MOV R1, #-1
done:   nop
`

var _ = Describe("Parse", func() {
	It("should assemble a complete program", func() {
		prog, err := loader.Parse(sumProgram, 16)
		Expect(err).NotTo(HaveOccurred())

		Expect(prog.Len()).To(Equal(12))
		Expect(prog.EntryPoint()).To(Equal(1))
		Expect(prog.Instr(prog.Len() - 1)).To(BeIdenticalTo(insts.EXIT))

		Expect(prog.Instr(1).Opcode()).To(Equal(insts.OpLDR))
		Expect(prog.Instr(1).Loc()).To(Equal(insts.SourceLocation{Line: 11, Column: 9}))

		cbnz := prog.Instr(5)
		Expect(cbnz.Opcode()).To(Equal(insts.OpCBNZ))
		Expect(cbnz.Source(1).MustCodeAddr()).To(Equal(insts.Word(3)))

		b := prog.Instr(8)
		Expect(b.Source(0).MustCodeAddr()).To(Equal(insts.Word(10)))

		Expect(prog.Instr(9).Source(0).MustImmediate()).To(Equal(insts.Word(-1)))
		Expect(prog.Instr(10).Opcode()).To(Equal(insts.OpNOP))
	})

	It("should give data items consecutive offsets in declaration order", func() {
		prog, err := loader.Parse(sumProgram, 16)
		Expect(err).NotTo(HaveOccurred())

		Expect(prog.DataItems()).To(Equal(map[string]insts.Data{
			"count": {Value: 5, Offset: 0},
			"total": {Value: 0, Offset: 1},
			"mask":  {Value: 16, Offset: 2},
		}))
		Expect(prog.Instr(6).Sink(0).MustMemoryAddr()).To(Equal(insts.Word(1)))
	})

	It("should default the entry point to the first instruction", func() {
		prog, err := loader.Parse("MOV R0, #1\nPRINTR R0\n", 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(prog.EntryPoint()).To(Equal(0))
		Expect(prog.Len()).To(Equal(3))
		Expect(prog.DataNames()).To(BeEmpty())
	})

	It("should accept named registers and labels on their own line", func() {
		src := `
start:
    MOV SP, #64
    BL fn
    B end
fn: BX lr
end: NOP
`
		prog, err := loader.Parse(src, 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(prog.Instr(0).Sink(0).MustRegister()).To(Equal(insts.SP))
		Expect(prog.Instr(1).Source(0).MustCodeAddr()).To(Equal(insts.Word(3)))
		Expect(prog.Instr(3).Source(0).MustRegister()).To(Equal(insts.LR))
	})

	It("should produce a program the emulator can run", func() {
		prog, err := loader.Parse(sumProgram, 16)
		Expect(err).NotTo(HaveOccurred())

		out := &bytes.Buffer{}
		e := emu.NewEmulator(emu.WithStdout(out), emu.WithMemorySize(8))
		Expect(e.LoadProgram(prog)).To(Succeed())
		Expect(e.Run()).To(Succeed())

		Expect(out.String()).To(Equal("R1=15\n"))
		Expect(e.Memory().Read(1)).To(Equal(insts.Word(15)))
		Expect(e.RegFile().ReadReg(1)).To(Equal(insts.Word(15)))
	})

	DescribeTable("syntax errors",
		func(src string, generalRegs int, msg string) {
			_, err := loader.Parse(src, generalRegs)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, loader.ErrSyntax)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(msg))
		},
		Entry("unknown mnemonic", "  FOO R1", 4, `unknown mnemonic "FOO" at 1:3`),
		Entry("EXIT in source", "EXIT", 4, `unknown mnemonic "EXIT" at 1:1`),
		Entry("register beyond the configured count", "MOV R4, #1", 4, "illegal register"),
		Entry("duplicate label", "a: NOP\na: NOP", 4, `duplicate label "a" at 2:1`),
		Entry("register as label", "r2: NOP", 4, "it is a register"),
		Entry("duplicate variable", ".data\nx: 1\nx: 2", 4, `duplicate variable declaration "x" at 3:1`),
		Entry("register as variable", ".data\nsp: 1", 4, "it is a register"),
		Entry("mnemonic as variable", ".data\nadd: 1", 4, "it is a mnemonic"),
		Entry("EXIT as variable", ".data\nexit: 1", 4, "it is a mnemonic"),
		Entry("bad data value", ".data\nx: ten", 4, `invalid integer "ten" at 2:4`),
		Entry("missing data value", ".data\nx:", 4, "missing value"),
		Entry("unknown variable", "LDR R0, [nope]", 4, `unknown variable "nope" at 1:9`),
		Entry("unknown label", "B nowhere", 4, `unknown label "nowhere" at 1:3`),
		Entry("unknown entry label", ".global main\nNOP", 4, `unknown entry label "main"`),
		Entry("immediate without #", "MOV R0, 5", 4, `invalid operand "5"`),
		Entry("bad immediate", "MOV R0, #x", 4, `invalid immediate "#x"`),
		Entry("empty operand", "ADD R0, , R1", 4, "at 1:"),
		Entry("unterminated memory reference", ".data\nx: 1\n.text\nLDR R0, [x", 4, "at 4:"),
		Entry("unknown directive", ".bss", 4, `unknown directive ".bss" at 1:1`),
		Entry("argument after .data", ".data x", 4, `unexpected "x" after .data`),
		Entry(".word outside data", "x: .word 1", 4, ".word is only valid in .data"),
		Entry("second entry point", ".global a\n.global b\na: NOP", 4, `entry point already set to "a" at 2:1`),
		Entry("out of range integer", ".data\nx: 9223372036854775808", 4, "invalid integer"),
	)

	DescribeTable("integer literals",
		func(src string, want insts.Word) {
			prog, err := loader.Parse(".data\nx: 0\n.text\n"+src, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Instr(0).Source(0).MustImmediate()).To(Equal(want))
		},
		Entry("decimal", "MOV R0, #10", insts.Word(10)),
		Entry("leading zero", "MOV R0, #010", insts.Word(10)),
		Entry("leading zero with a non-octal digit", "MOV R0, #08", insts.Word(8)),
		Entry("hex", "MOV R0, #0x10", insts.Word(16)),
		Entry("negative hex", "MOV R0, #-0x10", insts.Word(-16)),
		Entry("octal prefix", "MOV R0, #0o17", insts.Word(15)),
		Entry("binary prefix", "MOV R0, #0b101", insts.Word(5)),
		Entry("most negative word", "MOV R0, #-9223372036854775808", insts.Word(-9223372036854775808)),
	)

	DescribeTable("data literals",
		func(value string, want insts.Word) {
			prog, err := loader.Parse(".data\nx: "+value+"\ny .word "+value+"\n", 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.DataItems()["x"].Value).To(Equal(want))
			Expect(prog.DataItems()["y"].Value).To(Equal(want))
		},
		Entry("leading zero", "010", insts.Word(10)),
		Entry("leading zero with a non-octal digit", "08", insts.Word(8)),
		Entry("negative", "-7", insts.Word(-7)),
		Entry("binary prefix", "0B11", insts.Word(3)),
	)

	It("should take instruction locations from the source positions", func() {
		prog, err := loader.Parse("\n  MOV R0, #1 ; set\n\tNOP\n", 4)
		Expect(err).NotTo(HaveOccurred())

		Expect(prog.Instr(0).Loc()).To(Equal(insts.SourceLocation{Line: 2, Column: 3}))
		Expect(prog.Instr(1).Loc()).To(Equal(insts.SourceLocation{Line: 3, Column: 2}))
	})

	It("should report operand count errors from instruction creation", func() {
		_, err := loader.Parse("ADD R0, R1", 4)
		Expect(errors.Is(err, insts.ErrOperandCount)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("1:1"))
	})

	It("should report operand kind errors from instruction creation", func() {
		_, err := loader.Parse(".data\nx: 1\n.text\nMOV R0, [x]", 4)
		Expect(errors.Is(err, insts.ErrOperandKind)).To(BeTrue())
	})

	It("should reject an out-of-range register count", func() {
		_, err := loader.Parse("NOP", 0)
		Expect(err).To(HaveOccurred())

		_, err = loader.Parse("NOP", insts.MaxGeneralRegisters+1)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Load", func() {
	It("should read and assemble a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "sum.s")
		Expect(os.WriteFile(path, []byte(sumProgram), 0o644)).To(Succeed())

		prog, err := loader.Load(path, 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Len()).To(Equal(12))
	})

	It("should prefix parse errors with the path", func() {
		path := filepath.Join(GinkgoT().TempDir(), "bad.s")
		Expect(os.WriteFile(path, []byte("FOO"), 0o644)).To(Succeed())

		_, err := loader.Load(path, 16)
		Expect(errors.Is(err, loader.ErrSyntax)).To(BeTrue())
		Expect(err.Error()).To(HavePrefix(path + ": "))
	})

	It("should fail on a missing file", func() {
		_, err := loader.Load(filepath.Join(GinkgoT().TempDir(), "missing.s"), 16)
		Expect(err).To(MatchError(ContainSubstring("failed to read program")))
	})
})
