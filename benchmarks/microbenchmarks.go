package benchmarks

import (
	"fmt"
	"strings"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// stresses a single part of the core model.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopSimulation(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop, a
// matrix multiply and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// 20 independent ADDs spread over five registers.
func arithmeticSequential() Benchmark {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "ADD R%d, R%d, #1\n", i%5, i%5)
	}
	sb.WriteString("PRINTR R0\n")

	return Benchmark{
		Name:           "arithmetic_sequential",
		Description:    "20 independent ADD operations - measures ALU throughput",
		Source:         sb.String(),
		ExpectedOutput: "R0=4\n",
	}
}

func dependencyChain() Benchmark {
	return Benchmark{
		Name:           "dependency_chain",
		Description:    "20 dependent ADDs (R0 = R0 + 1) - measures back-to-back latency",
		Source:         buildDependencyChain(20),
		ExpectedOutput: "R0=20\n",
	}
}

func buildDependencyChain(n int) string {
	var sb strings.Builder
	sb.WriteString("MOV R0, #0\n")
	for i := 0; i < n; i++ {
		sb.WriteString("ADD R0, R0, #1\n")
	}
	sb.WriteString("PRINTR R0\n")
	return sb.String()
}

// Eight stores followed by eight loads of the same words. The loads hit the
// store buffer while the stores are still waiting to commit.
func memorySequential() Benchmark {
	var sb strings.Builder
	sb.WriteString(".data\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "buf%d: 0\n", i)
	}
	sb.WriteString(".text\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "MOV R1, #%d\nSTR R1, [buf%d]\n", i+1, i)
	}
	sb.WriteString("MOV R0, #0\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "LDR R1, [buf%d]\nADD R0, R0, R1\n", i)
	}
	sb.WriteString("PRINTR R0\n")

	return Benchmark{
		Name:           "memory_sequential",
		Description:    "8 stores then 8 loads of the same words - measures store forwarding",
		Source:         sb.String(),
		ExpectedOutput: "R0=36\n",
	}
}

func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 BL/BX call pairs - measures control serialization on calls",
		Source: `
        MOV R0, #0
        BL inc
        BL inc
        BL inc
        BL inc
        BL inc
        PRINTR R0
        B done
inc:    ADD R0, R0, #1
        BX LR
done:   NOP
`,
		ExpectedOutput: "R0=5\n",
	}
}

func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "Loop of compares and taken conditional branches",
		Source: `
        MOV R0, #0
        MOV R1, #0
loop:   CMP R0, #10
        BGE done
        CMP R0, #5
        BLT low
        ADD R1, R1, #2
        B next
low:    ADD R1, R1, #1
next:   ADD R0, R0, #1
        B loop
done:   PRINTR R1
`,
		ExpectedOutput: "R1=15\n",
	}
}

func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "Multiply, divide and bitwise operations - measures the latency table",
		Source: `
        MOV R0, #12
        MOV R1, #5
        MUL R2, R0, R1
        SDIV R3, R2, #7
        AND R4, R2, #15
        ORR R5, R4, R3
        EOR R6, R5, R0
        NEG R7, R6
        MVN R8, R7
        PRINTR R3
        PRINTR R8
`,
		// 60/7 = 8; 60&15 = 12; 12|8 = 12; 12^12 = 0; -0 = 0; ^0 = -1
		ExpectedOutput: "R3=8\nR8=-1\n",
	}
}

func matrixMultiply2x2() Benchmark {
	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 matrix multiply through memory",
		Source: `
.data
a11: 1
a12: 2
a21: 3
a22: 4
b11: 5
b12: 6
b21: 7
b22: 8
c11: 0
c12: 0
c21: 0
c22: 0

.text
        LDR R0, [a11]
        LDR R1, [a12]
        LDR R2, [a21]
        LDR R3, [a22]
        LDR R4, [b11]
        LDR R5, [b12]
        LDR R6, [b21]
        LDR R7, [b22]

        MUL R8, R0, R4
        MUL R9, R1, R6
        ADD R8, R8, R9
        STR R8, [c11]

        MUL R8, R0, R5
        MUL R9, R1, R7
        ADD R8, R8, R9
        STR R8, [c12]

        MUL R8, R2, R4
        MUL R9, R3, R6
        ADD R8, R8, R9
        STR R8, [c21]

        MUL R8, R2, R5
        MUL R9, R3, R7
        ADD R8, R8, R9
        STR R8, [c22]

        LDR R10, [c11]
        LDR R11, [c22]
        PRINTR R10
        PRINTR R11
`,
		ExpectedOutput: "R10=19\nR11=50\n",
	}
}

func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "Counted loop summing 10..1 into memory",
		Source: `
.data
n: 10
sum: 0

.text
        LDR R0, [n]
        MOV R1, #0
loop:   ADD R1, R1, R0
        SUB R0, R0, #1
        CBNZ R0, loop
        STR R1, [sum]
        LDR R2, [sum]
        PRINTR R2
`,
		ExpectedOutput: "R2=55\n",
	}
}
