// Package checkpoint keeps the final memory image of simulated programs so
// that later runs of the same program can be compared against them.
package checkpoint

import (
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/sarchlab/cyclesim/insts"
)

// Key identifies a program.
type Key [blake2b.Size256]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Fingerprint hashes the instruction listing, the entry point and the data
// table of prog. Source locations do not contribute, so reformatting a source
// file keeps its key.
func Fingerprint(prog *insts.Program) Key {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(fmt.Sprintf("blake2b: %v", err))
	}

	_, _ = fmt.Fprintf(h, "entry %d\n", prog.EntryPoint())
	for i, instr := range prog.Code() {
		_, _ = fmt.Fprintf(h, "%d %s sinks %v sources %v\n",
			i, instr.Opcode(), instr.Sinks(), instr.Sources())
	}

	names := prog.DataNames()
	sort.Strings(names)
	for _, name := range names {
		d, _ := prog.Data(name)
		_, _ = fmt.Fprintf(h, "data %s %d %d\n", name, d.Offset, d.Value)
	}

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}
