package emu

import "github.com/sarchlab/cyclesim/insts"

// LoadPort supplies the value a load observes at an address. The functional
// model reads Memory directly; the timing model forwards from its store
// buffer first.
type LoadPort interface {
	Load(addr insts.Word) insts.Word
}

// StoreRequest is a memory write produced by executing a store. Executing a
// store does not touch memory; the caller decides when the write happens.
type StoreRequest struct {
	Addr  insts.Word
	Value insts.Word
}

// LoadStoreUnit implements LDR and STR.
type LoadStoreUnit struct {
	regFile *RegFile
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file.
func NewLoadStoreUnit(regFile *RegFile) *LoadStoreUnit {
	return &LoadStoreUnit{regFile: regFile}
}

// LDR performs Rd = mem[addr] through port.
func (lsu *LoadStoreUnit) LDR(rd insts.RegisterID, addr insts.Word, port LoadPort) {
	lsu.regFile.WriteReg(rd, port.Load(addr))
}

// STR builds the request for mem[addr] = Rs.
func (lsu *LoadStoreUnit) STR(rs insts.RegisterID, addr insts.Word) StoreRequest {
	return StoreRequest{Addr: addr, Value: lsu.regFile.ReadReg(rs)}
}
