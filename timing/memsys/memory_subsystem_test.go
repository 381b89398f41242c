package memsys_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cyclesim/insts"
	"github.com/sarchlab/cyclesim/timing/memsys"
)

var _ = Describe("MemorySubsystem", func() {
	var ms *memsys.MemorySubsystem

	program := func(data map[string]insts.Data) *insts.Program {
		prog, err := insts.NewProgram([]*insts.Instr{insts.NOP}, data, 0)
		Expect(err).NotTo(HaveOccurred())
		return prog
	}

	BeforeEach(func() {
		ms = memsys.New(memsys.Config{
			MemorySize:          8,
			StoreBufferCapacity: 4,
			CommitWidth:         1,
		}, memsys.WithLogger(GinkgoLogr))
	})

	Describe("Init", func() {
		It("should zero memory and place data items", func() {
			Expect(ms.Init(program(map[string]insts.Data{
				"a": {Value: 5, Offset: 0},
				"b": {Value: -3, Offset: 2},
			}))).To(Succeed())

			Expect(ms.Memory().Snapshot()).To(Equal([]int64{5, 0, -3, 0, 0, 0, 0, 0}))
		})

		It("should reset state left by a previous program", func() {
			Expect(ms.Init(program(map[string]insts.Data{
				"a": {Value: 5, Offset: 0},
			}))).To(Succeed())
			Expect(ms.Store(3, 99, 1)).To(Succeed())
			ms.DoCycle()
			Expect(ms.Store(4, 77, 2)).To(Succeed())

			Expect(ms.Init(program(map[string]insts.Data{
				"b": {Value: 1, Offset: 1},
			}))).To(Succeed())

			Expect(ms.Memory().Snapshot()).To(Equal([]int64{0, 1, 0, 0, 0, 0, 0, 0}))
			Expect(ms.Drained()).To(BeTrue())
			Expect(ms.Stats()).To(Equal(memsys.Statistics{}))
			Expect(ms.Store(4, 1, 1)).To(Succeed())
		})

		It("should fail when the data does not fit", func() {
			err := ms.Init(program(map[string]insts.Data{
				"x": {Value: 1, Offset: 8},
			}))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Load", func() {
		BeforeEach(func() {
			Expect(ms.Init(program(map[string]insts.Data{
				"v": {Value: 7, Offset: 0},
			}))).To(Succeed())
		})

		It("should read memory when nothing is buffered", func() {
			Expect(ms.Load(0)).To(Equal(int64(7)))
			Expect(ms.Stats().LoadsForwarded).To(BeZero())
		})

		It("should forward a buffered store before it commits", func() {
			Expect(ms.Store(0, 10, 1)).To(Succeed())

			Expect(ms.ReadRaw(0)).To(Equal(int64(7)))
			Expect(ms.Load(0)).To(Equal(int64(10)))
			Expect(ms.Stats().LoadsForwarded).To(Equal(uint64(1)))
		})

		It("should observe the committed sequence of values", func() {
			Expect(ms.Store(0, 10, 1)).To(Succeed())
			Expect(ms.Store(0, 20, 2)).To(Succeed())
			Expect(ms.Load(0)).To(Equal(int64(20)))

			ms.DoCycle()
			Expect(ms.ReadRaw(0)).To(Equal(int64(10)))
			Expect(ms.Load(0)).To(Equal(int64(20)))

			ms.DoCycle()
			Expect(ms.ReadRaw(0)).To(Equal(int64(20)))
			Expect(ms.Drained()).To(BeTrue())
			Expect(ms.Stats().StoresCommitted).To(Equal(uint64(2)))
		})
	})

	Describe("Store", func() {
		BeforeEach(func() {
			Expect(ms.Init(program(nil))).To(Succeed())
		})

		It("should apply backpressure when the buffer is full", func() {
			for i := 1; i <= 4; i++ {
				Expect(ms.Store(1, int64(i), uint64(i))).To(Succeed())
			}
			Expect(ms.CanStore()).To(BeFalse())
			Expect(ms.Store(1, 5, 5)).To(MatchError(memsys.ErrStoreBufferFull))
			Expect(ms.Stats().StoresRejected).To(Equal(uint64(1)))

			ms.DoCycle()
			Expect(ms.CanStore()).To(BeTrue())
			Expect(ms.Store(1, 5, 5)).To(Succeed())
		})

		It("should panic on an address outside memory", func() {
			Expect(func() { _ = ms.Store(8, 1, 1) }).To(Panic())
		})
	})
})
