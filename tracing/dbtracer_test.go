package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ftlsim/sim"
)

type memoryRecorder struct {
	tables  map[string][]any
	flushes int
}

func (r *memoryRecorder) CreateTable(name string, _ any) {
	r.tables[name] = nil
}

func (r *memoryRecorder) InsertData(name string, entry any) {
	r.tables[name] = append(r.tables[name], entry)
}

func (r *memoryRecorder) ListTables() []string {
	var names []string
	for name := range r.tables {
		names = append(names, name)
	}

	return names
}

func (r *memoryRecorder) Flush() {
	r.flushes++
}

func (r *memoryRecorder) Close() error {
	return nil
}

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		recorder   *memoryRecorder
		domain     *sim.ComponentBase
		tracer     *DBTracer
		now        sim.VTimeInSec
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		timeTeller.EXPECT().CurrentTime().DoAndReturn(func() sim.VTimeInSec {
			return now
		}).AnyTimes()

		recorder = &memoryRecorder{tables: make(map[string][]any)}
		domain = sim.NewComponentBase("FTL")
		tracer = NewDBTracer(timeTeller, recorder)
		CollectTrace(domain, tracer)
		now = 0
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write finished tasks", func() {
		now = 1
		StartTask("1", "0", domain, "req", "write", nil)
		AddTaskStep("1", domain, "gc")
		now = 2
		EndTask("1", domain)

		Expect(recorder.tables[TraceTableName]).To(ConsistOf(TraceEntry{
			ID:        "1",
			ParentID:  "0",
			Kind:      "req",
			What:      "write",
			Location:  "FTL",
			StartTime: 1,
			EndTime:   2,
			Steps:     1,
		}))
		Expect(tracer.Written()).To(Equal(uint64(1)))
	})

	It("should skip tasks outside of the time range", func() {
		tracer.SetTimeRange(5, 10)

		now = 1
		StartTask("early", "", domain, "req", "read", nil)
		now = 2
		EndTask("early", domain)

		now = 11
		StartTask("late", "", domain, "req", "read", nil)
		now = 12
		EndTask("late", domain)

		now = 4
		StartTask("overlap", "", domain, "req", "read", nil)
		now = 6
		EndTask("overlap", domain)

		Expect(recorder.tables[TraceTableName]).To(HaveLen(1))
	})

	It("should drop unfinished tasks and flush on terminate", func() {
		StartTask("1", "", domain, "req", "read", nil)
		tracer.Terminate()
		EndTask("1", domain)

		Expect(recorder.tables[TraceTableName]).To(BeEmpty())
		Expect(recorder.flushes).To(Equal(1))
	})
})
