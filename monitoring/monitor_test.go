package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
)

type sampleStruct struct {
	field1 int
	field2 string
	field3 *sampleStruct
	field4 []sampleStruct
}

func smallGeometry() nand.Geometry {
	return nand.Geometry{
		PageSize:       512,
		SectorSize:     512,
		PagesPerBlock:  4,
		BlocksPerFlash: 4,
		FlashCount:     2,
		PlanesPerFlash: 1,
		ChannelCount:   1,
	}
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	return w
}

func decode(w *httptest.ResponseRecorder, v interface{}) {
	ExpectWithOffset(1, json.Unmarshal(w.Body.Bytes(), v)).To(Succeed())
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		engine *sim.SerialEngine
		flash  *nand.Flash
		f      *ftl.FTL
		router http.Handler
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		flash = nand.MakeBuilder().
			WithGeometry(smallGeometry()).
			WithClock(engine).
			Build("Flash")
		f = ftl.MakeBuilder().
			WithGeometry(smallGeometry()).
			WithDevice(flash).
			Build("FTL")

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterFTL(f)
		m.RegisterDevice(flash)
		router = m.Router()

		Expect(f.Write(0, 2, make([]byte, 1024))).To(Succeed())
	})

	It("should need an engine for engine routes", func() {
		bare := NewMonitor().Router()

		Expect(get(bare, "/api/now").Code).To(Equal(http.StatusServiceUnavailable))
		Expect(get(bare, "/api/run").Code).To(Equal(http.StatusServiceUnavailable))
		Expect(get(bare, "/api/ftl/stats").Code).To(Equal(http.StatusNotFound))
		Expect(get(bare, "/api/nand/stats").Code).To(Equal(http.StatusNotFound))
	})

	It("should report the current time", func() {
		w := get(router, "/api/now")

		var rsp struct{ Now float64 }
		decode(w, &rsp)
		Expect(rsp.Now).To(Equal(0.0))
	})

	It("should pause and continue the engine", func() {
		Expect(get(router, "/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get(router, "/api/continue").Code).To(Equal(http.StatusOK))
	})

	It("should run the engine in the background", func() {
		Expect(get(router, "/api/run").Code).To(Equal(http.StatusAccepted))

		Eventually(func() bool {
			m.runLock.Lock()
			defer m.runLock.Unlock()

			return m.running
		}).Should(BeFalse())
		Expect(m.runErr).NotTo(HaveOccurred())
	})

	It("should report the ftl stats", func() {
		w := get(router, "/api/ftl/stats")
		Expect(w.Code).To(Equal(http.StatusOK))

		var rsp map[string]interface{}
		decode(w, &rsp)
		Expect(rsp["writes"]).To(BeEquivalentTo(1))
		Expect(rsp["host_write_pages"]).To(BeEquivalentTo(2))
		Expect(rsp["write_amplification"]).To(BeEquivalentTo(1))
	})

	It("should list the blocks", func() {
		w := get(router, "/api/ftl/blocks")

		var blocks []map[string]interface{}
		decode(w, &blocks)
		Expect(blocks).To(HaveLen(8))
		Expect(blocks[3]["pbn"]).To(BeEquivalentTo(3))
	})

	It("should sort the blocks by valid pages", func() {
		w := get(router, "/api/ftl/blocks?sort=valid&limit=2")

		var blocks []map[string]interface{}
		decode(w, &blocks)
		Expect(blocks).To(HaveLen(2))
		Expect(blocks[0]["type"]).To(Equal("data"))
		Expect(blocks[1]["type"]).To(Equal("data"))
	})

	It("should page through the blocks", func() {
		w := get(router, "/api/ftl/blocks?offset=6&limit=5")

		var blocks []map[string]interface{}
		decode(w, &blocks)
		Expect(blocks).To(HaveLen(2))
		Expect(blocks[0]["pbn"]).To(BeEquivalentTo(6))
	})

	It("should reject bad block queries", func() {
		Expect(get(router, "/api/ftl/blocks?sort=age").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get(router, "/api/ftl/blocks?limit=x").Code).
			To(Equal(http.StatusBadRequest))
		Expect(get(router, "/api/ftl/blocks?offset=-1").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should report one block", func() {
		w := get(router, "/api/ftl/block/0")
		Expect(w.Code).To(Equal(http.StatusOK))

		var block map[string]interface{}
		decode(w, &block)
		Expect(block["pbn"]).To(BeEquivalentTo(0))

		Expect(get(router, "/api/ftl/block/99").Code).To(Equal(http.StatusNotFound))
		Expect(get(router, "/api/ftl/block/x").Code).To(Equal(http.StatusBadRequest))
	})

	It("should check the invariants", func() {
		w := get(router, "/api/ftl/invariants")

		var rsp invariantsRsp
		decode(w, &rsp)
		Expect(rsp.OK).To(BeTrue())
		Expect(rsp.Error).To(BeEmpty())
	})

	It("should report the nand stats", func() {
		w := get(router, "/api/nand/stats")

		var rsp nand.Stats
		decode(w, &rsp)
		Expect(rsp.PagePrograms).To(Equal(uint64(2)))
	})

	It("should list and serialize components", func() {
		var names []string
		decode(get(router, "/api/list_components"), &names)
		Expect(names).To(Equal([]string{"FTL", "Flash"}))

		Expect(get(router, "/api/component/Flash").Code).To(Equal(http.StatusOK))
		Expect(get(router, "/api/component/Nope").Code).To(Equal(http.StatusNotFound))
	})

	It("should reject bad field paths", func() {
		req := url.PathEscape(`{"comp_name":"FTL","field_name":"nope.deeper"}`)
		Expect(get(router, "/api/field/"+req).Code).To(Equal(http.StatusBadRequest))

		Expect(get(router, "/api/field/"+url.PathEscape("{")).Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should report progress bars", func() {
		bar := m.CreateProgressBar("requests", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		var bars []progressBarRsp
		decode(get(router, "/api/progress"), &bars)
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("requests"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		decode(get(router, "/api/progress"), &bars)
		Expect(bars).To(BeEmpty())
	})

	It("should report process resources", func() {
		w := get(router, "/api/resource")
		Expect(w.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		decode(w, &rsp)
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the page", func() {
		w := get(router, "/")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("ftlsim monitor"))
	})

	It("should start and stop the server", func() {
		addr, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(m.StopServer()).To(Succeed()) }()

		rsp, err := http.Get(addr + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})

	Context("when walking fields", func() {
		It("should walk int fields", func() {
			s := &sampleStruct{field1: 1}

			elem, err := m.walkFields(s, "field1")

			Expect(err).To(BeNil())
			Expect(elem.Kind()).To(Equal(reflect.Int))
			Expect(elem.Int()).To(Equal(int64(1)))
		})

		It("should walk string fields", func() {
			s := &sampleStruct{field2: "abc"}

			elem, err := m.walkFields(s, "field2")

			Expect(err).To(BeNil())
			Expect(elem.Kind()).To(Equal(reflect.String))
			Expect(elem.String()).To(Equal("abc"))
		})

		It("should walk recursively", func() {
			s := &sampleStruct{field3: &sampleStruct{field1: 1}}

			elem, err := m.walkFields(s, "field3.field1")

			Expect(err).To(BeNil())
			Expect(elem.Int()).To(Equal(int64(1)))
		})

		It("should walk slices recursively", func() {
			s := &sampleStruct{
				field4: []sampleStruct{{
					field4: []sampleStruct{{field1: 1}},
				}, {}},
			}

			elem, err := m.walkFields(s, "field4.0.field4.0.field1")

			Expect(err).To(BeNil())
			Expect(elem.Int()).To(Equal(int64(1)))
		})

		It("should fail on missing fields and indexes", func() {
			s := &sampleStruct{field4: []sampleStruct{{}}}

			_, err := m.walkFields(s, "field9")
			Expect(err).To(HaveOccurred())

			_, err = m.walkFields(s, "field4.3")
			Expect(err).To(HaveOccurred())

			_, err = m.walkFields(s, "field3.field1")
			Expect(err).To(HaveOccurred())
		})

		It("should walk the fields of the ftl", func() {
			elem, err := m.walkFields(f, "stats")

			Expect(err).To(BeNil())
			Expect(elem.Type()).To(Equal(reflect.TypeOf(ftl.Stats{})))
		})
	})
})
