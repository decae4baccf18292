package workload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/sim"
)

const sampleTrace = `# time_us op sector length
0 W 0 8

20.5 r 8 4
10 D 16 2
`

var _ = Describe("Trace", func() {
	It("should parse a trace", func() {
		reqs, err := ParseTrace(strings.NewReader(sampleTrace))

		Expect(err).NotTo(HaveOccurred())
		Expect(reqs).To(Equal([]Request{
			{Time: 0, Kind: ftl.RequestWrite, Sector: 0, Sectors: 8},
			{Time: sim.Micro(10), Kind: ftl.RequestDiscard, Sector: 16, Sectors: 2},
			{Time: sim.Micro(20.5), Kind: ftl.RequestRead, Sector: 8, Sectors: 4},
		}))
	})

	DescribeTable("should report the bad line",
		func(line string) {
			_, err := ParseTrace(strings.NewReader("0 W 0 1\n" + line + "\n"))

			var formatErr *TraceFormatError
			Expect(errors.As(err, &formatErr)).To(BeTrue())
			Expect(formatErr.Line).To(Equal(2))
		},
		Entry("missing field", "0 W 0"),
		Entry("bad time", "abc W 0 1"),
		Entry("negative time", "-1 W 0 1"),
		Entry("bad op", "0 X 0 1"),
		Entry("bad sector", "0 W -4 1"),
		Entry("zero length", "0 W 0 0"),
	)

	It("should load a trace file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace.txt")
		Expect(os.WriteFile(path, []byte(sampleTrace), 0o644)).To(Succeed())

		g, err := New(Options{Kind: KindTrace, TraceFile: path})

		Expect(err).NotTo(HaveOccurred())
		Expect(g.Total()).To(Equal(3))
		Expect(drain(g)).To(HaveLen(3))
	})

	It("should fail on a missing trace file", func() {
		_, err := LoadTrace(filepath.Join(GinkgoT().TempDir(), "none.txt"))

		Expect(err).To(MatchError(os.ErrNotExist))
	})
})
