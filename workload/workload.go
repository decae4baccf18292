// Package workload produces host requests, either from synthetic generators
// or from a trace file, and drives them into a translation layer as
// simulation events.
package workload

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/sim"
)

// The workload kinds.
const (
	KindSequential = "sequential"
	KindRandom     = "random"
	KindMixed      = "mixed"
	KindTrace      = "trace"
)

// Request is a host request arriving at the drive.
type Request struct {
	Time    sim.VTimeInSec
	Kind    ftl.RequestKind
	Sector  int64
	Sectors int
}

// A Generator hands out requests in arrival order.
type Generator interface {
	// Next returns the next request. It returns false when the workload is
	// exhausted.
	Next() (Request, bool)

	// Total returns the number of requests the generator produces.
	Total() int
}

// Options select and shape a workload.
type Options struct {
	Kind              string
	Requests          int
	SectorsPerRequest int
	ReadRatio         float64
	DiscardRatio      float64
	Interarrival      sim.VTimeInSec
	Seed              int64
	TraceFile         string

	// Footprint is the number of sectors, counted from sector 0, that the
	// synthetic generators touch.
	Footprint int64
}

// ErrOptions is returned for workload options that cannot produce requests.
var ErrOptions = errors.New("invalid workload options")

// New creates the generator the options describe.
func New(o Options) (Generator, error) {
	switch o.Kind {
	case KindTrace:
		return LoadTrace(o.TraceFile)
	case KindSequential, KindRandom, KindMixed:
		return newSynthetic(o)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrOptions, o.Kind)
	}
}

type sliceGenerator struct {
	requests []Request
	next     int
}

// FromRequests creates a generator that replays a list of requests. The
// requests must be sorted by time.
func FromRequests(requests []Request) Generator {
	return &sliceGenerator{requests: requests}
}

func (g *sliceGenerator) Next() (Request, bool) {
	if g.next >= len(g.requests) {
		return Request{}, false
	}

	r := g.requests[g.next]
	g.next++

	return r, true
}

func (g *sliceGenerator) Total() int {
	return len(g.requests)
}
