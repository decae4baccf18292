package workload

import (
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/sim"
)

// synthetic generates requests of a fixed size. Sequential requests walk the
// footprint and wrap around, random requests pick an aligned slot, and mixed
// requests flip a coin between the two, so that random jumps start new
// sequential streams.
type synthetic struct {
	opts   Options
	rng    *rand.Rand
	issued int
	cursor int64
}

func newSynthetic(o Options) (*synthetic, error) {
	if o.SectorsPerRequest <= 0 {
		return nil, fmt.Errorf("%w: %d sectors per request",
			ErrOptions, o.SectorsPerRequest)
	}

	if o.Footprint < int64(o.SectorsPerRequest) {
		return nil, fmt.Errorf("%w: footprint of %d sectors is smaller than a request",
			ErrOptions, o.Footprint)
	}

	if o.Requests < 0 || o.Interarrival < 0 {
		return nil, fmt.Errorf("%w: negative request count or interarrival",
			ErrOptions)
	}

	if o.ReadRatio < 0 || o.DiscardRatio < 0 || o.ReadRatio+o.DiscardRatio > 1 {
		return nil, fmt.Errorf("%w: read ratio %.2f and discard ratio %.2f",
			ErrOptions, o.ReadRatio, o.DiscardRatio)
	}

	seed := uint64(o.Seed)

	return &synthetic{
		opts: o,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (g *synthetic) Total() int {
	return g.opts.Requests
}

func (g *synthetic) Next() (Request, bool) {
	if g.issued >= g.opts.Requests {
		return Request{}, false
	}

	r := Request{
		Time:    sim.VTimeInSec(g.issued) * g.opts.Interarrival,
		Kind:    g.kind(),
		Sector:  g.sector(),
		Sectors: g.opts.SectorsPerRequest,
	}
	g.issued++

	return r, true
}

func (g *synthetic) kind() ftl.RequestKind {
	p := g.rng.Float64()

	switch {
	case p < g.opts.ReadRatio:
		return ftl.RequestRead
	case p < g.opts.ReadRatio+g.opts.DiscardRatio:
		return ftl.RequestDiscard
	default:
		return ftl.RequestWrite
	}
}

func (g *synthetic) sector() int64 {
	n := int64(g.opts.SectorsPerRequest)

	random := g.opts.Kind == KindRandom ||
		(g.opts.Kind == KindMixed && g.rng.IntN(2) == 0)
	if random {
		slots := g.opts.Footprint / n
		g.cursor = g.rng.Int64N(slots) * n
	}

	sector := g.cursor

	g.cursor += n
	if g.cursor+n > g.opts.Footprint {
		g.cursor = 0
	}

	return sector
}
