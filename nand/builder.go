package nand

import (
	"log"

	"github.com/sarchlab/ftlsim/sim"
)

// Builder can build flash arrays.
type Builder struct {
	geometry  Geometry
	timing    Timing
	clock     sim.TimeTeller
	storeData bool
}

// MakeBuilder returns a Builder with a small default geometry.
func MakeBuilder() Builder {
	return Builder{
		geometry: Geometry{
			PageSize:       4096,
			SectorSize:     512,
			PagesPerBlock:  64,
			BlocksPerFlash: 256,
			FlashCount:     4,
			PlanesPerFlash: 1,
			ChannelCount:   4,
		},
		timing:    DefaultTiming(),
		storeData: true,
	}
}

// WithGeometry sets the organization of the array.
func (b Builder) WithGeometry(g Geometry) Builder {
	b.geometry = g
	return b
}

// WithTiming sets the latencies of the array.
func (b Builder) WithTiming(t Timing) Builder {
	b.timing = t
	return b
}

// WithClock sets where the array reads the current time from. Without a
// clock all operations are issued at time 0.
func (b Builder) WithClock(clock sim.TimeTeller) Builder {
	b.clock = clock
	return b
}

// WithDataStorage sets whether page payloads are kept.
func (b Builder) WithDataStorage(store bool) Builder {
	b.storeData = store
	return b
}

// Build creates a Flash with the given name.
func (b Builder) Build(name string) *Flash {
	if err := b.geometry.Validate(); err != nil {
		log.Panicf("invalid nand geometry: %v", err)
	}

	f := &Flash{
		ComponentBase: sim.NewComponentBase(name),
		geometry:      b.geometry,
		clock:         b.clock,
		storeData:     b.storeData,
		storage:       newPageStorage(b.geometry.PageSize),
		programmed:    make([]uint64, (b.geometry.TotalPages()+63)/64),
		timeline:      newTimeline(b.geometry, b.timing),
	}

	return f
}
