package ftl

import (
	"log"
	"log/slog"

	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
)

// DefaultGCVictimCount is the number of collection rounds per trigger when
// no over-provisioning is configured.
const DefaultGCVictimCount = 20

// Options tunes the behavior of an FTL.
type Options struct {
	Scheme Scheme `json:"scheme"`

	// BMStartSector is the first block-mapped sector of the hybrid scheme.
	// It is rounded up to a block boundary.
	BMStartSector int64 `json:"bm_start_sector"`

	// OVP is the over-provisioning percentage. It sizes the number of
	// collection rounds.
	OVP int `json:"ovp"`

	// GCTriggerBlocks is the empty pool size at or below which writes start
	// collecting. Zero picks one block per plane; negative disables
	// collection before writes.
	GCTriggerBlocks int `json:"gc_trigger_blocks"`

	// GCVictimCount is the number of rounds per trigger. Zero derives it
	// from OVP.
	GCVictimCount int `json:"gc_victim_count"`

	// GCPolicy tells where collected pages of the page-mapped region go.
	GCPolicy VictimPolicy `json:"gc_policy"`

	// WritePrecheck rejects writes that may run out of blocks before any
	// flash operation is issued.
	WritePrecheck bool `json:"write_precheck"`
}

// DefaultOptions returns the options of a page-mapped FTL.
func DefaultOptions() Options {
	return Options{
		Scheme:        SchemePageMap,
		GCPolicy:      VictimOverall,
		WritePrecheck: true,
	}
}

func (o Options) resolve(g nand.Geometry) Options {
	if o.GCTriggerBlocks == 0 {
		o.GCTriggerBlocks = g.FlashCount * g.PlanesPerFlash
	}

	if o.GCVictimCount == 0 {
		o.GCVictimCount = DefaultGCVictimCount

		if o.OVP > 0 {
			o.GCVictimCount = max(1, g.TotalBlocks()*o.OVP/100/2)
		}
	}

	return o
}

// Builder can build FTLs.
type Builder struct {
	device   nand.Device
	geometry nand.Geometry
	options  Options
	logger   *slog.Logger
}

// MakeBuilder returns a Builder with the default options.
func MakeBuilder() Builder {
	return Builder{
		options: DefaultOptions(),
	}
}

// WithDevice sets the flash device the FTL drives.
func (b Builder) WithDevice(d nand.Device) Builder {
	b.device = d
	return b
}

// WithGeometry sets the geometry of the device.
func (b Builder) WithGeometry(g nand.Geometry) Builder {
	b.geometry = g
	return b
}

// WithOptions replaces all the options.
func (b Builder) WithOptions(o Options) Builder {
	b.options = o
	return b
}

// WithScheme sets the mapping scheme.
func (b Builder) WithScheme(s Scheme) Builder {
	b.options.Scheme = s
	return b
}

// WithBMStartSector sets where the block-mapped region of the hybrid scheme
// starts.
func (b Builder) WithBMStartSector(sector int64) Builder {
	b.options.BMStartSector = sector
	return b
}

// WithOVP sets the over-provisioning percentage.
func (b Builder) WithOVP(percent int) Builder {
	b.options.OVP = percent
	return b
}

// WithGCTrigger sets the empty pool size that triggers collection.
func (b Builder) WithGCTrigger(blocks int) Builder {
	b.options.GCTriggerBlocks = blocks
	return b
}

// WithGCVictimCount sets the number of collection rounds per trigger.
func (b Builder) WithGCVictimCount(n int) Builder {
	b.options.GCVictimCount = n
	return b
}

// WithGCPolicy sets where collected pages go.
func (b Builder) WithGCPolicy(p VictimPolicy) Builder {
	b.options.GCPolicy = p
	return b
}

// WithWritePrecheck sets whether writes check for space up front.
func (b Builder) WithWritePrecheck(check bool) Builder {
	b.options.WritePrecheck = check
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// Build creates an FTL with the given name.
func (b Builder) Build(name string) *FTL {
	if b.device == nil {
		log.Panic("an ftl needs a nand device")
	}

	if err := b.geometry.Validate(); err != nil {
		log.Panicf("invalid geometry: %v", err)
	}

	if b.options.BMStartSector < 0 ||
		b.options.BMStartSector > b.geometry.TotalSectors() {
		log.Panicf("block-mapped region start %d is outside of [0, %d]",
			b.options.BMStartSector, b.geometry.TotalSectors())
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &FTL{
		ComponentBase: sim.NewComponentBase(name),
		geometry:      b.geometry,
		device:        b.device,
		options:       b.options.resolve(b.geometry),
		logger:        logger.With("component", name),
		blocks:        newBlockTable(b.geometry),
		pool:          newAllocator(b.geometry),
	}

	switch b.options.Scheme {
	case SchemePageMap:
		f.trans = newPageMap(f, b.geometry.TotalPages())
	case SchemeBlockMap:
		f.trans = newBlockMap(f)
	case SchemeHybrid:
		f.trans = newHybridMap(f, b.options.BMStartSector)
	default:
		log.Panicf("unknown mapping scheme %d", b.options.Scheme)
	}

	return f
}
