package workload

import (
	"log"
	"log/slog"

	"github.com/sarchlab/ftlsim/sim"
)

// Builder can build drivers.
type Builder struct {
	engine     sim.Engine
	target     Target
	timer      Timer
	generator  Generator
	progress   Progress
	sectorSize int
	logger     *slog.Logger
}

// MakeBuilder returns an empty Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithEngine sets the engine the driver schedules its events on.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithTarget sets where the requests go.
func (b Builder) WithTarget(t Target) Builder {
	b.target = t
	return b
}

// WithTimer sets where completion times come from.
func (b Builder) WithTimer(t Timer) Builder {
	b.timer = t
	return b
}

// WithGenerator sets the requests to send.
func (b Builder) WithGenerator(g Generator) Builder {
	b.generator = g
	return b
}

// WithProgress sets the progress to update.
func (b Builder) WithProgress(p Progress) Builder {
	b.progress = p
	return b
}

// WithPayload makes writes carry data of the given sector size. Without it
// writes only account for flash operations.
func (b Builder) WithPayload(sectorSize int) Builder {
	b.sectorSize = sectorSize
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a Driver with the given name.
func (b Builder) Build(name string) *Driver {
	if b.engine == nil || b.target == nil || b.timer == nil ||
		b.generator == nil {
		log.Panic("a driver needs an engine, a target, a timer, and a generator")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		ComponentBase: sim.NewComponentBase(name),
		engine:        b.engine,
		target:        b.target,
		timer:         b.timer,
		generator:     b.generator,
		progress:      b.progress,
		sectorSize:    b.sectorSize,
		logger:        logger.With("component", name),
	}
}
