package nand

import "github.com/sarchlab/ftlsim/sim"

// Timing holds the latencies of the flash array.
type Timing struct {
	RegWrite           sim.VTimeInSec `json:"reg_write"`
	CellProgram        sim.VTimeInSec `json:"cell_program"`
	RegRead            sim.VTimeInSec `json:"reg_read"`
	CellRead           sim.VTimeInSec `json:"cell_read"`
	BlockErase         sim.VTimeInSec `json:"block_erase"`
	ChannelSwitchRead  sim.VTimeInSec `json:"channel_switch_read"`
	ChannelSwitchWrite sim.VTimeInSec `json:"channel_switch_write"`

	// IOParallelism lets the planes of a chip work at the same time. When
	// false, every operation on a chip waits for all of its planes.
	IOParallelism bool `json:"io_parallelism"`
}

// DefaultTiming returns the latencies of a typical SLC part.
func DefaultTiming() Timing {
	return Timing{
		RegWrite:           sim.Micro(82),
		CellProgram:        sim.Micro(900),
		RegRead:            sim.Micro(82),
		CellRead:           sim.Micro(50),
		BlockErase:         sim.Micro(2000),
		ChannelSwitchRead:  sim.Micro(16),
		ChannelSwitchWrite: sim.Micro(33),
		IOParallelism:      true,
	}
}

// timeline tracks when the channels and registers of the array become free.
type timeline struct {
	geometry Geometry
	timing   Timing

	registerFree []sim.VTimeInSec
	channelFree  []sim.VTimeInSec
}

func newTimeline(g Geometry, t Timing) *timeline {
	return &timeline{
		geometry:     g,
		timing:       t,
		registerFree: make([]sim.VTimeInSec, g.RegisterCount()),
		channelFree:  make([]sim.VTimeInSec, g.ChannelCount),
	}
}

func (l *timeline) reset() {
	clear(l.registerFree)
	clear(l.channelFree)
}

// registerReady returns the earliest time an operation may use the register.
func (l *timeline) registerReady(addr BlockAddr, now sim.VTimeInSec) sim.VTimeInSec {
	ready := now

	if l.timing.IOParallelism {
		reg := l.geometry.RegisterOf(addr)
		return later(ready, l.registerFree[reg])
	}

	first := addr.Flash * l.geometry.PlanesPerFlash
	for i := 0; i < l.geometry.PlanesPerFlash; i++ {
		ready = later(ready, l.registerFree[first+i])
	}

	return ready
}

// program returns the completion time of a page program. The data goes over
// the channel into the register, then the cells are programmed.
func (l *timeline) program(addr BlockAddr, now sim.VTimeInSec) sim.VTimeInSec {
	ch := l.geometry.ChannelOf(addr.Flash)
	reg := l.geometry.RegisterOf(addr)

	start := later(l.registerReady(addr, now), l.channelFree[ch])
	transferred := start + l.timing.ChannelSwitchWrite + l.timing.RegWrite
	l.channelFree[ch] = transferred

	done := transferred + l.timing.CellProgram
	l.registerFree[reg] = done

	return done
}

// read returns the completion time of a page read. The cells are sensed into
// the register, then the data goes over the channel.
func (l *timeline) read(addr BlockAddr, now sim.VTimeInSec) sim.VTimeInSec {
	ch := l.geometry.ChannelOf(addr.Flash)
	reg := l.geometry.RegisterOf(addr)

	sensed := l.registerReady(addr, now) + l.timing.CellRead
	start := later(sensed, l.channelFree[ch])
	done := start + l.timing.ChannelSwitchRead + l.timing.RegRead
	l.channelFree[ch] = done
	l.registerFree[reg] = done

	return done
}

func (l *timeline) erase(addr BlockAddr, now sim.VTimeInSec) sim.VTimeInSec {
	reg := l.geometry.RegisterOf(addr)

	done := l.registerReady(addr, now) + l.timing.BlockErase
	l.registerFree[reg] = done

	return done
}

func later(a, b sim.VTimeInSec) sim.VTimeInSec {
	if a > b {
		return a
	}

	return b
}
