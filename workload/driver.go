package workload

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"reflect"
	"sync"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/sim"
	"github.com/sarchlab/ftlsim/tracing"
)

// TaskKind is the kind of the tasks the driver traces for host requests.
const TaskKind = "req"

// Target receives the host requests.
type Target interface {
	Read(sector int64, n int) ([]byte, error)
	Write(sector int64, n int, data []byte) error
	Discard(sector int64, n int) error
}

// Timer tells when the flash operations issued for a request complete.
type Timer interface {
	StartBatch()
	BatchDone() sim.VTimeInSec
}

// Progress follows how many requests are in flight and finished.
type Progress interface {
	IncrementInProgress(amount uint64)
	MoveInProgressToFinished(amount uint64)
}

// Stats summarizes the requests a driver has sent.
type Stats struct {
	Issued    uint64 `json:"issued"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Unmapped  uint64 `json:"unmapped"`

	ReadSectors    uint64 `json:"read_sectors"`
	WriteSectors   uint64 `json:"write_sectors"`
	DiscardSectors uint64 `json:"discard_sectors"`

	FirstArrival   sim.VTimeInSec `json:"first_arrival"`
	LastCompletion sim.VTimeInSec `json:"last_completion"`
}

// Bandwidth returns the bytes read and written per second of simulated time.
func (s Stats) Bandwidth(sectorSize int) float64 {
	elapsed := s.LastCompletion - s.FirstArrival
	if elapsed <= 0 {
		return 0
	}

	bytes := float64(s.ReadSectors+s.WriteSectors) * float64(sectorSize)

	return bytes / float64(elapsed)
}

type arriveEvent struct {
	*sim.EventBase
	req Request
}

func newArriveEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	req Request,
) *arriveEvent {
	return &arriveEvent{sim.NewEventBase(time, handler), req}
}

type completeEvent struct {
	*sim.EventBase
	taskID string
	req    Request
	failed bool
}

func newCompleteEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	taskID string,
	req Request,
	failed bool,
) *completeEvent {
	return &completeEvent{
		EventBase: sim.NewEventBase(time, handler),
		taskID:    taskID,
		req:       req,
		failed:    failed,
	}
}

// Driver issues the requests of a generator at their arrival times. A request
// is handed to the target when it arrives and completes when the last flash
// operation it caused is done. Arrivals do not wait for completions.
type Driver struct {
	*sim.ComponentBase

	engine     sim.Engine
	target     Target
	timer      Timer
	generator  Generator
	progress   Progress
	sectorSize int
	logger     *slog.Logger

	lock    sync.Mutex
	stats   Stats
	started bool
}

// Start schedules the first arrival.
func (d *Driver) Start() {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.scheduleNext(d.engine.CurrentTime())
}

// Stats returns the summary of the sent requests.
func (d *Driver) Stats() Stats {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.stats
}

// Handle defines how the Driver handles events.
func (d *Driver) Handle(e sim.Event) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	switch e := e.(type) {
	case *arriveEvent:
		return d.handleArrive(e)
	case *completeEvent:
		d.handleComplete(e)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (d *Driver) handleArrive(e *arriveEvent) error {
	now := e.Time()
	req := e.req

	if d.stats.Issued == 0 {
		d.stats.FirstArrival = now
	}

	id := sim.GetIDGenerator().Generate()
	tracing.StartTask(id, "", d, TaskKind, req.Kind.String(), req)

	if d.progress != nil {
		d.progress.IncrementInProgress(1)
	}

	d.timer.StartBatch()
	err := d.issue(req)
	done := d.timer.BatchDone()
	if done < now {
		done = now
	}

	d.stats.Issued++

	if errors.Is(err, ftl.ErrCorruptState) {
		tracing.AddTaskStep(id, d, "failed")
		d.handleComplete(newCompleteEvent(done, d, id, req, true))

		return fmt.Errorf("%s request at sector %d: %w",
			req.Kind, req.Sector, err)
	}

	if err != nil {
		d.logger.Debug("request failed",
			"kind", req.Kind.String(),
			"sector", req.Sector,
			"sectors", req.Sectors,
			"err", err)
		tracing.AddTaskStep(id, d, "failed")
	}

	d.engine.Schedule(newCompleteEvent(done, d, id, req, err != nil))

	if errors.Is(err, ftl.ErrUnmapped) {
		d.stats.Unmapped++
	}

	d.scheduleNext(now)

	return nil
}

func (d *Driver) issue(req Request) error {
	switch req.Kind {
	case ftl.RequestRead:
		_, err := d.target.Read(req.Sector, req.Sectors)
		return err
	case ftl.RequestWrite:
		return d.target.Write(req.Sector, req.Sectors, d.payload(req))
	case ftl.RequestDiscard:
		return d.target.Discard(req.Sector, req.Sectors)
	default:
		log.Panicf("unknown request kind %d", req.Kind)
	}

	return nil
}

// payload fills each written sector with the low byte of its number.
func (d *Driver) payload(req Request) []byte {
	if d.sectorSize == 0 {
		return nil
	}

	data := make([]byte, req.Sectors*d.sectorSize)
	for i := 0; i < req.Sectors; i++ {
		b := byte(req.Sector + int64(i))
		for j := 0; j < d.sectorSize; j++ {
			data[i*d.sectorSize+j] = b
		}
	}

	return data
}

func (d *Driver) handleComplete(e *completeEvent) {
	tracing.EndTask(e.taskID, d)

	if d.progress != nil {
		d.progress.MoveInProgressToFinished(1)
	}

	d.stats.Completed++
	d.stats.LastCompletion = e.Time()

	if e.failed {
		d.stats.Failed++
		return
	}

	n := uint64(e.req.Sectors)
	switch e.req.Kind {
	case ftl.RequestRead:
		d.stats.ReadSectors += n
	case ftl.RequestWrite:
		d.stats.WriteSectors += n
	case ftl.RequestDiscard:
		d.stats.DiscardSectors += n
	}
}

func (d *Driver) scheduleNext(now sim.VTimeInSec) {
	req, ok := d.generator.Next()
	if !ok {
		return
	}

	t := req.Time
	if t < now {
		t = now
	}

	d.engine.Schedule(newArriveEvent(t, d, req))
}
