package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/ftlsim/datarecording"
	"github.com/sarchlab/ftlsim/sim"
)

// TraceTableName is the table the DBTracer writes tasks to.
const TraceTableName = "trace"

// TraceEntry is a row of the trace table.
type TraceEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
	Steps     int
}

// DBTracer is a tracer that stores finished tasks into a data recorder.
type DBTracer struct {
	lock       sync.Mutex
	timeTeller sim.TimeTeller
	backend    datarecording.DataRecorder
	inflight   inflightTasks

	startTime, endTime sim.VTimeInSec
	written            uint64
}

// NewDBTracer creates a new DBTracer. The recorder is flushed when the
// process exits through atexit.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(TraceTableName, TraceEntry{})

	t := &DBTracer{
		timeTeller: timeTeller,
		backend:    dataRecorder,
		inflight:   newInflightTasks(timeTeller, nil),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits tracing to the tasks that overlap [startTime, endTime].
// A zero bound is ignored.
func (t *DBTracer) SetTimeRange(startTime, endTime sim.VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if task.Location == "" {
		panic("task location must be set")
	}

	now := t.timeTeller.CurrentTime()
	if t.endTime > 0 && now > t.endTime {
		return
	}

	t.inflight.start(task)
}

// StepTask counts a step of a task.
func (t *DBTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	original, ok := t.inflight.tasks[task.ID]
	if !ok {
		return
	}

	original.Steps = append(original.Steps, task.Steps...)
	t.inflight.tasks[task.ID] = original
}

// EndTask writes a finished task.
func (t *DBTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	done, ok := t.inflight.end(task)
	if !ok {
		return
	}

	if t.startTime > 0 && done.EndTime < t.startTime {
		return
	}

	t.backend.InsertData(TraceTableName, TraceEntry{
		ID:        done.ID,
		ParentID:  done.ParentID,
		Kind:      done.Kind,
		What:      done.What,
		Location:  done.Location,
		StartTime: float64(done.StartTime),
		EndTime:   float64(done.EndTime),
		Steps:     len(done.Steps),
	})
	t.written++
}

// Written returns the number of tasks written.
func (t *DBTracer) Written() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.written
}

// Terminate flushes the written tasks. Unfinished tasks are dropped.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.inflight.tasks = make(map[string]Task)
	t.backend.Flush()
}
