package tracing

import (
	"sync"

	"github.com/sarchlab/ftlsim/sim"
)

// AverageTimeTracer collects the average, the minimum and the maximum time
// of executing a certain type of task, such as the latency of host reads.
type AverageTimeTracer struct {
	lock        sync.Mutex
	inflight    inflightTasks
	averageTime sim.VTimeInSec
	minTime     sim.VTimeInSec
	maxTime     sim.VTimeInSec
	taskCount   uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer
func NewAverageTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		inflight: newInflightTasks(timeTeller, filter),
	}
}

// AverageTime returns the average time spent on the finished tasks.
func (t *AverageTimeTracer) AverageTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// MinTime returns the shortest finished task.
func (t *AverageTimeTracer) MinTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.minTime
}

// MaxTime returns the longest finished task.
func (t *AverageTimeTracer) MaxTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxTime
}

// TotalCount returns the total number of tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// InflightCount returns the number of tasks that started but did not end.
func (t *AverageTimeTracer) InflightCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.inflight.len()
}

// StartTask records the task start time
func (t *AverageTimeTracer) StartTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.inflight.start(task)
}

// StepTask does nothing
func (t *AverageTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task
func (t *AverageTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	done, ok := t.inflight.end(task)
	if !ok {
		return
	}

	taskTime := done.EndTime - done.StartTime
	if t.taskCount == 0 || taskTime < t.minTime {
		t.minTime = taskTime
	}

	if taskTime > t.maxTime {
		t.maxTime = taskTime
	}

	t.averageTime = sim.VTimeInSec(
		(float64(t.averageTime)*float64(t.taskCount) + float64(taskTime)) /
			float64(t.taskCount+1))
	t.taskCount++
}
