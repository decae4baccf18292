package tracing

import "github.com/sarchlab/ftlsim/sim"

// inflightTasks keeps the tasks that started and have not ended, stamped with
// their start time.
type inflightTasks struct {
	timeTeller sim.TimeTeller
	filter     TaskFilter
	tasks      map[string]Task
}

func newInflightTasks(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) inflightTasks {
	if filter == nil {
		filter = func(Task) bool { return true }
	}

	return inflightTasks{
		timeTeller: timeTeller,
		filter:     filter,
		tasks:      make(map[string]Task),
	}
}

func (f *inflightTasks) start(task Task) {
	if !f.filter(task) {
		return
	}

	task.StartTime = f.timeTeller.CurrentTime()
	f.tasks[task.ID] = task
}

// end removes a task and returns it with its end time set.
func (f *inflightTasks) end(task Task) (Task, bool) {
	original, ok := f.tasks[task.ID]
	if !ok {
		return Task{}, false
	}

	delete(f.tasks, task.ID)
	original.EndTime = f.timeTeller.CurrentTime()

	return original, true
}

func (f *inflightTasks) len() int {
	return len(f.tasks)
}
