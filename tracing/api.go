package tracing

import (
	"github.com/sarchlab/ftlsim/sim"
)

// NamedHookable is a component that tasks can be traced on, such as the FTL
// or the workload driver.
type NamedHookable interface {
	sim.Named
	sim.Hookable
	InvokeHook(sim.HookCtx)
}

// The positions at which the task hooks are invoked.
var (
	HookPosTaskStart = &sim.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskStep  = &sim.HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &sim.HookPos{Name: "HookPosTaskEnd"}
)

// StartTask notifies the hooks of the domain that a task starts. The task is
// located at the domain.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	detail any,
) {
	taskMustBeComplete(id, domain, kind, what)

	if domain.NumHooks() == 0 {
		return
	}

	location := domain.Name()
	if location == "" {
		panic("domain must have a name")
	}

	domain.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStart,
		Item: Task{
			ID:       id,
			ParentID: parentID,
			Kind:     kind,
			What:     what,
			Location: location,
			Detail:   detail,
		},
	})
}

func taskMustBeComplete(
	id string,
	domain NamedHookable,
	kind string,
	what string,
) {
	switch {
	case id == "":
		panic("id must not be empty")
	case domain == nil:
		panic("domain must not be nil")
	case kind == "":
		panic("kind must not be empty")
	case what == "":
		panic("what must not be empty")
	}
}

// AddTaskStep marks that a task reaches a milestone, such as a GC round
// triggered by a write.
func AddTaskStep(id string, domain NamedHookable, what string) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStep,
		Item: Task{
			ID:    id,
			Steps: []TaskStep{{What: what}},
		},
	})
}

// EndTask notifies the hooks that a task completes.
func EndTask(id string, domain NamedHookable) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskEnd,
		Item:   Task{ID: id},
	})
}
