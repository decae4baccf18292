package sim

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is a named, hookable element of the simulated drive, such as
// the flash array or the translation layer.
type Component interface {
	Named
	Hookable
}

// ComponentBase provides the name and hook plumbing for components.
type ComponentBase struct {
	HookableBase
	name string
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.name = name

	return c
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
