package alcontext

import (
	"fmt"

	"imascore/internal/types"
	"imascore/internal/uri"
)

// ArraystructContext addresses the current element of an array of
// structures. Parent and operation references are non-owning. The index is
// the only mutable state.
type ArraystructContext struct {
	uid      uint64
	path     string
	timebase string
	parent   *ArraystructContext
	op       *OperationContext
	index    int
}

var _ Context = (*ArraystructContext)(nil)

// NewArraystructContext addresses a top-level array of op. An empty
// timebase means the array is not time dependent.
func NewArraystructContext(op *OperationContext, path, timebase string) *ArraystructContext {
	return &ArraystructContext{uid: nextUID(), path: path, timebase: timebase, op: op}
}

// NewNestedArraystructContext addresses an array inside the current element
// of parent, starting at index 0. parent must not be nil; top-level arrays
// use NewArraystructContext.
func NewNestedArraystructContext(parent *ArraystructContext, path, timebase string) *ArraystructContext {
	return NewNestedArraystructContextAt(parent, path, timebase, 0)
}

// NewNestedArraystructContextAt is NewNestedArraystructContext with an
// explicit start index. It panics if parent is nil.
func NewNestedArraystructContextAt(parent *ArraystructContext, path, timebase string, index int) *ArraystructContext {
	if parent == nil {
		panic("alcontext: nested array of structures without a parent")
	}
	return &ArraystructContext{
		uid:      nextUID(),
		path:     path,
		timebase: timebase,
		parent:   parent,
		op:       parent.op,
		index:    index,
	}
}

// Advance moves the current index by step, which may be negative.
func (c *ArraystructContext) Advance(step int) { c.index += step }

func (c *ArraystructContext) isContext() {}

func (c *ArraystructContext) UID() uint64 { return c.uid }

func (c *ArraystructContext) Type() Type { return ArraystructType }

func (c *ArraystructContext) BackendID() types.BackendID { return c.op.BackendID() }

func (c *ArraystructContext) URI() uri.URI { return c.op.URI() }

func (c *ArraystructContext) Path() string { return c.path }

func (c *ArraystructContext) TimebasePath() string { return c.timebase }

// Timed reports whether the array is time dependent.
func (c *ArraystructContext) Timed() bool { return c.timebase != "" }

// Parent returns the enclosing array context, nil for a top-level array.
func (c *ArraystructContext) Parent() *ArraystructContext { return c.parent }

func (c *ArraystructContext) Index() int { return c.index }

func (c *ArraystructContext) OperationContext() *OperationContext { return c.op }

func (c *ArraystructContext) DataEntry() *DataEntryContext { return c.op.DataEntry() }

func (c *ArraystructContext) String() string {
	timed, parent := "no", "NULL"
	if c.Timed() {
		timed = "yes"
	}
	if c.parent != nil {
		parent = c.parent.path
	}
	return c.op.String() +
		fmt.Sprintf("path \t\t\t = %q\n", c.path) +
		fmt.Sprintf("timebase \t\t = %q\n", c.timebase) +
		"timed \t\t\t = " + timed + "\n" +
		"parent \t\t\t = " + parent + "\n" +
		fmt.Sprintf("index \t\t\t = %d\n", c.index)
}
