package backend

import (
	"strings"

	"imascore/internal/alcontext"
	"imascore/internal/alerrors"
	"imascore/internal/interp"
	"imascore/internal/storage"
	"imascore/internal/types"
)

// action is the state of one operation between BeginAction and EndAction.
// Reads work on the committed tree, writes on a staged copy.
type action struct {
	op     *alcontext.OperationContext
	tree   *storage.Struct
	write  bool
	arrays map[uint64]*array
}

// array is the state of one array of structures opened in an action.
type array struct {
	ctx *alcontext.ArraystructContext

	// written elements
	aos *storage.AOS
	// when set, aos holds new slices appended to this container on end
	appendTo *storage.Struct

	// elements as seen by reads
	views []view
}

// view is one element as a read sees it. A blended view stands for the
// linear combination of primary and secondary at time t.
type view struct {
	primary   *storage.Struct
	secondary *storage.Struct
	blend     bool
	times     interp.Times
	t         float64

	// timeLeaf, when set, reads as time instead of the stored value
	timeLeaf string
	time     float64
}

func newAction(op *alcontext.OperationContext, tree *storage.Struct, write bool) *action {
	return &action{op: op, tree: tree, write: write, arrays: make(map[uint64]*array)}
}

func parentOf(c *alcontext.ArraystructContext) alcontext.Context {
	if p := c.Parent(); p != nil {
		return p
	}
	return c.OperationContext()
}

// insideTimedArray reports whether ctx is, or is nested in, a time
// dependent array of structures.
func insideTimedArray(ctx alcontext.Context) bool {
	c, ok := ctx.(*alcontext.ArraystructContext)
	for ok && c != nil {
		if c.Timed() {
			return true
		}
		c = c.Parent()
	}
	return false
}

func (a *action) arrayOf(c *alcontext.ArraystructContext) (*array, error) {
	arr, ok := a.arrays[c.UID()]
	if !ok {
		return nil, alerrors.Errorf(alerrors.BackendErr, "Array of structures %s (context %d) was not started", c.Path(), c.UID())
	}
	return arr, nil
}

// container returns the struct that writes through ctx land in.
func (a *action) container(ctx alcontext.Context) (*storage.Struct, error) {
	c, ok := ctx.(*alcontext.ArraystructContext)
	if !ok {
		return a.tree, nil
	}
	arr, err := a.arrayOf(c)
	if err != nil {
		return nil, err
	}
	idx := c.Index()
	if idx < 0 || idx >= len(arr.aos.Elements) {
		return nil, alerrors.Errorf(alerrors.BackendErr, "Element %d out of range of %s (size %d)", idx, c.Path(), len(arr.aos.Elements))
	}
	return arr.aos.Elements[idx], nil
}

func newElements(aos *storage.AOS, size int) {
	for len(aos.Elements) < size {
		aos.Elements = append(aos.Elements, storage.NewStruct())
	}
}

// beginWrite opens an array for writing. Global writes replace the array.
// Slice writes of a time dependent array collect new elements that are
// appended on end; other arrays are extended in place so that their
// fields can receive slices.
func (a *action) beginWrite(c *alcontext.ArraystructContext, size int) error {
	parent := parentOf(c)
	container, err := a.container(parent)
	if err != nil {
		return err
	}
	arr := &array{ctx: c}
	switch {
	case a.op.RangeMode() == types.SliceOp && c.Timed() && !insideTimedArray(parent):
		arr.aos = &storage.AOS{Timebase: c.TimebasePath()}
		newElements(arr.aos, size)
		arr.appendTo = container
	case a.op.RangeMode() == types.SliceOp:
		aos, ok := container.AOS(c.Path())
		if !ok {
			aos = &storage.AOS{Timebase: c.TimebasePath()}
			container.SetAOS(c.Path(), aos)
		}
		newElements(aos, size)
		arr.aos = aos
	default:
		arr.aos = &storage.AOS{Timebase: c.TimebasePath()}
		newElements(arr.aos, size)
		container.SetAOS(c.Path(), arr.aos)
	}
	a.arrays[c.UID()] = arr
	return nil
}

// endArray releases the state of an array and appends collected slices.
func (a *action) endArray(c *alcontext.ArraystructContext) error {
	arr, err := a.arrayOf(c)
	if err != nil {
		return err
	}
	delete(a.arrays, c.UID())
	if arr.appendTo == nil || len(arr.aos.Elements) == 0 {
		return nil
	}
	stored, ok := arr.appendTo.AOS(c.Path())
	if !ok {
		arr.appendTo.SetAOS(c.Path(), arr.aos)
		return nil
	}
	if a.op.AccessMode() == types.ReplaceOp && len(stored.Elements) > 0 {
		stored.Elements = stored.Elements[:len(stored.Elements)-1]
	}
	stored.Elements = append(stored.Elements, arr.aos.Elements...)
	stored.Timebase = c.TimebasePath()
	return nil
}

// writeLeaf stores data under field. Time dependent fields written in a
// slice operation outside timed arrays get the slice appended.
func (a *action) writeLeaf(ctx alcontext.Context, field, timebase string, data *types.Buffer) error {
	container, err := a.container(ctx)
	if err != nil {
		return err
	}
	if a.op.RangeMode() == types.SliceOp && timebase != "" && !insideTimedArray(ctx) {
		prev, _ := container.Leaf(field)
		l, err := appendSlice(prev, field, timebase, data, a.op.AccessMode() == types.ReplaceOp)
		if err != nil {
			return err
		}
		container.SetLeaf(field, l)
		return nil
	}
	container.SetLeaf(field, &storage.Leaf{Data: data.Clone(), Timebase: timebase})
	return nil
}

func appendSlice(prev *storage.Leaf, field, timebase string, slice *types.Buffer, replace bool) (*storage.Leaf, error) {
	if prev == nil {
		d := slice.Clone()
		d.Shape = append(d.Shape, 1)
		return &storage.Leaf{Data: d, Timebase: timebase}, nil
	}
	d := prev.Data
	if d.Type != slice.Type {
		return nil, alerrors.Errorf(alerrors.BackendErr, "Cannot append %s slice to %s field %s", slice.Type, d.Type, field)
	}
	if d.Dim() != slice.Dim()+1 || d.SliceLen() != slice.Len() {
		return nil, alerrors.Errorf(alerrors.BackendErr, "Slice of %d elements does not fit field %s of %d elements per slice", slice.Len(), field, d.SliceLen())
	}
	last := d.Dim() - 1
	if replace && d.Shape[last] > 0 {
		d.Truncate((d.Shape[last] - 1) * d.SliceLen())
		d.Shape[last]--
	}
	if err := d.AppendData(slice); err != nil {
		return nil, alerrors.New(alerrors.BackendErr, err.Error())
	}
	d.Shape[last]++
	prev.Timebase = timebase
	return prev, nil
}

// view returns the element reads through ctx look at.
func (a *action) view(ctx alcontext.Context) (view, error) {
	c, ok := ctx.(*alcontext.ArraystructContext)
	if !ok {
		return view{primary: a.tree}, nil
	}
	arr, err := a.arrayOf(c)
	if err != nil {
		return view{}, err
	}
	if arr.aos != nil {
		s, err := a.container(c)
		return view{primary: s}, err
	}
	idx := c.Index()
	if idx < 0 || idx >= len(arr.views) {
		return view{}, alerrors.Errorf(alerrors.BackendErr, "Element %d out of range of %s (size %d)", idx, c.Path(), len(arr.views))
	}
	return arr.views[idx], nil
}

// elementViews lists the elements of the array at path below parent,
// carrying a blend down to the matching secondary elements.
func elementViews(parent view, path string) (*storage.AOS, []view) {
	aos, ok := parent.primary.AOS(path)
	if !ok {
		return nil, nil
	}
	var sec *storage.AOS
	if parent.blend && parent.secondary != nil {
		sec, _ = parent.secondary.AOS(path)
	}
	views := make([]view, len(aos.Elements))
	for i, e := range aos.Elements {
		v := view{primary: e}
		if sec != nil && i < len(sec.Elements) {
			v.secondary, v.blend, v.times, v.t = sec.Elements[i], true, parent.times, parent.t
		}
		views[i] = v
	}
	return aos, views
}

// beginRead opens an array as stored.
func (a *action) beginRead(c *alcontext.ArraystructContext) (int, error) {
	parent, err := a.view(parentOf(c))
	if err != nil {
		return 0, err
	}
	_, views := elementViews(parent, c.Path())
	a.arrays[c.UID()] = &array{ctx: c, views: views}
	return len(views), nil
}

// readLeaf returns a copy of the field seen through v, or nil.
func readLeaf(v view, field string, di *interp.DataInterpolation) (*storage.Leaf, *types.Buffer, error) {
	l, ok := v.primary.Leaf(field)
	if !ok {
		return nil, nil, nil
	}
	if v.timeLeaf != "" && field == v.timeLeaf {
		if l.Data.Dim() == 0 {
			return l, types.ScalarDouble(v.time), nil
		}
		return l, types.Doubles1D(v.time), nil
	}
	data := l.Data.Clone()
	if !v.blend || di == nil {
		return l, data, nil
	}
	sl, ok := v.secondary.Leaf(field)
	if !ok || sl.Data.Type != data.Type || sl.Data.Len() != data.Len() || data.Len() == 0 {
		return l, data, nil
	}
	res, err := di.Interpolate(data.Type, data.Len(), interp.Slices{Inf: data, Sup: sl.Data}, v.times, v.t, types.LinearInterp)
	if err != nil {
		return nil, nil, err
	}
	return l, res, nil
}

// timebaseVector resolves a timebase path: an absolute path starts at the
// data object root, a relative one at the struct holding the field. A
// missing timebase gives nil.
func (a *action) timebaseVector(container *storage.Struct, timebase string) ([]float64, error) {
	s := container
	if strings.HasPrefix(timebase, "/") {
		s, timebase = a.tree, timebase[1:]
	}
	l, ok := s.Leaf(timebase)
	if !ok {
		return nil, nil
	}
	if l.Data.Type != types.DoubleData || l.Data.Dim() > 1 {
		return nil, alerrors.New(alerrors.BackendErr, "Internal error: Inconsistent timebase information")
	}
	return l.Data.Doubles, nil
}

// arrayTimes returns the times of the elements of a timed array and the
// field of each element that holds it ("" for an absolute timebase).
func (a *action) arrayTimes(aos *storage.AOS, timebase string) ([]float64, string, error) {
	if strings.HasPrefix(timebase, "/") {
		tv, err := a.timebaseVector(a.tree, timebase)
		return tv, "", err
	}
	leaf := timebase
	if i := strings.LastIndex(leaf, ")/"); i >= 0 {
		leaf = leaf[i+2:]
	}
	tv := make([]float64, len(aos.Elements))
	for i, e := range aos.Elements {
		l, ok := e.Leaf(leaf)
		if !ok || l.Data.Type != types.DoubleData || l.Data.Len() == 0 {
			return nil, "", alerrors.Errorf(alerrors.BackendErr, "Missing time %s of element %d", leaf, i)
		}
		tv[i] = l.Data.Doubles[0]
	}
	return tv, leaf, nil
}

func withDim(shape []int, n int) []int {
	return append(append([]int(nil), shape...), n)
}
