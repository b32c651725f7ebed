package backend

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"imascore/internal/alcontext"
	"imascore/internal/alerrors"
	"imascore/internal/interp"
	"imascore/internal/logger"
	"imascore/internal/storage"
	"imascore/internal/types"
)

// sharedStore holds the data entries of every memory backend of the
// process, so that an entry written through one context can be opened
// again through another.
var sharedStore = storage.NewStore()

var memoryVersion = Version{Major: 1, Minor: 0}

// MemoryBackend keeps data entries in a storage.Store keyed by the entry
// path. Writes are staged per operation and committed when the operation
// ends. Slice and time range reads are served through DataInterpolation.
type MemoryBackend struct {
	store *storage.Store
	di    *interp.DataInterpolation

	mu      sync.Mutex
	entry   string
	actions map[uint64]*action
}

func NewMemoryBackend(store *storage.Store) *MemoryBackend {
	return &MemoryBackend{store: store, actions: make(map[uint64]*action)}
}

// entryKey identifies a data entry in the store: its path, or the whole
// URI when it is addressed otherwise.
func entryKey(entry *alcontext.DataEntryContext) string {
	if p := entry.Path(); p != "" {
		return p
	}
	return entry.URI().String()
}

func (b *MemoryBackend) Version(*alcontext.DataEntryContext) (Version, error) {
	return memoryVersion, nil
}

func (b *MemoryBackend) OpenPulse(entry *alcontext.DataEntryContext, mode types.OpenMode) error {
	key := entryKey(entry)
	switch mode {
	case types.OpenPulse:
		if !b.store.Exists(key) {
			return alerrors.Errorf(alerrors.BackendErr, "Data entry %s does not exist", key)
		}
	case types.ForceOpenPulse:
		b.store.Create(key, false)
	case types.CreatePulse:
		if b.store.Exists(key) {
			return alerrors.Errorf(alerrors.BackendErr, "Data entry %s already exists", key)
		}
		b.store.Create(key, false)
	case types.ForceCreatePulse:
		b.store.Create(key, true)
	default:
		return alerrors.Errorf(alerrors.BackendErr, "Mode %d not yet supported", int(mode))
	}

	b.mu.Lock()
	b.entry = key
	b.mu.Unlock()
	logger.Debug("memory backend opened %s (%s)", key, mode)
	return nil
}

func (b *MemoryBackend) ClosePulse(entry *alcontext.DataEntryContext, mode types.CloseMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := entryKey(entry)
	if mode == types.ErasePulse {
		b.store.Remove(key)
	}
	b.entry = ""
	b.actions = make(map[uint64]*action)
	return nil
}

func (b *MemoryBackend) BeginAction(op *alcontext.OperationContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entry == "" {
		return alerrors.New(alerrors.BackendErr, "Data entry is not open")
	}
	write := op.AccessMode() != types.ReadOp
	if write && op.RangeMode() == types.TimeRangeOp {
		return alerrors.New(alerrors.BackendErr, "Time range operations are read only")
	}

	stored, ok := b.store.Get(b.entry, op.DataObjectName())
	var tree *storage.Struct
	switch {
	case !ok, write && op.AccessMode() == types.ReplaceOp && op.RangeMode() == types.GlobalOp:
		tree = storage.NewStruct()
	case write:
		tree = stored.Clone()
	default:
		tree = stored
	}
	b.actions[op.UID()] = newAction(op, tree, write)
	return nil
}

// actionOf returns the action ctx belongs to. Callers hold b.mu.
func (b *MemoryBackend) actionOf(ctx alcontext.Context) (*action, error) {
	var op *alcontext.OperationContext
	switch c := ctx.(type) {
	case *alcontext.OperationContext:
		op = c
	case *alcontext.ArraystructContext:
		op = c.OperationContext()
	default:
		return nil, alerrors.Errorf(alerrors.BackendErr, "Context %d is not an operation", ctx.UID())
	}
	a, ok := b.actions[op.UID()]
	if !ok {
		return nil, alerrors.Errorf(alerrors.BackendErr, "No action open for context %d", op.UID())
	}
	return a, nil
}

func (b *MemoryBackend) EndAction(ctx alcontext.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch c := ctx.(type) {
	case *alcontext.DataEntryContext:
		return nil
	case *alcontext.ArraystructContext:
		a, err := b.actionOf(c)
		if err != nil {
			return err
		}
		return a.endArray(c)
	case *alcontext.OperationContext:
		a, err := b.actionOf(c)
		if err != nil {
			return err
		}
		delete(b.actions, c.UID())
		if !a.write {
			return nil
		}
		if err := b.store.Put(b.entry, c.DataObjectName(), a.tree); err != nil {
			return alerrors.New(alerrors.BackendErr, err.Error())
		}
		logger.Debug("memory backend committed %s/%s", b.entry, c.DataObjectName())
	}
	return nil
}

func (b *MemoryBackend) WriteData(ctx alcontext.Context, field, timebase string, data *types.Buffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.actionOf(ctx)
	if err != nil {
		return err
	}
	if !a.write {
		return alerrors.New(alerrors.BackendErr, "Cannot write data in a read action")
	}
	return a.writeLeaf(ctx, field, timebase, data)
}

func (b *MemoryBackend) DeleteData(op *alcontext.OperationContext, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.actionOf(op)
	if err != nil {
		return err
	}
	if !a.write {
		return alerrors.New(alerrors.BackendErr, "Cannot delete data in a read action")
	}
	a.tree.Delete(path)
	return nil
}

func (b *MemoryBackend) ReadData(ctx alcontext.Context, field, timebase string) (*types.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.actionOf(ctx)
	if err != nil {
		return nil, err
	}
	v, err := a.view(ctx)
	if err != nil {
		return nil, err
	}
	_, data, err := readLeaf(v, field, b.di)
	if err != nil || data == nil {
		return nil, err
	}

	rng := a.op.RangeMode()
	if rng == types.GlobalOp || timebase == "" || insideTimedArray(ctx) || data.Dim() == 0 {
		return data, nil
	}
	tv, err := a.timebaseVector(v.primary, timebase)
	if err != nil || tv == nil {
		return data, err
	}
	if nt := data.Shape[data.Dim()-1]; len(tv) > nt {
		tv = tv[:nt]
	}
	if len(tv) == 0 {
		return nil, nil
	}
	di, err := b.interpolation()
	if err != nil {
		return nil, err
	}
	if rng == types.SliceOp {
		return sliceOf(di, a.op, data, tv)
	}
	isTimebase := field == strings.TrimPrefix(timebase, "/")
	return rangeOf(di, a.op, data, tv, isTimebase)
}

func (b *MemoryBackend) interpolation() (*interp.DataInterpolation, error) {
	if b.di == nil {
		return nil, alerrors.New(alerrors.BackendErr, "No data interpolation installed")
	}
	return b.di, nil
}

// sliceOf selects, or with Linear blends, the slice of data at the
// operation time.
func sliceOf(di *interp.DataInterpolation, op *alcontext.OperationContext, data *types.Buffer, tv []float64) (*types.Buffer, error) {
	n := data.SliceLen()
	shape := data.Shape[:data.Dim()-1]
	if n == 0 {
		return types.NewBuffer(data.Type, shape...), nil
	}
	sel, br, err := di.GetSlicesTimesIndices(op.Time(), tv, op.InterpMode())
	if err != nil {
		return nil, err
	}
	if op.InterpMode() != types.LinearInterp {
		return block(data, sel, n, shape)
	}
	inf, err := block(data, br.Inf, n, shape)
	if err != nil {
		return nil, err
	}
	sup, err := block(data, br.Sup, n, shape)
	if err != nil {
		return nil, err
	}
	return di.Interpolate(data.Type, n, interp.Slices{Inf: inf, Sup: sup}, interp.Times{Inf: tv[br.Inf], Sup: tv[br.Sup]}, op.Time(), types.LinearInterp)
}

func block(data *types.Buffer, index, n int, shape []int) (*types.Buffer, error) {
	b, err := data.Block(index, n, shape)
	if err != nil {
		return nil, alerrors.New(alerrors.BackendErr, err.Error())
	}
	return b, nil
}

// rangeOf returns the samples of data inside the operation time range, or
// the data resampled onto the requested times.
func rangeOf(di *interp.DataInterpolation, op *alcontext.OperationContext, data *types.Buffer, tv []float64, isTimebase bool) (*types.Buffer, error) {
	tmin, tmax, dtime := op.TimeRange()
	mode := op.InterpMode()
	n := data.SliceLen()
	shape := data.Shape[:data.Dim()-1]

	if len(dtime) == 0 {
		lo, hi, count, err := di.GetTimeRangeIndices(tmin, tmax, nil, tv, mode)
		if err != nil || count == 0 {
			return nil, err
		}
		out, err := data.Blocks(lo, hi, n, withDim(shape, count))
		if err != nil {
			return nil, alerrors.New(alerrors.BackendErr, err.Error())
		}
		return out, nil
	}

	if isTimebase {
		targets, err := interp.TargetTimes(tmin, tmax, dtime)
		if err != nil {
			return nil, err
		}
		produced := 0
		for _, t := range targets {
			if t > tv[len(tv)-1] {
				break
			}
			produced++
		}
		count, out, err := di.ResampleTimebasis(tmin, tmax, dtime, -1, data)
		if err != nil || produced == 0 {
			return nil, err
		}
		if count > produced {
			out.Truncate(produced)
			out.Shape = []int{produced}
		}
		return out, nil
	}

	if n == 0 {
		return nil, nil
	}
	first, last, err := di.ResamplingWindow(tmin, tmax, dtime, tv, mode)
	if err != nil || last < first {
		return nil, err
	}
	window, err := data.Blocks(first, last, n, withDim(shape, last-first+1))
	if err != nil {
		return nil, alerrors.New(alerrors.BackendErr, err.Error())
	}
	_, out, err := di.InterpolateWithResampling(tmin, tmax, dtime, data.Type, n, window, tv, mode)
	return out, err
}

func (b *MemoryBackend) BeginArraystructAction(c *alcontext.ArraystructContext, size int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.actionOf(c)
	if err != nil {
		return 0, err
	}
	if a.write {
		return size, a.beginWrite(c, size)
	}
	parent := parentOf(c)
	if a.op.RangeMode() == types.GlobalOp || !c.Timed() || insideTimedArray(parent) {
		return a.beginRead(c)
	}
	return b.beginTimedRead(a, c, parent)
}

// beginTimedRead opens a time dependent array for a slice or time range
// read. The returned elements are the selected time slices.
func (b *MemoryBackend) beginTimedRead(a *action, c *alcontext.ArraystructContext, parent alcontext.Context) (int, error) {
	pv, err := a.view(parent)
	if err != nil {
		return 0, err
	}
	arr := &array{ctx: c}
	a.arrays[c.UID()] = arr

	aos, elements := elementViews(pv, c.Path())
	if aos == nil || len(elements) == 0 {
		return 0, nil
	}
	tv, timeLeaf, err := a.arrayTimes(aos, c.TimebasePath())
	if err != nil {
		return 0, err
	}
	if len(tv) > len(elements) {
		tv = tv[:len(elements)]
	}
	if len(tv) == 0 {
		return 0, nil
	}
	di, err := b.interpolation()
	if err != nil {
		return 0, err
	}

	op := a.op
	pick := func(t float64) (view, error) {
		sel, br, err := di.GetSlicesTimesIndices(t, tv, op.InterpMode())
		if err != nil {
			return view{}, err
		}
		if op.InterpMode() != types.LinearInterp {
			return view{primary: aos.Elements[sel]}, nil
		}
		return view{
			primary:   aos.Elements[br.Inf],
			secondary: aos.Elements[br.Sup],
			blend:     true,
			times:     interp.Times{Inf: tv[br.Inf], Sup: tv[br.Sup]},
			t:         t,
		}, nil
	}

	if op.RangeMode() == types.SliceOp {
		v, err := pick(op.Time())
		if err != nil {
			return 0, err
		}
		arr.views = []view{v}
		return 1, nil
	}

	tmin, tmax, dtime := op.TimeRange()
	if len(dtime) == 0 {
		lo, hi, count, err := di.GetTimeRangeIndices(tmin, tmax, nil, tv, op.InterpMode())
		if err != nil || count == 0 {
			return 0, err
		}
		arr.views = elements[lo : hi+1]
		return len(arr.views), nil
	}

	targets, err := interp.TargetTimes(tmin, tmax, dtime)
	if err != nil {
		return 0, err
	}
	for i, t := range targets {
		if t > tv[len(tv)-1] {
			break
		}
		v, err := pick(t)
		if err != nil {
			return 0, err
		}
		if timeLeaf != "" {
			_, tb, err := di.ResampleTimebasis(tmin, tmax, dtime, i, nil)
			if err != nil {
				return 0, err
			}
			v.timeLeaf, v.time = timeLeaf, tb.Doubles[0]
		}
		arr.views = append(arr.views, v)
	}
	return len(arr.views), nil
}

// Occurrences maps the stored objects name and name/N to occurrences 0
// and N.
func (b *MemoryBackend) Occurrences(entry *alcontext.DataEntryContext, name string) ([]int, error) {
	var occ []int
	for _, obj := range b.store.Objects(entryKey(entry)) {
		if obj == name {
			occ = append(occ, 0)
			continue
		}
		rest, ok := strings.CutPrefix(obj, name+"/")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil {
			occ = append(occ, n)
		}
	}
	sort.Ints(occ)
	return occ, nil
}

func (b *MemoryBackend) SupportsTimeDataInterpolation() bool { return true }

func (b *MemoryBackend) SupportsTimeRangeOperation() bool { return true }

func (b *MemoryBackend) SetDataInterpolation(di *interp.DataInterpolation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.di = di
	return nil
}
