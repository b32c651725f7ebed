package alcontext

import (
	"fmt"

	"imascore/internal/alerrors"
	"imascore/internal/types"
	"imascore/internal/uri"
)

// OperationContext describes one read or write of a data object. It holds a
// non-owning reference to its DataEntryContext and is immutable.
type OperationContext struct {
	uid        uint64
	entry      *DataEntryContext
	dataObject string
	datapath   string
	access     types.AccessMode
	rng        types.RangeMode
	time       float64
	interp     types.InterpMode

	tmin, tmax float64
	dtime      []float64
}

var _ Context = (*OperationContext)(nil)

func checkAccess(access types.AccessMode) error {
	if !access.Valid() {
		return alerrors.Errorf(alerrors.ContextErr, "Wrong access mode %d", int(access))
	}
	return nil
}

// NewGlobalOperationContext builds a global access to the data object name,
// restricted to datapath when non-empty.
func NewGlobalOperationContext(entry *DataEntryContext, name, datapath string, access types.AccessMode) (*OperationContext, error) {
	if err := checkAccess(access); err != nil {
		return nil, err
	}
	return &OperationContext{
		uid:        nextUID(),
		entry:      entry,
		dataObject: name,
		datapath:   datapath,
		access:     access,
		rng:        types.GlobalOp,
		time:       types.UndefinedTime,
		interp:     types.UndefinedInterp,
	}, nil
}

// NewOperationContext builds an access with an explicit range mode. A slice
// read requires an interpolation mode.
func NewOperationContext(entry *DataEntryContext, name string, access types.AccessMode, rng types.RangeMode, t float64, interp types.InterpMode) (*OperationContext, error) {
	if !rng.Valid() {
		return nil, alerrors.Errorf(alerrors.ContextErr, "Wrong range mode %d", int(rng))
	}
	if err := checkAccess(access); err != nil {
		return nil, err
	}
	if !interp.Valid() {
		return nil, alerrors.Errorf(alerrors.ContextErr, "Wrong interp mode %d", int(interp))
	}
	if rng == types.SliceOp && access == types.ReadOp && interp == types.UndefinedInterp {
		return nil, alerrors.New(alerrors.ContextErr, "Missing interpmode")
	}
	return &OperationContext{
		uid:        nextUID(),
		entry:      entry,
		dataObject: name,
		access:     access,
		rng:        rng,
		time:       t,
		interp:     interp,
		tmin:       types.UndefinedTime,
		tmax:       types.UndefinedTime,
	}, nil
}

// NewTimeRangeOperationContext builds an access to the window [tmin, tmax].
// An empty dtime keeps the stored samples; one value resamples with a
// uniform step; more values give the explicit target times.
func NewTimeRangeOperationContext(entry *DataEntryContext, name string, access types.AccessMode, tmin, tmax float64, dtime []float64, interp types.InterpMode) (*OperationContext, error) {
	ctx, err := NewOperationContext(entry, name, access, types.TimeRangeOp, types.UndefinedTime, interp)
	if err != nil {
		return nil, err
	}
	if tmin > tmax {
		return nil, alerrors.Errorf(alerrors.ContextErr, "Wrong time range [%f, %f]", tmin, tmax)
	}
	ctx.tmin, ctx.tmax = tmin, tmax
	ctx.dtime = append([]float64(nil), dtime...)
	return ctx, nil
}

func (c *OperationContext) isContext() {}

func (c *OperationContext) UID() uint64 { return c.uid }

func (c *OperationContext) Type() Type { return OperationType }

func (c *OperationContext) BackendID() types.BackendID { return c.entry.BackendID() }

func (c *OperationContext) URI() uri.URI { return c.entry.URI() }

func (c *OperationContext) DataEntry() *DataEntryContext { return c.entry }

func (c *OperationContext) DataObjectName() string { return c.dataObject }

// Datapath is the partial-access sub path of a global operation.
func (c *OperationContext) Datapath() string { return c.datapath }

func (c *OperationContext) AccessMode() types.AccessMode { return c.access }

func (c *OperationContext) RangeMode() types.RangeMode { return c.rng }

// Time is the requested slice time, UndefinedTime outside slice mode.
func (c *OperationContext) Time() float64 { return c.time }

func (c *OperationContext) InterpMode() types.InterpMode { return c.interp }

// TimeRange returns the window and resampling step of a time range
// operation.
func (c *OperationContext) TimeRange() (tmin, tmax float64, dtime []float64) {
	return c.tmin, c.tmax, c.dtime
}

func (c *OperationContext) String() string {
	s := c.entry.String() +
		"dataobjectname \t\t = " + c.dataObject + "\n" +
		fmt.Sprintf("accessmode \t\t = %d (%s)\n", int(c.access), c.access) +
		fmt.Sprintf("rangemode \t\t = %d (%s)\n", int(c.rng), c.rng) +
		fmt.Sprintf("time \t\t\t = %f\n", c.time) +
		fmt.Sprintf("interpmode \t\t = %d (%s)\n", int(c.interp), c.interp)
	if c.rng == types.TimeRangeOp {
		s += fmt.Sprintf("tmin \t\t\t = %f\ntmax \t\t\t = %f\ndtime \t\t\t = %v\n", c.tmin, c.tmax, c.dtime)
	}
	return s
}
