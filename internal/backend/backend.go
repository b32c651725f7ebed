// Package backend executes the I/O named by access contexts. A Backend is
// bound to one data entry: it is created from the DataEntryContext, opened
// with OpenPulse and receives begin/end action calls for every operation
// and array of structures addressed below that entry.
package backend

import (
	"fmt"

	"imascore/internal/alcontext"
	"imascore/internal/alerrors"
	"imascore/internal/config"
	"imascore/internal/interp"
	"imascore/internal/logger"
	"imascore/internal/types"
)

// Version is a major.minor backend or data entry version.
type Version struct {
	Major, Minor int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Backend is the call contract between the access layer and a storage
// implementation. Implementations are used by one goroutine at a time per
// data entry; the lowlevel manager serializes access.
type Backend interface {
	// Version returns the version of the backend itself when entry is nil,
	// otherwise the version the data entry was written with.
	Version(entry *alcontext.DataEntryContext) (Version, error)

	OpenPulse(entry *alcontext.DataEntryContext, mode types.OpenMode) error
	ClosePulse(entry *alcontext.DataEntryContext, mode types.CloseMode) error

	// BeginAction starts a read or write on a data object.
	BeginAction(op *alcontext.OperationContext) error
	// EndAction ends the action bound to ctx. Writes are committed when
	// their operation ends.
	EndAction(ctx alcontext.Context) error

	// WriteData stores a field relative to ctx, an operation or an array of
	// structures positioned on its current element.
	WriteData(ctx alcontext.Context, field, timebase string, data *types.Buffer) error
	// ReadData returns the field relative to ctx as stored, selected or
	// interpolated according to the operation range mode. A nil buffer
	// means there is no data.
	ReadData(ctx alcontext.Context, field, timebase string) (*types.Buffer, error)
	// DeleteData removes path and everything below it from the data object.
	DeleteData(op *alcontext.OperationContext, path string) error

	// BeginArraystructAction starts addressing an array of structures.
	// Writes pass the number of elements, reads get it back.
	BeginArraystructAction(ctx *alcontext.ArraystructContext, size int) (int, error)

	// Occurrences lists the occurrences of a data object holding data.
	Occurrences(entry *alcontext.DataEntryContext, name string) ([]int, error)

	SupportsTimeDataInterpolation() bool
	SupportsTimeRangeOperation() bool
	SetDataInterpolation(di *interp.DataInterpolation) error
}

// Factory creates the backend of a data entry.
type Factory func(entry *alcontext.DataEntryContext) (Backend, error)

// New creates the backend selected by the data entry and installs a
// DataInterpolation when the backend can use one.
func New(entry *alcontext.DataEntryContext) (Backend, error) {
	return NewWithEnvironment(entry, config.FromProcess())
}

// NewWithEnvironment is New with an explicit environment, used for the
// serialize compression level.
func NewWithEnvironment(entry *alcontext.DataEntryContext, env config.Environment) (Backend, error) {
	var (
		be  Backend
		err error
	)
	switch entry.BackendID() {
	case types.BackendNone:
		be = NewNoBackend()
	case types.BackendMemory:
		be = NewMemoryBackend(sharedStore)
	case types.BackendSerialize:
		be, err = NewSerializeBackend(env.SerializeLevel)
	default:
		err = alerrors.Errorf(alerrors.BackendErr, "%s backend is not available within current install", backendLabel(entry.BackendID()))
	}
	if err != nil {
		return nil, err
	}

	if be.SupportsTimeDataInterpolation() || be.SupportsTimeRangeOperation() {
		if err := be.SetDataInterpolation(interp.New()); err != nil {
			return nil, err
		}
	}
	logger.Debug("backend %s created for context %d", entry.BackendName(), entry.UID())
	return be, nil
}

func backendLabel(id types.BackendID) string {
	switch id {
	case types.BackendASCII:
		return "ASCII"
	case types.BackendMDSplus:
		return "MDSplus"
	case types.BackendHDF5:
		return "HDF5"
	case types.BackendUDA:
		return "UDA"
	case types.BackendFlexBuffers:
		return "FlexBuffers"
	}
	return id.String()
}
