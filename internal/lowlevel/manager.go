// Package lowlevel exposes the access layer through integer context ids.
// Every begin call stores a context together with the backend of its data
// entry and returns the slot index; EndAction releases it.
package lowlevel

import (
	"fmt"
	"strings"
	"sync"

	"imascore/internal/alcontext"
	"imascore/internal/alerrors"
	"imascore/internal/backend"
	"imascore/internal/config"
	"imascore/internal/logger"
	"imascore/internal/types"
)

// llenv binds a stored context to the backend of its data entry.
type llenv struct {
	backend backend.Backend
	ctx     alcontext.Context
}

// Manager is the context store. Slot 0 is reserved for "no context".
type Manager struct {
	mu   sync.Mutex
	envs []llenv
	cur  int

	env     config.Environment
	factory backend.Factory
}

type Option func(*Manager)

// WithEnvironment resolves data entries and creates backends against env
// instead of the process environment.
func WithEnvironment(env config.Environment) Option {
	return func(m *Manager) { m.env = env }
}

// WithFactory replaces the backend factory.
func WithFactory(f backend.Factory) Option {
	return func(m *Manager) { m.factory = f }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		envs: []llenv{{}},
		cur:  1,
		env:  config.FromProcess(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.factory == nil {
		env := m.env
		m.factory = func(entry *alcontext.DataEntryContext) (backend.Backend, error) {
			return backend.NewWithEnvironment(entry, env)
		}
	}
	return m
}

// add stores an env in the first slot above every live one.
func (m *Manager) add(be backend.Backend, ctx alcontext.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur == len(m.envs) {
		m.envs = append(m.envs, llenv{backend: be, ctx: ctx})
	} else {
		m.envs[m.cur] = llenv{backend: be, ctx: ctx}
	}
	m.cur++
	return m.cur - 1
}

func (m *Manager) get(id int) (llenv, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || id >= len(m.envs) || m.envs[id].ctx == nil {
		return llenv{}, alerrors.Errorf(alerrors.LowlevelErr, "Cannot find context %d in store", id)
	}
	return m.envs[id], nil
}

func (m *Manager) del(id int) (llenv, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 0 || id >= len(m.envs) || m.envs[id].ctx == nil {
		return llenv{}, alerrors.Errorf(alerrors.LowlevelErr, "Cannot find context %d in store", id)
	}
	lle := m.envs[id]
	m.envs[id] = llenv{}
	if id == m.cur-1 {
		m.cur--
	}
	return lle, nil
}

func wrongType() error {
	return alerrors.New(alerrors.LowlevelErr, "Wrong Context type stored")
}

func (m *Manager) dataEntry(id int) (llenv, *alcontext.DataEntryContext, error) {
	lle, err := m.get(id)
	if err != nil {
		return lle, nil, err
	}
	de, ok := lle.ctx.(*alcontext.DataEntryContext)
	if !ok {
		return lle, nil, wrongType()
	}
	return lle, de, nil
}

func (m *Manager) versions(be backend.Backend, de *alcontext.DataEntryContext) (lib, file backend.Version, err error) {
	if lib, err = be.Version(nil); err != nil {
		return
	}
	file, err = be.Version(de)
	return
}

// BeginDataEntryAction resolves uri, creates its backend and opens the
// data entry. Opening an existing entry fails when the library can not
// read the version it was written with.
func (m *Manager) BeginDataEntryAction(uri string, mode types.OpenMode) (int, error) {
	de, err := alcontext.NewDataEntryContext(uri, alcontext.WithEnvironment(m.env))
	if err != nil {
		return 0, err
	}
	be, err := m.factory(de)
	if err != nil {
		return 0, err
	}
	id := m.add(be, de)
	if err := m.openPulse(be, de, mode); err != nil {
		m.del(id)
		return 0, err
	}
	logger.Debug("begin data entry %d %s (%s)", id, de.URI(), mode)
	return id, nil
}

func (m *Manager) openPulse(be backend.Backend, de *alcontext.DataEntryContext, mode types.OpenMode) error {
	if err := be.OpenPulse(de, mode); err != nil {
		return err
	}
	if mode != types.OpenPulse && mode != types.ForceOpenPulse {
		return nil
	}
	lib, file, err := m.versions(be, de)
	if err != nil {
		return err
	}
	if lib.Major != file.Major || lib.Minor < file.Minor {
		return alerrors.Errorf(alerrors.LowlevelErr,
			"Compatibility between opened file version %s and backend %s version %s can't be ensured. ABORT.\n",
			file, de.BackendName(), lib)
	}
	return nil
}

func (m *Manager) ClosePulse(id int, mode types.CloseMode) error {
	lle, de, err := m.dataEntry(id)
	if err != nil {
		return err
	}
	logger.Debug("close pulse %d (%s)", id, mode)
	return lle.backend.ClosePulse(de, mode)
}

func normalizeName(name string) string {
	return strings.TrimSuffix(name, "/0")
}

// beginOperation starts op on the backend and stores it. Writes require
// the minor versions of library and data entry to match.
func (m *Manager) beginOperation(lle llenv, de *alcontext.DataEntryContext, op *alcontext.OperationContext) (int, error) {
	if err := lle.backend.BeginAction(op); err != nil {
		return 0, err
	}
	if op.AccessMode() == types.WriteOp {
		lib, file, err := m.versions(lle.backend, de)
		if err == nil && lib.Minor != file.Minor {
			err = alerrors.Errorf(alerrors.LowlevelErr,
				"Compatibility between opened file version %s and backend %s version %s can't be ensured (minor versions should match when writing). ABORT.\n",
				file, de.BackendName(), lib)
		}
		if err != nil {
			if endErr := lle.backend.EndAction(op); endErr != nil {
				logger.Error("ending rejected action %d: %v", op.UID(), endErr)
			}
			return 0, err
		}
	}
	id := m.add(lle.backend, op)
	logger.Debug("begin %s %s on %s as %d", op.RangeMode(), op.AccessMode(), op.DataObjectName(), id)
	return id, nil
}

// BeginGlobalAction starts a global operation on a data object of the
// data entry id, restricted to datapath when non-empty.
func (m *Manager) BeginGlobalAction(id int, name, datapath string, access types.AccessMode) (int, error) {
	lle, de, err := m.dataEntry(id)
	if err != nil {
		return 0, err
	}
	op, err := alcontext.NewGlobalOperationContext(de, normalizeName(name), datapath, access)
	if err != nil {
		return 0, err
	}
	return m.beginOperation(lle, de, op)
}

// BeginSliceAction starts an operation on the slice of name at time t.
func (m *Manager) BeginSliceAction(id int, name string, access types.AccessMode, t float64, interp types.InterpMode) (int, error) {
	lle, de, err := m.dataEntry(id)
	if err != nil {
		return 0, err
	}
	op, err := alcontext.NewOperationContext(de, normalizeName(name), access, types.SliceOp, t, interp)
	if err != nil {
		return 0, err
	}
	return m.beginOperation(lle, de, op)
}

// BeginTimeRangeAction starts an operation on the window [tmin, tmax] of
// name, resampled according to dtime.
func (m *Manager) BeginTimeRangeAction(id int, name string, access types.AccessMode, tmin, tmax float64, dtime []float64, interp types.InterpMode) (int, error) {
	lle, err := m.get(id)
	if err != nil {
		return 0, err
	}
	if !lle.backend.SupportsTimeRangeOperation() {
		return 0, alerrors.New(alerrors.LowlevelErr, "Selected backend does not support time range operations.")
	}
	de, ok := lle.ctx.(*alcontext.DataEntryContext)
	if !ok {
		return 0, wrongType()
	}
	op, err := alcontext.NewTimeRangeOperationContext(de, normalizeName(name), access, tmin, tmax, dtime, interp)
	if err != nil {
		return 0, err
	}
	return m.beginOperation(lle, de, op)
}

// BeginArraystructAction starts addressing the array of structures at
// path below the operation or array id. Writes pass the number of
// elements, reads get it back. An empty array is ended right away and
// returned with id 0.
func (m *Manager) BeginArraystructAction(id int, path, timebase string, size int) (int, int, error) {
	lle, err := m.get(id)
	if err != nil {
		return 0, 0, err
	}
	var actx *alcontext.ArraystructContext
	switch c := lle.ctx.(type) {
	case *alcontext.ArraystructContext:
		actx = alcontext.NewNestedArraystructContext(c, path, timebase)
	case *alcontext.OperationContext:
		actx = alcontext.NewArraystructContext(c, path, timebase)
	default:
		return 0, 0, wrongType()
	}

	n, err := lle.backend.BeginArraystructAction(actx, size)
	if err != nil {
		return 0, 0, err
	}
	if n <= 0 {
		if err := lle.backend.EndAction(actx); err != nil {
			return 0, 0, err
		}
		if n < 0 {
			return 0, 0, alerrors.Errorf(alerrors.LowlevelErr, "Returned size for array of structure is negative! (%d)", n)
		}
		return 0, 0, nil
	}
	aid := m.add(lle.backend, actx)
	logger.Debug("begin arraystruct %s (%d elements) as %d", path, n, aid)
	return aid, n, nil
}

// IterateOverArraystruct moves the array id by step elements.
func (m *Manager) IterateOverArraystruct(id, step int) error {
	lle, err := m.get(id)
	if err != nil {
		return err
	}
	actx, ok := lle.ctx.(*alcontext.ArraystructContext)
	if !ok {
		return wrongType()
	}
	actx.Advance(step)
	return nil
}

// EndAction releases the context id and ends its action on the backend.
// Id 0 is accepted and ignored.
func (m *Manager) EndAction(id int) error {
	if id == 0 {
		return nil
	}
	lle, err := m.del(id)
	if err != nil {
		return err
	}
	logger.Debug("end %s %d", lle.ctx.Type(), id)
	return lle.backend.EndAction(lle.ctx)
}

// WriteData writes a field relative to the context id. Empty data is not
// written.
func (m *Manager) WriteData(id int, field, timebase string, data *types.Buffer) error {
	if !data.HasNonZeroShape() {
		return nil
	}
	lle, err := m.get(id)
	if err != nil {
		return err
	}
	return lle.backend.WriteData(lle.ctx, field, timebase, data)
}

// ReadData reads a field expected as dt in dim dimensions. Missing data
// reads as the default of dt; integer and double data are converted when
// stored with the other type.
func (m *Manager) ReadData(id int, field, timebase string, dt types.DataType, dim int) (*types.Buffer, error) {
	lle, err := m.get(id)
	if err != nil {
		return nil, err
	}
	data, err := lle.backend.ReadData(lle.ctx, field, timebase)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return defaultValue(dt, dim)
	}
	if data.Dim() != dim {
		return nil, alerrors.Errorf(alerrors.LowlevelErr,
			"Wrong dimension of Data returned by backend: expected %s in %dD but got %s in %dD",
			dt, dim, data.Type, data.Dim())
	}
	if data.Type != dt {
		logger.Warn("Warning: %s/%s returned with type %s while we expect type %s", lle.ctx.URI(), field, data.Type, dt)
		return convertValue(data, dt, dim)
	}
	return data, nil
}

// DeleteData removes path from the data object of the operation id.
func (m *Manager) DeleteData(id int, path string) error {
	lle, err := m.get(id)
	if err != nil {
		return err
	}
	op, ok := lle.ctx.(*alcontext.OperationContext)
	if !ok {
		return wrongType()
	}
	return lle.backend.DeleteData(op, path)
}

// Occurrences lists the occurrences of name holding data in the data
// entry id.
func (m *Manager) Occurrences(id int, name string) ([]int, error) {
	lle, de, err := m.dataEntry(id)
	if err != nil {
		return nil, err
	}
	return lle.backend.Occurrences(de, name)
}

// ContextInfo describes the context id and its owner chain.
func (m *Manager) ContextInfo(id int) (string, error) {
	if id == 0 {
		return "NULL context", nil
	}
	lle, err := m.get(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Context type = %d\nBackend @ = %p\n", int(lle.ctx.Type()), lle.backend) + lle.ctx.String(), nil
}

// BackendID returns the backend kind of the context id.
func (m *Manager) BackendID(id int) (types.BackendID, error) {
	lle, err := m.get(id)
	if err != nil {
		return types.BackendNone, err
	}
	return lle.ctx.BackendID(), nil
}

// BuildURIFromLegacyParameters assembles the URI of a legacy data entry.
func BuildURIFromLegacyParameters(id types.BackendID, pulse, run int, user, tokamak, version, options string) (string, error) {
	return alcontext.BuildURIFromLegacyParameters(id, pulse, run, user, tokamak, version, options)
}
