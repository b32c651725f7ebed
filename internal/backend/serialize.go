package backend

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"imascore/internal/alcontext"
	"imascore/internal/alerrors"
	"imascore/internal/interp"
	"imascore/internal/logger"
	"imascore/internal/storage"
	"imascore/internal/types"
)

// BufferField is the pseudo field through which a serialized data object
// is exchanged as a single character buffer: reading it in a write action
// returns the frame of the staged object, writing it on the data entry
// loads a frame for the next read action.
const BufferField = "<buffer>"

const serializeExt = ".alser"

var serializeVersion = Version{Major: 1, Minor: 0}

// SerializeBackend stores each data object as one frame file under the
// entry path. Without a path it only exchanges frames through BufferField.
// Only global operations are supported and contexts must be ended in the
// reverse order they were begun.
type SerializeBackend struct {
	level zstd.EncoderLevel
	dir   string

	stack   []uint64
	actions map[uint64]*action
	loaded  *storage.Struct
}

func NewSerializeBackend(level string) (*SerializeBackend, error) {
	l, err := storage.ParseLevel(level)
	if err != nil {
		return nil, alerrors.New(alerrors.BackendErr, err.Error())
	}
	return &SerializeBackend{level: l, actions: make(map[uint64]*action)}, nil
}

func (b *SerializeBackend) Version(*alcontext.DataEntryContext) (Version, error) {
	return serializeVersion, nil
}

func (b *SerializeBackend) push(ctx alcontext.Context) { b.stack = append(b.stack, ctx.UID()) }

func (b *SerializeBackend) OpenPulse(entry *alcontext.DataEntryContext, mode types.OpenMode) error {
	b.push(entry)
	b.dir = entry.Path()
	if b.dir == "" {
		return nil
	}
	switch mode {
	case types.OpenPulse:
		if _, err := os.Stat(b.dir); err != nil {
			return alerrors.Errorf(alerrors.BackendErr, "Data entry %s does not exist", b.dir)
		}
	case types.ForceOpenPulse, types.CreatePulse:
		if err := os.MkdirAll(b.dir, 0755); err != nil {
			return alerrors.New(alerrors.BackendErr, err.Error())
		}
	case types.ForceCreatePulse:
		if err := os.RemoveAll(b.dir); err != nil {
			return alerrors.New(alerrors.BackendErr, err.Error())
		}
		if err := os.MkdirAll(b.dir, 0755); err != nil {
			return alerrors.New(alerrors.BackendErr, err.Error())
		}
	default:
		return alerrors.Errorf(alerrors.BackendErr, "Mode %d not yet supported", int(mode))
	}
	return nil
}

func (b *SerializeBackend) ClosePulse(entry *alcontext.DataEntryContext, mode types.CloseMode) error {
	b.loaded = nil
	if mode == types.ErasePulse && b.dir != "" {
		if err := os.RemoveAll(b.dir); err != nil {
			return alerrors.New(alerrors.BackendErr, err.Error())
		}
		logger.Debug("serialize backend erased %s", b.dir)
	}
	return nil
}

func (b *SerializeBackend) file(name string) string {
	return filepath.Join(b.dir, strings.ReplaceAll(name, "/", "_")+serializeExt)
}

func (b *SerializeBackend) BeginAction(op *alcontext.OperationContext) error {
	if op.RangeMode() != types.GlobalOp {
		return alerrors.New(alerrors.BackendErr, "Serialize Backend does not support slice mode")
	}
	b.push(op)

	write := op.AccessMode() != types.ReadOp
	tree := storage.NewStruct()
	switch {
	case write:
	case b.loaded != nil:
		tree, b.loaded = b.loaded, nil
	case b.dir != "":
		s, err := storage.ReadStructFile(b.file(op.DataObjectName()))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return alerrors.New(alerrors.BackendErr, err.Error())
		default:
			tree = s
		}
	}
	b.actions[op.UID()] = newAction(op, tree, write)
	return nil
}

func (b *SerializeBackend) actionOf(ctx alcontext.Context) (*action, error) {
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

func (b *SerializeBackend) EndAction(ctx alcontext.Context) error {
	if len(b.stack) == 0 {
		return alerrors.Errorf(alerrors.BackendErr, "Unexpected nesting of contexts: ending %d with no open context", ctx.UID())
	}
	if top := b.stack[len(b.stack)-1]; top != ctx.UID() {
		return alerrors.Errorf(alerrors.BackendErr, "Unexpected nesting of contexts: ending %d top context is %d", ctx.UID(), top)
	}
	b.stack = b.stack[:len(b.stack)-1]

	switch c := ctx.(type) {
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
		if !a.write || b.dir == "" {
			return nil
		}
		path := b.file(c.DataObjectName())
		if a.tree.Empty() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return alerrors.New(alerrors.BackendErr, err.Error())
			}
			return nil
		}
		if err := storage.WriteStructFile(path, a.tree, b.level); err != nil {
			return alerrors.New(alerrors.BackendErr, err.Error())
		}
		logger.Debug("serialize backend wrote %s", path)
	}
	return nil
}

func (b *SerializeBackend) WriteData(ctx alcontext.Context, field, timebase string, data *types.Buffer) error {
	if field == BufferField {
		payload, err := storage.ReadFrameBytes(data.Chars)
		if err != nil {
			return alerrors.Errorf(alerrors.BackendErr, "Serialize Backend: %v", err)
		}
		s, err := storage.UnmarshalStruct(payload)
		if err != nil {
			return alerrors.Errorf(alerrors.BackendErr, "Serialize Backend: %v", err)
		}
		b.loaded = s
		return nil
	}
	a, err := b.actionOf(ctx)
	if err != nil {
		return err
	}
	if !a.write {
		return alerrors.New(alerrors.BackendErr, "Cannot write data when deserializing.")
	}
	return a.writeLeaf(ctx, field, timebase, data)
}

func (b *SerializeBackend) ReadData(ctx alcontext.Context, field, timebase string) (*types.Buffer, error) {
	a, err := b.actionOf(ctx)
	if err != nil {
		return nil, err
	}
	if field == BufferField {
		if !a.write {
			return nil, alerrors.New(alerrors.BackendErr, "Reading <buffer>, but no object is being serialized")
		}
		frame, err := storage.FrameBytes(storage.MarshalStruct(a.tree), b.level)
		if err != nil {
			return nil, alerrors.New(alerrors.BackendErr, err.Error())
		}
		return &types.Buffer{Type: types.CharData, Shape: []int{len(frame)}, Chars: frame}, nil
	}
	if a.write {
		return nil, alerrors.New(alerrors.BackendErr, "Cannot read data when serializing.")
	}
	v, err := a.view(ctx)
	if err != nil {
		return nil, err
	}
	_, data, err := readLeaf(v, field, nil)
	return data, err
}

// DeleteData has nothing to do: a write always starts from an empty object.
func (b *SerializeBackend) DeleteData(*alcontext.OperationContext, string) error { return nil }

func (b *SerializeBackend) BeginArraystructAction(c *alcontext.ArraystructContext, size int) (int, error) {
	a, err := b.actionOf(c)
	if err != nil {
		return 0, err
	}
	b.push(c)
	if a.write {
		if size <= 0 {
			a.arrays[c.UID()] = &array{ctx: c, aos: &storage.AOS{}}
			return size, nil
		}
		return size, a.beginWrite(c, size)
	}
	return a.beginRead(c)
}

func (b *SerializeBackend) Occurrences(*alcontext.DataEntryContext, string) ([]int, error) {
	return nil, alerrors.New(alerrors.BackendErr, "get_occurrences is not implemented in the Serialize Backend")
}

func (b *SerializeBackend) SupportsTimeDataInterpolation() bool { return false }

func (b *SerializeBackend) SupportsTimeRangeOperation() bool { return false }

func (b *SerializeBackend) SetDataInterpolation(*interp.DataInterpolation) error {
	return alerrors.New(alerrors.BackendErr, "Serialize Backend does not support time data interpolation")
}
