package backend

import (
	"imascore/internal/alcontext"
	"imascore/internal/interp"
	"imascore/internal/logger"
	"imascore/internal/types"
)

// NoBackend accepts every call and stores nothing.
type NoBackend struct{}

func NewNoBackend() *NoBackend { return &NoBackend{} }

func (b *NoBackend) Version(*alcontext.DataEntryContext) (Version, error) {
	return Version{}, nil
}

func (b *NoBackend) OpenPulse(entry *alcontext.DataEntryContext, mode types.OpenMode) error {
	logger.Debug("NoBackend openPulse %d mode %s", entry.UID(), mode)
	return nil
}

func (b *NoBackend) ClosePulse(entry *alcontext.DataEntryContext, mode types.CloseMode) error {
	logger.Debug("NoBackend closePulse %d mode %s", entry.UID(), mode)
	return nil
}

func (b *NoBackend) BeginAction(*alcontext.OperationContext) error { return nil }

func (b *NoBackend) EndAction(alcontext.Context) error { return nil }

func (b *NoBackend) WriteData(alcontext.Context, string, string, *types.Buffer) error { return nil }

func (b *NoBackend) ReadData(alcontext.Context, string, string) (*types.Buffer, error) {
	return nil, nil
}

func (b *NoBackend) DeleteData(*alcontext.OperationContext, string) error { return nil }

func (b *NoBackend) BeginArraystructAction(*alcontext.ArraystructContext, int) (int, error) {
	return 0, nil
}

func (b *NoBackend) Occurrences(*alcontext.DataEntryContext, string) ([]int, error) {
	return nil, nil
}

func (b *NoBackend) SupportsTimeDataInterpolation() bool { return false }

func (b *NoBackend) SupportsTimeRangeOperation() bool { return false }

func (b *NoBackend) SetDataInterpolation(*interp.DataInterpolation) error { return nil }
