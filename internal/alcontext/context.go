// Package alcontext models an access request as a chain of contexts: a
// DataEntryContext for the open database, an OperationContext for one
// read or write against a data object, and ArraystructContexts positioning
// the request inside nested arrays of structures.
package alcontext

import (
	"fmt"
	"sync/atomic"

	"imascore/internal/types"
	"imascore/internal/uri"
)

// Type tags the concrete kind of a Context.
type Type int

const (
	DataEntryType Type = iota + 1
	OperationType
	ArraystructType
)

func (t Type) String() string {
	switch t {
	case DataEntryType:
		return "CTX_PULSE_TYPE"
	case OperationType:
		return "CTX_OPERATION_TYPE"
	case ArraystructType:
		return "CTX_ARRAYSTRUCT_TYPE"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Context is the capability shared by all contexts. The set of
// implementations is closed to this package.
type Context interface {
	// UID is unique within the process and increases with construction order.
	UID() uint64
	Type() Type
	// BackendID is resolved through the owner chain.
	BackendID() types.BackendID
	URI() uri.URI
	// String describes the context and its owner chain.
	String() string

	isContext()
}

var lastUID atomic.Uint64

func nextUID() uint64 {
	return lastUID.Add(1)
}

func uidLine(uid uint64) string {
	return fmt.Sprintf("context_uid \t\t = %d\n", uid)
}
