package types

import "fmt"

// BackendID identifies a storage backend.
type BackendID int

const (
	BackendNone BackendID = iota
	BackendASCII
	BackendMDSplus
	BackendHDF5
	BackendMemory
	BackendUDA
	BackendFlexBuffers
	BackendSerialize
)

var backendNames = map[BackendID]string{
	BackendNone:        "NO_BACKEND",
	BackendASCII:       "ASCII_BACKEND",
	BackendMDSplus:     "MDSPLUS_BACKEND",
	BackendHDF5:        "HDF5_BACKEND",
	BackendMemory:      "MEMORY_BACKEND",
	BackendUDA:         "UDA_BACKEND",
	BackendFlexBuffers: "FLEXBUFFERS_BACKEND",
	BackendSerialize:   "SERIALIZE_BACKEND",
}

func (b BackendID) String() string {
	if s, ok := backendNames[b]; ok {
		return s
	}
	return fmt.Sprintf("BackendID(%d)", int(b))
}

// AccessMode is the direction of an operation.
type AccessMode int

const (
	ReadOp AccessMode = iota
	WriteOp
	ReplaceOp
)

func (a AccessMode) Valid() bool { return a >= ReadOp && a <= ReplaceOp }

func (a AccessMode) String() string {
	switch a {
	case ReadOp:
		return "READ_OP"
	case WriteOp:
		return "WRITE_OP"
	case ReplaceOp:
		return "REPLACE_OP"
	}
	return fmt.Sprintf("AccessMode(%d)", int(a))
}

// RangeMode is the time scope of an operation.
type RangeMode int

const (
	GlobalOp RangeMode = iota
	SliceOp
	TimeRangeOp
)

func (r RangeMode) Valid() bool { return r >= GlobalOp && r <= TimeRangeOp }

func (r RangeMode) String() string {
	switch r {
	case GlobalOp:
		return "GLOBAL_OP"
	case SliceOp:
		return "SLICE_OP"
	case TimeRangeOp:
		return "TIMERANGE_OP"
	}
	return fmt.Sprintf("RangeMode(%d)", int(r))
}

// InterpMode selects how samples are picked or combined when a requested
// time does not match a stored sample.
type InterpMode int

const (
	UndefinedInterp InterpMode = iota
	ClosestInterp
	PreviousInterp
	LinearInterp
)

func (i InterpMode) Valid() bool { return i >= UndefinedInterp && i <= LinearInterp }

func (i InterpMode) String() string {
	switch i {
	case UndefinedInterp:
		return "UNDEFINED_INTERP"
	case ClosestInterp:
		return "CLOSEST_INTERP"
	case PreviousInterp:
		return "PREVIOUS_INTERP"
	case LinearInterp:
		return "LINEAR_INTERP"
	}
	return fmt.Sprintf("InterpMode(%d)", int(i))
}

// DataType tags the element type of a Buffer.
type DataType int

const (
	CharData DataType = iota
	IntegerData
	DoubleData
	ComplexData
)

func (d DataType) Valid() bool { return d >= CharData && d <= ComplexData }

func (d DataType) String() string {
	switch d {
	case CharData:
		return "CHAR_DATA"
	case IntegerData:
		return "INTEGER_DATA"
	case DoubleData:
		return "DOUBLE_DATA"
	case ComplexData:
		return "COMPLEX_DATA"
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// OpenMode controls how a data entry is opened.
type OpenMode int

const (
	OpenPulse OpenMode = iota
	ForceOpenPulse
	CreatePulse
	ForceCreatePulse
)

func (m OpenMode) String() string {
	switch m {
	case OpenPulse:
		return "OPEN_PULSE"
	case ForceOpenPulse:
		return "FORCE_OPEN_PULSE"
	case CreatePulse:
		return "CREATE_PULSE"
	case ForceCreatePulse:
		return "FORCE_CREATE_PULSE"
	}
	return fmt.Sprintf("OpenMode(%d)", int(m))
}

// CloseMode controls what happens to a data entry when it is closed.
type CloseMode int

const (
	ClosePulse CloseMode = iota
	ErasePulse
)

func (m CloseMode) String() string {
	switch m {
	case ClosePulse:
		return "CLOSE_PULSE"
	case ErasePulse:
		return "ERASE_PULSE"
	}
	return fmt.Sprintf("CloseMode(%d)", int(m))
}

// Sentinels for unset values.
const (
	UndefinedTime = -999999999.0
	EmptyInt      = int32(-999999999)
	EmptyDouble   = -9.0e40
	EmptyChar     = byte(0)
)

// EmptyComplex is the unset complex value.
var EmptyComplex = complex(EmptyDouble, EmptyDouble)
