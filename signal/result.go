package signal

import (
	"fmt"

	"github.com/c360/simucore/errors"
)

// Status is the outcome of an external mutation
type Status uint8

const (
	StatusSuccess Status = iota
	StatusReadOnly
	StatusUnsupportedType
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusReadOnly:
		return "read_only"
	case StatusUnsupportedType:
		return "unsupported_type"
	default:
		return "unknown"
	}
}

// Result reports what SetValueFromString did
type Result struct {
	Status  Status
	Message string
}

// OK reports whether the mutation was applied
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Err converts a failed result to an invalid-class error wrapping
// ErrReadOnly or ErrUnsupportedType. Successful results return nil.
func (r Result) Err() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusReadOnly:
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrReadOnly, r.Message),
			"Signal", "SetValueFromString", "role check")
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrUnsupportedType, r.Message),
			"Signal", "SetValueFromString", "parse")
	}
}
