package signal

import (
	"fmt"
	"strconv"
)

// Value is the set of types a signal can carry
type Value interface {
	bool |
		int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		string
}

// Type tags the value type of a signal for reporting
type Type uint8

const (
	TypeUnsupported Type = iota
	TypeBool
	TypeInt
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
)

var typeNames = [...]string{
	TypeUnsupported: "unsupported",
	TypeBool:        "bool",
	TypeInt:         "int",
	TypeInt8:        "int8",
	TypeInt16:       "int16",
	TypeInt32:       "int32",
	TypeInt64:       "int64",
	TypeUint:        "uint",
	TypeUint8:       "uint8",
	TypeUint16:      "uint16",
	TypeUint32:      "uint32",
	TypeUint64:      "uint64",
	TypeFloat32:     "float32",
	TypeFloat64:     "float64",
	TypeString:      "string",
}

// String returns the type name reported in snapshots
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeUnsupported]
}

// TypeOf returns the tag for T
func TypeOf[T Value]() Type {
	var zero T
	switch any(zero).(type) {
	case bool:
		return TypeBool
	case int:
		return TypeInt
	case int8:
		return TypeInt8
	case int16:
		return TypeInt16
	case int32:
		return TypeInt32
	case int64:
		return TypeInt64
	case uint:
		return TypeUint
	case uint8:
		return TypeUint8
	case uint16:
		return TypeUint16
	case uint32:
		return TypeUint32
	case uint64:
		return TypeUint64
	case float32:
		return TypeFloat32
	case float64:
		return TypeFloat64
	case string:
		return TypeString
	}
	return TypeUnsupported
}

// Unsupported is what FormatValue returns for a value it cannot render.
const Unsupported = "unsupported"

// FormatValue renders v: booleans as "true"/"false", numbers in plain
// decimal, strings verbatim.
func FormatValue[T Value](v T) string {
	switch x := any(v).(type) {
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	}
	return Unsupported
}

// ParseValue parses s as T using the same rules FormatValue writes.
func ParseValue[T Value](s string) (T, error) {
	var out T
	var (
		v   any
		err error
	)

	switch any(out).(type) {
	case bool:
		v, err = strconv.ParseBool(s)
	case int:
		var n int64
		n, err = strconv.ParseInt(s, 10, strconv.IntSize)
		v = int(n)
	case int8:
		var n int64
		n, err = strconv.ParseInt(s, 10, 8)
		v = int8(n)
	case int16:
		var n int64
		n, err = strconv.ParseInt(s, 10, 16)
		v = int16(n)
	case int32:
		var n int64
		n, err = strconv.ParseInt(s, 10, 32)
		v = int32(n)
	case int64:
		v, err = strconv.ParseInt(s, 10, 64)
	case uint:
		var n uint64
		n, err = strconv.ParseUint(s, 10, strconv.IntSize)
		v = uint(n)
	case uint8:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 8)
		v = uint8(n)
	case uint16:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 16)
		v = uint16(n)
	case uint32:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 32)
		v = uint32(n)
	case uint64:
		v, err = strconv.ParseUint(s, 10, 64)
	case float32:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v = float32(f)
	case float64:
		v, err = strconv.ParseFloat(s, 64)
	case string:
		v = s
	default:
		return out, fmt.Errorf("no parser for %T", out)
	}

	if err != nil {
		return out, err
	}
	return v.(T), nil
}
