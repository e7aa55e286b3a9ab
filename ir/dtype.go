// dtype.go - Element-Typen und Shapes der Tensoren im Graphen
// Dieses Modul definiert DType, Shape und TensorType.
package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DType represents the element type of a tensor.
type DType int

const (
	DTypeUndefined DType = iota
	DTypeF32
	DTypeF16
	DTypeBF16
	DTypeF64
	DTypeI32
	DTypeI64
	DTypeU8
	DTypeBool
)

var dtypeNames = [...]string{
	DTypeUndefined: "undefined",
	DTypeF32:       "f32",
	DTypeF16:       "f16",
	DTypeBF16:      "bf16",
	DTypeF64:       "f64",
	DTypeI32:       "i32",
	DTypeI64:       "i64",
	DTypeU8:        "u8",
	DTypeBool:      "boolean",
}

func (t DType) String() string {
	if t < 0 || int(t) >= len(dtypeNames) {
		return "DType(" + strconv.Itoa(int(t)) + ")"
	}
	return dtypeNames[t]
}

// Size returns the number of bytes a single element occupies.
func (t DType) Size() int {
	switch t {
	case DTypeF64, DTypeI64:
		return 8
	case DTypeF32, DTypeI32:
		return 4
	case DTypeF16, DTypeBF16:
		return 2
	case DTypeU8, DTypeBool:
		return 1
	default:
		return 0
	}
}

// IsFloat reports whether t is a floating point type.
func (t DType) IsFloat() bool {
	switch t {
	case DTypeF32, DTypeF16, DTypeBF16, DTypeF64:
		return true
	}
	return false
}

// ParseDType parses the textual form produced by DType.String.
func ParseDType(s string) (DType, error) {
	for i, name := range dtypeNames {
		if strings.EqualFold(s, name) {
			return DType(i), nil
		}
	}
	return DTypeUndefined, fmt.Errorf("unknown element type %q", s)
}

func (t DType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *DType) UnmarshalText(b []byte) error {
	v, err := ParseDType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Shape is a static tensor shape.
type Shape []int64

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Elements returns the number of elements described by the shape.
func (s Shape) Elements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Equal(o Shape) bool {
	return slices.Equal(s, o)
}

func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// TensorType is the element type and static shape of one node output.
type TensorType struct {
	DType DType `json:"dtype"`
	Shape Shape `json:"shape"`
}

func (t TensorType) Equal(o TensorType) bool {
	return t.DType == o.DType && t.Shape.Equal(o.Shape)
}

func (t TensorType) String() string {
	return t.DType.String() + t.Shape.String()
}

// broadcastShapes applies numpy style broadcasting to a and b.
func broadcastShapes(a, b Shape) (Shape, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	for i := range rank {
		da, db := int64(1), int64(1)
		if j := len(a) - rank + i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - rank + i; j >= 0 {
			db = b[j]
		}
		switch {
		case da == db, db == 1:
			out[i] = da
		case da == 1:
			out[i] = db
		default:
			return nil, fmt.Errorf("shapes %s and %s are not broadcastable", a, b)
		}
	}
	return out, nil
}

// normalizeAxis maps a possibly negative axis into [0, rank).
func normalizeAxis(axis int64, rank int) (int, error) {
	if axis < 0 {
		axis += int64(rank)
	}
	if axis < 0 || axis >= int64(rank) {
		return 0, fmt.Errorf("axis %d out of range for rank %d", axis, rank)
	}
	return int(axis), nil
}

// NormalizeAxis is the exported form used by rewrite rules.
func NormalizeAxis(axis int64, rank int) (int64, error) {
	a, err := normalizeAxis(axis, rank)
	return int64(a), err
}
