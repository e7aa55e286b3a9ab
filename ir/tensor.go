// tensor.go - Konstanten-Daten (Payload von Constant-Knoten)
// f16 via x448/float16, bf16 via go-bfloat16, alles little-endian.
package ir

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Tensor is the payload of a constant node.
type Tensor struct {
	DType DType  `json:"dtype"`
	Shape Shape  `json:"shape"`
	Data  []byte `json:"data"`
}

// NewTensor encodes values as dtype. Integer and boolean types truncate.
func NewTensor(dtype DType, shape Shape, values []float64) (*Tensor, error) {
	if int64(len(values)) != shape.Elements() {
		return nil, fmt.Errorf("tensor %s%s needs %d values, got %d", dtype, shape, shape.Elements(), len(values))
	}

	var buf bytes.Buffer
	switch dtype {
	case DTypeF32:
		for _, v := range values {
			binary.Write(&buf, binary.LittleEndian, float32(v)) //nolint:errcheck
		}
	case DTypeF64:
		for _, v := range values {
			binary.Write(&buf, binary.LittleEndian, v) //nolint:errcheck
		}
	case DTypeF16:
		for _, v := range values {
			binary.Write(&buf, binary.LittleEndian, float16.Fromfloat32(float32(v)).Bits()) //nolint:errcheck
		}
	case DTypeBF16:
		f32s := make([]float32, len(values))
		for i, v := range values {
			f32s[i] = float32(v)
		}
		buf.Write(bfloat16.EncodeFloat32(f32s))
	case DTypeI32:
		for _, v := range values {
			binary.Write(&buf, binary.LittleEndian, int32(v)) //nolint:errcheck
		}
	case DTypeI64:
		for _, v := range values {
			binary.Write(&buf, binary.LittleEndian, int64(v)) //nolint:errcheck
		}
	case DTypeU8:
		for _, v := range values {
			buf.WriteByte(uint8(v))
		}
	case DTypeBool:
		for _, v := range values {
			if v != 0 {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		}
	default:
		return nil, fmt.Errorf("%w: constant of type %s", ErrUnsupported, dtype)
	}

	return &Tensor{DType: dtype, Shape: shape.Clone(), Data: buf.Bytes()}, nil
}

// Int64Tensor is a shorthand for i64 index tensors (axes, shapes, orders).
func Int64Tensor(values ...int64) *Tensor {
	t := &Tensor{DType: DTypeI64, Shape: Shape{int64(len(values))}}
	t.Data = make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(t.Data[8*i:], uint64(v))
	}
	return t
}

func (t *Tensor) Type() TensorType {
	return TensorType{DType: t.DType, Shape: t.Shape.Clone()}
}

// Floats decodes the payload into float64 values.
func (t *Tensor) Floats() ([]float64, error) {
	n := int(t.Shape.Elements())
	if size := t.DType.Size(); size == 0 || len(t.Data) != n*size {
		return nil, fmt.Errorf("tensor %s%s has %d bytes of data", t.DType, t.Shape, len(t.Data))
	}

	out := make([]float64, n)
	switch t.DType {
	case DTypeF32:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:])))
		}
	case DTypeF64:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(t.Data[8*i:]))
		}
	case DTypeF16:
		for i := range out {
			out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(t.Data[2*i:])).Float32())
		}
	case DTypeBF16:
		for i, f := range bfloat16.DecodeFloat32(t.Data) {
			out[i] = float64(f)
		}
	case DTypeI32:
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(t.Data[4*i:])))
		}
	case DTypeI64:
		for i := range out {
			out[i] = float64(int64(binary.LittleEndian.Uint64(t.Data[8*i:])))
		}
	case DTypeU8, DTypeBool:
		for i := range out {
			out[i] = float64(t.Data[i])
		}
	}
	return out, nil
}

// Ints decodes an integer payload. Only i32 and i64 are accepted.
func (t *Tensor) Ints() ([]int64, error) {
	n := int(t.Shape.Elements())
	switch t.DType {
	case DTypeI64:
		if len(t.Data) != 8*n {
			return nil, fmt.Errorf("tensor i64%s has %d bytes of data", t.Shape, len(t.Data))
		}
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(t.Data[8*i:]))
		}
		return out, nil
	case DTypeI32:
		if len(t.Data) != 4*n {
			return nil, fmt.Errorf("tensor i32%s has %d bytes of data", t.Shape, len(t.Data))
		}
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(int32(binary.LittleEndian.Uint32(t.Data[4*i:])))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tensor of type %s is not an integer tensor", t.DType)
	}
}

func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.DType == o.DType && t.Shape.Equal(o.Shape) && bytes.Equal(t.Data, o.Data)
}

func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	return &Tensor{DType: t.DType, Shape: t.Shape.Clone(), Data: bytes.Clone(t.Data)}
}
