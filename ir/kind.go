// kind.go - Geschlossene Menge der Operator-Arten
// Jede Art traegt Op-Set-Version, Eingangs-Aritaet und Typ-Inferenz.
package ir

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// Kind is the operator kind of a node.
type Kind int

const (
	KindInvalid Kind = iota
	KindParameter
	KindConstant
	KindResult
	KindGelu
	KindGeluLegacy
	KindLogSoftmax
	KindSoftmax
	KindReduceMax
	KindReduceSum
	KindAdd
	KindSubtract
	KindMultiply
	KindDivide
	KindExp
	KindLog
	KindSigmoid
	KindRelu
	KindTanh
	KindErf
	KindBroadcast
	KindTile
	KindTranspose
	KindConcat
	KindReshape
	KindConvert

	kindCount
)

// operand is what type inference sees of one input.
type operand struct {
	TensorType
	Const *Tensor
}

type inferFunc func(attrs *Attributes, in []operand) ([]TensorType, error)

type kindInfo struct {
	name  string
	opset int

	minInputs, maxInputs int // maxInputs < 0: variadic
	outputs              int

	infer inferFunc
}

// errNotInferable marks shapes that depend on non-constant inputs.
var errNotInferable = errors.New("output type depends on a non-constant input")

var kinds = [kindCount]kindInfo{
	KindInvalid:    {name: "Invalid"},
	KindParameter:  {name: "Parameter", opset: 1, outputs: 1},
	KindConstant:   {name: "Constant", opset: 1, outputs: 1},
	KindResult:     {name: "Result", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindGelu:       {name: "Gelu", opset: 7, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferGelu},
	KindGeluLegacy: {name: "Gelu", opset: 2, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindLogSoftmax: {name: "LogSoftmax", opset: 5, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferAxisSame},
	KindSoftmax:    {name: "Softmax", opset: 8, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferAxisSame},
	KindReduceMax:  {name: "ReduceMax", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferReduce},
	KindReduceSum:  {name: "ReduceSum", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferReduce},
	KindAdd:        {name: "Add", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferBinary},
	KindSubtract:   {name: "Subtract", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferBinary},
	KindMultiply:   {name: "Multiply", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferBinary},
	KindDivide:     {name: "Divide", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferBinary},
	KindExp:        {name: "Exp", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindLog:        {name: "Log", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindSigmoid:    {name: "Sigmoid", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindRelu:       {name: "Relu", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindTanh:       {name: "Tanh", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindErf:        {name: "Erf", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferSame},
	KindBroadcast:  {name: "Broadcast", opset: 3, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferBroadcast},
	KindTile:       {name: "Tile", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferTile},
	KindTranspose:  {name: "Transpose", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferTranspose},
	KindConcat:     {name: "Concat", opset: 1, minInputs: 1, maxInputs: -1, outputs: 1, infer: inferConcat},
	KindReshape:    {name: "Reshape", opset: 1, minInputs: 2, maxInputs: 2, outputs: 1, infer: inferReshape},
	KindConvert:    {name: "Convert", opset: 1, minInputs: 1, maxInputs: 1, outputs: 1, infer: inferConvert},
}

func (k Kind) info() kindInfo {
	if k <= KindInvalid || k >= kindCount {
		return kinds[KindInvalid]
	}
	return kinds[k]
}

func (k Kind) Valid() bool { return k > KindInvalid && k < kindCount }

// Name is the operator type name without op-set qualification.
func (k Kind) Name() string { return k.info().name }

// Opset is the op-set version that introduced this variant of the operator.
func (k Kind) Opset() int { return k.info().opset }

// String qualifies the name with its op-set, e.g. "opset7::Gelu".
func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return "opset" + strconv.Itoa(k.Opset()) + "::" + k.Name()
}

// ParseKind accepts both the qualified and, when unambiguous, the bare name.
func ParseKind(s string) (Kind, error) {
	var found []Kind
	for k := KindInvalid + 1; k < kindCount; k++ {
		if s == k.String() {
			return k, nil
		}
		if s == k.Name() {
			found = append(found, k)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return KindInvalid, fmt.Errorf("%w: operator kind %q", ErrUnsupported, s)
	default:
		return KindInvalid, fmt.Errorf("operator kind %q is ambiguous, qualify it with its op-set", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func checkArity(k Kind, n int) error {
	info := k.info()
	if n < info.minInputs || info.maxInputs >= 0 && n > info.maxInputs {
		return fmt.Errorf("%s takes %s inputs, got %d", k, arityText(info), n)
	}
	return nil
}

func arityText(info kindInfo) string {
	switch {
	case info.maxInputs < 0:
		return "at least " + strconv.Itoa(info.minInputs)
	case info.minInputs == info.maxInputs:
		return strconv.Itoa(info.minInputs)
	default:
		return strconv.Itoa(info.minInputs) + "-" + strconv.Itoa(info.maxInputs)
	}
}

func inferSame(_ *Attributes, in []operand) ([]TensorType, error) {
	return []TensorType{{DType: in[0].DType, Shape: in[0].Shape.Clone()}}, nil
}

func inferGelu(attrs *Attributes, in []operand) ([]TensorType, error) {
	switch mode := attrs.String("approximation_mode", "ERF"); mode {
	case "ERF", "TANH":
	default:
		return nil, fmt.Errorf("unknown approximation_mode %q", mode)
	}
	return inferSame(attrs, in)
}

func inferAxisSame(attrs *Attributes, in []operand) ([]TensorType, error) {
	if _, err := normalizeAxis(attrs.Int("axis", 1), in[0].Shape.Rank()); err != nil {
		return nil, err
	}
	return inferSame(attrs, in)
}

func constInts(op operand) ([]int64, error) {
	if op.Const == nil {
		return nil, errNotInferable
	}
	return op.Const.Ints()
}

func inferReduce(attrs *Attributes, in []operand) ([]TensorType, error) {
	axes, err := constInts(in[1])
	if err != nil {
		return nil, err
	}

	rank := in[0].Shape.Rank()
	reduced := make([]bool, rank)
	for _, a := range axes {
		i, err := normalizeAxis(a, rank)
		if err != nil {
			return nil, err
		}
		reduced[i] = true
	}

	keep := attrs.Bool("keep_dims", false)
	var shape Shape
	for i, d := range in[0].Shape {
		switch {
		case !reduced[i]:
			shape = append(shape, d)
		case keep:
			shape = append(shape, 1)
		}
	}
	if shape == nil {
		shape = Shape{}
	}
	return []TensorType{{DType: in[0].DType, Shape: shape}}, nil
}

func inferBinary(_ *Attributes, in []operand) ([]TensorType, error) {
	if in[0].DType != in[1].DType {
		return nil, fmt.Errorf("input element types differ: %s and %s", in[0].DType, in[1].DType)
	}
	shape, err := broadcastShapes(in[0].Shape, in[1].Shape)
	if err != nil {
		return nil, err
	}
	return []TensorType{{DType: in[0].DType, Shape: shape}}, nil
}

func inferBroadcast(_ *Attributes, in []operand) ([]TensorType, error) {
	target, err := constInts(in[1])
	if err != nil {
		return nil, err
	}
	shape, err := broadcastShapes(in[0].Shape, Shape(target))
	if err != nil {
		return nil, err
	}
	return []TensorType{{DType: in[0].DType, Shape: shape}}, nil
}

func inferTile(_ *Attributes, in []operand) ([]TensorType, error) {
	repeats, err := constInts(in[1])
	if err != nil {
		return nil, err
	}

	data := in[0].Shape
	rank := max(len(data), len(repeats))
	shape := make(Shape, rank)
	for i := range rank {
		d, r := int64(1), int64(1)
		if j := len(data) - rank + i; j >= 0 {
			d = data[j]
		}
		if j := len(repeats) - rank + i; j >= 0 {
			r = repeats[j]
		}
		if r < 0 {
			return nil, fmt.Errorf("negative repeat %d", r)
		}
		shape[i] = d * r
	}
	return []TensorType{{DType: in[0].DType, Shape: shape}}, nil
}

func inferTranspose(_ *Attributes, in []operand) ([]TensorType, error) {
	order, err := constInts(in[1])
	if err != nil {
		return nil, err
	}

	data := in[0].Shape
	if len(order) == 0 {
		shape := data.Clone()
		slices.Reverse(shape)
		return []TensorType{{DType: in[0].DType, Shape: shape}}, nil
	}
	if !IsPermutation(order, len(data)) {
		return nil, fmt.Errorf("transpose order %v is not a permutation of rank %d", order, len(data))
	}

	shape := make(Shape, len(order))
	for i, o := range order {
		shape[i] = data[o]
	}
	return []TensorType{{DType: in[0].DType, Shape: shape}}, nil
}

// IsPermutation reports whether order is a permutation of 0..rank-1.
func IsPermutation(order []int64, rank int) bool {
	if len(order) != rank {
		return false
	}
	seen := make([]bool, rank)
	for _, o := range order {
		if o < 0 || o >= int64(rank) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}

func inferConcat(attrs *Attributes, in []operand) ([]TensorType, error) {
	first := in[0]
	axis, err := normalizeAxis(attrs.Int("axis", 0), first.Shape.Rank())
	if err != nil {
		return nil, err
	}

	shape := first.Shape.Clone()
	for _, op := range in[1:] {
		if op.DType != first.DType {
			return nil, fmt.Errorf("input element types differ: %s and %s", first.DType, op.DType)
		}
		if op.Shape.Rank() != shape.Rank() {
			return nil, fmt.Errorf("input ranks differ: %d and %d", shape.Rank(), op.Shape.Rank())
		}
		for i := range shape {
			if i == axis {
				continue
			}
			if shape[i] != op.Shape[i] {
				return nil, fmt.Errorf("inputs %s and %s differ outside axis %d", first.Shape, op.Shape, axis)
			}
		}
		shape[axis] += op.Shape[axis]
	}
	return []TensorType{{DType: first.DType, Shape: shape}}, nil
}

func inferReshape(attrs *Attributes, in []operand) ([]TensorType, error) {
	target, err := constInts(in[1])
	if err != nil {
		return nil, err
	}

	data := in[0].Shape
	specialZero := attrs.Bool("special_zero", false)
	shape := make(Shape, len(target))
	infer := -1
	known := int64(1)
	for i, d := range target {
		switch {
		case d == -1 && infer < 0:
			infer = i
			continue
		case d == -1:
			return nil, fmt.Errorf("reshape target %v has more than one -1", target)
		case d == 0 && specialZero:
			if i >= len(data) {
				return nil, fmt.Errorf("reshape target %v copies missing dimension %d", target, i)
			}
			d = data[i]
		case d < 0:
			return nil, fmt.Errorf("reshape target %v has negative dimension", target)
		}
		shape[i] = d
		known *= d
	}

	if infer >= 0 {
		if known == 0 || data.Elements()%known != 0 {
			return nil, fmt.Errorf("cannot reshape %s into %v", data, target)
		}
		shape[infer] = data.Elements() / known
	}
	if shape.Elements() != data.Elements() {
		return nil, fmt.Errorf("cannot reshape %s into %s", data, shape)
	}
	return []TensorType{{DType: in[0].DType, Shape: shape}}, nil
}

func inferConvert(attrs *Attributes, in []operand) ([]TensorType, error) {
	dst, err := ParseDType(attrs.String("destination_type", ""))
	if err != nil {
		return nil, err
	}
	return []TensorType{{DType: dst, Shape: in[0].Shape.Clone()}}, nil
}
