// attrs.go - Attribut-Map eines Knotens
// Eindeutige Schluessel, Einfuegereihenfolge bleibt erhalten (deterministische Ausgabe).
package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Attributes is an insertion-ordered attribute map. Values are restricted to
// int64, float64, string, bool, []int64 and []float64.
type Attributes struct {
	om *orderedmap.OrderedMap[string, any]
}

// Attrs builds Attributes from alternating key/value pairs. It panics on a
// malformed list, which is a programming error.
func Attrs(kv ...any) *Attributes {
	if len(kv)%2 != 0 {
		panic("ir: Attrs needs key/value pairs")
	}

	a := NewAttributes()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("ir: attribute key %v is not a string", kv[i]))
		}
		if err := a.Set(key, kv[i+1]); err != nil {
			panic(err)
		}
	}
	return a
}

func NewAttributes() *Attributes {
	return &Attributes{om: orderedmap.New[string, any]()}
}

func normalizeValue(v any) (any, error) {
	switch v := v.(type) {
	case int64, float64, string, bool:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case []int64:
		return slices.Clone(v), nil
	case []int:
		out := make([]int64, len(v))
		for i, x := range v {
			out[i] = int64(x)
		}
		return out, nil
	case []float64:
		return slices.Clone(v), nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type %T", v)
	}
}

// Set stores value under key, replacing an existing value.
func (a *Attributes) Set(key string, value any) error {
	v, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", key, err)
	}
	a.init()
	a.om.Set(key, v)
	return nil
}

func (a *Attributes) init() {
	if a.om == nil {
		a.om = orderedmap.New[string, any]()
	}
}

func (a *Attributes) Get(key string) (any, bool) {
	if a == nil || a.om == nil {
		return nil, false
	}
	return a.om.Get(key)
}

func (a *Attributes) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

func (a *Attributes) Delete(key string) {
	if a == nil || a.om == nil {
		return
	}
	a.om.Delete(key)
}

func (a *Attributes) Len() int {
	if a == nil || a.om == nil {
		return 0
	}
	return a.om.Len()
}

// Keys returns the keys in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil || a.om == nil {
		return nil
	}
	keys := make([]string, 0, a.om.Len())
	for pair := a.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func (a *Attributes) Int(key string, defaultValue int64) int64 {
	if v, ok := a.Get(key); ok {
		if i, ok := v.(int64); ok {
			return i
		}
	}
	return defaultValue
}

func (a *Attributes) String(key string, defaultValue string) string {
	if v, ok := a.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}

func (a *Attributes) Bool(key string, defaultValue bool) bool {
	if v, ok := a.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultValue
}

func (a *Attributes) Ints(key string) []int64 {
	if v, ok := a.Get(key); ok {
		if s, ok := v.([]int64); ok {
			return slices.Clone(s)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (a *Attributes) Clone() *Attributes {
	c := NewAttributes()
	if a == nil || a.om == nil {
		return c
	}
	for pair := a.om.Oldest(); pair != nil; pair = pair.Next() {
		v, _ := normalizeValue(pair.Value)
		c.om.Set(pair.Key, v)
	}
	return c
}

// Equal compares keys and values, ignoring insertion order.
func (a *Attributes) Equal(o *Attributes) bool {
	if a.Len() != o.Len() {
		return false
	}
	for _, k := range a.Keys() {
		va, _ := a.Get(k)
		vb, ok := o.Get(k)
		if !ok || !ValueEqual(va, vb) {
			return false
		}
	}
	return true
}

// ValueEqual compares two attribute values. NaN compares equal to NaN so that
// a graph is always equivalent to its own clone. Empty numeric lists are equal
// regardless of element type, JSON cannot tell them apart.
func ValueEqual(a, b any) bool {
	if emptyList(a) && emptyList(b) {
		return true
	}

	switch a := a.(type) {
	case float64:
		b, ok := b.(float64)
		return ok && (a == b || math.IsNaN(a) && math.IsNaN(b))
	case []float64:
		b, ok := b.([]float64)
		return ok && slices.EqualFunc(a, b, func(x, y float64) bool {
			return x == y || math.IsNaN(x) && math.IsNaN(y)
		})
	case []int64:
		b, ok := b.([]int64)
		return ok && slices.Equal(a, b)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func emptyList(v any) bool {
	switch v := v.(type) {
	case []int64:
		return len(v) == 0
	case []float64:
		return len(v) == 0
	}
	return false
}

// dump renders the attributes in insertion order for Node.String.
func (a *Attributes) dump() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range a.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := a.Get(k)
		fmt.Fprintf(&sb, "%s=%v", k, v)
	}
	sb.WriteByte('}')
	return sb.String()
}

// MarshalJSON writes floats with a fraction or exponent so that the element
// type survives a round trip: 2.0 is written as 2.0, never as 2.
func (a *Attributes) MarshalJSON() ([]byte, error) {
	if a == nil || a.om == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for pair := a.om.Oldest(); pair != nil; pair = pair.Next() {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeAttrValue(&buf, pair.Value); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", pair.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeAttrValue(buf *bytes.Buffer, v any) error {
	switch v := v.(type) {
	case float64:
		s, err := formatFloat(v)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case []float64:
		buf.WriteByte('[')
		for i, f := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			s, err := formatFloat(f)
			if err != nil {
				return err
			}
			buf.WriteString(s)
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported float value %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !isFloatLiteral(s) {
		s += ".0"
	}
	return s, nil
}

// isFloatLiteral reports whether a JSON number was written as a float.
func isFloatLiteral(s string) bool {
	return strings.ContainsAny(s, ".eE")
}

// UnmarshalJSON restores the attribute value types. Numbers written with a
// fraction or exponent become float64, all others int64. An array becomes
// []float64 as soon as one element is a float literal.
func (a *Attributes) UnmarshalJSON(b []byte) error {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(b); err != nil {
		return err
	}

	a.om = orderedmap.New[string, any]()
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		v, err := decodeAttrValue(pair.Value)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", pair.Key, err)
		}
		a.om.Set(pair.Key, v)
	}
	return nil
}

func decodeNumber(n json.Number) (any, error) {
	if isFloatLiteral(n.String()) {
		return n.Float64()
	}
	return n.Int64()
}

func decodeAttrValue(raw json.RawMessage) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch v := v.(type) {
	case string, bool:
		return v, nil
	case json.Number:
		return decodeNumber(v)
	case []any:
		nums := make([]json.Number, len(v))
		floats := false
		for i, e := range v {
			n, ok := e.(json.Number)
			if !ok {
				return nil, fmt.Errorf("unsupported array element %T", e)
			}
			nums[i] = n
			floats = floats || isFloatLiteral(n.String())
		}

		if floats {
			out := make([]float64, len(nums))
			for i, n := range nums {
				f, err := n.Float64()
				if err != nil {
					return nil, err
				}
				out[i] = f
			}
			return out, nil
		}

		out := make([]int64, len(nums))
		for i, n := range nums {
			x, err := n.Int64()
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", v)
	}
}
