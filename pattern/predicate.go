package pattern

import (
	"slices"

	"github.com/ollama/irpass/ir"
)

// Predicate constrains the node a placeholder binds to. Type predicates look
// at the node's first output.
type Predicate func(n *ir.Node) bool

func KindIs(kinds ...ir.Kind) Predicate {
	return func(n *ir.Node) bool { return slices.Contains(kinds, n.Kind()) }
}

func HasAttr(key string) Predicate {
	return func(n *ir.Node) bool { return n.Attrs().Has(key) }
}

// AttrEquals accepts the node if attribute key equals value. A missing
// attribute only matches when defaultValue is given and equals value.
func AttrEquals(key string, value any, defaultValue ...any) Predicate {
	want := ir.Attrs(key, value)
	wantValue, _ := want.Get(key)

	return func(n *ir.Node) bool {
		got, ok := n.Attrs().Get(key)
		if !ok {
			if len(defaultValue) == 0 {
				return false
			}
			d := ir.Attrs(key, defaultValue[0])
			got, _ = d.Get(key)
		}
		return ir.ValueEqual(got, wantValue)
	}
}

func ElementType(dtypes ...ir.DType) Predicate {
	return func(n *ir.Node) bool {
		return n.NumOutputs() > 0 && slices.Contains(dtypes, n.OutputType(0).DType)
	}
}

func Rank(rank int) Predicate {
	return func(n *ir.Node) bool {
		return n.NumOutputs() > 0 && n.OutputType(0).Shape.Rank() == rank
	}
}

func StaticShape(shape ir.Shape) Predicate {
	return func(n *ir.Node) bool {
		return n.NumOutputs() > 0 && n.OutputType(0).Shape.Equal(shape)
	}
}

// ConstantInts accepts constant integer nodes whose payload satisfies fn.
func ConstantInts(fn func([]int64) bool) Predicate {
	return func(n *ir.Node) bool {
		if !n.IsConstant() {
			return false
		}
		values, err := n.Value().Ints()
		return err == nil && fn(values)
	}
}

