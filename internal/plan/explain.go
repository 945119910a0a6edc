package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/treeq/internal/expr"
)

// Explain renders p as an indented operator tree, root first. The output
// is deterministic and identical plans render identically.
//
//	Head(10)
//	└─ Filter(price > 10)
//	   └─ Scan(orders)
func Explain(p Plan) string {
	var b strings.Builder
	depth := 0
	Walk(p, func(n Plan) bool {
		if depth > 0 {
			b.WriteString(strings.Repeat("   ", depth-1))
			b.WriteString("└─ ")
		}
		b.WriteString(Label(n))
		b.WriteByte('\n')
		depth++
		return true
	})
	return b.String()
}

// Label renders a single operator without its source.
func Label(p Plan) string {
	switch p := p.(type) {
	case Scan:
		return fmt.Sprintf("Scan(%s)", p.Collection)
	case Filter:
		if n, ok := p.Limit.Get(); ok {
			return fmt.Sprintf("Filter(%s, limit=%d)", p.Predicate, n)
		}
		return fmt.Sprintf("Filter(%s)", p.Predicate)
	case Head:
		return fmt.Sprintf("Head(%d)", p.N)
	case Tail:
		return fmt.Sprintf("Tail(%d)", p.N)
	case Take:
		idx := make([]string, len(p.Indices))
		for i, n := range p.Indices {
			idx[i] = strconv.Itoa(n)
		}
		return fmt.Sprintf("Take([%s])", strings.Join(idx, ", "))
	case Sample:
		return fmt.Sprintf("Sample(%d, seed=%d)", p.N, p.Seed)
	case Shuffle:
		return fmt.Sprintf("Shuffle(seed=%d)", p.Seed)
	case Sort:
		return fmt.Sprintf("Sort(%s)", formatKeys(p.Keys))
	case TopK:
		return fmt.Sprintf("TopK(%d, %s)", p.K, formatKeys(p.Keys))
	case Select:
		return fmt.Sprintf("Select(%s)", formatFields(p.Fields))
	case AddFields:
		return fmt.Sprintf("AddFields(%s)", formatFields(p.Fields))
	case Explode:
		return fmt.Sprintf("Explode(%s as $%s)", p.Expr, p.Binding)
	case GroupBy:
		return fmt.Sprintf("GroupBy(keys: [%s], aggs: [%s])", formatFields(p.Keys), formatAggs(p.Aggs))
	case IndexBy:
		return fmt.Sprintf("IndexBy(%s)", p.Key)
	case UniqueBy:
		return fmt.Sprintf("UniqueBy(%s)", p.Key)
	case Aggregate:
		return fmt.Sprintf("Aggregate(%s)", formatAggs(p.Aggs))
	case Append:
		return fmt.Sprintf("Append(%s, [%s])", p.Path, formatExprs(p.Values))
	case Insert:
		return fmt.Sprintf("Insert(%s, %d, %s)", p.Path, p.Index, p.Value)
	case Set:
		return fmt.Sprintf("Set(%s = %s)", p.Path, p.Value)
	case Remove:
		return fmt.Sprintf("Remove(%s)", p.Path)
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<unknown %T>", p)
}

func formatKeys(keys []SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// String renders the key as "expr" or "expr desc".
func (k SortKey) String() string {
	if k.Desc {
		return k.Expr.String() + " desc"
	}
	return k.Expr.String()
}

func formatFields(fields []NamedExpr) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Expr)
	}
	return strings.Join(parts, ", ")
}

func formatAggs(aggs []AggSpec) string {
	parts := make([]string, len(aggs))
	for i, a := range aggs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// String renders the aggregate as "name: fn(arg)".
func (a AggSpec) String() string {
	arg := ""
	if a.Arg != nil {
		arg = a.Arg.String()
	}
	return fmt.Sprintf("%s: %s(%s)", a.Name, a.Fn, arg)
}

func formatExprs(es []expr.Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
