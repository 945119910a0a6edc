package logical

import (
	"github.com/roach88/treeq/internal/expr"
	"github.com/roach88/treeq/internal/qerror"
)

// ValidatePredicate infers pred and requires a single boolean result.
// A vector result is a CARDINALITY error naming the vector path and
// suggesting any()/all().
func ValidatePredicate(pred expr.Expr) error {
	info, err := Infer(pred)
	if err != nil {
		return err
	}
	return checkPredicate(info.Shape, pred)
}

// ValidateScalar infers e and requires one value per input tree, as sort,
// group and index keys do.
func ValidateScalar(e expr.Expr) error {
	info, err := Infer(e)
	if err != nil {
		return err
	}
	if info.Card == CardVector {
		return qerror.New(qerror.KindCardinality, "key yields %s where a single value is required", info.Shape).
			WithPath(vectorSource(e)).
			WithHint("reduce it with first(...), any(...) or an aggregate")
	}
	return nil
}
