package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// ParseCUE compiles a CUE source holding queries under "query" and
// returns them in declaration order. Each query is checked against the
// #Query schema; a query without a name takes its label.
func ParseCUE(filename string, src []byte) ([]QueryDoc, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile query schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Query"))

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	queries := v.LookupPath(cue.ParsePath("query"))
	if !queries.Exists() {
		return nil, &CompileError{Field: "query", Message: "no queries found", Pos: v.Pos()}
	}
	iter, err := queries.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var docs []QueryDoc
	for iter.Next() {
		label := iter.Label()
		q := def.Unify(iter.Value())
		if err := q.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(err)
		}
		var doc QueryDoc
		if err := q.Decode(&doc); err != nil {
			return nil, formatCUEError(err)
		}
		if doc.Name == "" {
			doc.Name = label
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// CompileError is a query document error. Pos is set for CUE sources.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
			Err:     err,
		}
	}

	return err
}
