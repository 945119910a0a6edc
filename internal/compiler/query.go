package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// QueryDoc is the document form of a query.
type QueryDoc struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	From        string `yaml:"from" json:"from"`
	Pipeline    []Step `yaml:"pipeline" json:"pipeline"`
}

// Step is one pipeline stage. Exactly one operator field is set; Limit
// only accompanies Filter.
type Step struct {
	Filter    *string      `yaml:"filter,omitempty" json:"filter,omitempty"`
	Limit     *int         `yaml:"limit,omitempty" json:"limit,omitempty"`
	Head      *int         `yaml:"head,omitempty" json:"head,omitempty"`
	Tail      *int         `yaml:"tail,omitempty" json:"tail,omitempty"`
	Take      []int        `yaml:"take,omitempty" json:"take,omitempty"`
	Sample    *SampleStep  `yaml:"sample,omitempty" json:"sample,omitempty"`
	Shuffle   *ShuffleStep `yaml:"shuffle,omitempty" json:"shuffle,omitempty"`
	Sort      []SortKey    `yaml:"sort,omitempty" json:"sort,omitempty"`
	TopK      *TopKStep    `yaml:"topk,omitempty" json:"topk,omitempty"`
	Select    []Field      `yaml:"select,omitempty" json:"select,omitempty"`
	AddFields []Field      `yaml:"add_fields,omitempty" json:"add_fields,omitempty"`
	Explode   *ExplodeStep `yaml:"explode,omitempty" json:"explode,omitempty"`
	GroupBy   *GroupByStep `yaml:"group_by,omitempty" json:"group_by,omitempty"`
	IndexBy   *string      `yaml:"index_by,omitempty" json:"index_by,omitempty"`
	UniqueBy  *string      `yaml:"unique_by,omitempty" json:"unique_by,omitempty"`
	Aggregate []Agg        `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
	Append    *AppendStep  `yaml:"append,omitempty" json:"append,omitempty"`
	Insert    *InsertStep  `yaml:"insert,omitempty" json:"insert,omitempty"`
	Set       *SetStep     `yaml:"set,omitempty" json:"set,omitempty"`
	Remove    *string      `yaml:"remove,omitempty" json:"remove,omitempty"`
}

type SampleStep struct {
	N    int    `yaml:"n" json:"n"`
	Seed uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

type ShuffleStep struct {
	Seed uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// SortKey is an expression with a direction.
type SortKey struct {
	Key  string `yaml:"key" json:"key"`
	Desc bool   `yaml:"desc,omitempty" json:"desc,omitempty"`
}

type TopKStep struct {
	K  int       `yaml:"k" json:"k"`
	By []SortKey `yaml:"by" json:"by"`
}

// Field names an expression.
type Field struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

type ExplodeStep struct {
	Path string `yaml:"path" json:"path"`
	As   string `yaml:"as" json:"as"`
}

type GroupByStep struct {
	Keys []Field `yaml:"keys" json:"keys"`
	Aggs []Agg   `yaml:"aggs,omitempty" json:"aggs,omitempty"`
}

// Agg is an aggregate output. An empty Arg aggregates whole rows.
type Agg struct {
	Name string `yaml:"name" json:"name"`
	Fn   string `yaml:"fn" json:"fn"`
	Arg  string `yaml:"arg,omitempty" json:"arg,omitempty"`
}

type AppendStep struct {
	Path   string   `yaml:"path" json:"path"`
	Values []string `yaml:"values" json:"values"`
}

type InsertStep struct {
	Path  string `yaml:"path" json:"path"`
	Index int    `yaml:"index" json:"index"`
	Value string `yaml:"value" json:"value"`
}

type SetStep struct {
	Path  string `yaml:"path" json:"path"`
	Value string `yaml:"value" json:"value"`
}

// operators returns the yaml names of the operator fields set on s.
func (s Step) operators() []string {
	var ops []string
	add := func(set bool, name string) {
		if set {
			ops = append(ops, name)
		}
	}
	add(s.Filter != nil, "filter")
	add(s.Head != nil, "head")
	add(s.Tail != nil, "tail")
	add(s.Take != nil, "take")
	add(s.Sample != nil, "sample")
	add(s.Shuffle != nil, "shuffle")
	add(s.Sort != nil, "sort")
	add(s.TopK != nil, "topk")
	add(s.Select != nil, "select")
	add(s.AddFields != nil, "add_fields")
	add(s.Explode != nil, "explode")
	add(s.GroupBy != nil, "group_by")
	add(s.IndexBy != nil, "index_by")
	add(s.UniqueBy != nil, "unique_by")
	add(s.Aggregate != nil, "aggregate")
	add(s.Append != nil, "append")
	add(s.Insert != nil, "insert")
	add(s.Set != nil, "set")
	add(s.Remove != nil, "remove")
	return ops
}

// ParseYAML decodes a single YAML query document. Unknown fields are
// rejected.
func ParseYAML(data []byte) (QueryDoc, error) {
	var doc QueryDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return QueryDoc{}, &CompileError{Field: "query", Message: "empty document"}
		}
		return QueryDoc{}, fmt.Errorf("decode query: %w", err)
	}
	return doc, nil
}
