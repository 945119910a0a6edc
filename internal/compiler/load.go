package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/treeq/internal/plan"
)

// LoadFile reads the query documents in path. YAML files (.yaml, .yml)
// hold one query; CUE files (.cue) may hold several.
func LoadFile(path string) ([]QueryDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(path, data)
	case ".yaml", ".yml":
		doc, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if doc.Name == "" {
			doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return []QueryDoc{doc}, nil
	default:
		return nil, fmt.Errorf("unsupported query file %q: want .yaml, .yml or .cue", path)
	}
}

// CompileFile loads path and compiles its only query, or the query called
// name when the file holds several.
func CompileFile(path, name string) (QueryDoc, plan.Plan, error) {
	docs, err := LoadFile(path)
	if err != nil {
		return QueryDoc{}, nil, err
	}

	var doc QueryDoc
	switch {
	case name != "":
		found := false
		for _, d := range docs {
			if d.Name == name {
				doc, found = d, true
				break
			}
		}
		if !found {
			return QueryDoc{}, nil, fmt.Errorf("%s: no query named %q", path, name)
		}
	case len(docs) == 1:
		doc = docs[0]
	default:
		names := make([]string, len(docs))
		for i, d := range docs {
			names[i] = d.Name
		}
		return QueryDoc{}, nil, fmt.Errorf("%s holds %d queries (%s); choose one by name",
			path, len(docs), strings.Join(names, ", "))
	}

	p, err := CompileDoc(doc)
	if err != nil {
		return QueryDoc{}, nil, fmt.Errorf("%s: query %q: %w", path, doc.Name, err)
	}
	return doc, p, nil
}
