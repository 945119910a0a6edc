package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/treeq/internal/compiler"
	"github.com/roach88/treeq/internal/qerror"
)

// Scenario is one query test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source selects the catalog: "memory" (default) or "sqlite", which
	// loads the data into a fresh in-memory store.
	Source string `yaml:"source,omitempty"`

	// Data maps collection names to inline JSONL.
	Data map[string]string `yaml:"data,omitempty"`

	// DataFiles maps collection names to JSONL files. Paths are relative
	// to the scenario file.
	DataFiles map[string]string `yaml:"data_files,omitempty"`

	// Query is the query under test.
	Query compiler.QueryDoc `yaml:"query"`

	// Expect checks the whole outcome.
	Expect *Expect `yaml:"expect,omitempty"`

	// Assertions check properties of the outcome.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the scenario file's directory.
	dir string
}

// Expect is an exact expectation on the outcome.
type Expect struct {
	// Rows is a JSON array the output must equal.
	Rows string `yaml:"rows,omitempty"`

	// Error is the error kind the query must fail with.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks one property of the output.
type Assertion struct {
	// Type is one of row_count, contains, ordered_by, rule_fired.
	Type string `yaml:"type"`

	// Count is the expected number of rows (row_count).
	Count int `yaml:"count,omitempty"`

	// Row is a JSON object some row must contain (contains).
	Row string `yaml:"row,omitempty"`

	// Key is the sort expression (ordered_by).
	Key  string `yaml:"key,omitempty"`
	Desc bool   `yaml:"desc,omitempty"`

	// Rule is an optimizer rule name (rule_fired).
	Rule string `yaml:"rule,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount  = "row_count"
	AssertContains  = "contains"
	AssertOrderedBy = "ordered_by"
	AssertRuleFired = "rule_fired"
)

// Source constants.
const (
	SourceMemory = "memory"
	SourceSQLite = "sqlite"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	scenario.dir = filepath.Dir(path)

	for name, file := range scenario.DataFiles {
		if _, err := os.Stat(scenario.resolve(file)); err != nil {
			return nil, fmt.Errorf("%s: data file for %q: %w", path, name, err)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Data file paths resolve against
// the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name. Subdirectories are not searched.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := map[string]string{}
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("scenario %q defined in both %s and %s", s.Name, prev, path)
		}
		names[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Source {
	case "", SourceMemory, SourceSQLite:
	default:
		return fmt.Errorf("unknown source %q", s.Source)
	}

	if s.Query.From == "" {
		return fmt.Errorf("query.from is required")
	}

	for name := range s.DataFiles {
		if _, dup := s.Data[name]; dup {
			return fmt.Errorf("collection %q has both inline data and a data file", name)
		}
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	if s.Expect != nil {
		if (s.Expect.Rows == "") == (s.Expect.Error == "") {
			return fmt.Errorf("expect: exactly one of rows or error is required")
		}
		if s.Expect.Error != "" && !slices.Contains(qerror.Kinds(), qerror.Kind(s.Expect.Error)) {
			return fmt.Errorf("expect: unknown error kind %q", s.Expect.Error)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertContains:
		if a.Row == "" {
			return fmt.Errorf("assertions[%d]: row is required for contains", index)
		}
	case AssertOrderedBy:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for ordered_by", index)
		}
	case AssertRuleFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for rule_fired", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
