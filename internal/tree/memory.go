package tree

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/treeq/internal/ir"
)

// indexThreshold is the field count above which objects get a name index.
const indexThreshold = 8

type node struct {
	kind     NodeKind
	value    ir.Value
	names    []string
	children []NodeID
	index    map[string]int
}

// Memory is an arena-allocated Tree. Node 0 is the root.
// Memory is immutable after construction and safe for concurrent reads.
type Memory struct {
	nodes []node
}

// FromResult builds a Memory tree holding r.
// Missing becomes a null scalar.
func FromResult(r ir.Result) *Memory {
	m := &Memory{}
	m.add(r)
	return m
}

func (m *Memory) add(r ir.Result) NodeID {
	id := NodeID(len(m.nodes))
	m.nodes = append(m.nodes, node{})

	var n node
	switch v := r.(type) {
	case ir.Array:
		n.kind = KindArray
		n.children = make([]NodeID, len(v))
		for i, elem := range v {
			n.children[i] = m.add(elem)
		}
	case ir.Object:
		n.kind = KindObject
		n.names = make([]string, len(v.Fields))
		n.children = make([]NodeID, len(v.Fields))
		for i, f := range v.Fields {
			n.names[i] = f.Name
			n.children[i] = m.add(f.Value)
		}
		if len(v.Fields) > indexThreshold {
			n.index = make(map[string]int, len(v.Fields))
			for i, name := range n.names {
				n.index[name] = i
			}
		}
	case ir.Scalar:
		n.kind = KindScalar
		n.value = v.Value
	default:
		n.kind = KindScalar
		n.value = ir.Null{}
	}
	m.nodes[id] = n
	return id
}

// ParseJSON decodes one JSON document into a Memory tree.
func ParseJSON(data []byte) (*Memory, error) {
	r, err := ir.ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return FromResult(r), nil
}

// ReadJSONL decodes newline-delimited JSON documents.
// Blank lines are skipped; errors name the 1-based line number.
func ReadJSONL(r io.Reader) (Slice, error) {
	var out Slice
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		t, err := ParseJSON(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read JSONL: %w", err)
	}
	return out, nil
}

// ReadJSON decodes either a JSON array of documents or a stream of
// concatenated JSON documents.
func ReadJSON(r io.Reader) (Slice, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out Slice
	for {
		doc, err := ir.DecodeJSON(dec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(out), err)
		}
		if arr, ok := doc.(ir.Array); ok && len(out) == 0 && !dec.More() {
			for _, elem := range arr {
				out = append(out, FromResult(elem))
			}
			return out, nil
		}
		out = append(out, FromResult(doc))
	}
	return out, nil
}

// Root implements Tree.
func (m *Memory) Root() NodeID { return 0 }

// Kind implements Tree.
func (m *Memory) Kind(id NodeID) NodeKind { return m.nodes[id].kind }

// Value implements Tree.
func (m *Memory) Value(id NodeID) ir.Value {
	if v := m.nodes[id].value; v != nil {
		return v
	}
	return ir.Null{}
}

// Len implements Tree.
func (m *Memory) Len(id NodeID) int { return len(m.nodes[id].children) }

// Child implements Tree.
func (m *Memory) Child(id NodeID, i int) NodeID { return m.nodes[id].children[i] }

// Name implements Tree.
func (m *Memory) Name(id NodeID, i int) string { return m.nodes[id].names[i] }

// Field implements Tree.
func (m *Memory) Field(id NodeID, name string) (NodeID, bool) {
	n := &m.nodes[id]
	if n.kind != KindObject {
		return 0, false
	}
	if n.index != nil {
		i, ok := n.index[name]
		if !ok {
			return 0, false
		}
		return n.children[i], true
	}
	for i, nm := range n.names {
		if nm == name {
			return n.children[i], true
		}
	}
	return 0, false
}

// Result materializes the whole tree.
func (m *Memory) Result() ir.Result {
	return Materialize(m, m.Root())
}
