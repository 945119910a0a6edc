package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/treeq/internal/eval"
	"github.com/roach88/treeq/internal/ir"
)

func TestRepl_Handle(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "doc.json", `{"name":"x","items":[1,2,3]}`)
	out := &bytes.Buffer{}
	r := &repl{ev: eval.New(), doc: ir.NewObject(), w: out}

	steps := []struct {
		input string
		want  string
		quit  bool
	}{
		{"", "", false},
		{"1 + 2", "3\n", false},
		{":doc", "{}\n", false},
		{":load " + doc, "", false},
		{"len(items)", "3\n", false},
		{"name", "\"x\"\n", false},
		{":load", "usage: :load <file>\n", false},
		{":bogus", "unknown command :bogus (try :help)\n", false},
		{":quit", "", true},
	}
	for _, s := range steps {
		out.Reset()
		quit := r.handle(s.input)
		assert.Equal(t, s.quit, quit, s.input)
		assert.Equal(t, s.want, out.String(), s.input)
	}
}

func TestRepl_Errors(t *testing.T) {
	out := &bytes.Buffer{}
	r := &repl{ev: eval.New(), doc: ir.NewObject(), w: out}

	for _, input := range []string{"1 +", "1 / 0", ":load /nonexistent/doc.json"} {
		out.Reset()
		assert.False(t, r.handle(input))
		assert.Contains(t, out.String(), "error: ", input)
	}
	assert.Equal(t, ir.Result(ir.NewObject()), r.doc)
}

func TestRepl_Help(t *testing.T) {
	out := &bytes.Buffer{}
	r := &repl{ev: eval.New(), doc: ir.NewObject(), w: out}

	r.handle(":help")
	assert.Contains(t, out.String(), ":load <file>")
}
