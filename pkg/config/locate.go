package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/parser"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// schemaViolation is one failing location of a schema validation.
type schemaViolation struct {
	// Path is a JSON pointer such as "/paths/dist".
	Path   string
	Line   int
	Column int
}

func (v schemaViolation) String() string {
	if v.Line == 0 {
		return v.Path
	}
	return fmt.Sprintf("%s (line %d, column %d)", v.Path, v.Line, v.Column)
}

// violations flattens err into its failing locations. Unknown keys are
// reported at the key itself rather than at the enclosing mapping.
func violations(data []byte, err *jsonschema.ValidationError) []schemaViolation {
	var out []schemaViolation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}

		if extra, ok := e.ErrorKind.(*kind.AdditionalProperties); ok {
			for _, prop := range extra.Properties {
				out = append(out, newViolation(data, append(append([]string{}, e.InstanceLocation...), prop)))
			}
			return
		}
		out = append(out, newViolation(data, e.InstanceLocation))
	}
	walk(err)
	return out
}

func newViolation(data []byte, location []string) schemaViolation {
	v := schemaViolation{Path: "/" + strings.Join(location, "/")}
	v.Line, v.Column = locate(data, location)
	return v
}

// locate returns the 1-based position of the node at location in the YAML
// document, or zeros when it cannot be found.
func locate(data []byte, location []string) (int, int) {
	file, err := parser.ParseBytes(data, 0)
	if err != nil || len(file.Docs) == 0 {
		return 0, 0
	}

	b := (&yaml.PathBuilder{}).Root()
	for _, segment := range location {
		if idx, err := strconv.Atoi(segment); err == nil && idx >= 0 {
			b = b.Index(uint(idx))
			continue
		}
		b = b.Child(segment)
	}

	node, err := b.Build().FilterFile(file)
	if err != nil || node == nil {
		return 0, 0
	}
	tok := node.GetToken()
	if tok == nil || tok.Position == nil {
		return 0, 0
	}
	return tok.Position.Line, tok.Position.Column
}
