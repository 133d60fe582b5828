package pipeline

import (
	"context"
	"fmt"
	"html"
	"regexp"
)

// buildBlock matches "<!-- build:NAME --> ... <!-- endbuild -->", capturing
// the leading indentation and NAME.
var buildBlock = regexp.MustCompile(`(?s)([ \t]*)<!--\s*build:([\w-]+)\s*-->.*?<!--\s*endbuild\s*-->`)

// ReplaceBlocks rewrites named build blocks in markup. The "css" block
// becomes a stylesheet link and the "js" block a script element pointing at
// the mapped path; any other mapped name is replaced by the mapped text
// verbatim. Blocks with unmapped names are left untouched.
func ReplaceBlocks(replacements map[string]string) Stage {
	return StageFunc{StageName: "htmlreplace", Fn: func(_ context.Context, files []File) ([]File, error) {
		out := make([]File, len(files))
		for i, f := range files {
			f.Contents = buildBlock.ReplaceAllFunc(f.Contents, func(block []byte) []byte {
				m := buildBlock.FindSubmatch(block)
				indent, name := string(m[1]), string(m[2])
				target, ok := replacements[name]
				if !ok {
					return block
				}
				return []byte(indent + blockTag(name, target))
			})
			out[i] = f
		}
		return out, nil
	}}
}

func blockTag(name, target string) string {
	switch name {
	case "css":
		return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, html.EscapeString(target))
	case "js":
		return fmt.Sprintf(`<script src="%s"></script>`, html.EscapeString(target))
	default:
		return target
	}
}
