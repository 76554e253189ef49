// Package validate provides declarative schema validation for tool and hook
// inputs using go-playground/validator struct tags. The tool-registry layer
// in the pack only carries this dependency transitively (via a gin binding in
// the teacher); there is no teacher usage pattern to mirror, so this package
// follows the library's own documented idiom directly (see DESIGN.md).
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var std = validator.New(validator.WithRequiredStructEnabled())

// Struct validates v against its `validate:"..."` struct tags, returning a
// single combined error listing every failing field.
func Struct(v interface{}) error {
	if err := std.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q constraint", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// ToolNamePattern is the accepted character class for MCP tool names
// (spec.md §4.7/§6: `[A-Za-z0-9._-]{1,128}`).
const ToolNamePattern = `^[A-Za-z0-9._-]{1,128}$`

var toolNameRE = regexp.MustCompile(ToolNamePattern)

// ToolName reports whether name is a legal MCP tool identifier. Checked once
// at server registration time, not per-call (spec.md §4.7).
func ToolName(name string) bool {
	return toolNameRE.MatchString(name)
}

// DecodeStrict decodes one JSON document from r into out, rejecting unknown
// fields — the hook handler's defense against a host-protocol schema drift
// silently dropping or misrouting fields (spec.md §9 "reject unknown
// fields").
func DecodeStrict(r io.Reader, out interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
