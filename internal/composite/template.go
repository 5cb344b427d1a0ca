package composite

import (
	"strings"

	"github.com/melosso/portway/internal/gwerr"
)

// ApplyTemplate overwrites fields in body per templateTransformations: each
// key is a dot-path into body (creating intermediate maps as needed), each
// value is a template expression resolved against scratch. An expression
// that does not resolve is a CompositeTemplateError — the orchestrator
// never silently substitutes an empty string for an unknown reference.
func ApplyTemplate(body map[string]any, templateTransformations map[string]string, scratch *Scratch, stepName string) error {
	for fieldPath, expr := range templateTransformations {
		resolved, ok := resolveExpr(expr, scratch)
		if !ok {
			return gwerr.New(gwerr.CodeCompositeTemplateError, "composite.template", stepName, nil).
				WithDetail("unresolved reference " + expr + " in field " + fieldPath)
		}
		setDotPath(body, fieldPath, resolved)
	}
	return nil
}

// resolveExpr resolves expr as a whole-value substitution (preserving the
// resolved value's own type — string, number, object) when expr is
// nothing but a single reference, or falls back to string interpolation
// when references are embedded inside other text.
func resolveExpr(expr string, scratch *Scratch) (any, bool) {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "$") {
		if ref, length := scanReference(trimmed); length == len(trimmed) {
			return scratch.Resolve(ref)
		}
	}
	return interpolate(expr, scratch)
}

// interpolate substitutes every $guid/$prev.* reference found anywhere in
// expr with its stringified value; it reports false if any reference it
// finds fails to resolve.
func interpolate(expr string, scratch *Scratch) (string, bool) {
	var out strings.Builder
	i := 0
	for i < len(expr) {
		if expr[i] != '$' {
			out.WriteByte(expr[i])
			i++
			continue
		}
		ref, length := scanReference(expr[i:])
		if length == 0 {
			out.WriteByte(expr[i])
			i++
			continue
		}
		val, ok := scratch.Resolve(ref)
		if !ok {
			return "", false
		}
		out.WriteString(stringify(val))
		i += length
	}
	return out.String(), true
}

// scanReference reads a "$guid" or "$prev.a.b.c" token starting at s[0]=='$',
// stopping at the first character that can't be part of a reference.
func scanReference(s string) (ref string, length int) {
	end := 1
	for end < len(s) {
		c := s[end]
		if c == '.' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			end++
			continue
		}
		break
	}
	return s[:end], end
}

// setDotPath writes value at the dot-path fieldPath within body, creating
// intermediate map[string]any levels as needed.
func setDotPath(body map[string]any, fieldPath string, value any) {
	segments := strings.Split(fieldPath, ".")
	cur := body
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
}
