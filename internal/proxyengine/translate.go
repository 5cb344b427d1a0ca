// Package proxyengine implements the Proxy endpoint execution strategy:
// forwarding to an upstream URL, response URL rewriting, GET caching with
// endpoint-scoped invalidation, and §4.8 method translation/header append.
package proxyengine

import (
	"net/http"
	"strings"
)

// HeaderConflictPolicy controls what happens when an appended header name
// already exists on the outbound request.
type HeaderConflictPolicy string

const (
	ConflictSkip      HeaderConflictPolicy = "Skip"
	ConflictOverwrite HeaderConflictPolicy = "Overwrite"
)

// translateRule is one "FROM:TO" method mapping.
type translateRule struct {
	from, to string
}

// appendHeader is one "Name=value" header to add when a given original
// method fires.
type appendHeader struct {
	fromMethod string
	name       string
	value      string
}

// ApplyMethodTranslation rewrites method per the endpoint's
// HttpMethodTranslation spec ("FROM:TO,FROM2:TO2", colon preferred,
// semicolon tolerated as the legacy separator), returning the translated
// method (or the original, unchanged, if no rule matches).
func ApplyMethodTranslation(spec, method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	for _, rule := range parseTranslateRules(spec) {
		if rule.from == method {
			return rule.to
		}
	}
	return method
}

func parseTranslateRules(spec string) []translateRule {
	var out []translateRule
	for _, entry := range splitRules(spec) {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		from := strings.ToUpper(strings.TrimSpace(parts[0]))
		to := strings.ToUpper(strings.TrimSpace(parts[1]))
		if from == "" || to == "" {
			continue
		}
		out = append(out, translateRule{from: from, to: to})
	}
	return out
}

// ApplyHeaderAppend adds the headers declared by spec for originalMethod,
// substituting {ORIGINAL_METHOD} and {TRANSLATED_METHOD}, and resolving
// name conflicts per policy. Each per-method block is
// "FROM:Name=value,Name2=value2"; multiple blocks are separated by ';' —
// a plain comma can't serve as the block separator here since commas
// already delimit headers within one block.
func ApplyHeaderAppend(spec, originalMethod, translatedMethod string, headers http.Header, policy HeaderConflictPolicy) {
	originalMethod = strings.ToUpper(strings.TrimSpace(originalMethod))
	for _, block := range strings.Split(spec, ";") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		idx := strings.Index(block, ":")
		if idx < 0 {
			continue
		}
		fromMethod := strings.ToUpper(strings.TrimSpace(block[:idx]))
		if fromMethod != originalMethod {
			continue
		}
		for _, pair := range strings.Split(block[idx+1:], ",") {
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			value = substitutePlaceholders(strings.TrimSpace(value), originalMethod, translatedMethod)
			if name == "" {
				continue
			}
			if headers.Get(name) != "" && policy == ConflictSkip {
				continue
			}
			headers.Set(name, value)
		}
	}
}

func substitutePlaceholders(value, original, translated string) string {
	value = strings.ReplaceAll(value, "{ORIGINAL_METHOD}", original)
	value = strings.ReplaceAll(value, "{TRANSLATED_METHOD}", translated)
	return value
}

// splitRules tolerates both the preferred comma separator between rules
// and the legacy semicolon form, never both at once within one spec.
func splitRules(spec string) []string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	sep := ","
	if strings.Contains(spec, ";") && !strings.Contains(spec, ",") {
		sep = ";"
	}
	parts := strings.Split(spec, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
