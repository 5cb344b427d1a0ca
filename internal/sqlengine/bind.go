package sqlengine

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
)

// reservedProcParams are never accepted from the request body: @Method is
// always synthesized from the HTTP verb.
var reservedProcParams = map[string]bool{
	"@method": true, "@action": true, "@operation": true,
}

// BindTVFParameters resolves a TableValuedFunction endpoint's declared
// parameters from path captures, query values, and headers, in the
// Position order the registry already validated at load time. Missing
// Required parameters without a DefaultValue fail as MissingParameter.
func BindTVFParameters(def *registry.Definition, pathParams map[string]string, query url.Values, headers http.Header) ([]any, error) {
	params := make([]registry.TVFParameter, len(def.TVFParameters))
	copy(params, def.TVFParameters)
	sort.SliceStable(params, func(i, j int) bool {
		pi, pj := paramPosition(params[i]), paramPosition(params[j])
		return pi < pj
	})

	args := make([]any, 0, len(params))
	for _, p := range params {
		value, found := lookupParamSource(p, pathParams, query, headers)
		if !found {
			if p.Required && p.DefaultValue == "" {
				return nil, gwerr.New(gwerr.CodeMissingParameter, "sqlengine.bind", p.Name, nil)
			}
			value = p.DefaultValue
		}
		converted, err := coerceParam(p, value)
		if err != nil {
			return nil, err
		}
		args = append(args, converted)
	}
	return args, nil
}

func paramPosition(p registry.TVFParameter) int {
	if p.Position != nil {
		return *p.Position
	}
	return 1 << 30
}

func lookupParamSource(p registry.TVFParameter, pathParams map[string]string, query url.Values, headers http.Header) (string, bool) {
	switch p.Source {
	case registry.SourcePath:
		v, ok := pathParams[p.Name]
		return v, ok
	case registry.SourceQuery:
		if !query.Has(p.Name) {
			return "", false
		}
		return query.Get(p.Name), true
	case registry.SourceHeader:
		v := headers.Get(p.Name)
		return v, v != ""
	default:
		return "", false
	}
}

func coerceParam(p registry.TVFParameter, raw string) (any, error) {
	switch strings.ToLower(p.SQLType) {
	case "int", "bigint", "smallint", "tinyint":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.bind", p.Name, err)
		}
		return n, nil
	case "float", "real", "decimal", "numeric", "money":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.bind", p.Name, err)
		}
		return n, nil
	case "bit":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.bind", p.Name, err)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// BindProcedureParams turns a StoredProcedure endpoint's JSON request body
// into @Name=value pairs plus the synthetic @Method parameter. Body keys
// matching a reserved name are ignored; @Method always reflects the verb.
func BindProcedureParams(body map[string]any, method string) map[string]any {
	out := make(map[string]any, len(body)+1)
	for k, v := range body {
		name := "@" + strings.TrimPrefix(k, "@")
		if reservedProcParams[strings.ToLower(name)] {
			continue
		}
		out[name] = v
	}
	out["@Method"] = strings.ToUpper(method)
	return out
}
