package sqlengine

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/melosso/portway/internal/registry"
)

func TestBindTVFParametersOrdersByPosition(t *testing.T) {
	pos0, pos1 := 0, 1
	def := &registry.Definition{
		TVFParameters: []registry.TVFParameter{
			{Name: "region", SQLType: "nvarchar", Source: registry.SourceQuery, Position: &pos1, Required: true},
			{Name: "id", SQLType: "int", Source: registry.SourcePath, Position: &pos0, Required: true},
		},
	}
	path := map[string]string{"id": "42"}
	query := url.Values{"region": []string{"west"}}
	args, err := BindTVFParameters(def, path, query, http.Header{})
	if err != nil {
		t.Fatalf("BindTVFParameters: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("got %d args, want 2", len(args))
	}
	if args[0].(int64) != 42 {
		t.Errorf("args[0] = %v, want 42", args[0])
	}
	if args[1] != "west" {
		t.Errorf("args[1] = %v, want west", args[1])
	}
}

func TestBindTVFParametersMissingRequiredFails(t *testing.T) {
	pos0 := 0
	def := &registry.Definition{
		TVFParameters: []registry.TVFParameter{
			{Name: "id", SQLType: "int", Source: registry.SourcePath, Position: &pos0, Required: true},
		},
	}
	if _, err := BindTVFParameters(def, map[string]string{}, url.Values{}, http.Header{}); err == nil {
		t.Fatal("expected MissingParameter error")
	}
}

func TestBindTVFParametersDefaultValue(t *testing.T) {
	pos0 := 0
	def := &registry.Definition{
		TVFParameters: []registry.TVFParameter{
			{Name: "limit", SQLType: "int", Source: registry.SourceQuery, Position: &pos0, Required: false, DefaultValue: "10"},
		},
	}
	args, err := BindTVFParameters(def, map[string]string{}, url.Values{}, http.Header{})
	if err != nil {
		t.Fatalf("BindTVFParameters: %v", err)
	}
	if args[0].(int64) != 10 {
		t.Errorf("args[0] = %v, want default 10", args[0])
	}
}

func TestBindProcedureParamsSynthesizesMethod(t *testing.T) {
	out := BindProcedureParams(map[string]any{"Name": "Bob", "@Method": "ignored"}, "POST")
	if out["@Method"] != "POST" {
		t.Errorf("@Method = %v, want POST", out["@Method"])
	}
	if out["@Name"] != "Bob" {
		t.Errorf("@Name = %v, want Bob", out["@Name"])
	}
	if len(out) != 2 {
		t.Errorf("expected reserved keys to be filtered, got %+v", out)
	}
}
