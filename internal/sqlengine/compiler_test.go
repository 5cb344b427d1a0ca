package sqlengine

import (
	"net/url"
	"strings"
	"testing"

	"github.com/melosso/portway/internal/registry"
)

func testDefinition(t *testing.T) *registry.Definition {
	t.Helper()
	def := &registry.Definition{
		Name:           "customers",
		Schema:         "dbo",
		ObjectName:     "Customers",
		ObjectType:     registry.ObjectTable,
		AllowedColumns: []string{"CustomerId;id", "CustomerName;name", "Balance;balance"},
	}
	if err := registry.BuildAliasTables(def); err != nil {
		t.Fatalf("BuildAliasTables: %v", err)
	}
	return def
}

func testMetadata() *ObjectMetadata {
	return &ObjectMetadata{Columns: map[string]ColumnMeta{
		"CustomerId":   {Name: "CustomerId", SQLType: "number"},
		"CustomerName": {Name: "CustomerName", SQLType: "string"},
		"Balance":      {Name: "Balance", SQLType: "number"},
	}}
}

func TestCompileSimpleSelect(t *testing.T) {
	def := testDefinition(t)
	q, err := ParseQuery(url.Values{}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	compiled, err := Compile(def, q, testMetadata(), MSSQLDialect{}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(compiled.SQL, "[dbo].[Customers]") {
		t.Errorf("expected qualified table name, got %q", compiled.SQL)
	}
	if !strings.Contains(compiled.SQL, "[CustomerId] AS [id]") {
		t.Errorf("expected column projection, got %q", compiled.SQL)
	}
	if !strings.Contains(compiled.SQL, "OFFSET 0 ROWS FETCH NEXT 50 ROWS ONLY") {
		t.Errorf("expected default paging clause, got %q", compiled.SQL)
	}
}

func TestCompileFilterBindsParameter(t *testing.T) {
	def := testDefinition(t)
	q, err := ParseQuery(url.Values{"$filter": []string{"balance gt 100"}}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	compiled, err := Compile(def, q, testMetadata(), MSSQLDialect{}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(compiled.SQL, "[Balance] > @p0") {
		t.Errorf("expected bound comparison, got %q", compiled.SQL)
	}
	if len(compiled.Args) != 1 || compiled.Args[0].(float64) != 100 {
		t.Errorf("expected one bound arg of 100, got %+v", compiled.Args)
	}
}

func TestCompileUnknownSelectAliasFails(t *testing.T) {
	def := testDefinition(t)
	q, _ := ParseQuery(url.Values{"$select": []string{"doesnotexist"}}, DefaultTop, MaxTop)
	if _, err := Compile(def, q, testMetadata(), MSSQLDialect{}, nil); err == nil {
		t.Fatal("expected InvalidField error for unknown $select alias")
	}
}

func TestCompileTypeMismatchFails(t *testing.T) {
	def := testDefinition(t)
	q, err := ParseQuery(url.Values{"$filter": []string{"name gt 5"}}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if _, err := Compile(def, q, testMetadata(), MSSQLDialect{}, nil); err == nil {
		t.Fatal("expected TypeMismatch error comparing a string column to a numeric literal")
	}
}

func TestCompileContainsFunction(t *testing.T) {
	def := testDefinition(t)
	q, err := ParseQuery(url.Values{"$filter": []string{"contains(name,'bo')"}}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	compiled, err := Compile(def, q, testMetadata(), MSSQLDialect{}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(compiled.SQL, "LIKE @p0") {
		t.Errorf("expected LIKE clause, got %q", compiled.SQL)
	}
	if compiled.Args[0] != "%bo%" {
		t.Errorf("expected wrapped pattern, got %v", compiled.Args[0])
	}
}

func TestCompileOrderByDescending(t *testing.T) {
	def := testDefinition(t)
	q, err := ParseQuery(url.Values{"$orderby": []string{"balance desc"}}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	compiled, err := Compile(def, q, testMetadata(), MSSQLDialect{}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(compiled.SQL, "ORDER BY [Balance] DESC") {
		t.Errorf("expected descending order by, got %q", compiled.SQL)
	}
}

func TestCompileDefaultsOrderToPrimaryKey(t *testing.T) {
	def := testDefinition(t)
	def.PrimaryKey = "CustomerId"
	q, err := ParseQuery(url.Values{}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	compiled, err := Compile(def, q, testMetadata(), MSSQLDialect{}, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(compiled.SQL, "ORDER BY [CustomerId] OFFSET") {
		t.Errorf("expected default ORDER BY primary key, got %q", compiled.SQL)
	}
}

func TestCompileTopClampedToMax(t *testing.T) {
	q, err := ParseQuery(url.Values{"$top": []string{"999999"}}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if q.Top != MaxTop {
		t.Errorf("Top = %d, want clamped to %d", q.Top, MaxTop)
	}
}

func TestCompileTVFWrapsFunctionCall(t *testing.T) {
	def := &registry.Definition{
		Name:           "lookup",
		Schema:         "dbo",
		ObjectName:     "LookupCustomers",
		ObjectType:     registry.ObjectTableValuedFunction,
		AllowedColumns: []string{"CustomerId;id"},
	}
	if err := registry.BuildAliasTables(def); err != nil {
		t.Fatalf("BuildAliasTables: %v", err)
	}
	q, err := ParseQuery(url.Values{}, DefaultTop, MaxTop)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	compiled, err := Compile(def, q, nil, MSSQLDialect{}, []any{int64(1)})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(compiled.SQL, "[dbo].[LookupCustomers](@p0)") {
		t.Errorf("expected wrapped TVF call, got %q", compiled.SQL)
	}
	if !strings.Contains(compiled.SQL, "AS tvf") {
		t.Errorf("expected tvf alias, got %q", compiled.SQL)
	}
}
