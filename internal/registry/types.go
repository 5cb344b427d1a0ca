// Package registry discovers, parses, validates, and hot-reloads endpoint
// definitions from the endpoints/ filesystem tree, and publishes change
// notifications for dependent caches (SQL metadata, documentation).
package registry

// Kind is the endpoint's execution strategy, inferred from its top-level
// directory under endpoints/.
type Kind string

const (
	KindSQL       Kind = "SQL"
	KindProxy     Kind = "Proxy"
	KindComposite Kind = "Composite"
	KindFile      Kind = "File"
	KindWebhook   Kind = "Webhook"
	KindStatic    Kind = "Static"
)

// ObjectType is the SQL endpoint's backend object kind.
type ObjectType string

const (
	ObjectTable              ObjectType = "Table"
	ObjectView                ObjectType = "View"
	ObjectTableValuedFunction ObjectType = "TableValuedFunction"
	ObjectStoredProcedure     ObjectType = "StoredProcedure"
)

// ParamSource is where a TVF parameter's value comes from.
type ParamSource string

const (
	SourcePath   ParamSource = "Path"
	SourceQuery  ParamSource = "Query"
	SourceHeader ParamSource = "Header"
)

// AllowedMethods is the full set of HTTP verbs spec §3 permits.
var AllowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "MERGE": true, "HEAD": true, "OPTIONS": true,
}

// TVFParameter describes one table-valued-function parameter binding.
type TVFParameter struct {
	Name         string      `json:"Name"`
	SQLType      string      `json:"SqlType"`
	Source       ParamSource `json:"Source"`
	Position     *int        `json:"Position,omitempty"`
	Required     bool        `json:"Required"`
	DefaultValue string      `json:"DefaultValue,omitempty"`
}

// CompositeStep describes one step of a Composite endpoint.
type CompositeStep struct {
	Name                    string            `json:"Name"`
	TargetEndpoint          string            `json:"TargetEndpoint"`
	Method                  string            `json:"Method"`
	IsArray                 bool              `json:"IsArray,omitempty"`
	ArrayProperty           string            `json:"ArrayProperty,omitempty"`
	SourceProperty          string            `json:"SourceProperty,omitempty"`
	TemplateTransformations map[string]string `json:"TemplateTransformations,omitempty"`
}

// Definition is the tagged-variant endpoint definition from spec §3.
type Definition struct {
	Name                string
	Namespace           string
	Kind                Kind
	AllowedEnvironments map[string]bool
	AllowedMethods      map[string]bool
	IsPrivate           bool
	CustomProperties    map[string]any
	Description         string

	// SQL
	Schema         string
	ObjectName     string
	ObjectType     ObjectType
	PrimaryKey     string
	AllowedColumns []string // "dbName" or "dbName;alias"
	Procedure      string
	TVFParameters  []TVFParameter

	// Proxy
	UpstreamURL          string
	RewriteResponseURLs  bool
	HTTPMethodTranslation     string
	HTTPMethodAppendHeaders   string

	// Composite
	Steps []CompositeStep

	// File
	BaseDirectory     string
	AllowedExtensions []string
	StorageType       string

	// Webhook
	DatabaseObjectName string
	DatabaseSchema     string

	// Static
	StaticBody map[string]any

	// aliasToDb / dbToAlias are derived once from AllowedColumns at parse
	// time (invariant iv: column aliasing is bijective per endpoint).
	aliasToDb map[string]string
	dbToAlias map[string]string
}

// AliasToDB returns the db column name for a public alias, and whether it exists.
func (d *Definition) AliasToDB(alias string) (string, bool) {
	v, ok := d.aliasToDb[alias]
	return v, ok
}

// DBToAlias returns the public alias for a db column name, and whether it exists.
func (d *Definition) DBToAlias(db string) (string, bool) {
	v, ok := d.dbToAlias[db]
	return v, ok
}

// Aliases returns every public alias this endpoint exposes, in declared order.
func (d *Definition) Aliases() []string {
	out := make([]string, 0, len(d.AllowedColumns))
	for _, col := range d.AllowedColumns {
		_, alias := splitColumnAlias(col)
		out = append(out, alias)
	}
	return out
}

func splitColumnAlias(col string) (db, alias string) {
	for i := 0; i < len(col); i++ {
		if col[i] == ';' {
			return col[:i], col[i+1:]
		}
	}
	return col, col
}
