package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/melosso/portway/internal/gwerr"
)

// entityFile mirrors entity.json on disk across all kinds; kind-specific
// fields are simply left zero when not applicable.
type entityFile struct {
	Name                string            `json:"Name"`
	Description         string            `json:"Description,omitempty"`
	AllowedEnvironments []string          `json:"AllowedEnvironments"`
	AllowedMethods      []string          `json:"AllowedMethods"`
	IsPrivate           bool              `json:"IsPrivate,omitempty"`
	CustomProperties    map[string]any    `json:"CustomProperties,omitempty"`

	Schema         string         `json:"Schema,omitempty"`
	ObjectName     string         `json:"ObjectName,omitempty"`
	ObjectType     string         `json:"ObjectType,omitempty"`
	PrimaryKey     string         `json:"PrimaryKey,omitempty"`
	AllowedColumns []string       `json:"AllowedColumns,omitempty"`
	Procedure      string         `json:"Procedure,omitempty"`
	TVFParameters  []TVFParameter `json:"TvfParameters,omitempty"`

	UpstreamURL             string `json:"UpstreamUrl,omitempty"`
	RewriteResponseURLs     bool   `json:"RewriteResponseUrls,omitempty"`
	HTTPMethodTranslation   string `json:"HttpMethodTranslation,omitempty"`
	HTTPMethodAppendHeaders string `json:"HttpMethodAppendHeaders,omitempty"`

	Steps []CompositeStep `json:"Steps,omitempty"`

	BaseDirectory     string   `json:"BaseDirectory,omitempty"`
	AllowedExtensions []string `json:"AllowedExtensions,omitempty"`
	StorageType       string   `json:"StorageType,omitempty"`

	DatabaseObjectName string `json:"DatabaseObjectName,omitempty"`
	DatabaseSchema     string `json:"DatabaseSchema,omitempty"`

	StaticBody map[string]any `json:"Body,omitempty"`
}

// parseEntity parses and validates one entity.json body for the given
// kind/namespace, enforcing the AllowedMethods subset and
// AllowedEnvironments-within-allow-list invariants and the
// registry's own parse-failure isolation: callers log and skip on error,
// they never propagate a panic.
func parseEntity(kind Kind, namespace string, raw []byte, globalAllowList map[string]bool) (*Definition, error) {
	var f entityFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, gwerr.New(gwerr.CodeConfigInvalid, "registry.parse", namespace, err)
	}
	if strings.TrimSpace(f.Name) == "" {
		return nil, gwerr.New(gwerr.CodeConfigInvalid, "registry.parse", namespace, fmt.Errorf("missing Name"))
	}

	methods := map[string]bool{}
	for _, m := range f.AllowedMethods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if !AllowedMethods[m] {
			return nil, gwerr.New(gwerr.CodeConfigInvalid, "registry.parse", f.Name,
				fmt.Errorf("method %q is not in the allowed verb set", m))
		}
		methods[m] = true
	}

	envs := map[string]bool{}
	for _, e := range f.AllowedEnvironments {
		e = strings.ToLower(strings.TrimSpace(e))
		if globalAllowList != nil && !globalAllowList[e] {
			return nil, gwerr.New(gwerr.CodeConfigInvalid, "registry.parse", f.Name,
				fmt.Errorf("environment %q is not in the global allow-list", e))
		}
		envs[e] = true
	}

	def := &Definition{
		Name:                    f.Name,
		Namespace:               namespace,
		Kind:                    kind,
		AllowedEnvironments:     envs,
		AllowedMethods:          methods,
		IsPrivate:               f.IsPrivate,
		CustomProperties:        f.CustomProperties,
		Description:             f.Description,
		Schema:                  f.Schema,
		ObjectName:              f.ObjectName,
		ObjectType:              ObjectType(f.ObjectType),
		PrimaryKey:              f.PrimaryKey,
		AllowedColumns:          f.AllowedColumns,
		Procedure:               f.Procedure,
		TVFParameters:           f.TVFParameters,
		UpstreamURL:             f.UpstreamURL,
		RewriteResponseURLs:     f.RewriteResponseURLs,
		HTTPMethodTranslation:   f.HTTPMethodTranslation,
		HTTPMethodAppendHeaders: f.HTTPMethodAppendHeaders,
		Steps:                   f.Steps,
		BaseDirectory:           f.BaseDirectory,
		AllowedExtensions:       f.AllowedExtensions,
		StorageType:             f.StorageType,
		DatabaseObjectName:      f.DatabaseObjectName,
		DatabaseSchema:          f.DatabaseSchema,
		StaticBody:              f.StaticBody,
	}

	if kind == KindSQL {
		if err := buildAliasTables(def); err != nil {
			return nil, err
		}
		if err := validateTVFPositions(def); err != nil {
			return nil, err
		}
	}

	return def, nil
}

// BuildAliasTables is the exported form of buildAliasTables, for packages
// that construct a Definition directly in tests rather than through Load.
func BuildAliasTables(def *Definition) error {
	return buildAliasTables(def)
}

// buildAliasTables derives aliasToDb/dbToAlias from AllowedColumns and
// enforces invariant iv: column aliasing is bijective per endpoint.
func buildAliasTables(def *Definition) error {
	aliasToDb := make(map[string]string, len(def.AllowedColumns))
	dbToAlias := make(map[string]string, len(def.AllowedColumns))
	for _, col := range def.AllowedColumns {
		db, alias := splitColumnAlias(col)
		db, alias = strings.TrimSpace(db), strings.TrimSpace(alias)
		if db == "" || alias == "" {
			return gwerr.New(gwerr.CodeConfigInvalid, "registry.alias", def.Name,
				fmt.Errorf("invalid AllowedColumns entry %q", col))
		}
		if _, dup := aliasToDb[alias]; dup {
			return gwerr.New(gwerr.CodeConfigInvalid, "registry.alias", def.Name,
				fmt.Errorf("duplicate alias %q", alias))
		}
		if _, dup := dbToAlias[db]; dup {
			return gwerr.New(gwerr.CodeConfigInvalid, "registry.alias", def.Name,
				fmt.Errorf("duplicate db column %q", db))
		}
		aliasToDb[alias] = db
		dbToAlias[db] = alias
	}
	def.aliasToDb = aliasToDb
	def.dbToAlias = dbToAlias
	return nil
}

// validateTVFPositions enforces invariant v: a TVF endpoint has a Position
// for every Path-sourced parameter, contiguous from 1.
func validateTVFPositions(def *Definition) error {
	if def.ObjectType != ObjectTableValuedFunction {
		return nil
	}
	positions := map[int]bool{}
	for _, p := range def.TVFParameters {
		if p.Source != SourcePath {
			continue
		}
		if p.Position == nil {
			return gwerr.New(gwerr.CodeConfigInvalid, "registry.tvf", def.Name,
				fmt.Errorf("path parameter %q has no Position", p.Name))
		}
		positions[*p.Position] = true
	}
	for i := 1; i <= len(positions); i++ {
		if !positions[i] {
			return gwerr.New(gwerr.CodeConfigInvalid, "registry.tvf", def.Name,
				fmt.Errorf("path parameter positions are not contiguous from 1"))
		}
	}
	return nil
}
