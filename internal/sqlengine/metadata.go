package sqlengine

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
)

// ColumnMeta is one column's cached type information, used for literal
// type coercion.
type ColumnMeta struct {
	Name    string
	SQLType string // normalized: "string" | "number" | "bool" | "date"
}

// ObjectMetadata is the cached per-endpoint metadata: column types for
// Table/View/TVF, or parameter types for StoredProcedure.
type ObjectMetadata struct {
	Columns map[string]ColumnMeta // keyed by db column name
}

// MetadataCache holds one ObjectMetadata per endpoint, loaded lazily on
// first use and invalidated wholesale on any registry change event (the
// decided Open Question: cross-endpoint invalidation only targets the
// directly mutated endpoint, so a reload event need only drop that one
// endpoint's entry — but since the registry's change events don't carry
// enough detail to distinguish "schema changed" from "unrelated field
// changed", we conservatively drop the whole cache on any event).
type MetadataCache struct {
	mu      sync.RWMutex
	byName  map[string]*ObjectMetadata
}

func NewMetadataCache() *MetadataCache {
	return &MetadataCache{byName: map[string]*ObjectMetadata{}}
}

func (c *MetadataCache) Get(endpoint string) (*ObjectMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[endpoint]
	return m, ok
}

func (c *MetadataCache) Set(endpoint string, meta *ObjectMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName[endpoint] = meta
}

// InvalidateAll drops every cached entry; wired to the endpoint registry's
// Subscribe() change stream.
func (c *MetadataCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = map[string]*ObjectMetadata{}
}

// Watch drains events from the registry's change stream and invalidates
// the whole cache on every event, until stop is closed.
func (c *MetadataCache) Watch(events <-chan registry.ChangeEvent, stop <-chan struct{}) {
	go func() {
		for {
			select {
			case <-stop:
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				c.InvalidateAll()
			}
		}
	}()
}

// LoadColumnMetadata queries sys.columns for def's object, normalizing
// each SQL Server type name into the coercion taxonomy this package uses.
func LoadColumnMetadata(ctx context.Context, db *sql.DB, schema, objectName string) (*ObjectMetadata, error) {
	rows, err := db.QueryContext(ctx, `SELECT c.name, t.name
		FROM sys.columns c
		JOIN sys.types t ON c.user_type_id = t.user_type_id
		JOIN sys.objects o ON c.object_id = o.object_id
		JOIN sys.schemas s ON o.schema_id = s.schema_id
		WHERE s.name = @p1 AND o.name = @p2`, schema, objectName)
	if err != nil {
		return nil, gwerr.New(gwerr.CodeDbUnavailable, "sqlengine.metadata", objectName, err)
	}
	defer rows.Close()

	meta := &ObjectMetadata{Columns: map[string]ColumnMeta{}}
	for rows.Next() {
		var name, sqlType string
		if err := rows.Scan(&name, &sqlType); err != nil {
			return nil, gwerr.New(gwerr.CodeDbUnavailable, "sqlengine.metadata", objectName, err)
		}
		meta.Columns[name] = ColumnMeta{Name: name, SQLType: normalizeSQLType(sqlType)}
	}
	if err := rows.Err(); err != nil {
		return nil, gwerr.New(gwerr.CodeDbUnavailable, "sqlengine.metadata", objectName, err)
	}
	return meta, nil
}

func normalizeSQLType(sqlType string) string {
	switch strings.ToLower(sqlType) {
	case "int", "bigint", "smallint", "tinyint", "decimal", "numeric", "float", "real", "money", "smallmoney":
		return "number"
	case "bit":
		return "bool"
	case "date", "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return "date"
	default:
		return "string"
	}
}
