// Package webhook persists an inbound webhook payload as a single row in
// the endpoint's declared backing table, the one piece of write-only SQL
// execution spec.md's Webhook endpoint kind describes.
package webhook

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
)

// Persist inserts body as one row into def's DatabaseSchema/DatabaseObjectName,
// projecting it through def's AllowedColumns alias table when declared (an
// unknown body key is simply ignored, matching the SQL engine's
// documentation-only treatment of extra JSON fields).
func Persist(ctx context.Context, db *sql.DB, def *registry.Definition, body map[string]any) error {
	if strings.TrimSpace(def.DatabaseObjectName) == "" {
		return gwerr.New(gwerr.CodeEnvironmentMisconfigured, "webhook.persist", def.Name, nil).
			WithDetail("endpoint has no DatabaseObjectName configured")
	}

	cols := make([]string, 0, len(body))
	placeholders := make([]string, 0, len(body))
	args := make([]any, 0, len(body))

	for key, value := range body {
		db, ok := resolveColumn(def, key)
		if !ok {
			continue
		}
		cols = append(cols, "["+db+"]")
		placeholders = append(placeholders, fmt.Sprintf("@p%d", len(args)))
		args = append(args, sql.Named(fmt.Sprintf("p%d", len(args)), value))
	}
	if len(cols) == 0 {
		return gwerr.New(gwerr.CodeInvalidField, "webhook.persist", def.Name, nil).
			WithDetail("payload did not match any allowed column")
	}

	stmt := fmt.Sprintf("INSERT INTO [%s].[%s] (%s) VALUES (%s)",
		def.DatabaseSchema, def.DatabaseObjectName, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return gwerr.New(gwerr.CodeDbUnavailable, "webhook.persist", def.Name, err)
	}
	return nil
}

// resolveColumn maps a body key to a backing db column name: through the
// alias table when AllowedColumns is declared, or taken verbatim otherwise.
func resolveColumn(def *registry.Definition, key string) (string, bool) {
	if len(def.AllowedColumns) == 0 {
		return key, true
	}
	return def.AliasToDB(key)
}
