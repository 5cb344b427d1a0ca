package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
)

// Result is the row set an endpoint execution returns, already projected
// through the public alias table (or raw driver column names for a
// StoredProcedure with no AllowedColumns declared).
type Result struct {
	Rows     []map[string]any
	NextLink bool // true when len(Rows) == requested Top: the caller may have more
}

// Execute runs a compiled Table/View/TVF query and projects each row
// through def's alias table.
func Execute(ctx context.Context, db *sql.DB, def *registry.Definition, compiled *Compiled, top int) (*Result, error) {
	args := make([]any, len(compiled.Args))
	for i, v := range compiled.Args {
		args[i] = sql.Named(fmt.Sprintf("p%d", i), v)
	}
	rows, err := db.QueryContext(ctx, compiled.SQL, args...)
	if err != nil {
		return nil, classifyError(def.Name, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, classifyError(def.Name, err)
	}
	return &Result{Rows: out, NextLink: top > 0 && len(out) >= top}, nil
}

// ExecuteProcedure invokes a StoredProcedure endpoint with its bound
// @Name parameters, projecting the first result set through the alias
// table when one is declared, else passing raw driver column names.
func ExecuteProcedure(ctx context.Context, db *sql.DB, def *registry.Definition, params map[string]any) (*Result, error) {
	var args []any
	for name, value := range params {
		args = append(args, sql.Named(strings.TrimPrefix(name, "@"), value))
	}

	call := fmt.Sprintf("EXEC %s.%s %s", quoteProc(def.Schema), quoteProc(def.ObjectName), namedPlaceholders(params))
	rows, err := db.QueryContext(ctx, call, args...)
	if err != nil {
		return nil, classifyError(def.Name, err)
	}
	defer rows.Close()

	raw, err := scanRows(rows)
	if err != nil {
		return nil, classifyError(def.Name, err)
	}

	if len(def.AllowedColumns) == 0 {
		return &Result{Rows: raw}, nil
	}
	projected := make([]map[string]any, len(raw))
	for i, row := range raw {
		p := map[string]any{}
		for db, alias := range aliasLookup(def) {
			if v, ok := row[db]; ok {
				p[alias] = v
			}
		}
		projected[i] = p
	}
	return &Result{Rows: projected}, nil
}

func aliasLookup(def *registry.Definition) map[string]string {
	out := map[string]string{}
	for _, alias := range def.Aliases() {
		if db, ok := def.AliasToDB(alias); ok {
			out[db] = alias
		}
	}
	return out
}

func quoteProc(name string) string { return "[" + name + "]" }

func namedPlaceholders(params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		trimmed := strings.TrimPrefix(name, "@")
		names = append(names, fmt.Sprintf("@%s=@%s", trimmed, trimmed))
	}
	return strings.Join(names, ", ")
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// classifyError maps a driver error into the gateway's taxonomy: a
// RAISERROR of severity 16 or higher is a RowConflict (the convention
// this gateway's stored procedures use to signal a business-rule
// violation, e.g. an optimistic-concurrency check failing), context
// deadlines are DbTimeout, everything else is DbUnavailable.
func classifyError(target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return gwerr.New(gwerr.CodeDbTimeout, "sqlengine.execute", target, err)
	}
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		if sqlErr.Class >= 16 {
			return gwerr.New(gwerr.CodeRowConflict, "sqlengine.execute", target, err).WithDetail(sqlErr.Message)
		}
	}
	return gwerr.New(gwerr.CodeDbUnavailable, "sqlengine.execute", target, err)
}
