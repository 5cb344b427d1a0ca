package sqlengine

import "fmt"

// Dialect isolates the handful of syntax differences a second backend
// would need (identifier quoting, parameter placeholders, paging clause).
// Only MSSQL ships; the interface exists so a Postgres dialect could be
// added later without touching the lexer, parser, or compiler's tree walk.
type Dialect interface {
	QuoteIdent(name string) string
	Placeholder(index int) string
	PagingClause(orderBy string, top, skip int) string
}

// MSSQLDialect targets SQL Server via go-mssqldb, using bracket quoting
// and named @pN parameters.
type MSSQLDialect struct{}

func (MSSQLDialect) QuoteIdent(name string) string {
	return "[" + name + "]"
}

func (MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

// PagingClause emits OFFSET/FETCH, which requires an ORDER BY to precede it.
func (MSSQLDialect) PagingClause(orderBy string, top, skip int) string {
	if orderBy == "" {
		orderBy = "(SELECT 1)"
	}
	return fmt.Sprintf("ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", orderBy, skip, top)
}
