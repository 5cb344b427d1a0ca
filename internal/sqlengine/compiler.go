package sqlengine

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
)

const (
	DefaultTop = 50
	MaxTop     = 1000
)

// OrderTerm is one $orderby clause term, expressed in the endpoint's
// public alias.
type OrderTerm struct {
	Alias string
	Desc  bool
}

// Query is the parsed form of $select/$filter/$orderby/$top/$skip.
type Query struct {
	Select  []string // public aliases; empty means every declared column
	OrderBy []OrderTerm
	Top     int
	Skip    int
	Filter  Expr // nil means no $filter
}

// ParseQuery reads the OData-ish query subset off raw request values.
// $top defaults to defaultTop when absent, is capped at maxTop, and a
// value below 1 is a QuerySyntax error.
func ParseQuery(values url.Values, defaultTop, maxTop int) (*Query, error) {
	q := &Query{Top: defaultTop}

	if sel := values.Get("$select"); sel != "" {
		for _, part := range strings.Split(sel, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				q.Select = append(q.Select, trimmed)
			}
		}
	}

	if ob := values.Get("$orderby"); ob != "" {
		for _, part := range strings.Split(ob, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			fields := strings.Fields(trimmed)
			term := OrderTerm{Alias: fields[0]}
			if len(fields) > 1 && strings.EqualFold(fields[1], "desc") {
				term.Desc = true
			}
			q.OrderBy = append(q.OrderBy, term)
		}
	}

	if top := values.Get("$top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n < 1 {
			return nil, gwerr.New(gwerr.CodeQuerySyntax, "sqlengine.query", "$top", nil).WithDetail("invalid $top value")
		}
		q.Top = n
	}
	if q.Top > maxTop {
		q.Top = maxTop
	}

	if skip := values.Get("$skip"); skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return nil, gwerr.New(gwerr.CodeQuerySyntax, "sqlengine.query", "$skip", nil).WithDetail("invalid $skip value")
		}
		q.Skip = n
	}

	if filter := values.Get("$filter"); filter != "" {
		expr, err := ParseFilter(filter)
		if err != nil {
			return nil, err
		}
		q.Filter = expr
	}

	return q, nil
}

// Compiled is a ready-to-execute parameterized statement. The executor
// builds a NextLink once it knows the actual returned row count: Top rows
// back means there may be more, so NextLink is never decided here.
type Compiled struct {
	SQL  string
	Args []any
}

// compileCtx threads the endpoint, metadata, and dialect through the
// recursive expression walk so each call site doesn't repeat them.
type compileCtx struct {
	def    *registry.Definition
	meta   *ObjectMetadata
	dialect Dialect
	args   []any
}

// Compile builds a parameterized SELECT for a Table, View, or
// TableValuedFunction endpoint. tvfArgs is nil for Table/View; for a TVF
// it holds the already-bound @param0..N values, placed ahead of any
// $filter parameters in the final Args slice.
func Compile(def *registry.Definition, q *Query, meta *ObjectMetadata, dialect Dialect, tvfArgs []any) (*Compiled, error) {
	if dialect == nil {
		dialect = MSSQLDialect{}
	}

	selectAliases := q.Select
	if len(selectAliases) == 0 {
		selectAliases = def.Aliases()
	}

	cols := make([]string, 0, len(selectAliases))
	for _, alias := range selectAliases {
		db, ok := def.AliasToDB(alias)
		if !ok {
			return nil, gwerr.New(gwerr.CodeInvalidField, "sqlengine.compile", alias, nil).WithDetail("unknown column alias")
		}
		cols = append(cols, fmt.Sprintf("%s AS %s", dialect.QuoteIdent(db), dialect.QuoteIdent(alias)))
	}

	orderBy, err := compileOrderBy(def, dialect, q.OrderBy)
	if err != nil {
		return nil, err
	}
	if orderBy == "" && def.PrimaryKey != "" {
		// No explicit $orderby: default to the declared primary key so
		// $top/$skip paging is deterministic across pages, matching the
		// registered object's natural key instead of an arbitrary
		// "ORDER BY (SELECT 1)".
		orderBy = dialect.QuoteIdent(def.PrimaryKey)
	}

	ctx := &compileCtx{def: def, meta: meta, dialect: dialect}
	if len(tvfArgs) > 0 {
		ctx.args = append(ctx.args, tvfArgs...)
	}

	var where string
	if q.Filter != nil {
		whereSQL, err := ctx.compileExpr(q.Filter)
		if err != nil {
			return nil, err
		}
		where = "WHERE " + whereSQL
	}

	var from string
	switch def.ObjectType {
	case registry.ObjectTableValuedFunction:
		placeholders := make([]string, len(tvfArgs))
		for i := range tvfArgs {
			placeholders[i] = dialect.Placeholder(i)
		}
		from = fmt.Sprintf("(SELECT * FROM %s.%s(%s)) AS tvf",
			dialect.QuoteIdent(def.Schema), dialect.QuoteIdent(def.ObjectName), strings.Join(placeholders, ", "))
	default:
		from = dialect.QuoteIdent(def.Schema) + "." + dialect.QuoteIdent(def.ObjectName)
	}

	paging := dialect.PagingClause(orderBy, q.Top, q.Skip)

	sql := fmt.Sprintf("SELECT %s FROM %s %s %s", strings.Join(cols, ", "), from, where, paging)
	sql = strings.Join(strings.Fields(sql), " ")

	return &Compiled{SQL: sql, Args: ctx.args}, nil
}

func compileOrderBy(def *registry.Definition, dialect Dialect, terms []OrderTerm) (string, error) {
	if len(terms) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		db, ok := def.AliasToDB(term.Alias)
		if !ok {
			return "", gwerr.New(gwerr.CodeInvalidField, "sqlengine.compile", term.Alias, nil).WithDetail("unknown column alias in $orderby")
		}
		clause := dialect.QuoteIdent(db)
		if term.Desc {
			clause += " DESC"
		}
		parts = append(parts, clause)
	}
	return strings.Join(parts, ", "), nil
}

func (c *compileCtx) compileExpr(expr Expr) (string, error) {
	switch e := expr.(type) {
	case *BinaryExpr:
		left, err := c.compileExpr(e.Left)
		if err != nil {
			return "", err
		}
		right, err := c.compileExpr(e.Right)
		if err != nil {
			return "", err
		}
		op := "AND"
		if e.Op == "or" {
			op = "OR"
		}
		return fmt.Sprintf("(%s %s %s)", left, op, right), nil
	case *NotExpr:
		inner, err := c.compileExpr(e.Expr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	case *Comparison:
		return c.compileComparison(e)
	case *FuncCall:
		return c.compileFuncCall(e)
	default:
		return "", gwerr.New(gwerr.CodeQuerySyntax, "sqlengine.compile", "", nil).WithDetail("unknown expression node")
	}
}

func (c *compileCtx) resolveColumn(alias string) (string, error) {
	db, ok := c.def.AliasToDB(alias)
	if !ok {
		return "", gwerr.New(gwerr.CodeInvalidField, "sqlengine.compile", alias, nil).WithDetail("unknown column alias")
	}
	if c.meta != nil {
		if _, ok := c.meta.Columns[db]; !ok {
			return "", gwerr.New(gwerr.CodeInvalidField, "sqlengine.compile", alias, nil).WithDetail("column not present in backing object")
		}
	}
	return db, nil
}

func (c *compileCtx) checkLiteralType(alias string, lit Literal) error {
	if c.meta == nil || lit.Kind == LiteralNull {
		return nil
	}
	db, _ := c.def.AliasToDB(alias)
	col, ok := c.meta.Columns[db]
	if !ok {
		return nil
	}
	switch col.SQLType {
	case "number":
		if lit.Kind != LiteralNumber {
			return gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.compile", alias, nil).WithDetail("expected a numeric literal")
		}
	case "bool":
		if lit.Kind != LiteralBool {
			return gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.compile", alias, nil).WithDetail("expected a boolean literal")
		}
	case "date":
		if lit.Kind != LiteralDate && lit.Kind != LiteralString {
			return gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.compile", alias, nil).WithDetail("expected a date literal")
		}
	case "string":
		if lit.Kind != LiteralString && lit.Kind != LiteralDate {
			return gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.compile", alias, nil).WithDetail("expected a string literal")
		}
	}
	return nil
}

func (c *compileCtx) compileComparison(cmp *Comparison) (string, error) {
	db, err := c.resolveColumn(cmp.Field)
	if err != nil {
		return "", err
	}
	if err := c.checkLiteralType(cmp.Field, cmp.Literal); err != nil {
		return "", err
	}

	op, ok := sqlOps[cmp.Op]
	if !ok {
		return "", gwerr.New(gwerr.CodeQuerySyntax, "sqlengine.compile", cmp.Op, nil).WithDetail("unknown comparison operator")
	}

	if cmp.Literal.Kind == LiteralNull {
		if cmp.Op == "eq" {
			return fmt.Sprintf("%s IS NULL", c.dialect.QuoteIdent(db)), nil
		}
		if cmp.Op == "ne" {
			return fmt.Sprintf("%s IS NOT NULL", c.dialect.QuoteIdent(db)), nil
		}
	}

	placeholder := c.dialect.Placeholder(len(c.args))
	c.args = append(c.args, literalValue(cmp.Literal))
	return fmt.Sprintf("%s %s %s", c.dialect.QuoteIdent(db), op, placeholder), nil
}

func (c *compileCtx) compileFuncCall(fc *FuncCall) (string, error) {
	db, err := c.resolveColumn(fc.Field)
	if err != nil {
		return "", err
	}
	if fc.Literal.Kind != LiteralString {
		return "", gwerr.New(gwerr.CodeTypeMismatch, "sqlengine.compile", fc.Field, nil).WithDetail(fc.Name + " requires a string literal")
	}

	var pattern string
	switch fc.Name {
	case "contains":
		pattern = "%" + escapeLike(fc.Literal.Str) + "%"
	case "startswith":
		pattern = escapeLike(fc.Literal.Str) + "%"
	case "endswith":
		pattern = "%" + escapeLike(fc.Literal.Str)
	default:
		return "", gwerr.New(gwerr.CodeQuerySyntax, "sqlengine.compile", fc.Name, nil).WithDetail("unknown function")
	}

	placeholder := c.dialect.Placeholder(len(c.args))
	c.args = append(c.args, pattern)
	return fmt.Sprintf("%s LIKE %s ESCAPE '\\'", c.dialect.QuoteIdent(db), placeholder), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

var sqlOps = map[string]string{
	"eq": "=", "ne": "<>", "gt": ">", "ge": ">=", "lt": "<", "le": "<=",
}

func literalValue(lit Literal) any {
	switch lit.Kind {
	case LiteralNumber:
		return lit.Num
	case LiteralBool:
		return lit.Bool
	case LiteralNull:
		return nil
	default:
		return lit.Str
	}
}
