package sqlgen_test

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/query/algebra"
	"github.com/satishbabariya/relq/internal/core/query/domain"
	"github.com/satishbabariya/relq/internal/core/query/jsonmap"
	"github.com/satishbabariya/relq/internal/core/query/sqlgen"
)

var (
	nchar5     = &algebra.TypeMapping{StoreType: "nchar(5)", Kind: model.KindString, Size: 5, Unicode: true, FixedLength: true}
	nvarchar15 = &algebra.TypeMapping{StoreType: "nvarchar(15)", Kind: model.KindString, Size: 15, Unicode: true}
	decimal182 = &algebra.TypeMapping{StoreType: "decimal(18,2)", Kind: model.KindDecimal, Precision: 18, Scale: 2}
)

func column(t algebra.TableSource, name string, m *algebra.TypeMapping, nullable bool) *algebra.Column {
	return &algebra.Column{Table: t, Name: name, Mapping: m, Nullable: nullable}
}

func captured(name, hint string, n int, m *algebra.TypeMapping) *algebra.Parameter {
	return &algebra.Parameter{
		Name:    "__" + hint + "_" + strconv.Itoa(n),
		Source:  algebra.ParameterSource{Kind: algebra.CapturedParameter, Name: name},
		Mapping: m,
	}
}

func generate(t *testing.T, d domain.Dialect, s *algebra.Select) *sqlgen.Command {
	t.Helper()
	g, err := sqlgen.NewGenerator(d, "")
	require.NoError(t, err)
	cmd, err := g.Generate(s)
	require.NoError(t, err)
	return cmd
}

type customers struct {
	table   *algebra.TableExpr
	id      *algebra.Column
	city    *algebra.Column
	country *algebra.Column
}

func newCustomers() customers {
	c := &algebra.TableExpr{Name: "Customers"}
	return customers{
		table:   c,
		id:      column(c, "CustomerID", nchar5, false),
		city:    column(c, "City", nvarchar15, true),
		country: column(c, "Country", nvarchar15, true),
	}
}

func TestGenerateFilteredSelect(t *testing.T) {
	c := newCustomers()
	sel := algebra.NewSelect(c.table)
	sel.AddProjection(c.id, "")
	sel.AddProjection(c.city, "")
	city := captured("city", "city", 0, nvarchar15)
	sel.AddPredicate(algebra.Equal(c.city, city))
	sel.Orderings = []algebra.Ordering{{Expr: c.id}}

	cmd := generate(t, domain.SQLServer, sel)
	assert.Equal(t, "SELECT [c].[CustomerID], [c].[City]\n"+
		"FROM [Customers] AS [c]\n"+
		"WHERE [c].[City] = @__city_0\n"+
		"ORDER BY [c].[CustomerID]", cmd.SQL)
	assert.Equal(t, []*algebra.Parameter{city}, cmd.Parameters)
}

func TestGenerateBooleans(t *testing.T) {
	products := &algebra.TableExpr{Name: "Products"}
	discontinued := column(products, "Discontinued", algebra.BoolMapping, false)
	name := column(products, "ProductName", nvarchar15, false)
	sel := algebra.NewSelect(products)
	sel.AddProjection(algebra.Equal(name, &algebra.Constant{Value: "Chai", Mapping: nvarchar15}), "IsChai")
	sel.AddProjection(discontinued, "")
	sel.AddPredicate(discontinued)

	tests := []struct {
		dialect domain.Dialect
		want    string
	}{
		{domain.SQLServer, "SELECT CASE WHEN [p].[ProductName] = N'Chai' THEN CAST(1 AS bit) ELSE CAST(0 AS bit) END AS [IsChai], [p].[Discontinued]\n" +
			"FROM [Products] AS [p]\n" +
			"WHERE [p].[Discontinued] = CAST(1 AS bit)"},
		{domain.SQLite, "SELECT CASE WHEN \"p\".\"ProductName\" = 'Chai' THEN 1 ELSE 0 END AS \"IsChai\", \"p\".\"Discontinued\"\n" +
			"FROM \"Products\" AS \"p\"\n" +
			"WHERE \"p\".\"Discontinued\""},
		{domain.PostgreSQL, "SELECT CASE WHEN \"p\".\"ProductName\" = 'Chai' THEN TRUE ELSE FALSE END AS \"IsChai\", \"p\".\"Discontinued\"\n" +
			"FROM \"Products\" AS \"p\"\n" +
			"WHERE \"p\".\"Discontinued\""},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			assert.Equal(t, tt.want, generate(t, tt.dialect, sel).SQL)
		})
	}
}

func TestGenerateConstantConditions(t *testing.T) {
	c := newCustomers()
	sel := algebra.NewSelect(c.table)
	sel.AddProjection(c.id, "")
	sel.AddPredicate(&algebra.In{Item: c.id})

	assert.Equal(t, "SELECT [c].[CustomerID]\nFROM [Customers] AS [c]\nWHERE 0 = 1", generate(t, domain.SQLServer, sel).SQL)

	sel.Predicate = algebra.True()
	assert.Equal(t, "SELECT \"c\".\"CustomerID\"\nFROM \"Customers\" AS \"c\"\nWHERE 1", generate(t, domain.SQLite, sel).SQL)
}

func TestGeneratePaging(t *testing.T) {
	c := newCustomers()
	take := captured("take", "p", 0, algebra.IntMapping)
	skip := captured("skip", "p", 1, algebra.IntMapping)

	tests := []struct {
		name    string
		dialect domain.Dialect
		limit   algebra.SQLExpr
		offset  algebra.SQLExpr
		ordered bool
		want    string
	}{
		{"top", domain.SQLServer, take, nil, true,
			"SELECT TOP(@__p_0) [c].[CustomerID]\nFROM [Customers] AS [c]\nORDER BY [c].[CustomerID]"},
		{"offset fetch", domain.SQLServer, take, skip, true,
			"SELECT [c].[CustomerID]\nFROM [Customers] AS [c]\nORDER BY [c].[CustomerID]\nOFFSET @__p_1 ROWS FETCH NEXT @__p_0 ROWS ONLY"},
		{"offset without ordering", domain.SQLServer, nil, skip, false,
			"SELECT [c].[CustomerID]\nFROM [Customers] AS [c]\nORDER BY (SELECT 1)\nOFFSET @__p_1 ROWS"},
		{"sqlite offset", domain.SQLite, nil, skip, true,
			"SELECT \"c\".\"CustomerID\"\nFROM \"Customers\" AS \"c\"\nORDER BY \"c\".\"CustomerID\"\nLIMIT -1 OFFSET @__p_1"},
		{"postgres limit offset", domain.PostgreSQL, take, skip, true,
			"SELECT \"c\".\"CustomerID\"\nFROM \"Customers\" AS \"c\"\nORDER BY \"c\".\"CustomerID\"\nLIMIT $1 OFFSET $2"},
		{"postgres offset", domain.PostgreSQL, nil, skip, true,
			"SELECT \"c\".\"CustomerID\"\nFROM \"Customers\" AS \"c\"\nORDER BY \"c\".\"CustomerID\"\nOFFSET $1"},
		{"mysql offset", domain.MySQL, nil, skip, true,
			"SELECT `c`.`CustomerID`\nFROM `Customers` AS `c`\nORDER BY `c`.`CustomerID`\nLIMIT 18446744073709551615 OFFSET ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := algebra.NewSelect(c.table)
			sel.AddProjection(c.id, "")
			if tt.ordered {
				sel.Orderings = []algebra.Ordering{{Expr: c.id}}
			}
			sel.Limit, sel.Offset = tt.limit, tt.offset
			assert.Equal(t, tt.want, generate(t, tt.dialect, sel).SQL)
		})
	}
}

func TestGenerateNullSemanticsParentheses(t *testing.T) {
	c := newCustomers()
	city := captured("city", "city", 0, nvarchar15)
	sel := algebra.NewSelect(c.table)
	sel.AddProjection(c.id, "")
	sel.AddPredicate(algebra.Or(
		&algebra.Binary{Op: algebra.OpNotEqual, Left: c.city, Right: city},
		&algebra.Unary{Op: algebra.OpIsNull, Operand: c.city},
	))
	sel.AddPredicate(algebra.Equal(c.country, &algebra.Constant{Value: "UK", Mapping: nvarchar15}))

	assert.Equal(t, "SELECT [c].[CustomerID]\n"+
		"FROM [Customers] AS [c]\n"+
		"WHERE ([c].[City] <> @__city_0 OR [c].[City] IS NULL) AND [c].[Country] = N'UK'",
		generate(t, domain.SQLServer, sel).SQL)
}

func TestGenerateSubqueries(t *testing.T) {
	c := newCustomers()
	orders := &algebra.TableExpr{Name: "Orders"}
	orderCustomer := column(orders, "CustomerID", nchar5, true)

	sub := algebra.NewSelect(orders)
	sub.AddPredicate(algebra.Equal(c.id, orderCustomer))

	t.Run("not exists", func(t *testing.T) {
		sel := algebra.NewSelect(c.table)
		sel.AddProjection(c.id, "")
		sel.AddPredicate(&algebra.Exists{Subquery: sub, Negated: true})
		assert.Equal(t, "SELECT [c].[CustomerID]\n"+
			"FROM [Customers] AS [c]\n"+
			"WHERE NOT EXISTS (\n"+
			"    SELECT 1\n"+
			"    FROM [Orders] AS [o]\n"+
			"    WHERE [c].[CustomerID] = [o].[CustomerID])",
			generate(t, domain.SQLServer, sel).SQL)
	})

	t.Run("scalar", func(t *testing.T) {
		count := algebra.NewSelect(orders)
		count.AddPredicate(algebra.Equal(c.id, orderCustomer))
		count.AddProjection(&algebra.Function{Name: "COUNT", Args: []algebra.SQLExpr{&algebra.Star{}}, Mapping: algebra.IntMapping}, "")
		sel := algebra.NewSelect(c.table)
		sel.AddProjection(&algebra.ScalarSubquery{Subquery: count, Mapping: algebra.IntMapping}, "Count")
		assert.Equal(t, "SELECT (\n"+
			"    SELECT COUNT(*)\n"+
			"    FROM [Orders] AS [o]\n"+
			"    WHERE [c].[CustomerID] = [o].[CustomerID]) AS [Count]\n"+
			"FROM [Customers] AS [c]",
			generate(t, domain.SQLServer, sel).SQL)
	})
}

func TestGenerateAliasNumbering(t *testing.T) {
	c := newCustomers()
	inner := algebra.NewSelect(c.table)
	inner.AddProjection(c.id, "")
	inner.Limit = &algebra.Constant{Value: 5, Mapping: algebra.IntMapping}
	inner.Orderings = []algebra.Ordering{{Expr: c.id}}
	derived := &algebra.SubqueryExpr{Select: inner}
	derivedID := column(derived, "CustomerID", nchar5, false)

	managers := &algebra.TableExpr{Name: "Customers"}
	other := &algebra.TableExpr{Name: "Customers"}
	sub := algebra.NewSelect(other)
	sub.AddPredicate(algebra.Equal(column(other, "CustomerID", nchar5, false), derivedID))

	sel := algebra.NewSelect(derived)
	sel.AddJoin(algebra.JoinInner, managers, algebra.Equal(column(managers, "CustomerID", nchar5, false), derivedID))
	sel.AddProjection(derivedID, "")
	sel.AddPredicate(&algebra.Exists{Subquery: sub})

	assert.Equal(t, "SELECT [c0].[CustomerID]\n"+
		"FROM (\n"+
		"    SELECT TOP(5) [c].[CustomerID]\n"+
		"    FROM [Customers] AS [c]\n"+
		"    ORDER BY [c].[CustomerID]\n"+
		") AS [c0]\n"+
		"INNER JOIN [Customers] AS [c1] ON [c1].[CustomerID] = [c0].[CustomerID]\n"+
		"WHERE EXISTS (\n"+
		"    SELECT 1\n"+
		"    FROM [Customers] AS [c2]\n"+
		"    WHERE [c2].[CustomerID] = [c0].[CustomerID])",
		generate(t, domain.SQLServer, sel).SQL)
}

func TestGenerateSetOperation(t *testing.T) {
	c := newCustomers()
	employees := &algebra.TableExpr{Name: "Employees"}
	left := algebra.NewSelect(c.table)
	left.AddProjection(c.city, "")
	right := algebra.NewSelect(employees)
	right.AddProjection(column(employees, "City", nvarchar15, true), "")
	union := &algebra.SetOperationExpr{Kind: algebra.SetUnion, Operands: []*algebra.Select{left, right}}
	sel := algebra.NewSelect(union)
	sel.AddProjection(column(union, "City", nvarchar15, true), "")

	assert.Equal(t, "SELECT [u].[City]\n"+
		"FROM (\n"+
		"    SELECT [c].[City]\n"+
		"    FROM [Customers] AS [c]\n"+
		"    UNION\n"+
		"    SELECT [e].[City]\n"+
		"    FROM [Employees] AS [e]\n"+
		") AS [u]",
		generate(t, domain.SQLServer, sel).SQL)
}

func TestGeneratePrimitiveCollection(t *testing.T) {
	c := newCustomers()
	ids := &algebra.Parameter{
		Name:       "__ids_0",
		Source:     algebra.ParameterSource{Kind: algebra.CapturedParameter, Name: "ids"},
		Mapping:    algebra.JSONMapping,
		Collection: true,
		Element:    nchar5,
	}
	values := jsonmap.PrimitiveTable(ids, "ids", nchar5, nil)
	sub := algebra.NewSelect(values)
	sub.AddProjection(jsonmap.PrimitiveValue(values), "")
	sel := algebra.NewSelect(c.table)
	sel.AddProjection(c.id, "")
	sel.AddPredicate(&algebra.In{Item: c.id, Subquery: sub})

	tests := []struct {
		dialect domain.Dialect
		want    string
	}{
		{domain.SQLServer, "SELECT [c].[CustomerID]\n" +
			"FROM [Customers] AS [c]\n" +
			"WHERE [c].[CustomerID] IN (\n" +
			"    SELECT [i].[value]\n" +
			"    FROM OPENJSON(@__ids_0) WITH ([value] nchar(5) '$') AS [i]\n" +
			")"},
		{domain.SQLite, "SELECT \"c\".\"CustomerID\"\n" +
			"FROM \"Customers\" AS \"c\"\n" +
			"WHERE \"c\".\"CustomerID\" IN (\n" +
			"    SELECT \"i\".\"value\"\n" +
			"    FROM json_each(@__ids_0) AS \"i\"\n" +
			")"},
		{domain.MySQL, "SELECT `c`.`CustomerID`\n" +
			"FROM `Customers` AS `c`\n" +
			"WHERE `c`.`CustomerID` IN (\n" +
			"    SELECT `i`.`value`\n" +
			"    FROM JSON_TABLE(?, '$[*]' COLUMNS (`value` VARCHAR(5) PATH '$')) AS `i`\n" +
			")"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			cmd := generate(t, tt.dialect, sel)
			assert.Equal(t, tt.want, cmd.SQL)
			assert.Equal(t, []*algebra.Parameter{ids}, cmd.Parameters)
		})
	}
}

func TestGenerateJSONValue(t *testing.T) {
	entities := &algebra.TableExpr{Name: "JsonEntities"}
	doc := column(entities, "Reference", algebra.JSONMapping, true)
	path := []algebra.PathSegment{{Property: "Branch"}, {Property: "Fraction"}}
	sel := algebra.NewSelect(entities)
	sel.AddProjection(&algebra.JSONValue{Doc: doc, Path: path, Mapping: decimal182, Nullable: true}, "Fraction")
	sel.AddProjection(&algebra.JSONValue{Doc: doc, Path: path[:1], Fragment: true, Mapping: algebra.JSONMapping, Nullable: true}, "Branch")

	tests := []struct {
		dialect domain.Dialect
		want    string
	}{
		{domain.SQLServer, "SELECT CAST(JSON_VALUE([j].[Reference], '$.Branch.Fraction') AS decimal(18,2)) AS [Fraction], " +
			"JSON_QUERY([j].[Reference], '$.Branch') AS [Branch]\nFROM [JsonEntities] AS [j]"},
		{domain.SQLite, "SELECT json_extract(\"j\".\"Reference\", '$.Branch.Fraction') AS \"Fraction\", " +
			"json_extract(\"j\".\"Reference\", '$.Branch') AS \"Branch\"\nFROM \"JsonEntities\" AS \"j\""},
		{domain.PostgreSQL, "SELECT CAST(CAST(\"j\".\"Reference\" AS jsonb) #>> '{Branch,Fraction}' AS numeric(18,2)) AS \"Fraction\", " +
			"(CAST(\"j\".\"Reference\" AS jsonb) #> '{Branch}') AS \"Branch\"\nFROM \"JsonEntities\" AS \"j\""},
		{domain.MySQL, "SELECT JSON_VALUE(`j`.`Reference`, '$.Branch.Fraction' RETURNING DECIMAL(18,2)) AS `Fraction`, " +
			"JSON_EXTRACT(`j`.`Reference`, '$.Branch') AS `Branch`\nFROM `JsonEntities` AS `j`"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			assert.Equal(t, tt.want, generate(t, tt.dialect, sel).SQL)
		})
	}
}

func TestGenerateTemporal(t *testing.T) {
	gears := &algebra.TableExpr{
		Name: "Gears",
		Temporal: &algebra.TemporalScope{
			Mode: algebra.AsOf,
			From: &algebra.Constant{Value: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), Mapping: algebra.DateTimeMapping},
		},
	}
	sel := algebra.NewSelect(gears)
	sel.AddProjection(column(gears, "Nickname", nvarchar15, false), "")

	assert.Equal(t, "SELECT [g].[Nickname]\nFROM [Gears] FOR SYSTEM_TIME AS OF '2010-01-01T00:00:00.0000000' AS [g]",
		generate(t, domain.SQLServer, sel).SQL)

	g, err := sqlgen.NewGenerator(domain.SQLite, "")
	require.NoError(t, err)
	_, err = g.Generate(sel)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	old, err := sqlgen.NewGenerator(domain.SQLServer, "12.0")
	require.NoError(t, err)
	_, err = old.Generate(sel)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestGenerateApply(t *testing.T) {
	c := newCustomers()
	orders := &algebra.TableExpr{Name: "Orders"}
	sub := algebra.NewSelect(orders)
	sub.AddProjection(column(orders, "OrderID", algebra.IntMapping, false), "")
	sub.AddPredicate(algebra.Equal(c.id, column(orders, "CustomerID", nchar5, true)))
	sub.Limit = &algebra.Constant{Value: 1, Mapping: algebra.IntMapping}
	lateral := &algebra.SubqueryExpr{Select: sub}
	sel := algebra.NewSelect(c.table)
	sel.AddJoin(algebra.JoinOuterApply, lateral, nil)
	sel.AddProjection(column(lateral, "OrderID", algebra.IntMapping, true), "")

	assert.Equal(t, "SELECT \"o0\".\"OrderID\"\n"+
		"FROM \"Customers\" AS \"c\"\n"+
		"LEFT JOIN LATERAL (\n"+
		"    SELECT \"o\".\"OrderID\"\n"+
		"    FROM \"Orders\" AS \"o\"\n"+
		"    WHERE \"c\".\"CustomerID\" = \"o\".\"CustomerID\"\n"+
		"    LIMIT 1\n"+
		") AS \"o0\" ON TRUE",
		generate(t, domain.PostgreSQL, sel).SQL)

	assert.Contains(t, generate(t, domain.SQLServer, sel).SQL, "OUTER APPLY (\n    SELECT TOP(1) [o].[OrderID]")

	g, err := sqlgen.NewGenerator(domain.SQLite, "")
	require.NoError(t, err)
	_, err = g.Generate(sel)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestGenerateRawSQL(t *testing.T) {
	raw := &algebra.FromSQLExpr{
		SQL: "SELECT * FROM Customers WHERE City = {0}",
		Args: []algebra.SQLExpr{&algebra.Parameter{
			Name:   "p0",
			Source: algebra.ParameterSource{Kind: algebra.RawParameter, Name: "city"},
		}},
	}
	sel := algebra.NewSelect(raw)
	sel.AddProjection(column(raw, "CustomerID", nchar5, false), "")

	cmd := generate(t, domain.SQLServer, sel)
	assert.Equal(t, "SELECT [m].[CustomerID]\n"+
		"FROM (\n"+
		"    SELECT * FROM Customers WHERE City = @p0\n"+
		") AS [m]", cmd.SQL)
	require.Len(t, cmd.Parameters, 1)
	assert.Equal(t, "p0", cmd.Parameters[0].Name)
}

func TestGenerateLiterals(t *testing.T) {
	ascii := &algebra.TypeMapping{StoreType: "varchar(10)", Kind: model.KindString, Size: 10}
	id := uuid.MustParse("df36f493-463f-4123-83f9-6b135deeb7ba")

	tests := []struct {
		name  string
		value any
		m     *algebra.TypeMapping
		want  string
	}{
		{"null", nil, nil, "SELECT NULL"},
		{"int", 10, algebra.IntMapping, "SELECT 10"},
		{"decimal from int", 10, decimal182, "SELECT 10.0"},
		{"float", 2.5, algebra.DoubleMapping, "SELECT 2.5"},
		{"unicode", "O'Brien", nvarchar15, "SELECT N'O''Brien'"},
		{"ansi", "abc", ascii, "SELECT 'abc'"},
		{"bool", true, algebra.BoolMapping, "SELECT CAST(1 AS bit)"},
		{"datetime", time.Date(1998, 5, 6, 0, 0, 0, 0, time.UTC), algebra.DateTimeMapping, "SELECT '1998-05-06T00:00:00.0000000'"},
		{"guid", id, algebra.GuidMapping, "SELECT 'df36f493-463f-4123-83f9-6b135deeb7ba'"},
		{"bytes", []byte{1, 171}, nil, "SELECT 0x01AB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := &algebra.Select{}
			sel.AddProjection(&algebra.Constant{Value: tt.value, Mapping: tt.m}, "")
			assert.Equal(t, tt.want, generate(t, domain.SQLServer, sel).SQL)
		})
	}
}

func TestGenerateArithmetic(t *testing.T) {
	one := &algebra.Constant{Value: 1, Mapping: algebra.IntMapping}
	two := &algebra.Constant{Value: 2, Mapping: algebra.IntMapping}
	three := &algebra.Constant{Value: 3, Mapping: algebra.IntMapping}

	tests := []struct {
		name string
		e    algebra.SQLExpr
		want string
	}{
		{"right grouping", &algebra.Binary{Op: algebra.OpSubtract, Left: one, Right: &algebra.Binary{Op: algebra.OpAdd, Left: two, Right: three}}, "SELECT 1 - (2 + 3)"},
		{"left grouping", &algebra.Binary{Op: algebra.OpMultiply, Left: &algebra.Binary{Op: algebra.OpAdd, Left: one, Right: two}, Right: three}, "SELECT (1 + 2) * 3"},
		{"precedence", &algebra.Binary{Op: algebra.OpAdd, Left: one, Right: &algebra.Binary{Op: algebra.OpMultiply, Left: two, Right: three}}, "SELECT 1 + 2 * 3"},
		{"negate", &algebra.Unary{Op: algebra.OpNegate, Operand: &algebra.Binary{Op: algebra.OpAdd, Left: one, Right: two}}, "SELECT -(1 + 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := &algebra.Select{}
			sel.AddProjection(tt.e, "")
			assert.Equal(t, tt.want, generate(t, domain.SQLServer, sel).SQL)
		})
	}
}

func TestGenerateDialectFunctions(t *testing.T) {
	c := newCustomers()
	length := &algebra.Function{Name: "LEN", Args: []algebra.SQLExpr{c.city}, Mapping: algebra.IntMapping, Nullable: true}
	position := &algebra.Function{Name: "CHARINDEX", Args: []algebra.SQLExpr{&algebra.Constant{Value: "a", Mapping: nvarchar15}, c.city}, Mapping: algebra.IntMapping}
	concat := &algebra.Binary{Op: algebra.OpAdd, Left: c.city, Right: c.country, Mapping: nvarchar15}
	sel := algebra.NewSelect(c.table)
	sel.AddProjection(length, "Length")
	sel.AddProjection(position, "Position")
	sel.AddProjection(concat, "Place")

	tests := []struct {
		dialect domain.Dialect
		want    string
	}{
		{domain.SQLServer, "SELECT LEN([c].[City]) AS [Length], CHARINDEX(N'a', [c].[City]) AS [Position], [c].[City] + [c].[Country] AS [Place]"},
		{domain.SQLite, "SELECT length(\"c\".\"City\") AS \"Length\", instr(\"c\".\"City\", 'a') AS \"Position\", \"c\".\"City\" || \"c\".\"Country\" AS \"Place\""},
		{domain.PostgreSQL, "SELECT length(\"c\".\"City\") AS \"Length\", strpos(\"c\".\"City\", 'a') AS \"Position\", \"c\".\"City\" || \"c\".\"Country\" AS \"Place\""},
		{domain.MySQL, "SELECT CHAR_LENGTH(`c`.`City`) AS `Length`, LOCATE('a', `c`.`City`) AS `Position`, CONCAT(`c`.`City`, `c`.`Country`) AS `Place`"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			sql := generate(t, tt.dialect, sel).SQL
			assert.True(t, strings.HasPrefix(sql, tt.want+"\n"), sql)
		})
	}
}

func TestPositionalParametersRepeat(t *testing.T) {
	c := newCustomers()
	city := captured("city", "city", 0, nvarchar15)
	sel := algebra.NewSelect(c.table)
	sel.AddProjection(c.id, "")
	sel.AddPredicate(algebra.Or(algebra.Equal(c.city, city), algebra.Equal(c.country, city)))

	pg := generate(t, domain.PostgreSQL, sel)
	assert.Contains(t, pg.SQL, `WHERE "c"."City" = $1 OR "c"."Country" = $1`)
	assert.Len(t, pg.Parameters, 1)

	my := generate(t, domain.MySQL, sel)
	assert.Contains(t, my.SQL, "WHERE `c`.`City` = ? OR `c`.`Country` = ?")
	assert.Equal(t, []*algebra.Parameter{city, city}, my.Parameters)
}

func TestUnknownDialect(t *testing.T) {
	_, err := sqlgen.NewGenerator("oracle", "")
	assert.ErrorIs(t, err, sqlgen.ErrUnknownDialect)
}

// rankedIncludeSelect mirrors the single query of a filtered include with
// Take: customers joined to their first orders ranked per customer.
func rankedIncludeSelect() *algebra.Select {
	c := newCustomers()
	orders := &algebra.TableExpr{Name: "Orders"}
	orderID := column(orders, "OrderID", algebra.IntMapping, false)
	orderCustomer := column(orders, "CustomerID", nchar5, true)

	ranked := algebra.NewSelect(orders)
	ranked.AddProjection(orderID, "")
	ranked.AddProjection(orderCustomer, "")
	ranked.AddProjection(&algebra.RowNumber{
		Partitions: []algebra.SQLExpr{orderCustomer},
		Orderings:  []algebra.Ordering{{Expr: column(orders, "OrderDate", algebra.DateTimeMapping, true)}},
	}, "row")
	derived := &algebra.SubqueryExpr{Select: ranked}
	row := column(derived, "row", algebra.LongMapping, false)
	derivedID := column(derived, "OrderID", algebra.IntMapping, true)

	sel := algebra.NewSelect(c.table)
	sel.AddJoin(algebra.JoinLeft, derived, algebra.And(
		algebra.Equal(c.id, column(derived, "CustomerID", nchar5, true)),
		&algebra.Binary{Op: algebra.OpLessThanOrEqual, Left: row, Right: &algebra.Constant{Value: 2, Mapping: algebra.LongMapping}},
	))
	sel.AddProjection(c.id, "")
	sel.AddProjection(derivedID, "")
	sel.AddPredicate(algebra.Equal(c.country, captured("country", "country", 0, nvarchar15)))
	sel.Orderings = []algebra.Ordering{{Expr: c.id}, {Expr: derivedID}}
	sel.Limit = captured("take", "p", 1, algebra.IntMapping)
	return sel
}

func TestGenerateGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".sql"),
	)
	for _, d := range []domain.Dialect{domain.SQLServer, domain.SQLite, domain.PostgreSQL, domain.MySQL} {
		t.Run(string(d), func(t *testing.T) {
			cmd := generate(t, d, rankedIncludeSelect())
			g.Assert(t, "ranked_include_"+string(d), []byte(cmd.SQL))
		})
	}
}

func TestToQueryString(t *testing.T) {
	sel := rankedIncludeSelect()
	cmd := generate(t, domain.SQLServer, sel)
	bound := []domain.BoundParameter{
		{Name: "__country_0", Value: "UK", StoreType: "nvarchar(15)", Size: 15},
		{Name: "__p_1", Value: 10, StoreType: "int"},
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".sql"),
	)
	g.Assert(t, "ranked_include_query_string", []byte(sqlgen.ToQueryString(cmd.SQL, bound)))
}
