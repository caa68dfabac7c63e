package rawsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderColumnMapping(t *testing.T) {
	sql := "select order_id, o.status, c.id, c.name, sum(l.order_qty*l.unit_price) as totalAmount" +
		" from orders o" +
		" join customers c on c.id = o.customer_id" +
		" join order_lines l on l.order_id = o.id" +
		" group by order_id, o.status"

	raw, err := Parse(sql).
		ColumnMapping("order_id", "order.id").
		ColumnMapping("o.status", "order.status").
		ColumnMapping("c.id", "order.customer.id").
		ColumnMapping("c.name", "order.customer.name").
		Create()
	require.NoError(t, err)

	cols := raw.Mapping().Columns()
	require.Len(t, cols, 5)
	assert.Equal(t, "order.id", cols[0].Path)
	assert.Equal(t, "order.status", cols[1].Path)
	assert.Equal(t, "order.customer.id", cols[2].Path)
	assert.Equal(t, "order.customer.name", cols[3].Path)
	// alias becomes the path without an explicit mapping
	assert.Equal(t, "totalAmount", cols[4].Path)

	c, ok := raw.Mapping().ColumnFor("order.customer.name")
	require.True(t, ok)
	assert.Equal(t, "c.name", c.DbColumn)
	assert.True(t, raw.Parsed())
}

func TestBuilderColumnMappingIgnore(t *testing.T) {
	raw, err := Parse("select order_id, 'ignoreMe', sum(l.order_qty*l.unit_price) as totalAmount from order_lines l group by order_id").
		ColumnMapping("order_id", "order.id").
		ColumnMappingIgnore("'ignoreMe'").
		Create()
	require.NoError(t, err)

	cols := raw.Mapping().Columns()
	require.Len(t, cols, 3)
	assert.True(t, cols[1].Ignore)
	assert.Equal(t, []string{"order.id", "totalAmount"}, raw.Mapping().Paths())
}

func TestBuilderTableAliasMapping(t *testing.T) {
	sql := "select o.id, o.status, c.id, c.name, l.id, l.order_qty, p.id, p.name" +
		" from orders o join customers c on c.id = o.customer_id" +
		" join order_lines l on l.order_id = o.id" +
		" join products p on p.id = l.product_id" +
		" where o.id <= :maxOrderId and p.id = :productId" +
		" order by o.id, l.id asc"

	raw, err := Parse(sql).
		TableAliasMapping("c", "customer").
		TableAliasMapping("l", "lines").
		TableAliasMapping("p", "lines.product").
		Create()
	require.NoError(t, err)

	assert.Equal(t, "o.id, l.id asc", raw.DefaultOrderBy())
	assert.Equal(t, []string{
		"id", "status",
		"customer.id", "customer.name",
		"lines.id", "lines.order_qty",
		"lines.product.id", "lines.product.name",
	}, raw.Mapping().Paths())
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*RawSql, error)
	}{
		{
			name: "UnknownMappedColumn",
			build: func() (*RawSql, error) {
				return Parse("select id from orders").ColumnMapping("nope", "order.id").Create()
			},
		},
		{
			name: "DuplicatePath",
			build: func() (*RawSql, error) {
				return Parse("select a, b from t").
					ColumnMapping("a", "x").
					ColumnMapping("b", "x").
					Create()
			},
		},
		{
			name: "ExpressionWithoutMapping",
			build: func() (*RawSql, error) {
				return Parse("select count(*) from t").Create()
			},
		},
		{
			name: "InvalidPath",
			build: func() (*RawSql, error) {
				return Parse("select a from t").ColumnMapping("a", "bad..path").Create()
			},
		},
		{
			name: "AliasMappingOnUnparsed",
			build: func() (*RawSql, error) {
				return Unparsed("select a from t").TableAliasMapping("a", "x").Create()
			},
		},
		{
			name: "UnparsedWithoutMappings",
			build: func() (*RawSql, error) {
				return Unparsed("select a from t").Create()
			},
		},
		{
			name: "ParseError",
			build: func() (*RawSql, error) {
				return Parse("delete from t").ColumnMapping("a", "x").Create()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.build()
			assert.Error(t, err)
			assert.Nil(t, raw)
		})
	}
}

func TestBuilderUnparsed(t *testing.T) {
	raw, err := Unparsed("select id, name, secret from customers").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		ColumnMappingIgnore("secret").
		Create()
	require.NoError(t, err)

	assert.False(t, raw.Parsed())
	assert.Equal(t, "select id, name, secret from customers", raw.SQL())
	assert.Equal(t, []string{"id", "name"}, raw.Mapping().Paths())
	assert.Equal(t, -1, raw.Sections().WherePos)
}

func TestPlanKeyStable(t *testing.T) {
	build := func() *RawSql {
		return Parse("select id, name from customers").MustCreate()
	}
	assert.Equal(t, build().PlanKey(), build().PlanKey())

	other := Parse("select id, name from customers").
		ColumnMapping("name", "fullName").
		MustCreate()
	assert.NotEqual(t, build().PlanKey(), other.PlanKey())
}
