package graph

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rawsql "github.com/corvid-labs/rawsql"
)

type Customer struct {
	ID   uint64
	Name string
}

type Product struct {
	ID   uint64
	Name string
}

type OrderLine struct {
	ID       uint64
	OrderQty int
	Product  Product
}

type Order struct {
	ID       uint64
	Status   string
	Customer *Customer
	Lines    []OrderLine
}

type OrderAggregate struct {
	Order       *Order
	TotalAmount float64
}

// fakeRows replays fixed rows through the Rows interface.
type fakeRows struct {
	rows [][]any
	pos  int
}

func (f *fakeRows) Next() bool { f.pos++; return f.pos <= len(f.rows) }
func (f *fakeRows) Err() error { return nil }

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	for i, d := range dest {
		*(d.(*any)) = row[i]
	}
	return nil
}

func TestBinderAggregate(t *testing.T) {
	raw, err := rawsql.Parse("select order_id, 'x', sum(l.order_qty*l.unit_price) as totalAmount from order_lines l group by order_id").
		ColumnMapping("order_id", "order.id").
		ColumnMappingIgnore("'x'").
		Create()
	require.NoError(t, err)

	b, err := New(raw, reflect.TypeOf(OrderAggregate{}))
	require.NoError(t, err)

	rows := &fakeRows{rows: [][]any{
		{int64(1), "ignored", 120.5},
		{int64(2), "ignored", 99.0},
	}}

	var out []OrderAggregate
	n, err := b.BindAll(rows, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, out, 2)

	require.NotNil(t, out[0].Order)
	assert.Equal(t, uint64(1), out[0].Order.ID)
	assert.Equal(t, 120.5, out[0].TotalAmount)
	assert.Equal(t, uint64(2), out[1].Order.ID)
}

func TestBinderOneToMany(t *testing.T) {
	raw, err := rawsql.Parse("select o.id, o.status, c.id, c.name, l.id, l.order_qty, p.id, p.name from orders o"+
		" join customers c on c.id = o.customer_id"+
		" join order_lines l on l.order_id = o.id"+
		" join products p on p.id = l.product_id"+
		" order by o.id, l.id").
		TableAliasMapping("c", "customer").
		TableAliasMapping("l", "lines").
		TableAliasMapping("p", "lines.product").
		Create()
	require.NoError(t, err)

	b, err := New(raw, reflect.TypeOf(Order{}))
	require.NoError(t, err)

	rows := &fakeRows{rows: [][]any{
		{int64(1), "NEW", int64(10), "Rob", int64(100), int64(2), int64(7), "Chess Set"},
		{int64(1), "NEW", int64(10), "Rob", int64(101), int64(1), int64(8), "Dice"},
		{int64(2), "SHIPPED", int64(11), "Ken", int64(102), int64(4), int64(7), "Chess Set"},
	}}

	var out []*Order
	n, err := b.BindAll(rows, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, "NEW", first.Status)
	require.NotNil(t, first.Customer)
	assert.Equal(t, "Rob", first.Customer.Name)
	require.Len(t, first.Lines, 2)
	assert.Equal(t, uint64(100), first.Lines[0].ID)
	assert.Equal(t, "Chess Set", first.Lines[0].Product.Name)
	assert.Equal(t, uint64(101), first.Lines[1].ID)
	assert.Equal(t, "Dice", first.Lines[1].Product.Name)

	second := out[1]
	assert.Equal(t, "SHIPPED", second.Status)
	require.Len(t, second.Lines, 1)
	assert.Equal(t, int(4), second.Lines[0].OrderQty)
}

func TestBinderNullNestedStaysNil(t *testing.T) {
	raw, err := rawsql.Parse("select order_id, c.id, c.name, total as totalAmount from t").
		ColumnMapping("order_id", "order.id").
		ColumnMapping("c.id", "order.customer.id").
		ColumnMapping("c.name", "order.customer.name").
		ColumnMapping("total", "totalAmount").
		Create()
	require.NoError(t, err)

	b, err := New(raw, reflect.TypeOf(OrderAggregate{}))
	require.NoError(t, err)

	rows := &fakeRows{rows: [][]any{
		{int64(1), nil, nil, 10.0},
	}}

	var out []OrderAggregate
	_, err = b.BindAll(rows, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Order)
	assert.Nil(t, out[0].Order.Customer, "all-null one-to-one stays nil")
}

func TestBinderErrors(t *testing.T) {
	raw := rawsql.Parse("select id, name from customers").MustCreate()

	t.Run("UnresolvablePath", func(t *testing.T) {
		bad := rawsql.Parse("select id, nope from customers").MustCreate()
		_, err := New(bad, reflect.TypeOf(Customer{}))
		assert.Error(t, err)
	})

	t.Run("ManyWithoutRootID", func(t *testing.T) {
		bad, err := rawsql.Parse("select l.id from orders o join order_lines l on l.order_id = o.id").
			TableAliasMapping("l", "lines").
			Create()
		require.NoError(t, err)
		_, err = New(bad, reflect.TypeOf(Order{}))
		assert.Error(t, err)
	})

	t.Run("DestNotSlicePtr", func(t *testing.T) {
		b, err := New(raw, reflect.TypeOf(Customer{}))
		require.NoError(t, err)
		var c Customer
		_, err = b.BindAll(&fakeRows{}, &c)
		assert.Error(t, err)
	})

	t.Run("DestWrongElemType", func(t *testing.T) {
		b, err := New(raw, reflect.TypeOf(Customer{}))
		require.NoError(t, err)
		var out []Order
		_, err = b.BindAll(&fakeRows{}, &out)
		assert.Error(t, err)
	})
}

func TestBinderSyntheticKeys(t *testing.T) {
	// No root ID mapped and no collections: every row is its own root.
	raw, err := rawsql.Parse("select name from customers").Create()
	require.NoError(t, err)

	b, err := New(raw, reflect.TypeOf(Customer{}))
	require.NoError(t, err)

	rows := &fakeRows{rows: [][]any{{"a"}, {"a"}, {"b"}}}
	var out []Customer
	n, err := b.BindAll(rows, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
