package query

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rawsql "github.com/corvid-labs/rawsql"
	"github.com/corvid-labs/rawsql/cache"
	"github.com/corvid-labs/rawsql/dialect"
)

type Customer struct {
	ID   int64
	Name string
}

type Product struct {
	ID   int64
	Name string
}

type OrderLine struct {
	ID       int64
	OrderQty int
	Product  *Product
}

type Order struct {
	ID       int64
	Status   string
	Customer *Customer
	Lines    []OrderLine
}

const orderGraphSQL = "select o.id, o.status, c.id, c.name, l.id, l.order_qty, p.id, p.name " +
	"from orders o join customers c on c.id = o.customer_id " +
	"left join order_lines l on l.order_id = o.id " +
	"left join products p on p.id = l.product_id " +
	"where o.id <= :maxOrderId order by o.id, l.id"

func orderGraphRawSql(t *testing.T) *rawsql.RawSql {
	t.Helper()
	raw, err := rawsql.Parse(orderGraphSQL).
		TableAliasMapping("c", "customer").
		TableAliasMapping("l", "lines").
		TableAliasMapping("p", "lines.product").
		Create()
	require.NoError(t, err)
	return raw
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ddl := []string{
		`create table customers (id integer primary key, name text not null)`,
		`create table products (id integer primary key, name text not null)`,
		`create table orders (id integer primary key, status text not null, customer_id integer not null)`,
		`create table order_lines (id integer primary key, order_id integer not null, order_qty integer not null, product_id integer)`,
	}
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	seed := []string{
		`insert into customers values (1, 'Rob'), (2, 'Fiona')`,
		`insert into products values (10, 'Desk'), (11, 'Chair')`,
		`insert into orders values (1, 'NEW', 1), (2, 'SHIPPED', 2), (3, 'NEW', 1)`,
		`insert into order_lines values (100, 1, 2, 10), (101, 1, 1, 11), (102, 2, 5, 10)`,
	}
	for _, stmt := range seed {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func TestExecutorFindList(t *testing.T) {
	db := newTestDB(t)
	ex := NewExecutor(db, dialect.NewSQLiteDialect(), WithStatementCache(8))
	defer ex.Close()
	ctx := context.Background()

	var orders []Order
	err := New(ex).
		SetRawSql(orderGraphRawSql(t)).
		SetParameter("maxOrderId", 2).
		FindList(ctx, &orders)
	require.NoError(t, err)

	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "NEW", first.Status)
	require.NotNil(t, first.Customer)
	assert.Equal(t, "Rob", first.Customer.Name)
	require.Len(t, first.Lines, 2)
	assert.Equal(t, 2, first.Lines[0].OrderQty)
	require.NotNil(t, first.Lines[0].Product)
	assert.Equal(t, "Desk", first.Lines[0].Product.Name)
	assert.Equal(t, "Chair", first.Lines[1].Product.Name)

	second := orders[1]
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "Fiona", second.Customer.Name)
	require.Len(t, second.Lines, 1)
	assert.Equal(t, 5, second.Lines[0].OrderQty)
}

func TestExecutorInjectedWhere(t *testing.T) {
	db := newTestDB(t)
	ex := NewExecutor(db, dialect.NewSQLiteDialect())
	ctx := context.Background()

	var orders []Order
	err := New(ex).
		SetRawSql(orderGraphRawSql(t)).
		SetParameter("maxOrderId", 99).
		WhereEq("status", "SHIPPED").
		FindList(ctx, &orders)
	require.NoError(t, err)

	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].ID)
}

func TestExecutorFindOne(t *testing.T) {
	db := newTestDB(t)
	ex := NewExecutor(db, dialect.NewSQLiteDialect())
	ctx := context.Background()

	var order Order
	err := New(ex).
		SetRawSql(orderGraphRawSql(t)).
		SetParameter("maxOrderId", 99).
		WhereEq("id", 2).
		FindOne(ctx, &order)
	require.NoError(t, err)
	assert.Equal(t, "SHIPPED", order.Status)

	err = New(ex).
		SetRawSql(orderGraphRawSql(t)).
		SetParameter("maxOrderId", 99).
		WhereEq("id", 12345).
		FindOne(ctx, &order)
	assert.ErrorIs(t, err, ErrNoRows)

	err = New(ex).
		SetRawSql(orderGraphRawSql(t)).
		SetParameter("maxOrderId", 99).
		FindOne(ctx, &order)
	assert.ErrorIs(t, err, ErrMultipleRows)
}

func TestExecutorFindCount(t *testing.T) {
	db := newTestDB(t)
	ex := NewExecutor(db, dialect.NewSQLiteDialect())
	ctx := context.Background()

	n, err := New(ex).
		SetRawSql(orderGraphRawSql(t)).
		SetParameter("maxOrderId", 99).
		WhereEq("status", "NEW").
		FindCount(ctx)
	require.NoError(t, err)

	// Order 1 carries two lines, order 3 none; count runs over the
	// joined rows, not the grouped roots.
	assert.Equal(t, int64(3), n)
}

func TestExecutorSecondaryFetch(t *testing.T) {
	db := newTestDB(t)
	ex := NewExecutor(db, dialect.NewSQLiteDialect())
	ctx := context.Background()

	// Only the customer ID is selected; the name comes from the fetch
	// query.
	raw, err := rawsql.Parse("select o.id, o.status, o.customer_id from orders o order by o.id").
		ColumnMapping("o.customer_id", "customer.id").
		Create()
	require.NoError(t, err)

	var orders []Order
	err = New(ex).
		SetRawSql(raw).
		Fetch("customer", []string{"name"}, FetchConfig{BatchSize: 1}).
		FindList(ctx, &orders)
	require.NoError(t, err)

	require.Len(t, orders, 3)
	for _, o := range orders {
		require.NotNil(t, o.Customer)
		assert.NotEmpty(t, o.Customer.Name)
	}
	assert.Equal(t, "Rob", orders[0].Customer.Name)
	assert.Equal(t, "Fiona", orders[1].Customer.Name)
}

func TestExecutorResultCache(t *testing.T) {
	db := newTestDB(t)
	ex := NewExecutor(db, dialect.NewSQLiteDialect(), WithResultCache(cache.NewMemoryResultCache()))
	ctx := context.Background()

	run := func() []Order {
		var orders []Order
		err := New(ex).
			SetRawSql(orderGraphRawSql(t)).
			SetParameter("maxOrderId", 99).
			SetUseQueryCache(true).
			FindList(ctx, &orders)
		require.NoError(t, err)
		return orders
	}

	first := run()
	require.Len(t, first, 3)

	// Mutating the table must not show through the cache.
	_, err := db.Exec(`delete from orders`)
	require.NoError(t, err)

	again := run()
	require.Len(t, again, 3)
	assert.Equal(t, first[0].Customer.Name, again[0].Customer.Name)
}
