package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rawsql "github.com/corvid-labs/rawsql"
	"github.com/corvid-labs/rawsql/dialect"
)

func pgExecutor() *Executor {
	return NewExecutor(nil, dialect.NewPostgresDialect())
}

func TestBuildSQLAppendsWhere(t *testing.T) {
	raw := rawsql.Parse("select id, name from customers").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).WhereEq("name", "Rob")
	sql, args, err := q.buildSQL()
	require.NoError(t, err)
	assert.Equal(t, "select id, name from customers where name = $1", sql)
	assert.Equal(t, []any{"Rob"}, args)
}

func TestBuildSQLAndWhereToken(t *testing.T) {
	raw := rawsql.Parse("select o.id, o.status, c.name from orders o join customers c on c.id = o.customer_id where o.created > :createdAt ${andWhere} order by o.id").
		ColumnMapping("o.id", "id").
		ColumnMapping("o.status", "status").
		ColumnMapping("c.name", "customer.name").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).
		WhereEq("customer.name", "Fiona").
		SetParameter("createdAt", "2026-01-01")

	sql, args, err := q.buildSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"select o.id, o.status, c.name from orders o join customers c on c.id = o.customer_id where o.created > $1 and c.name = $2 order by o.id",
		sql)
	assert.Equal(t, []any{"2026-01-01", "Fiona"}, args)
}

func TestBuildSQLHavingOnAggregate(t *testing.T) {
	raw := rawsql.Parse("select order_id, sum(amount) as total_amount from o_order_detail group by order_id").
		ColumnMapping("order_id", "orderId").
		ColumnMapping("total_amount", "totalAmount").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).HavingGt("totalAmount", 100)
	sql, args, err := q.buildSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"select order_id, sum(amount) as total_amount from o_order_detail group by order_id having sum(amount) > $1",
		sql)
	assert.Equal(t, []any{100}, args)
}

func TestBuildSQLWhereBeforeGroupBy(t *testing.T) {
	raw := rawsql.Parse("select order_id, sum(amount) as total_amount from o_order_detail group by order_id").
		ColumnMapping("order_id", "orderId").
		ColumnMapping("total_amount", "totalAmount").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).WhereGt("orderId", 5)
	sql, _, err := q.buildSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"select order_id, sum(amount) as total_amount from o_order_detail where order_id > $1 group by order_id",
		sql)
}

func TestBuildSQLOrderByAndPaging(t *testing.T) {
	raw := rawsql.Parse("select id, name from customers order by id").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).
		OrderBy("name desc").
		SetMaxRows(10).
		SetFirstRow(20)

	sql, _, err := q.buildSQL()
	require.NoError(t, err)
	assert.Equal(t, "select id, name from customers order by name desc limit 10 offset 20", sql)
}

func TestBuildSQLInExpansion(t *testing.T) {
	raw := rawsql.Parse("select id, name from customers").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).WhereIn("id", []int64{1, 2, 3})
	sql, args, err := q.buildSQL()
	require.NoError(t, err)
	assert.Equal(t, "select id, name from customers where id in ($1, $2, $3)", sql)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, args)
}

func TestBuildSQLIsNull(t *testing.T) {
	raw := rawsql.Parse("select id, name from customers").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).WhereIsNull("name")
	sql, args, err := q.buildSQL()
	require.NoError(t, err)
	assert.Equal(t, "select id, name from customers where name is null", sql)
	assert.Nil(t, args)
}

func TestCountSQLDropsOrderingAndPaging(t *testing.T) {
	raw := rawsql.Parse("select id, name from customers order by id").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		MustCreate()

	q := New(pgExecutor()).SetRawSql(raw).
		WhereEq("name", "Rob").
		SetMaxRows(5)

	sql, args, err := q.countSQL()
	require.NoError(t, err)
	assert.Equal(t, "select count(*) from (select id, name from customers where name = $1) cnt", sql)
	assert.Equal(t, []any{"Rob"}, args)
}

func TestQueryErrors(t *testing.T) {
	parsed := rawsql.Parse("select id, name from customers").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		MustCreate()
	unparsed := rawsql.Unparsed("select id, name from customers").
		ColumnMapping("id", "id").
		ColumnMapping("name", "name").
		MustCreate()

	ctx := context.Background()
	ex := pgExecutor()

	t.Run("unparsed rejects clauses", func(t *testing.T) {
		var out []struct{ ID int64 }
		err := New(ex).SetRawSql(unparsed).WhereEq("name", "x").FindList(ctx, &out)
		assert.ErrorIs(t, err, ErrUnparsed)

		err = New(ex).SetRawSql(unparsed).SetMaxRows(1).FindList(ctx, &out)
		assert.ErrorIs(t, err, ErrUnparsed)
	})

	t.Run("unknown path", func(t *testing.T) {
		var out []struct{ ID int64 }
		err := New(ex).SetRawSql(parsed).WhereEq("nope", 1).FindList(ctx, &out)
		assert.ErrorIs(t, err, ErrPathNotMapped)
	})

	t.Run("unsupported operator", func(t *testing.T) {
		var out []struct{ ID int64 }
		err := New(ex).SetRawSql(parsed).Where("name", "between", 1).FindList(ctx, &out)
		assert.ErrorContains(t, err, "unsupported operator")
	})

	t.Run("having without group by", func(t *testing.T) {
		var out []struct{ ID int64 }
		err := New(ex).SetRawSql(parsed).HavingGt("id", 1).FindList(ctx, &out)
		assert.ErrorContains(t, err, "no group by")
	})

	t.Run("no statement", func(t *testing.T) {
		var out []struct{ ID int64 }
		err := New(ex).FindList(ctx, &out)
		assert.ErrorContains(t, err, "SetRawSql")
	})

	t.Run("bad dest", func(t *testing.T) {
		err := New(ex).SetRawSql(parsed).FindList(ctx, []any{})
		assert.ErrorContains(t, err, "pointer to a slice")
	})

	t.Run("fetch validation", func(t *testing.T) {
		q := New(ex).SetRawSql(parsed).Fetch("customer", nil)
		assert.Error(t, q.firstErr())
		assert.False(t, errors.Is(q.firstErr(), ErrUnparsed))
	})
}
