package product

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	rows []Product
	err  error
	got  []int64
}

func (s *stubCatalog) FetchByIDs(_ context.Context, ids []int64) ([]Product, error) {
	s.got = ids
	return s.rows, s.err
}

func TestUniqueIDs(t *testing.T) {
	in := []int64{5, 1, 5, 3, 1}
	assert.Equal(t, []int64{1, 3, 5}, UniqueIDs(in))
	assert.Equal(t, []int64{5, 1, 5, 3, 1}, in, "input must not be reordered")
	assert.Empty(t, UniqueIDs(nil))
}

func TestPrepTime(t *testing.T) {
	assert.Equal(t, 30, Product{PrepTimeMinutes: 30}.PrepTime())
	assert.Equal(t, DefaultPrepTimeMinutes, Product{}.PrepTime())
}

func TestFetch(t *testing.T) {
	c := &stubCatalog{rows: []Product{
		{ID: 1, Name: "Taco", Price: decimal.NewFromInt(10)},
		{ID: 3, Name: "Burrito", Price: decimal.NewFromInt(25)},
	}}

	snap, err := Fetch(context.Background(), c, []int64{3, 1, 3, 7})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 7}, c.got)
	assert.Equal(t, 2, snap.Len())

	p, ok := snap.Get(3)
	require.True(t, ok)
	assert.Equal(t, "Burrito", p.Name)

	_, ok = snap.Get(7)
	assert.False(t, ok)
}

func TestFetch_Error(t *testing.T) {
	c := &stubCatalog{err: errors.New("connection refused")}

	_, err := Fetch(context.Background(), c, []int64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
