package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"catalog": map[string]any{
			"product": []any{
				map[string]any{"name": "A", "images": []any{"a1.jpg", "a2.jpg"}},
				map[string]any{"name": "B"},
			},
		},
	}

	v, ok := Lookup(doc, "catalog.product.1.name")
	require.True(t, ok)
	assert.Equal(t, "B", v)

	v, ok = Lookup(doc, "catalog.product.name")
	require.True(t, ok)
	assert.Equal(t, "A", v, "key on a list reads the first element")

	v, ok = Lookup(doc, "catalog.product.0.images.1")
	require.True(t, ok)
	assert.Equal(t, "a2.jpg", v)

	_, ok = Lookup(doc, "catalog.product.5")
	assert.False(t, ok)
	_, ok = Lookup(doc, "catalog.missing")
	assert.False(t, ok)
	_, ok = Lookup("scalar", "x")
	assert.False(t, ok)
}

func TestRecords(t *testing.T) {
	t.Run("single object becomes one record", func(t *testing.T) {
		doc := map[string]any{"products": map[string]any{"product": map[string]any{"mpn": "1"}}}
		records, err := Records(doc, "products.product")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("missing path is a parse error", func(t *testing.T) {
		_, err := Records(map[string]any{}, "products.product")
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("scalar is a parse error", func(t *testing.T) {
		_, err := Records(map[string]any{"products": "none"}, "products")
		assert.ErrorIs(t, err, ErrParse)
	})
}

func TestString(t *testing.T) {
	doc := map[string]any{"price": map[string]any{"-currency": "EUR", "#text": " 9,90 "}}
	assert.Equal(t, "9,90", String(doc, "price"))
	assert.Equal(t, "EUR", String(doc, "price.-currency"))
	assert.Equal(t, "", String(doc, "missing"))
}
