package extract

import (
	"testing"

	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
)

func TestParseWeight(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		ok    bool
	}{
		{"kilograms with dot", "2.5kg", 2500, true},
		{"kilograms with comma and space", "2,5 kg", 2500, true},
		{"grams", "2500g", 2500, true},
		{"gr suffix", "350 gr", 350, true},
		{"greek kilo", "1,2 κιλα", 1200, true},
		{"bare number below 100 is kg", "2.5", 2500, true},
		{"bare number from 100 is grams", "450", 450, true},
		{"implausible value rejected", "600000", 0, false},
		{"implausible kilograms rejected", "600 kg", 0, false},
		{"grams with dot thousands", "1.200 g", 1200, true},
		{"grams with comma thousands", "1,200g", 1200, true},
		{"grams with two groups out of range", "1.200.000 gr", 0, false},
		{"kilograms keep the decimal reading", "1.200 kg", 1200, true},
		{"grams with real decimals", "12,5 g", 13, true},
		{"zero rejected", "0", 0, false},
		{"no number", "n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseWeight(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWeight_StrategyOrder(t *testing.T) {
	t.Run("characteristics come first", func(t *testing.T) {
		g, ok := Weight(WeightSource{
			Characteristics: []catalog.Characteristic{{Name: "Βάρος", Value: "1.5 kg"}},
			Text:            "Weight: 900g",
			Raw:             "3",
		})
		assert.True(t, ok)
		assert.Equal(t, 1500, g)
	})

	t.Run("max weight rows are skipped", func(t *testing.T) {
		g, ok := Weight(WeightSource{
			Characteristics: []catalog.Characteristic{
				{Name: "Max weight capacity", Value: "150 kg"},
				{Name: "Gross Weight", Value: "4 kg"},
			},
		})
		assert.True(t, ok)
		assert.Equal(t, 4000, g)
	})

	t.Run("supplier rule before text", func(t *testing.T) {
		rule := func(src WeightSource) (int, bool) { return 777, true }
		g, ok := Weight(WeightSource{Text: "2 kg", Rule: rule})
		assert.True(t, ok)
		assert.Equal(t, 777, g)
	})

	t.Run("invalid rule result falls through", func(t *testing.T) {
		rule := func(src WeightSource) (int, bool) { return 900000, true }
		g, ok := Weight(WeightSource{Text: "Net 2 kg", Rule: rule})
		assert.True(t, ok)
		assert.Equal(t, 2000, g)
	})

	t.Run("text ignores storage sizes", func(t *testing.T) {
		g, ok := Weight(WeightSource{Text: "8GB RAM, 1.3 kg", Raw: ""})
		assert.True(t, ok)
		assert.Equal(t, 1300, g)
	})

	t.Run("raw field last", func(t *testing.T) {
		g, ok := Weight(WeightSource{Raw: "0,75"})
		assert.True(t, ok)
		assert.Equal(t, 750, g)
	})

	t.Run("nothing found", func(t *testing.T) {
		_, ok := Weight(WeightSource{Text: "no weight here"})
		assert.False(t, ok)
	})
}

func TestWeightFromLabelledText(t *testing.T) {
	text := `Net Weight (kg): 1.2<br/>Weight (kg): 1.85<br>Weight (g): 950`
	g, ok := WeightFromLabelledText(text)
	assert.True(t, ok)
	assert.Equal(t, 1850, g)

	_, ok = WeightFromLabelledText("no labels")
	assert.False(t, ok)
}

func TestWeightFromPipeAttributes(t *testing.T) {
	g, ok := WeightFromPipeAttributes("Χρώμα : Μαύρο| Βάρος : 2,3 kg| Εγγύηση : 2 έτη")
	assert.True(t, ok)
	assert.Equal(t, 2300, g)
}

func TestWeight_GroupedGramsInText(t *testing.T) {
	g, ok := Weight(WeightSource{Text: "Βάρος: 1.250 gr"})
	assert.True(t, ok)
	assert.Equal(t, 1250, g)

	g, ok = Weight(WeightSource{Text: "Compact body, only 2,350 g with battery"})
	assert.True(t, ok)
	assert.Equal(t, 2350, g)
}
