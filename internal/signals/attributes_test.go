package signals

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storefront-api/internal/models"
)

func TestBuildSetsEmptyProducts(t *testing.T) {
	require.Nil(t, BuildSets(nil, 100))
	require.Nil(t, BuildSets([]models.Product{}, 100))
}

func TestNilSetsApplyToZero(t *testing.T) {
	var sets *AttributeSets
	p := sampleProduct()
	require.Equal(t, 0.0, sets.Apply(&p))
}

func TestBuildSetsAndApply(t *testing.T) {
	history := []models.Product{
		{
			Manufacturer: "Nike", Gender: "MENS", ProductType: "Shoes", Colour: "Black",
			Sizes: []models.SizeVariant{{SimpleSKU: "A-9", Size: "9"}},
		},
		{
			Manufacturer: "Adidas", Gender: "MENS", ProductType: "Shoes", Colour: "White",
			Sizes: []models.SizeVariant{{SimpleSKU: "B-10", Size: "10"}},
		},
	}
	sets := BuildSets(history, 100)
	require.NotNil(t, sets)

	// Gender {MENS}: 100/1. Colour {Black,White}: 100/2. Size {9,10}:
	// 100/2. ProductType {Shoes}: 100/1. Brand {Nike,Adidas}: 100/2.
	aligned := models.Product{
		Manufacturer: "Nike", Gender: "MENS", ProductType: "Shoes", Colour: "Black",
		Sizes: []models.SizeVariant{{SimpleSKU: "C-9", Size: "9"}},
	}
	require.Equal(t, 100.0+50.0+50.0+100.0+50.0, sets.Apply(&aligned))

	opposed := models.Product{
		Manufacturer: "Puma", Gender: "LADIES", ProductType: "Shirts", Colour: "Red",
		Sizes: []models.SizeVariant{{SimpleSKU: "D-S", Size: "S"}},
	}
	require.Equal(t, -(100.0 + 50.0 + 50.0 + 100.0 + 50.0), sets.Apply(&opposed))
}

func TestApplySizeMatchesAnyVariant(t *testing.T) {
	history := []models.Product{
		{
			Manufacturer: "Nike", Gender: "MENS", ProductType: "Shoes", Colour: "Black",
			Sizes: []models.SizeVariant{{SimpleSKU: "A-9", Size: "9"}},
		},
	}
	sets := BuildSets(history, 10)

	// One variant in the set is enough even when others miss.
	p := models.Product{
		Manufacturer: "Nike", Gender: "MENS", ProductType: "Shoes", Colour: "Black",
		Sizes: []models.SizeVariant{
			{SimpleSKU: "E-8", Size: "8"},
			{SimpleSKU: "E-9", Size: "9"},
		},
	}
	require.Equal(t, 50.0, sets.Apply(&p))
}

func TestApplySkipsEmptySets(t *testing.T) {
	// History without colours leaves the colour set empty; it must not
	// penalize products.
	history := []models.Product{
		{
			Manufacturer: "Nike", Gender: "MENS", ProductType: "Shoes",
			Sizes: []models.SizeVariant{{SimpleSKU: "A-9", Size: "9"}},
		},
	}
	sets := BuildSets(history, 10)

	matching := models.Product{
		Manufacturer: "Nike", Gender: "MENS", ProductType: "Shoes", Colour: "Green",
		Sizes: []models.SizeVariant{{SimpleSKU: "F-9", Size: "9"}},
	}
	// Four populated attributes, each 10/1, colour contributes nothing.
	require.Equal(t, 40.0, sets.Apply(&matching))
}
