package holdings

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exposed(name, sector, country, value, pct string) Exposed {
	e := Exposed{
		Name:       name,
		Value:      decimal.RequireFromString(value),
		Percentage: decimal.RequireFromString(pct),
	}
	if sector != "" {
		e.Sector = strPtr(sector)
	}
	if country != "" {
		e.CountryName = strPtr(country)
	}
	return e
}

func TestRollupBySector(t *testing.T) {
	items := []Exposed{
		exposed("Apple", "Technology", "United States", "500", "50"),
		exposed("Nestle", "Consumer Staples", "Switzerland", "200", "20"),
		exposed("Microsoft", "Technology", "United States", "200", "20"),
		exposed("Mystery", "", "", "100", "10"),
	}

	groups := RollupBySector(items)

	require.Len(t, groups, 3)
	assert.Equal(t, "Technology", groups[0].Name)
	assert.True(t, decimal.NewFromInt(700).Equal(groups[0].Value))
	assert.True(t, decimal.NewFromInt(70).Equal(groups[0].Percentage))
	assert.Equal(t, 2, groups[0].Holdings)
	assert.Equal(t, "Consumer Staples", groups[1].Name)
	assert.Equal(t, UnknownGroup, groups[2].Name)
}

func TestRollupByCountry_KeepsFirstCode(t *testing.T) {
	a := exposed("Apple", "", "United States", "60", "60")
	a.CountryCode = strPtr("US")
	b := exposed("Microsoft", "", "United States", "40", "40")
	b.CountryCode = strPtr("USA")

	groups := RollupByCountry([]Exposed{a, b})

	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].Code)
	assert.Equal(t, "US", *groups[0].Code)
}

func TestRollup_DropsZeroGroups(t *testing.T) {
	groups := RollupBySector([]Exposed{
		exposed("Apple", "Technology", "", "100", "100"),
		exposed("Ghost", "Energy", "", "0", "0"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, "Technology", groups[0].Name)
}

func TestMeasureConcentration(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c := MeasureConcentration(nil)
		assert.Nil(t, c.LargestPosition)
		assert.True(t, c.HHI.IsZero())
	})

	t.Run("two equal holdings", func(t *testing.T) {
		c := MeasureConcentration([]Exposed{
			exposed("Apple", "", "", "50", "50"),
			exposed("Microsoft", "", "", "50", "50"),
		})

		require.NotNil(t, c.LargestPosition)
		assert.Equal(t, "Apple", c.LargestPosition.Name)
		assert.True(t, decimal.NewFromInt(100).Equal(c.Top10Percentage))
		assert.Equal(t, "0.5", c.HHI.String())
		assert.Equal(t, "2", c.EffectiveHoldings.String())
	})

	t.Run("top ten caps at ten holdings", func(t *testing.T) {
		items := make([]Exposed, 20)
		for i := range items {
			items[i] = exposed("H", "", "", "5", "5")
		}
		c := MeasureConcentration(items)
		assert.True(t, decimal.NewFromInt(50).Equal(c.Top10Percentage))
		assert.Equal(t, "20", c.EffectiveHoldings.String())
	})
}
