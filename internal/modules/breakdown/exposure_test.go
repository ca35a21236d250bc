package breakdown

import (
	"context"
	"testing"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/holdings"
	testingpkg "github.com/aristath/lookthrough/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestBuildExposure(t *testing.T) {
	rows := []HoldingBreakdown{
		{Name: "Apple Inc", Sector: strPtr("Technology"), CountryCode: strPtr("US"), CountryName: strPtr("United States"),
			TotalValueEUR: d("500"), PercentageOfTotal: d("50")},
		{Name: "Microsoft Corp", Sector: strPtr("Technology"), CountryCode: strPtr("US"), CountryName: strPtr("United States"),
			TotalValueEUR: d("300"), PercentageOfTotal: d("30")},
		{Name: "Nestle SA", Sector: strPtr("Consumer Staples"), CountryCode: strPtr("CH"), CountryName: strPtr("Switzerland"),
			TotalValueEUR: d("150"), PercentageOfTotal: d("15")},
		{Name: "Mystery Holding", TotalValueEUR: d("50"), PercentageOfTotal: d("5")},
	}

	exposure := BuildExposure(rows)

	assertDecimal(t, "1000", exposure.TotalValueEUR)
	assert.Equal(t, 4, exposure.Holdings)

	require.Len(t, exposure.Sectors, 3)
	assert.Equal(t, "Technology", exposure.Sectors[0].Name)
	assertDecimal(t, "80", exposure.Sectors[0].Percentage)
	assertDecimal(t, "800", exposure.Sectors[0].Value)
	assert.Equal(t, 2, exposure.Sectors[0].Holdings)
	assert.Equal(t, holdings.UnknownGroup, exposure.Sectors[2].Name)

	require.Len(t, exposure.Countries, 3)
	assert.Equal(t, "United States", exposure.Countries[0].Name)
	require.NotNil(t, exposure.Countries[0].Code)
	assert.Equal(t, "US", *exposure.Countries[0].Code)
	assert.Equal(t, "Switzerland", exposure.Countries[1].Name)
	assert.Equal(t, holdings.UnknownGroup, exposure.Countries[2].Name)
	assert.Nil(t, exposure.Countries[2].Code)

	c := exposure.Concentration
	assertDecimal(t, "100", c.Top10Percentage)
	require.NotNil(t, c.LargestPosition)
	assert.Equal(t, "Apple Inc", c.LargestPosition.Name)
	// 0.25 + 0.09 + 0.0225 + 0.0025
	assertDecimal(t, "0.365", c.HHI)
	assertDecimal(t, "2.74", c.EffectiveHoldings)
}

func TestBuildExposure_Empty(t *testing.T) {
	exposure := BuildExposure(nil)

	assert.True(t, exposure.TotalValueEUR.IsZero())
	assert.Empty(t, exposure.Sectors)
	assert.Empty(t, exposure.Countries)
	assert.Nil(t, exposure.Concentration.LargestPosition)
	assert.True(t, exposure.Concentration.HHI.IsZero())
}

func TestComputeExposure(t *testing.T) {
	store := testingpkg.NewMemoryStore()
	store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
	apple := testingpkg.Position(1, "Apple Inc", "AAPL", "75")
	apple.Holding.Sector = strPtr("Technology")
	store.AddPosition(apple)
	store.AddPosition(testingpkg.Position(1, "Unilever PLC", "ULVR", "25"))
	store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{domain.PlatformIBKR: "10"}))

	exposure, err := newService(store).ComputeExposure(context.Background(), nil, nil)
	require.NoError(t, err)

	assertDecimal(t, "1000", exposure.TotalValueEUR)
	require.Len(t, exposure.Sectors, 2)
	assert.Equal(t, "Technology", exposure.Sectors[0].Name)
	assertDecimal(t, "75", exposure.Sectors[0].Percentage)
	assert.Equal(t, holdings.UnknownGroup, exposure.Sectors[1].Name)
}
