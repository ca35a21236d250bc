package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderKind_IsFund(t *testing.T) {
	tests := []struct {
		provider ProviderKind
		expected bool
	}{
		{ProviderLightyear, true},
		{ProviderFT, true},
		{ProviderSynthetic, true},
		{ProviderBinance, false},
		{ProviderTrading212, false},
		{ProviderKind("MANUAL"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsFund())
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input    string
		expected Platform
		known    bool
	}{
		{"IBKR", PlatformIBKR, true},
		{" lhv ", PlatformLHV, true},
		{"Trading212", PlatformTrading212, true},
		{"unknown", PlatformUnknown, true},
		{"kraken", Platform("KRAKEN"), false},
		{"", Platform(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, known := ParsePlatform(tt.input)
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestPlatformSet(t *testing.T) {
	set := NewPlatformSet(PlatformLHV, PlatformIBKR)
	assert.True(t, set.Contains(PlatformIBKR))
	assert.False(t, set.Contains(PlatformTrezor))

	set.AddAll(NewPlatformSet(PlatformAviva, PlatformIBKR))
	assert.Equal(t, []string{"AVIVA", "IBKR", "LHV"}, set.Sorted())
}

func ownership() InstrumentOwnership {
	return InstrumentOwnership{
		InstrumentID: 7,
		NetQuantity:  decimal.RequireFromString("15"),
		QuantityByPlatform: map[Platform]decimal.Decimal{
			PlatformIBKR: decimal.RequireFromString("10"),
			PlatformLHV:  decimal.RequireFromString("5"),
		},
		Platforms:        NewPlatformSet(PlatformIBKR, PlatformLHV),
		TransactionCount: 3,
	}
}

func TestInstrumentOwnership_Filtered(t *testing.T) {
	tests := []struct {
		name              string
		filter            PlatformSet
		expectedNet       string
		expectedPlatforms []string
	}{
		{"empty filter returns everything", nil, "15", []string{"IBKR", "LHV"}},
		{"single platform", NewPlatformSet(PlatformLHV), "5", []string{"LHV"}},
		{"both platforms", NewPlatformSet(PlatformLHV, PlatformIBKR), "15", []string{"IBKR", "LHV"}},
		{"platform not used", NewPlatformSet(PlatformTrezor), "0", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered := ownership().Filtered(tt.filter)
			assert.True(t, decimal.RequireFromString(tt.expectedNet).Equal(filtered.NetQuantity), "net quantity %s", filtered.NetQuantity)
			assert.Equal(t, tt.expectedPlatforms, filtered.Platforms.Sorted())
			assert.Equal(t, 3, filtered.TransactionCount)
			assert.Equal(t, int64(7), filtered.InstrumentID)
		})
	}
}

func TestInstrumentOwnership_Filtered_DoesNotMutateOriginal(t *testing.T) {
	original := ownership()
	_ = original.Filtered(NewPlatformSet(PlatformLHV))

	require.Len(t, original.QuantityByPlatform, 2)
	assert.True(t, original.NetQuantity.Equal(decimal.RequireFromString("15")))
}

func TestInstrumentOwnership_IsActive(t *testing.T) {
	o := ownership()
	assert.True(t, o.IsActive())

	o.NetQuantity = decimal.Zero
	assert.False(t, o.IsActive())

	o.NetQuantity = decimal.RequireFromString("-1")
	assert.False(t, o.IsActive())
}

func TestFundSet_Positions(t *testing.T) {
	set := FundSet{PositionsByFundID: map[int64][]PositionSnapshot{
		1: {{FundID: 1, WeightPercentage: decimal.RequireFromString("4.2")}},
	}}

	assert.Len(t, set.Positions(1), 1)
	assert.Nil(t, set.Positions(2))
}

func TestInstrument_IsSynthetic(t *testing.T) {
	assert.True(t, Instrument{Provider: ProviderSynthetic}.IsSynthetic())
	assert.False(t, Instrument{Provider: ProviderFT}.IsSynthetic())
}
