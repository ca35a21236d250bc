package breakdown

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/holdings"
	testingpkg "github.com/aristath/lookthrough/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, d(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func newService(store *testingpkg.MemoryStore) *Service {
	return NewService(store, store, store, zerolog.Nop())
}

func TestComputeBreakdown_SharedHoldingAcrossFunds(t *testing.T) {
	store := testingpkg.NewMemoryStore()
	store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
	store.AddInstrument(testingpkg.Fund(2, "SPYL", domain.ProviderFT, "100"))
	store.AddPosition(testingpkg.Position(1, "Apple Inc", "AAPL", "5"))
	store.AddPosition(testingpkg.Position(2, "Apple Inc", "AAPL", "10"))
	store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{domain.PlatformLightyear: "10"}))
	store.SetOwnership(testingpkg.Owned(2, map[domain.Platform]string{domain.PlatformIBKR: "20"}))

	rows, err := newService(store).ComputeBreakdown(context.Background(), nil, nil)
	require.NoError(t, err)

	// 50 + 200 of disclosed holdings scaled up to the 3000 actually held
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "Apple", row.Name)
	assertDecimal(t, "3000", row.TotalValueEUR)
	assertDecimal(t, "100", row.PercentageOfTotal)
	assert.Equal(t, "SPYL, VWCE", row.InFunds)
	assert.Equal(t, 2, row.NumFunds)
	assert.Equal(t, "IBKR, LIGHTYEAR", row.Platforms)
	require.NotNil(t, row.Ticker)
	assert.Equal(t, "AAPL", *row.Ticker)
}

func TestComputeBreakdown_UndisclosedFundCountsTowardTotal(t *testing.T) {
	store := testingpkg.NewMemoryStore()
	store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
	store.AddInstrument(testingpkg.Fund(2, "EUNL", domain.ProviderFT, "50"))
	store.AddPosition(testingpkg.Position(1, "Apple Inc", "AAPL", "60"))
	store.AddPosition(testingpkg.Position(1, "Microsoft Corp", "MSFT", "40"))
	store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{domain.PlatformIBKR: "10"}))
	store.SetOwnership(testingpkg.Owned(2, map[domain.Platform]string{domain.PlatformIBKR: "10"}))

	rows, err := newService(store).ComputeBreakdown(context.Background(), nil, nil)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Apple", rows[0].Name)
	assertDecimal(t, "900", rows[0].TotalValueEUR)
	assertDecimal(t, "60", rows[0].PercentageOfTotal)
	assert.Equal(t, "Microsoft", rows[1].Name)
	assertDecimal(t, "600", rows[1].TotalValueEUR)
	assertDecimal(t, "40", rows[1].PercentageOfTotal)
}

func TestComputeBreakdown_PartialWeightsAreScaled(t *testing.T) {
	store := testingpkg.NewMemoryStore()
	store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
	store.AddPosition(testingpkg.Position(1, "Microsoft Corp", "MSFT", "30"))
	store.AddPosition(testingpkg.Position(1, "Apple Inc", "AAPL", "50"))
	store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{domain.PlatformIBKR: "10"}))

	rows, err := newService(store).ComputeBreakdown(context.Background(), nil, nil)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Apple", rows[0].Name, "ranked by value, not by disclosure order")
	assertDecimal(t, "625", rows[0].TotalValueEUR)
	assertDecimal(t, "62.5", rows[0].PercentageOfTotal)
	assertDecimal(t, "375", rows[1].TotalValueEUR)
	assertDecimal(t, "37.5", rows[1].PercentageOfTotal)
}

func TestComputeBreakdown_PlatformFilter(t *testing.T) {
	newStore := func() *testingpkg.MemoryStore {
		store := testingpkg.NewMemoryStore()
		store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
		store.AddInstrument(testingpkg.Fund(2, "SPYL", domain.ProviderFT, "100"))
		store.AddPosition(testingpkg.Position(1, "Apple Inc", "AAPL", "100"))
		store.AddPosition(testingpkg.Position(2, "Nestle SA", "NESN", "100"))
		store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{
			domain.PlatformIBKR: "6",
			domain.PlatformLHV:  "4",
		}))
		store.SetOwnership(testingpkg.Owned(2, map[domain.Platform]string{domain.PlatformLHV: "5"}))
		return store
	}

	tests := []struct {
		name      string
		platforms []string
		expected  map[string]string
		platform  string
	}{
		{
			name:      "only the filtered quantity counts",
			platforms: []string{"ibkr"},
			expected:  map[string]string{"Apple": "600"},
			platform:  "IBKR",
		},
		{
			name:      "unknown platforms are ignored",
			platforms: []string{"IBKR", "nowhere"},
			expected:  map[string]string{"Apple": "600"},
			platform:  "IBKR",
		},
		{
			name:      "only unknown platforms means no filter",
			platforms: []string{"nowhere"},
			expected:  map[string]string{"Apple": "1000", "Nestle": "500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := newService(newStore()).ComputeBreakdown(context.Background(), nil, tt.platforms)
			require.NoError(t, err)

			got := make(map[string]string, len(rows))
			for _, row := range rows {
				got[row.Name] = row.TotalValueEUR.String()
			}
			assert.Equal(t, tt.expected, got)
			if tt.platform != "" {
				assert.Equal(t, tt.platform, rows[0].Platforms)
			}
		})
	}
}

func TestComputeBreakdown_SymbolFilter(t *testing.T) {
	store := testingpkg.NewMemoryStore()
	store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
	store.AddInstrument(testingpkg.Fund(2, "SPYL", domain.ProviderFT, "100"))
	store.AddPosition(testingpkg.Position(1, "Apple Inc", "AAPL", "100"))
	store.AddPosition(testingpkg.Position(2, "Nestle SA", "NESN", "100"))
	store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{domain.PlatformIBKR: "1"}))
	store.SetOwnership(testingpkg.Owned(2, map[domain.Platform]string{domain.PlatformIBKR: "1"}))

	rows, err := newService(store).ComputeBreakdown(context.Background(), []string{"SPYL"}, nil)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "Nestle", rows[0].Name)
	assertDecimal(t, "100", rows[0].PercentageOfTotal)
}

func TestComputeBreakdown_SyntheticLegsIgnorePlatformFilter(t *testing.T) {
	store := testingpkg.NewMemoryStore()
	store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
	store.AddInstrument(testingpkg.Fund(100, "CRYPTO", domain.ProviderSynthetic, ""))
	btc := testingpkg.Fund(10, "BTC", domain.ProviderBinance, "50000")
	btc.Category = domain.CategoryCrypto
	store.AddInstrument(btc)

	store.AddPosition(testingpkg.Position(1, "Apple Inc", "AAPL", "100"))
	store.AddPosition(testingpkg.Position(100, "Bitcoin", "BTC", "100"))
	store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{domain.PlatformIBKR: "50"}))
	store.SetOwnership(testingpkg.Owned(10, map[domain.Platform]string{domain.PlatformBinance: "0.1"}))

	rows, err := newService(store).ComputeBreakdown(context.Background(), nil, []string{"IBKR"})
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Apple", rows[0].Name, "equal values keep first-seen order")
	assertDecimal(t, "50", rows[0].PercentageOfTotal)

	assert.Equal(t, "Bitcoin", rows[1].Name)
	assertDecimal(t, "5000", rows[1].TotalValueEUR)
	assertDecimal(t, "50", rows[1].PercentageOfTotal)
	assert.Equal(t, "BINANCE", rows[1].Platforms)
	assert.Equal(t, "CRYPTO", rows[1].InFunds)
	require.NotNil(t, rows[1].Sector)
	assert.Equal(t, "Cryptocurrency", *rows[1].Sector)
}

func TestComputeBreakdown_NotComputable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(store *testingpkg.MemoryStore)
	}{
		{
			name:  "nothing owned",
			setup: func(store *testingpkg.MemoryStore) {},
		},
		{
			name: "owned fund without price",
			setup: func(store *testingpkg.MemoryStore) {
				store.AddInstrument(testingpkg.Fund(2, "DEAD", domain.ProviderFT, ""))
				store.AddPosition(testingpkg.Position(2, "Apple Inc", "AAPL", "100"))
				store.SetOwnership(testingpkg.Owned(2, map[domain.Platform]string{domain.PlatformIBKR: "10"}))
			},
		},
		{
			name: "owned funds disclose nothing",
			setup: func(store *testingpkg.MemoryStore) {
				store.AddInstrument(testingpkg.Fund(3, "EUNL", domain.ProviderFT, "10"))
				store.SetOwnership(testingpkg.Owned(3, map[domain.Platform]string{domain.PlatformIBKR: "10"}))
			},
		},
		{
			name: "fully sold",
			setup: func(store *testingpkg.MemoryStore) {
				store.SetOwnership(testingpkg.Owned(1, map[domain.Platform]string{domain.PlatformIBKR: "0"}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testingpkg.NewMemoryStore()
			store.AddInstrument(testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100"))
			store.AddPosition(testingpkg.Position(1, "Apple Inc", "AAPL", "100"))
			tt.setup(store)

			rows, err := newService(store).ComputeBreakdown(context.Background(), nil, nil)
			require.NoError(t, err)
			assert.NotNil(t, rows)
			assert.Empty(t, rows)
		})
	}
}

func TestComputeBreakdown_SourceError(t *testing.T) {
	store := testingpkg.NewMemoryStore()
	store.SetError(errors.New("database is locked"))

	_, err := newService(store).ComputeBreakdown(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestGuard_RecoversFromPanic(t *testing.T) {
	s := newService(testingpkg.NewMemoryStore())
	fund := testingpkg.Fund(1, "VWCE", domain.ProviderLightyear, "100")

	assert.False(t, s.guard(fund, "test", func() { panic("malformed row") }))
	assert.True(t, s.guard(fund, "test", func() {}))
}

func aggregated(name string, value string, funds ...string) holdings.AggregatedHolding {
	symbols := make(map[string]struct{}, len(funds))
	for _, f := range funds {
		symbols[f] = struct{}{}
	}
	return holdings.AggregatedHolding{
		Key: holdings.HoldingKey{Name: name},
		Value: holdings.HoldingValue{
			TotalValue:  d(value),
			FundSymbols: symbols,
			Platforms:   domain.NewPlatformSet(domain.PlatformIBKR),
		},
	}
}

func TestReconcile(t *testing.T) {
	t.Run("rounds half up", func(t *testing.T) {
		rows, ok := Reconcile([]holdings.AggregatedHolding{
			aggregated("A", "1", "X"),
			aggregated("B", "2", "X"),
		}, d("1"))
		require.True(t, ok)
		require.Len(t, rows, 2)

		assert.Equal(t, "B", rows[0].Name)
		assertDecimal(t, "0.67", rows[0].TotalValueEUR)
		assertDecimal(t, "66.6667", rows[0].PercentageOfTotal)
		assertDecimal(t, "0.33", rows[1].TotalValueEUR)
		assertDecimal(t, "33.3333", rows[1].PercentageOfTotal)
	})

	t.Run("non-positive holdings are dropped before scaling", func(t *testing.T) {
		rows, ok := Reconcile([]holdings.AggregatedHolding{
			aggregated("Long", "100", "X"),
			aggregated("Short", "-50", "X"),
			aggregated("Nothing", "0", "X"),
		}, d("50"))
		require.True(t, ok)
		require.Len(t, rows, 1)
		assertDecimal(t, "50", rows[0].TotalValueEUR)
		assertDecimal(t, "100", rows[0].PercentageOfTotal)
	})

	t.Run("zero totals are not computable", func(t *testing.T) {
		_, ok := Reconcile([]holdings.AggregatedHolding{aggregated("A", "10", "X")}, decimal.Zero)
		assert.False(t, ok)

		_, ok = Reconcile(nil, d("100"))
		assert.False(t, ok)
	})

	t.Run("rows reconcile to the actual total", func(t *testing.T) {
		input := []holdings.AggregatedHolding{
			aggregated("A", "13.37", "X"),
			aggregated("B", "271.828", "X", "Y"),
			aggregated("C", "3.14159", "Y"),
			aggregated("D", "0.577", "Z"),
			aggregated("E", "42", "X"),
		}
		actual := d("12345.67")

		rows, ok := Reconcile(input, actual)
		require.True(t, ok)
		require.Len(t, rows, len(input))

		sum := decimal.Zero
		for i, row := range rows {
			sum = sum.Add(row.TotalValueEUR)
			assert.True(t, row.PercentageOfTotal.GreaterThanOrEqual(decimal.Zero))
			assert.True(t, row.PercentageOfTotal.LessThanOrEqual(d("100")))
			if i > 0 {
				assert.True(t, rows[i-1].TotalValueEUR.GreaterThanOrEqual(row.TotalValueEUR))
			}
		}
		epsilon := d("0.01").Mul(decimal.NewFromInt(int64(len(rows))))
		assert.True(t, sum.Sub(actual).Abs().LessThanOrEqual(epsilon), "sum %s vs actual %s", sum, actual)
		assert.Equal(t, "X, Y", rows[0].InFunds)
		assert.Equal(t, 2, rows[0].NumFunds)
	})
}
