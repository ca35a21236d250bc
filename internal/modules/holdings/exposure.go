package holdings

import (
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// UnknownGroup collects holdings without a sector or country
const UnknownGroup = "Unknown"

const topHoldingsCount = 10

var hundred = decimal.NewFromInt(100)

// Exposed is one look-through holding as seen by the rollups
type Exposed struct {
	Name        string
	Sector      *string
	CountryCode *string
	CountryName *string
	Value       decimal.Decimal
	Percentage  decimal.Decimal
}

// GroupExposure is the combined exposure to one sector or country
type GroupExposure struct {
	Name       string          `json:"name"`
	Code       *string         `json:"code,omitempty"`
	Value      decimal.Decimal `json:"total_value_eur"`
	Percentage decimal.Decimal `json:"percentage"`
	Holdings   int             `json:"holdings"`
}

// LargestPosition names the single biggest holding
type LargestPosition struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Concentration summarizes how concentrated a set of holdings is
type Concentration struct {
	Top10Percentage   decimal.Decimal  `json:"top10_percentage"`
	LargestPosition   *LargestPosition `json:"largest_position,omitempty"`
	HHI               decimal.Decimal  `json:"hhi"`
	EffectiveHoldings decimal.Decimal  `json:"effective_holdings"`
}

// RollupBySector sums exposure per sector
func RollupBySector(items []Exposed) []GroupExposure {
	return rollup(items, func(e Exposed) (string, *string) {
		if e.Sector == nil {
			return UnknownGroup, nil
		}
		return *e.Sector, nil
	})
}

// RollupByCountry sums exposure per country name. Each group carries the first country code seen.
func RollupByCountry(items []Exposed) []GroupExposure {
	return rollup(items, func(e Exposed) (string, *string) {
		if e.CountryName == nil {
			return UnknownGroup, e.CountryCode
		}
		return *e.CountryName, e.CountryCode
	})
}

func rollup(items []Exposed, groupOf func(Exposed) (string, *string)) []GroupExposure {
	index := make(map[string]int)
	var groups []GroupExposure
	for _, item := range items {
		name, code := groupOf(item)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, GroupExposure{Name: name, Value: decimal.Zero, Percentage: decimal.Zero})
		}
		g := &groups[i]
		g.Value = g.Value.Add(item.Value)
		g.Percentage = g.Percentage.Add(item.Percentage)
		g.Holdings++
		if g.Code == nil {
			g.Code = code
		}
	}

	result := groups[:0]
	for _, g := range groups {
		g.Value = g.Value.Round(2)
		g.Percentage = g.Percentage.Round(4)
		if g.Percentage.IsPositive() {
			result = append(result, g)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Percentage.Equal(result[j].Percentage) {
			return result[i].Percentage.GreaterThan(result[j].Percentage)
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// MeasureConcentration computes top-10 share, the largest position, the Herfindahl-Hirschman
// index (sum of squared fractional shares) and its inverse, the effective number of holdings.
// items must be sorted by percentage, largest first.
func MeasureConcentration(items []Exposed) Concentration {
	c := Concentration{
		Top10Percentage:   decimal.Zero,
		HHI:               decimal.Zero,
		EffectiveHoldings: decimal.Zero,
	}
	if len(items) == 0 {
		return c
	}

	for i, item := range items {
		if i == topHoldingsCount {
			break
		}
		c.Top10Percentage = c.Top10Percentage.Add(item.Percentage)
	}
	c.Top10Percentage = c.Top10Percentage.Round(4)
	c.LargestPosition = &LargestPosition{Name: items[0].Name, Percentage: items[0].Percentage}

	shares := make([]float64, len(items))
	for i, item := range items {
		shares[i] = item.Percentage.Div(hundred).InexactFloat64()
	}
	hhi := floats.Dot(shares, shares)
	c.HHI = decimal.NewFromFloat(hhi).Round(4)
	if hhi > 0 {
		c.EffectiveHoldings = decimal.NewFromFloat(1 / hhi).Round(2)
	}
	return c
}
