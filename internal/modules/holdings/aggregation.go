package holdings

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution is one fund's valued share of one holding
type Contribution struct {
	HoldingUUID uuid.UUID
	Ticker      *string
	Name        string
	Sector      *string
	CountryCode *string
	CountryName *string
	Value       decimal.Decimal
	FundSymbol  string
	Platforms   domain.PlatformSet
}

// NewContribution builds a contribution from a disclosed holding, cleaning its optional fields:
// tickers are upper-cased, every text field is trimmed and blank values become absent.
func NewContribution(
	holding domain.HoldingIdentity,
	value decimal.Decimal,
	fundSymbol string,
	platforms domain.PlatformSet,
) Contribution {
	ticker := cleanOptional(holding.Ticker)
	if ticker != nil {
		upper := strings.ToUpper(*ticker)
		ticker = &upper
	}

	return Contribution{
		HoldingUUID: holding.UUID,
		Ticker:      ticker,
		Name:        strings.TrimSpace(holding.Name),
		Sector:      cleanOptional(holding.Sector),
		CountryCode: cleanOptional(holding.CountryCode),
		CountryName: cleanOptional(holding.CountryName),
		Value:       value,
		FundSymbol:  fundSymbol,
		Platforms:   platforms,
	}
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// HoldingKey is the canonical identity chosen among the merged variants of a holding
type HoldingKey struct {
	UUID        uuid.UUID
	Ticker      *string
	Name        string
	Sector      *string
	CountryCode *string
	CountryName *string
}

// HoldingValue is the combined exposure to one holding
type HoldingValue struct {
	TotalValue  decimal.Decimal
	FundSymbols map[string]struct{}
	Platforms   domain.PlatformSet
}

// SortedFunds returns the owning fund symbols in ascending order
func (v HoldingValue) SortedFunds() []string {
	symbols := make([]string, 0, len(v.FundSymbols))
	for s := range v.FundSymbols {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// AggregatedHolding pairs a canonical key with its combined value
type AggregatedHolding struct {
	Key   HoldingKey
	Value HoldingValue
}

// group accumulates the contributions sharing one normalized name
type group struct {
	key     string
	members []Contribution
}

// Aggregate merges contributions into one entry per normalized holding name.
// Grouping is by name rather than ticker or UUID because sources that agree on the company
// often disagree on the identifiers. Entries come back in first-seen group order.
func Aggregate(contributions []Contribution) []AggregatedHolding {
	groups := groupByName(contributions)

	result := make([]AggregatedHolding, 0, len(groups))
	for _, g := range groups {
		result = append(result, AggregatedHolding{
			Key:   buildKey(g.members),
			Value: buildValue(g.members),
		})
	}
	return result
}

// TotalValue sums the value of every aggregated holding
func TotalValue(aggregated []AggregatedHolding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range aggregated {
		total = total.Add(h.Value.TotalValue)
	}
	return total
}

func groupByName(contributions []Contribution) []*group {
	index := make(map[string]*group)
	var ordered []*group
	for _, c := range contributions {
		key := Normalize(c.Name)
		g, ok := index[key]
		if !ok {
			g = &group{key: key}
			index[key] = g
			ordered = append(ordered, g)
		}
		g.members = append(g.members, c)
	}
	return ordered
}

func buildKey(members []Contribution) HoldingKey {
	names := make([]string, len(members))
	tickers := make([]*string, len(members))
	sectors := make([]*string, len(members))
	codes := make([]*string, len(members))
	countries := make([]*string, len(members))
	for i, m := range members {
		names[i] = m.Name
		tickers[i] = m.Ticker
		sectors[i] = m.Sector
		codes[i] = m.CountryCode
		countries[i] = m.CountryName
	}

	return HoldingKey{
		UUID:        members[0].HoldingUUID,
		Ticker:      longestPresent(tickers),
		Name:        BestName(names),
		Sector:      longestPresent(sectors),
		CountryCode: firstPresent(codes),
		CountryName: firstPresent(countries),
	}
}

func buildValue(members []Contribution) HoldingValue {
	value := HoldingValue{
		TotalValue:  decimal.Zero,
		FundSymbols: make(map[string]struct{}),
		Platforms:   make(domain.PlatformSet),
	}
	for _, m := range members {
		value.TotalValue = value.TotalValue.Add(m.Value)
		value.FundSymbols[m.FundSymbol] = struct{}{}
		value.Platforms.AddAll(m.Platforms)
	}
	return value
}

// longestPresent returns the longest non-blank value, the first seen on ties.
// Longer tickers and sectors are assumed to be less truncated.
func longestPresent(values []*string) *string {
	var best *string
	bestLen := 0
	for _, v := range values {
		if v == nil || strings.TrimSpace(*v) == "" {
			continue
		}
		if n := utf8.RuneCountInString(*v); best == nil || n > bestLen {
			best, bestLen = v, n
		}
	}
	return best
}

func firstPresent(values []*string) *string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return v
		}
	}
	return nil
}
