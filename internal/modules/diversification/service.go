// Package diversification looks through a hypothetical mix of ETFs before any money is invested.
package diversification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/holdings"
	"github.com/aristath/lookthrough/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	calculationPrecision = 10
	resultPrecision      = 4
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidAllocation is returned for allocation requests that cannot be evaluated
var ErrInvalidAllocation = errors.New("invalid allocation")

// Allocation is the share of the hypothetical portfolio put into one ETF
type Allocation struct {
	InstrumentID int64           `json:"instrument_id"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// EtfDetail describes one ETF of the mix
type EtfDetail struct {
	InstrumentID int64               `json:"instrument_id"`
	Symbol       string              `json:"symbol"`
	Name         string              `json:"name"`
	Allocation   decimal.Decimal     `json:"allocation"`
	TER          decimal.NullDecimal `json:"ter"`
	AnnualReturn decimal.NullDecimal `json:"annual_return"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
}

// Holding is one underlying company's share of the hypothetical portfolio
type Holding struct {
	Name       string          `json:"name"`
	Ticker     *string         `json:"ticker"`
	Percentage decimal.Decimal `json:"percentage"`
	InEtfs     string          `json:"in_etfs"`
}

// Result is the look-through of a hypothetical ETF mix
type Result struct {
	WeightedTER          decimal.Decimal          `json:"weighted_ter"`
	WeightedAnnualReturn decimal.Decimal          `json:"weighted_annual_return"`
	TotalUniqueHoldings  int                      `json:"total_unique_holdings"`
	EtfDetails           []EtfDetail              `json:"etf_details"`
	Holdings             []Holding                `json:"holdings"`
	Sectors              []holdings.GroupExposure `json:"sectors"`
	Countries            []holdings.GroupExposure `json:"countries"`
	Concentration        holdings.Concentration   `json:"concentration"`
}

// Service evaluates hypothetical ETF mixes
type Service struct {
	funds domain.FundSource
	log   zerolog.Logger
}

// NewService creates a diversification service
func NewService(funds domain.FundSource, log zerolog.Logger) *Service {
	return &Service{
		funds: funds,
		log:   log.With().Str("service", "diversification").Logger(),
	}
}

// AvailableEtfs lists every instrument with disclosed holdings, sorted by symbol
func (s *Service) AvailableEtfs(ctx context.Context) ([]EtfDetail, error) {
	instruments, err := s.funds.FundsWithPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load funds with positions: %w", err)
	}

	details := make([]EtfDetail, len(instruments))
	for i, inst := range instruments {
		details[i] = etfDetail(inst, decimal.Zero)
	}
	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Symbol < details[j].Symbol
	})
	return details, nil
}

// Calculate looks through the given mix. Percentages are rescaled to sum to 100.
func (s *Service) Calculate(ctx context.Context, allocations []Allocation) (*Result, error) {
	defer utils.OperationTimer("diversification_calculate", s.log)()

	if err := Validate(allocations); err != nil {
		return nil, err
	}
	allocations = Normalize(allocations)

	ids := make([]int64, len(allocations))
	for i, a := range allocations {
		ids[i] = a.InstrumentID
	}
	instruments, err := s.funds.InstrumentsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruments: %w", err)
	}
	byID := make(map[int64]domain.Instrument, len(instruments))
	for _, inst := range instruments {
		byID[inst.ID] = inst
	}
	positions, err := s.funds.LatestPositions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}

	var details []EtfDetail
	var contributions []holdings.Contribution
	for _, a := range allocations {
		inst, ok := byID[a.InstrumentID]
		if !ok {
			s.log.Warn().Int64("instrument_id", a.InstrumentID).Msg("Allocation references unknown instrument")
			continue
		}
		details = append(details, etfDetail(inst, a.Percentage))

		for _, pos := range positions[inst.ID] {
			share := pos.WeightPercentage.Mul(a.Percentage).DivRound(hundred, calculationPrecision)
			contributions = append(contributions, holdings.NewContribution(pos.Holding, share, inst.Symbol, nil))
		}
	}

	aggregated := holdings.Aggregate(contributions)
	result := &Result{
		WeightedTER:          weightedAverage(details, func(e EtfDetail) decimal.NullDecimal { return e.TER }),
		WeightedAnnualReturn: weightedAverage(details, func(e EtfDetail) decimal.NullDecimal { return e.AnnualReturn }),
		EtfDetails:           details,
		Holdings:             buildHoldings(aggregated),
		Sectors:              holdings.RollupBySector(exposed(aggregated)),
		Countries:            holdings.RollupByCountry(exposed(aggregated)),
	}
	result.TotalUniqueHoldings = len(result.Holdings)
	result.Concentration = holdings.MeasureConcentration(holdingsExposure(result.Holdings))

	s.log.Debug().
		Int("etfs", len(details)).
		Int("holdings", result.TotalUniqueHoldings).
		Msg("Diversification calculated")
	return result, nil
}

// Validate rejects mixes without a positive total or with negative percentages.
// Allocations without a positive instrument id are ignored.
func Validate(allocations []Allocation) error {
	total := decimal.Zero
	valid := 0
	for _, a := range allocations {
		if a.InstrumentID <= 0 {
			continue
		}
		valid++
		if a.Percentage.IsNegative() {
			return fmt.Errorf("%w: allocation percentage cannot be negative", ErrInvalidAllocation)
		}
		total = total.Add(a.Percentage)
	}
	if valid == 0 {
		return fmt.Errorf("%w: at least one valid ETF allocation is required", ErrInvalidAllocation)
	}
	if !total.IsPositive() {
		return fmt.Errorf("%w: total allocation percentage must be greater than zero", ErrInvalidAllocation)
	}
	return nil
}

// Normalize keeps positive allocations and rescales them to sum to 100
func Normalize(allocations []Allocation) []Allocation {
	var valid []Allocation
	total := decimal.Zero
	for _, a := range allocations {
		if a.InstrumentID > 0 && a.Percentage.IsPositive() {
			valid = append(valid, a)
			total = total.Add(a.Percentage)
		}
	}
	if total.IsZero() {
		return valid
	}

	normalized := make([]Allocation, len(valid))
	for i, a := range valid {
		normalized[i] = Allocation{
			InstrumentID: a.InstrumentID,
			Percentage:   a.Percentage.Mul(hundred).DivRound(total, calculationPrecision),
		}
	}
	return normalized
}

func etfDetail(inst domain.Instrument, allocation decimal.Decimal) EtfDetail {
	return EtfDetail{
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		Name:         inst.Name,
		Allocation:   allocation,
		TER:          inst.TER,
		AnnualReturn: inst.AnnualReturn,
		CurrentPrice: inst.CurrentPrice,
	}
}

// weightedAverage averages a per-ETF figure by allocation over the ETFs that report it
func weightedAverage(details []EtfDetail, value func(EtfDetail) decimal.NullDecimal) decimal.Decimal {
	weightedSum := decimal.Zero
	totalAllocation := decimal.Zero
	for _, e := range details {
		v := value(e)
		if !v.Valid {
			continue
		}
		weightedSum = weightedSum.Add(e.Allocation.Mul(v.Decimal).DivRound(hundred, calculationPrecision))
		totalAllocation = totalAllocation.Add(e.Allocation)
	}
	if totalAllocation.IsZero() {
		return decimal.Zero
	}
	return weightedSum.Mul(hundred).DivRound(totalAllocation, resultPrecision)
}

func buildHoldings(aggregated []holdings.AggregatedHolding) []Holding {
	result := make([]Holding, 0, len(aggregated))
	for _, h := range aggregated {
		if !h.Value.TotalValue.IsPositive() {
			continue
		}
		result = append(result, Holding{
			Name:       h.Key.Name,
			Ticker:     h.Key.Ticker,
			Percentage: h.Value.TotalValue.Round(resultPrecision),
			InEtfs:     strings.Join(h.Value.SortedFunds(), ", "),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Percentage.GreaterThan(result[j].Percentage)
	})
	return result
}

func exposed(aggregated []holdings.AggregatedHolding) []holdings.Exposed {
	items := make([]holdings.Exposed, len(aggregated))
	for i, h := range aggregated {
		items[i] = holdings.Exposed{
			Name:        h.Key.Name,
			Sector:      h.Key.Sector,
			CountryCode: h.Key.CountryCode,
			CountryName: h.Key.CountryName,
			Value:       decimal.Zero,
			Percentage:  h.Value.TotalValue,
		}
	}
	return items
}

func holdingsExposure(list []Holding) []holdings.Exposed {
	items := make([]holdings.Exposed, len(list))
	for i, h := range list {
		items[i] = holdings.Exposed{Name: h.Name, Percentage: h.Percentage}
	}
	return items
}
