// Package breakdown reconciles the look-through holdings of owned funds against the
// value the user actually holds.
package breakdown

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/holdings"
	"github.com/aristath/lookthrough/internal/modules/pricing"
	"github.com/aristath/lookthrough/internal/modules/synthetic"
	"github.com/aristath/lookthrough/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	scaleFactorPrecision = 10
	valuePrecision       = 2
	percentagePrecision  = 4
)

var hundred = decimal.NewFromInt(100)

// HoldingBreakdown is one row of the look-through breakdown
type HoldingBreakdown struct {
	HoldingUUID       uuid.UUID       `json:"holding_uuid"`
	Ticker            *string         `json:"holding_ticker"`
	Name              string          `json:"holding_name"`
	Sector            *string         `json:"holding_sector"`
	CountryCode       *string         `json:"holding_country_code"`
	CountryName       *string         `json:"holding_country_name"`
	PercentageOfTotal decimal.Decimal `json:"percentage_of_total"`
	TotalValueEUR     decimal.Decimal `json:"total_value_eur"`
	InFunds           string          `json:"in_etfs"`
	NumFunds          int             `json:"num_etfs"`
	Platforms         string          `json:"platforms"`
}

// Service computes breakdowns from the portfolio collaborators
type Service struct {
	funds  domain.FundSource
	owners domain.OwnershipSource
	prices domain.PriceSource
	log    zerolog.Logger
}

// NewService creates a breakdown service
func NewService(
	funds domain.FundSource,
	owners domain.OwnershipSource,
	prices domain.PriceSource,
	log zerolog.Logger,
) *Service {
	return &Service{
		funds:  funds,
		owners: owners,
		prices: prices,
		log:    log.With().Str("service", "breakdown").Logger(),
	}
}

// snapshot is the portfolio state one breakdown is computed from
type snapshot struct {
	fundSet   domain.FundSet
	ownership map[int64]domain.InstrumentOwnership
	synthetic *synthetic.Resolver
	prices    *pricing.Resolver
}

// ComputeBreakdown returns the ranked look-through holdings of the owned funds, optionally
// restricted to fund symbols and to the quantity held on the given platforms.
// The result is empty when the portfolio or the disclosed holdings are worth nothing.
func (s *Service) ComputeBreakdown(ctx context.Context, etfSymbols, platforms []string) ([]HoldingBreakdown, error) {
	defer utils.NewTimer("compute_breakdown", s.log).Stop()

	snap, err := s.load(ctx, etfSymbols, ParsePlatforms(platforms))
	if err != nil {
		return nil, err
	}

	active := s.activeFunds(snap)
	actualTotal := s.actualTotal(ctx, snap, active)
	aggregated := holdings.Aggregate(s.contributions(ctx, snap, active))

	rows, ok := Reconcile(aggregated, actualTotal)
	if !ok {
		s.log.Warn().
			Str("actual_total", actualTotal.String()).
			Str("holdings_total", holdings.TotalValue(aggregated).String()).
			Msg("Breakdown not computable, returning empty result")
		return []HoldingBreakdown{}, nil
	}

	s.log.Debug().
		Int("funds", len(snap.fundSet.Instruments)).
		Int("active_funds", len(active)).
		Int("holdings", len(rows)).
		Str("actual_total", actualTotal.String()).
		Msg("Breakdown computed")
	return rows, nil
}

// ParsePlatforms converts caller-supplied platform names into a filter.
// Unknown names are dropped; an empty result means no filter.
func ParsePlatforms(names []string) domain.PlatformSet {
	filter := make(domain.PlatformSet)
	for _, name := range names {
		if p, ok := domain.ParsePlatform(name); ok {
			filter[p] = struct{}{}
		}
	}
	return filter
}

func (s *Service) load(ctx context.Context, etfSymbols []string, filter domain.PlatformSet) (*snapshot, error) {
	fundSet, err := s.funds.Funds(ctx, etfSymbols)
	if err != nil {
		return nil, fmt.Errorf("failed to load funds: %w", err)
	}

	var regularIDs []int64
	for _, inst := range fundSet.Instruments {
		if !inst.IsSynthetic() {
			regularIDs = append(regularIDs, inst.ID)
		}
	}

	ownership := make(map[int64]domain.InstrumentOwnership, len(regularIDs))
	if len(regularIDs) > 0 {
		owned, err := s.owners.Ownership(ctx, regularIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load fund ownership: %w", err)
		}
		for id, o := range owned {
			ownership[id] = o.Filtered(filter)
		}
	}

	prices := pricing.NewResolver(s.prices, s.log)
	resolver, err := synthetic.Load(ctx, s.funds, s.owners, fundSet, prices, s.log)
	if err != nil {
		return nil, err
	}

	return &snapshot{
		fundSet:   fundSet,
		ownership: ownership,
		synthetic: resolver,
		prices:    prices,
	}, nil
}

func (s *Service) activeFunds(snap *snapshot) []domain.Instrument {
	var active []domain.Instrument
	for _, fund := range snap.fundSet.Instruments {
		var isActive bool
		ok := s.guard(fund, "activity", func() {
			if fund.IsSynthetic() {
				isActive = snap.synthetic.HasActiveHoldings(fund.ID)
				return
			}
			isActive = snap.ownership[fund.ID].IsActive()
		})
		if ok && isActive {
			active = append(active, fund)
		}
	}
	return active
}

// actualTotal is the ground truth the breakdown reconciles against. It includes active funds
// whose holdings were never disclosed.
func (s *Service) actualTotal(ctx context.Context, snap *snapshot, active []domain.Instrument) decimal.Decimal {
	total := decimal.Zero
	for _, fund := range active {
		value := decimal.Zero
		ok := s.guard(fund, "valuation", func() {
			if fund.IsSynthetic() {
				value = snap.synthetic.TotalValue(ctx, []domain.Instrument{fund})
				return
			}
			value = snap.ownership[fund.ID].NetQuantity.Mul(snap.prices.Current(ctx, fund))
		})
		if ok {
			total = total.Add(value)
		}
	}
	return total
}

func (s *Service) contributions(ctx context.Context, snap *snapshot, active []domain.Instrument) []holdings.Contribution {
	var contributions []holdings.Contribution
	for _, fund := range active {
		positions := snap.fundSet.Positions(fund.ID)
		if len(positions) == 0 {
			continue
		}

		var fundContributions []holdings.Contribution
		ok := s.guard(fund, "contributions", func() {
			if fund.IsSynthetic() {
				fundContributions = snap.synthetic.Contributions(ctx, fund)
				return
			}
			owned := snap.ownership[fund.ID]
			fundValue := owned.NetQuantity.Mul(snap.prices.Current(ctx, fund))
			for _, pos := range positions {
				weight := pos.WeightPercentage.DivRound(hundred, scaleFactorPrecision)
				fundContributions = append(fundContributions,
					holdings.NewContribution(pos.Holding, fundValue.Mul(weight), fund.Symbol, owned.Platforms))
			}
		})
		if ok {
			contributions = append(contributions, fundContributions...)
		}
	}
	return contributions
}

// guard runs fn and recovers from a panic so one malformed fund cannot blank out the breakdown
func (s *Service) guard(fund domain.Instrument, stage string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().
				Interface("panic", r).
				Int64("instrument_id", fund.ID).
				Str("symbol", fund.Symbol).
				Str("stage", stage).
				Msg("Skipping fund after failure")
			ok = false
		}
	}()
	fn()
	return true
}

// Reconcile scales aggregated holdings so they sum to actualTotal and ranks them by value.
// Holdings with a non-positive combined value are left out before scaling so every
// percentage stays within [0, 100]. It reports false when either total is zero.
func Reconcile(aggregated []holdings.AggregatedHolding, actualTotal decimal.Decimal) ([]HoldingBreakdown, bool) {
	positive := make([]holdings.AggregatedHolding, 0, len(aggregated))
	for _, h := range aggregated {
		if h.Value.TotalValue.IsPositive() {
			positive = append(positive, h)
		}
	}

	holdingsTotal := holdings.TotalValue(positive)
	if !actualTotal.IsPositive() || holdingsTotal.IsZero() {
		return nil, false
	}

	scale := actualTotal.DivRound(holdingsTotal, scaleFactorPrecision)
	rows := make([]HoldingBreakdown, 0, len(positive))
	for _, h := range positive {
		scaled := h.Value.TotalValue.Mul(scale)
		value := scaled.Round(valuePrecision)
		if !value.IsPositive() {
			continue
		}

		funds := h.Value.SortedFunds()
		rows = append(rows, HoldingBreakdown{
			HoldingUUID:       h.Key.UUID,
			Ticker:            h.Key.Ticker,
			Name:              h.Key.Name,
			Sector:            h.Key.Sector,
			CountryCode:       h.Key.CountryCode,
			CountryName:       h.Key.CountryName,
			PercentageOfTotal: scaled.Mul(hundred).DivRound(actualTotal, percentagePrecision),
			TotalValueEUR:     value,
			InFunds:           strings.Join(funds, ", "),
			NumFunds:          len(funds),
			Platforms:         strings.Join(h.Value.Platforms.Sorted(), ", "),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalValueEUR.GreaterThan(rows[j].TotalValueEUR)
	})
	return rows, true
}
