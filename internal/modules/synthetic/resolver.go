// Package synthetic values composite instruments built from other tracked instruments.
//
// A synthetic fund has no provider-reported weights. Each of its legs names an underlying
// instrument by ticker, and the leg is worth whatever the user actually holds of that
// instrument: net quantity × current price.
package synthetic

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/holdings"
	"github.com/aristath/lookthrough/internal/modules/pricing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CryptocurrencySector is assigned to crypto legs that carry no sector of their own
const CryptocurrencySector = "Cryptocurrency"

// HoldingValue is one resolved leg of a synthetic fund
type HoldingValue struct {
	Position   domain.PositionSnapshot
	Instrument domain.Instrument
	Value      decimal.Decimal
	Platforms  domain.PlatformSet
}

// Resolver answers look-through questions for synthetic funds.
// Ownership is never platform-filtered here: a synthetic leg is valued from the full
// ownership of its underlying instrument.
type Resolver struct {
	instrumentsByTicker map[string]domain.Instrument
	ownership           map[int64]domain.InstrumentOwnership
	positionsByFundID   map[int64][]domain.PositionSnapshot
	prices              *pricing.Resolver
	log                 zerolog.Logger
}

// NewResolver creates a resolver over already-loaded data
func NewResolver(
	underlying []domain.Instrument,
	ownership map[int64]domain.InstrumentOwnership,
	positionsByFundID map[int64][]domain.PositionSnapshot,
	prices *pricing.Resolver,
	log zerolog.Logger,
) *Resolver {
	byTicker := make(map[string]domain.Instrument, len(underlying))
	for _, inst := range underlying {
		byTicker[inst.Symbol] = inst
	}
	if ownership == nil {
		ownership = make(map[int64]domain.InstrumentOwnership)
	}

	return &Resolver{
		instrumentsByTicker: byTicker,
		ownership:           ownership,
		positionsByFundID:   positionsByFundID,
		prices:              prices,
		log:                 log.With().Str("component", "synthetic_resolver").Logger(),
	}
}

// Load reads the underlying instruments and their ownership for the given synthetic funds
// and returns a resolver over them.
func Load(
	ctx context.Context,
	funds domain.FundSource,
	owners domain.OwnershipSource,
	fundSet domain.FundSet,
	prices *pricing.Resolver,
	log zerolog.Logger,
) (*Resolver, error) {
	var tickers []string
	seen := make(map[string]bool)
	for _, inst := range fundSet.Instruments {
		if !inst.IsSynthetic() {
			continue
		}
		for _, pos := range fundSet.Positions(inst.ID) {
			ticker, ok := legTicker(pos)
			if !ok || seen[ticker] {
				continue
			}
			seen[ticker] = true
			tickers = append(tickers, ticker)
		}
	}

	if len(tickers) == 0 {
		return NewResolver(nil, nil, fundSet.PositionsByFundID, prices, log), nil
	}

	underlying, err := funds.InstrumentsBySymbol(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("failed to load synthetic underlying instruments: %w", err)
	}

	ids := make([]int64, len(underlying))
	for i, inst := range underlying {
		ids[i] = inst.ID
	}
	ownership, err := owners.Ownership(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load synthetic underlying ownership: %w", err)
	}

	return NewResolver(underlying, ownership, fundSet.PositionsByFundID, prices, log), nil
}

// HasActiveHoldings reports whether at least one leg of the fund maps to a tracked
// instrument with strictly positive net quantity.
func (r *Resolver) HasActiveHoldings(fundID int64) bool {
	for _, pos := range r.positionsByFundID[fundID] {
		inst, ok := r.instrumentFor(pos)
		if !ok {
			continue
		}
		if o, ok := r.ownership[inst.ID]; ok && o.IsActive() {
			return true
		}
	}
	return false
}

// ResolveHoldingValues values each leg from the user's ownership of its underlying instrument.
// Legs without a ticker, without a tracked instrument or without ownership data are skipped.
func (r *Resolver) ResolveHoldingValues(ctx context.Context, positions []domain.PositionSnapshot) []HoldingValue {
	var values []HoldingValue
	for _, pos := range positions {
		inst, ok := r.instrumentFor(pos)
		if !ok {
			continue
		}
		o, ok := r.ownership[inst.ID]
		if !ok {
			continue
		}

		price := r.prices.Current(ctx, inst)
		values = append(values, HoldingValue{
			Position:   pos,
			Instrument: inst,
			Value:      o.NetQuantity.Mul(price),
			Platforms:  o.Platforms,
		})
	}
	return values
}

// TotalValue sums the resolved leg values of every given synthetic fund
func (r *Resolver) TotalValue(ctx context.Context, funds []domain.Instrument) decimal.Decimal {
	total := decimal.Zero
	for _, fund := range funds {
		for _, hv := range r.ResolveHoldingValues(ctx, r.positionsByFundID[fund.ID]) {
			total = total.Add(hv.Value)
		}
	}
	return total
}

// Contributions turns a synthetic fund's resolved legs into aggregation input.
// Platform attribution is the underlying instrument's own platform set.
func (r *Resolver) Contributions(ctx context.Context, fund domain.Instrument) []holdings.Contribution {
	resolved := r.ResolveHoldingValues(ctx, r.positionsByFundID[fund.ID])
	contributions := make([]holdings.Contribution, 0, len(resolved))
	for _, hv := range resolved {
		holding := hv.Position.Holding
		holding.Sector = resolveSector(holding.Sector, hv.Instrument)
		contributions = append(contributions, holdings.NewContribution(holding, hv.Value, fund.Symbol, hv.Platforms))
	}
	return contributions
}

func (r *Resolver) instrumentFor(pos domain.PositionSnapshot) (domain.Instrument, bool) {
	ticker, ok := legTicker(pos)
	if !ok {
		return domain.Instrument{}, false
	}
	inst, ok := r.instrumentsByTicker[ticker]
	return inst, ok
}

func legTicker(pos domain.PositionSnapshot) (string, bool) {
	if pos.Holding.Ticker == nil {
		return "", false
	}
	ticker := strings.TrimSpace(*pos.Holding.Ticker)
	return ticker, ticker != ""
}

func resolveSector(sector *string, inst domain.Instrument) *string {
	if sector != nil && strings.TrimSpace(*sector) != "" {
		return sector
	}
	if strings.EqualFold(string(inst.Category), string(domain.CategoryCrypto)) {
		s := CryptocurrencySector
		return &s
	}
	return nil
}
