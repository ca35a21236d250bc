// Package pricing resolves the price an instrument is valued at.
package pricing

import (
	"context"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Resolver returns an instrument's live price, falling back to its last close and then to zero.
// Results are memoized per instrument, so a Resolver should live for one computation only.
type Resolver struct {
	source domain.PriceSource
	cache  map[int64]decimal.Decimal
	log    zerolog.Logger
}

// NewResolver creates a resolver scoped to one computation. source may be nil.
func NewResolver(source domain.PriceSource, log zerolog.Logger) *Resolver {
	return &Resolver{
		source: source,
		cache:  make(map[int64]decimal.Decimal),
		log:    log.With().Str("component", "price_resolver").Logger(),
	}
}

// Current returns the price to value the instrument at. It never fails: a missing
// price resolves to zero with a warning.
func (r *Resolver) Current(ctx context.Context, instrument domain.Instrument) decimal.Decimal {
	if price, ok := r.cache[instrument.ID]; ok {
		return price
	}

	price := r.resolve(ctx, instrument)
	r.cache[instrument.ID] = price
	return price
}

func (r *Resolver) resolve(ctx context.Context, instrument domain.Instrument) decimal.Decimal {
	if instrument.CurrentPrice.Valid && instrument.CurrentPrice.Decimal.IsPositive() {
		return instrument.CurrentPrice.Decimal
	}

	if r.source == nil {
		r.log.Warn().Str("symbol", instrument.Symbol).Msg("No live price and no price history, using zero")
		return decimal.Zero
	}

	closePrice, err := r.source.LastClose(ctx, instrument)
	if err != nil {
		r.log.Warn().Err(err).Str("symbol", instrument.Symbol).Msg("No price found, using zero")
		return decimal.Zero
	}
	if !closePrice.IsPositive() {
		r.log.Warn().
			Str("symbol", instrument.Symbol).
			Str("close_price", closePrice.String()).
			Msg("Last close price is not positive, using zero")
		return decimal.Zero
	}

	return closePrice
}
