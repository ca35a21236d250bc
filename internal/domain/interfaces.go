package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// FundSource supplies fund instruments and their latest disclosed positions.
// Implemented by portfolio.Repository; the look-through core only reads from it.
type FundSource interface {
	// Funds returns fund-provider and synthetic instruments, restricted to symbols when non-empty,
	// together with each fund's latest position snapshot set.
	Funds(ctx context.Context, symbols []string) (FundSet, error)

	// InstrumentsBySymbol returns tracked instruments whose symbol is in symbols
	InstrumentsBySymbol(ctx context.Context, symbols []string) ([]Instrument, error)

	// InstrumentsByID returns the instruments with the given ids
	InstrumentsByID(ctx context.Context, ids []int64) ([]Instrument, error)

	// FundsWithPositions returns every instrument that has at least one disclosed position
	FundsWithPositions(ctx context.Context) ([]Instrument, error)

	// LatestPositions returns the latest snapshot of each given fund, keyed by fund id.
	// Funds without disclosed positions are omitted.
	LatestPositions(ctx context.Context, fundIDs []int64) (map[int64][]PositionSnapshot, error)
}

// OwnershipSource supplies the user's net quantity per instrument, broken down by platform
type OwnershipSource interface {
	Ownership(ctx context.Context, instrumentIDs []int64) (map[int64]InstrumentOwnership, error)
}

// PriceSource supplies historical close prices used when an instrument has no live price
type PriceSource interface {
	// LastClose returns the most recent close price, or an error when none is stored
	LastClose(ctx context.Context, instrument Instrument) (decimal.Decimal, error)
}
