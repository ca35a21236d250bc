package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	_ domain.FundSource      = (*MemoryStore)(nil)
	_ domain.OwnershipSource = (*MemoryStore)(nil)
	_ domain.PriceSource     = (*MemoryStore)(nil)
)

// MemoryStore is an in-memory implementation of the look-through collaborators
// (FundSource, OwnershipSource, PriceSource) for service tests.
type MemoryStore struct {
	mu          sync.RWMutex
	instruments []domain.Instrument
	positions   map[int64][]domain.PositionSnapshot
	ownership   map[int64]domain.InstrumentOwnership
	closes      map[int64]decimal.Decimal
	err         error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[int64][]domain.PositionSnapshot),
		ownership: make(map[int64]domain.InstrumentOwnership),
		closes:    make(map[int64]decimal.Decimal),
	}
}

// AddInstrument registers a tracked instrument
func (m *MemoryStore) AddInstrument(instrument domain.Instrument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments = append(m.instruments, instrument)
}

// AddPosition appends a disclosed position to a fund's latest snapshot
func (m *MemoryStore) AddPosition(position domain.PositionSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[position.FundID] = append(m.positions[position.FundID], position)
}

// SetOwnership sets the ownership of an instrument
func (m *MemoryStore) SetOwnership(ownership domain.InstrumentOwnership) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownership[ownership.InstrumentID] = ownership
}

// SetLastClose sets the fallback close price of an instrument
func (m *MemoryStore) SetLastClose(instrumentID int64, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes[instrumentID] = price
}

// SetError makes every read return err
func (m *MemoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Funds returns fund instruments, optionally restricted to symbols
func (m *MemoryStore) Funds(_ context.Context, symbols []string) (domain.FundSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return domain.FundSet{}, m.err
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	set := domain.FundSet{PositionsByFundID: make(map[int64][]domain.PositionSnapshot)}
	for _, inst := range m.instruments {
		if !inst.Provider.IsFund() {
			continue
		}
		if len(wanted) > 0 && !wanted[inst.Symbol] {
			continue
		}
		set.Instruments = append(set.Instruments, inst)
		if positions := m.positions[inst.ID]; len(positions) > 0 {
			set.PositionsByFundID[inst.ID] = positions
		}
	}
	return set, nil
}

// InstrumentsBySymbol returns instruments whose symbol is in symbols
func (m *MemoryStore) InstrumentsBySymbol(_ context.Context, symbols []string) ([]domain.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}
	var result []domain.Instrument
	for _, inst := range m.instruments {
		if wanted[inst.Symbol] {
			result = append(result, inst)
		}
	}
	return result, nil
}

// InstrumentsByID returns instruments with the given ids
func (m *MemoryStore) InstrumentsByID(_ context.Context, ids []int64) ([]domain.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var result []domain.Instrument
	for _, inst := range m.instruments {
		if wanted[inst.ID] {
			result = append(result, inst)
		}
	}
	return result, nil
}

// FundsWithPositions returns instruments that have at least one position
func (m *MemoryStore) FundsWithPositions(_ context.Context) ([]domain.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	var result []domain.Instrument
	for _, inst := range m.instruments {
		if len(m.positions[inst.ID]) > 0 {
			result = append(result, inst)
		}
	}
	return result, nil
}

// LatestPositions returns the positions of the given funds
func (m *MemoryStore) LatestPositions(_ context.Context, fundIDs []int64) (map[int64][]domain.PositionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	result := make(map[int64][]domain.PositionSnapshot, len(fundIDs))
	for _, id := range fundIDs {
		if positions := m.positions[id]; len(positions) > 0 {
			result[id] = positions
		}
	}
	return result, nil
}

// Ownership returns ownership for the requested instruments; unknown ids are omitted
func (m *MemoryStore) Ownership(_ context.Context, instrumentIDs []int64) (map[int64]domain.InstrumentOwnership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	result := make(map[int64]domain.InstrumentOwnership, len(instrumentIDs))
	for _, id := range instrumentIDs {
		if o, ok := m.ownership[id]; ok {
			result[id] = o
		}
	}
	return result, nil
}

// LastClose returns the stored close price
func (m *MemoryStore) LastClose(_ context.Context, instrument domain.Instrument) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.closes[instrument.ID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no close price for %s", instrument.Symbol)
	}
	return price, nil
}

// Fund builds a fund instrument with a live price
func Fund(id int64, symbol string, provider domain.ProviderKind, price string) domain.Instrument {
	inst := domain.Instrument{
		ID:       id,
		Symbol:   symbol,
		Name:     symbol,
		Provider: provider,
		Category: domain.CategoryETF,
	}
	if price != "" {
		inst.CurrentPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	return inst
}

// Position builds a position snapshot for a holding name with an optional ticker
func Position(fundID int64, name string, ticker string, weight string) domain.PositionSnapshot {
	holding := domain.HoldingIdentity{
		UUID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		Name: name,
	}
	if ticker != "" {
		holding.Ticker = &ticker
	}
	return domain.PositionSnapshot{
		FundID:           fundID,
		Holding:          holding,
		SnapshotDate:     time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		WeightPercentage: decimal.RequireFromString(weight),
	}
}

// Owned builds an ownership record from per-platform quantities
func Owned(instrumentID int64, quantities map[domain.Platform]string) domain.InstrumentOwnership {
	o := domain.InstrumentOwnership{
		InstrumentID:       instrumentID,
		NetQuantity:        decimal.Zero,
		QuantityByPlatform: make(map[domain.Platform]decimal.Decimal),
		Platforms:          make(domain.PlatformSet),
	}
	for p, q := range quantities {
		qty := decimal.RequireFromString(q)
		o.QuantityByPlatform[p] = qty
		o.NetQuantity = o.NetQuantity.Add(qty)
		o.Platforms[p] = struct{}{}
		o.TransactionCount++
	}
	return o
}
