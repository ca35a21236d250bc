package breakdown

import (
	"context"
	"fmt"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/aristath/lookthrough/internal/modules/pricing"
	"github.com/aristath/lookthrough/internal/modules/synthetic"
	"github.com/shopspring/decimal"
)

const snapshotDateLayout = "2006-01-02"

// Diagnostic exposes the raw, unscaled inputs of one fund for troubleshooting data completeness
type Diagnostic struct {
	InstrumentID         int64               `json:"instrument_id"`
	Symbol               string              `json:"symbol"`
	Provider             domain.ProviderKind `json:"provider"`
	CurrentPrice         decimal.NullDecimal `json:"current_price"`
	PositionCount        int                 `json:"position_count"`
	LatestSnapshotDate   *string             `json:"latest_snapshot_date"`
	TransactionCount     int                 `json:"transaction_count"`
	NetQuantity          decimal.Decimal     `json:"net_quantity"`
	HasDisclosedHoldings bool                `json:"has_disclosed_holdings"`
	HasActivePosition    bool                `json:"has_active_position"`
	Platforms            []string            `json:"platforms"`
}

// ComputeDiagnostics reports per-fund position and ownership statistics without any filter
func (s *Service) ComputeDiagnostics(ctx context.Context) ([]Diagnostic, error) {
	fundSet, err := s.funds.Funds(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load funds: %w", err)
	}

	ids := make([]int64, len(fundSet.Instruments))
	for i, inst := range fundSet.Instruments {
		ids[i] = inst.ID
	}
	ownership, err := s.owners.Ownership(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load fund ownership: %w", err)
	}

	resolver, err := synthetic.Load(ctx, s.funds, s.owners, fundSet, pricing.NewResolver(s.prices, s.log), s.log)
	if err != nil {
		return nil, err
	}

	diagnostics := make([]Diagnostic, 0, len(fundSet.Instruments))
	for _, inst := range fundSet.Instruments {
		positions := fundSet.Positions(inst.ID)
		owned := ownership[inst.ID]

		d := Diagnostic{
			InstrumentID:         inst.ID,
			Symbol:               inst.Symbol,
			Provider:             inst.Provider,
			CurrentPrice:         inst.CurrentPrice,
			PositionCount:        len(positions),
			LatestSnapshotDate:   latestSnapshotDate(positions),
			TransactionCount:     owned.TransactionCount,
			NetQuantity:          owned.NetQuantity,
			HasDisclosedHoldings: len(positions) > 0,
			HasActivePosition:    owned.IsActive(),
			Platforms:            owned.Platforms.Sorted(),
		}
		if inst.IsSynthetic() {
			d.HasActivePosition = resolver.HasActiveHoldings(inst.ID)
		}
		diagnostics = append(diagnostics, d)
	}
	return diagnostics, nil
}

func latestSnapshotDate(positions []domain.PositionSnapshot) *string {
	if len(positions) == 0 {
		return nil
	}
	latest := positions[0].SnapshotDate
	for _, pos := range positions[1:] {
		if pos.SnapshotDate.After(latest) {
			latest = pos.SnapshotDate
		}
	}
	formatted := latest.Format(snapshotDateLayout)
	return &formatted
}
