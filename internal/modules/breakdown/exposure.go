package breakdown

import (
	"context"

	"github.com/aristath/lookthrough/internal/modules/holdings"
	"github.com/aristath/lookthrough/internal/utils"
	"github.com/shopspring/decimal"
)

// Exposure groups the breakdown by sector and country and measures its concentration
type Exposure struct {
	TotalValueEUR decimal.Decimal          `json:"total_value_eur"`
	Holdings      int                      `json:"holdings"`
	Sectors       []holdings.GroupExposure `json:"sectors"`
	Countries     []holdings.GroupExposure `json:"countries"`
	Concentration holdings.Concentration   `json:"concentration"`
}

// ComputeExposure runs the breakdown with the same filters and rolls it up
func (s *Service) ComputeExposure(ctx context.Context, etfSymbols, platforms []string) (Exposure, error) {
	defer utils.NewTimer("compute_exposure", s.log).Stop()

	rows, err := s.ComputeBreakdown(ctx, etfSymbols, platforms)
	if err != nil {
		return Exposure{}, err
	}
	return BuildExposure(rows), nil
}

// BuildExposure rolls breakdown rows up by sector and country. rows must be ranked by value.
func BuildExposure(rows []HoldingBreakdown) Exposure {
	items := make([]holdings.Exposed, len(rows))
	total := decimal.Zero
	for i, row := range rows {
		items[i] = holdings.Exposed{
			Name:        row.Name,
			Sector:      row.Sector,
			CountryCode: row.CountryCode,
			CountryName: row.CountryName,
			Value:       row.TotalValueEUR,
			Percentage:  row.PercentageOfTotal,
		}
		total = total.Add(row.TotalValueEUR)
	}

	return Exposure{
		TotalValueEUR: total,
		Holdings:      len(rows),
		Sectors:       holdings.RollupBySector(items),
		Countries:     holdings.RollupByCountry(items),
		Concentration: holdings.MeasureConcentration(items),
	}
}
