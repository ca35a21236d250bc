// Package portfolio provides the SQLite-backed store for instruments, fund holdings and the ledger.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/lookthrough/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

const instrumentColumns = `i.id, i.symbol, i.name, i.provider_name, i.category, i.current_price, i.ter, i.annual_return`

var (
	_ domain.FundSource      = (*Repository)(nil)
	_ domain.OwnershipSource = (*Repository)(nil)
	_ domain.PriceSource     = (*Repository)(nil)
)

// Repository reads the portfolio database.
// It implements domain.FundSource, domain.OwnershipSource and domain.PriceSource.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
		now: time.Now,
	}
}

// Funds returns fund-provider and synthetic instruments with their latest snapshots
func (r *Repository) Funds(ctx context.Context, symbols []string) (domain.FundSet, error) {
	providers := make([]interface{}, 0, len(domain.FundProviders)+1)
	for _, p := range domain.FundProviders {
		providers = append(providers, string(p))
	}
	providers = append(providers, string(domain.ProviderSynthetic))

	query := `SELECT ` + instrumentColumns + ` FROM instruments i WHERE i.provider_name IN (` + placeholders(len(providers)) + `)`
	args := providers
	if len(symbols) > 0 {
		query += ` AND i.symbol IN (` + placeholders(len(symbols)) + `)`
		for _, s := range symbols {
			args = append(args, s)
		}
	}
	query += ` ORDER BY i.id`

	instruments, err := r.queryInstruments(ctx, query, args...)
	if err != nil {
		return domain.FundSet{}, fmt.Errorf("failed to query funds: %w", err)
	}

	ids := make([]int64, 0, len(instruments))
	for _, inst := range instruments {
		ids = append(ids, inst.ID)
	}
	positions, err := r.LatestPositions(ctx, ids)
	if err != nil {
		return domain.FundSet{}, err
	}

	return domain.FundSet{Instruments: instruments, PositionsByFundID: positions}, nil
}

// InstrumentsBySymbol returns instruments whose symbol is in symbols
func (r *Repository) InstrumentsBySymbol(ctx context.Context, symbols []string) ([]domain.Instrument, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(symbols))
	for i, s := range symbols {
		args[i] = s
	}
	query := `SELECT ` + instrumentColumns + ` FROM instruments i
		WHERE i.symbol IN (` + placeholders(len(symbols)) + `) ORDER BY i.id`

	instruments, err := r.queryInstruments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments by symbol: %w", err)
	}
	return instruments, nil
}

// InstrumentsByID returns instruments with the given ids
func (r *Repository) InstrumentsByID(ctx context.Context, ids []int64) ([]domain.Instrument, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + instrumentColumns + ` FROM instruments i
		WHERE i.id IN (` + placeholders(len(ids)) + `) ORDER BY i.id`

	instruments, err := r.queryInstruments(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments by id: %w", err)
	}
	return instruments, nil
}

// FundsWithPositions returns every instrument with at least one disclosed position
func (r *Repository) FundsWithPositions(ctx context.Context) ([]domain.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments i
		WHERE EXISTS (SELECT 1 FROM etf_positions p WHERE p.etf_instrument_id = i.id)
		ORDER BY i.id`

	instruments, err := r.queryInstruments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds with positions: %w", err)
	}
	return instruments, nil
}

// LatestPositions returns each fund's positions at its most recent snapshot date
func (r *Repository) LatestPositions(ctx context.Context, fundIDs []int64) (map[int64][]domain.PositionSnapshot, error) {
	result := make(map[int64][]domain.PositionSnapshot)
	if len(fundIDs) == 0 {
		return result, nil
	}

	query := `SELECT p.etf_instrument_id, p.snapshot_date, p.weight_percentage, p.position_rank,
			h.id, h.uuid, h.name, h.ticker, h.sector, h.country_code, h.country_name
		FROM etf_positions p
		JOIN etf_holdings h ON h.id = p.holding_id
		WHERE p.etf_instrument_id IN (` + placeholders(len(fundIDs)) + `)
		  AND p.snapshot_date = (
			SELECT MAX(p2.snapshot_date) FROM etf_positions p2
			WHERE p2.etf_instrument_id = p.etf_instrument_id
		  )
		ORDER BY p.etf_instrument_id, p.position_rank, p.id`

	rows, err := r.db.QueryContext(ctx, query, int64Args(fundIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pos                                  domain.PositionSnapshot
			snapshotDate, holdingUUID            string
			ticker, sector, countryCode, country sql.NullString
		)
		if err := rows.Scan(
			&pos.FundID, &snapshotDate, &pos.WeightPercentage, &pos.Rank,
			&pos.Holding.ID, &holdingUUID, &pos.Holding.Name,
			&ticker, &sector, &countryCode, &country,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		id, err := uuid.Parse(holdingUUID)
		if err != nil {
			r.log.Warn().Err(err).Int64("fund_id", pos.FundID).Int64("holding_id", pos.Holding.ID).Msg("Skipping holding with malformed UUID")
			continue
		}
		pos.Holding.UUID = id

		date, err := time.Parse(dateLayout, snapshotDate)
		if err != nil {
			r.log.Warn().Err(err).Int64("fund_id", pos.FundID).Str("snapshot_date", snapshotDate).Msg("Skipping position with malformed snapshot date")
			continue
		}
		pos.SnapshotDate = date

		pos.Holding.Ticker = nullableString(ticker)
		pos.Holding.Sector = nullableString(sector)
		pos.Holding.CountryCode = nullableString(countryCode)
		pos.Holding.CountryName = nullableString(country)

		result[pos.FundID] = append(result[pos.FundID], pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return result, nil
}

// Ownership derives per-platform net quantities from the transaction ledger.
// Platforms lists every platform with a transaction, including fully sold ones.
// Instruments without transactions are omitted.
func (r *Repository) Ownership(ctx context.Context, instrumentIDs []int64) (map[int64]domain.InstrumentOwnership, error) {
	result := make(map[int64]domain.InstrumentOwnership)
	if len(instrumentIDs) == 0 {
		return result, nil
	}

	query := `SELECT instrument_id, platform, transaction_type, quantity
		FROM transactions
		WHERE instrument_id IN (` + placeholders(len(instrumentIDs)) + `)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, int64Args(instrumentIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			instrumentID    int64
			platformName    string
			transactionType string
			quantity        decimal.Decimal
		)
		if err := rows.Scan(&instrumentID, &platformName, &transactionType, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		o, ok := result[instrumentID]
		if !ok {
			o = domain.InstrumentOwnership{
				InstrumentID:       instrumentID,
				NetQuantity:        decimal.Zero,
				QuantityByPlatform: make(map[domain.Platform]decimal.Decimal),
				Platforms:          make(domain.PlatformSet),
			}
		}

		platform, known := domain.ParsePlatform(platformName)
		if !known {
			platform = domain.PlatformUnknown
		}
		if transactionType == "SELL" {
			quantity = quantity.Neg()
		}

		o.Platforms[platform] = struct{}{}
		o.QuantityByPlatform[platform] = o.QuantityByPlatform[platform].Add(quantity)
		o.NetQuantity = o.NetQuantity.Add(quantity)
		o.TransactionCount++
		result[instrumentID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return result, nil
}

// LastClose returns the most recent close price on or before today
func (r *Repository) LastClose(ctx context.Context, instrument domain.Instrument) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT close_price FROM daily_prices
		WHERE instrument_id = ? AND entry_date <= ?
		ORDER BY entry_date DESC LIMIT 1`,
		instrument.ID, r.now().Format(dateLayout),
	).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("no close price for %s: %w", instrument.Symbol, err)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query close price for %s: %w", instrument.Symbol, err)
	}
	return price, nil
}

func (r *Repository) queryInstruments(ctx context.Context, query string, args ...interface{}) ([]domain.Instrument, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		var (
			inst               domain.Instrument
			provider, category string
		)
		if err := rows.Scan(
			&inst.ID, &inst.Symbol, &inst.Name, &provider, &category,
			&inst.CurrentPrice, &inst.TER, &inst.AnnualReturn,
		); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		inst.Provider = domain.ProviderKind(provider)
		inst.Category = domain.InstrumentCategory(category)
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}
	return instruments, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
