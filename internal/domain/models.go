// Package domain provides core domain models and types.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderKind identifies where an instrument's data comes from
type ProviderKind string

const (
	// ProviderLightyear is a brokerage-reported ETF with disclosed holdings
	ProviderLightyear ProviderKind = "LIGHTYEAR"
	// ProviderFT is an ETF whose holdings come from the FT markets pages
	ProviderFT ProviderKind = "FT"
	// ProviderSynthetic is a virtual basket built from other tracked instruments
	ProviderSynthetic ProviderKind = "SYNTHETIC"
	// ProviderBinance is a crypto instrument priced from Binance
	ProviderBinance ProviderKind = "BINANCE"
	// ProviderTrading212 is a stock or ETF priced from Trading 212
	ProviderTrading212 ProviderKind = "TRADING212"
)

// FundProviders are the providers whose instruments disclose a holdings table
var FundProviders = []ProviderKind{ProviderLightyear, ProviderFT}

// IsFund reports whether instruments of this provider take part in the look-through breakdown
func (p ProviderKind) IsFund() bool {
	if p == ProviderSynthetic {
		return true
	}
	for _, fp := range FundProviders {
		if p == fp {
			return true
		}
	}
	return false
}

// Platform is a trading platform a transaction was executed on
type Platform string

const (
	PlatformAuvesta    Platform = "AUVESTA"
	PlatformAviva      Platform = "AVIVA"
	PlatformBinance    Platform = "BINANCE"
	PlatformCoinbase   Platform = "COINBASE"
	PlatformIBKR       Platform = "IBKR"
	PlatformLightyear  Platform = "LIGHTYEAR"
	PlatformLHV        Platform = "LHV"
	PlatformSwedbank   Platform = "SWEDBANK"
	PlatformTrading212 Platform = "TRADING212"
	PlatformTrezor     Platform = "TREZOR"
	PlatformUnknown    Platform = "UNKNOWN"
)

var knownPlatforms = map[Platform]bool{
	PlatformAuvesta:    true,
	PlatformAviva:      true,
	PlatformBinance:    true,
	PlatformCoinbase:   true,
	PlatformIBKR:       true,
	PlatformLightyear:  true,
	PlatformLHV:        true,
	PlatformSwedbank:   true,
	PlatformTrading212: true,
	PlatformTrezor:     true,
	PlatformUnknown:    true,
}

// ParsePlatform converts a free-form platform name into a known Platform
func ParsePlatform(name string) (Platform, bool) {
	p := Platform(strings.ToUpper(strings.TrimSpace(name)))
	return p, knownPlatforms[p]
}

// PlatformSet is an unordered set of platforms
type PlatformSet map[Platform]struct{}

// NewPlatformSet builds a set from the given platforms
func NewPlatformSet(platforms ...Platform) PlatformSet {
	set := make(PlatformSet, len(platforms))
	for _, p := range platforms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether p is in the set
func (s PlatformSet) Contains(p Platform) bool {
	_, ok := s[p]
	return ok
}

// AddAll adds every platform of other to s
func (s PlatformSet) AddAll(other PlatformSet) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Sorted returns the platform names in ascending order
func (s PlatformSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for p := range s {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// InstrumentCategory is the asset class of an instrument
type InstrumentCategory string

const (
	CategoryETF    InstrumentCategory = "ETF"
	CategoryStock  InstrumentCategory = "STOCK"
	CategoryCrypto InstrumentCategory = "CRYPTO"
)

// Instrument is a tradable asset tracked by the portfolio
type Instrument struct {
	ID           int64               `json:"id"`
	Symbol       string              `json:"symbol"`
	Name         string              `json:"name"`
	Provider     ProviderKind        `json:"provider_name"`
	Category     InstrumentCategory  `json:"category"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	TER          decimal.NullDecimal `json:"ter"`
	AnnualReturn decimal.NullDecimal `json:"annual_return"`
}

// IsSynthetic reports whether the instrument is a virtual basket of other instruments
func (i Instrument) IsSynthetic() bool {
	return i.Provider == ProviderSynthetic
}

// HoldingIdentity is a single underlying company or security as reported inside a fund
type HoldingIdentity struct {
	ID          int64     `json:"id"`
	UUID        uuid.UUID `json:"uuid"`
	Name        string    `json:"name"`
	Ticker      *string   `json:"ticker,omitempty"`
	Sector      *string   `json:"sector,omitempty"`
	CountryCode *string   `json:"country_code,omitempty"`
	CountryName *string   `json:"country_name,omitempty"`
}

// PositionSnapshot is one fund's disclosed weight for one holding as of one date
type PositionSnapshot struct {
	FundID           int64           `json:"fund_id"`
	Holding          HoldingIdentity `json:"holding"`
	SnapshotDate     time.Time       `json:"snapshot_date"`
	WeightPercentage decimal.Decimal `json:"weight_percentage"`
	Rank             int             `json:"rank"`
}

// InstrumentOwnership is the user's exposure to one instrument, derived from the ledger
type InstrumentOwnership struct {
	InstrumentID       int64                        `json:"instrument_id"`
	NetQuantity        decimal.Decimal              `json:"net_quantity"`
	QuantityByPlatform map[Platform]decimal.Decimal `json:"quantity_by_platform"`
	Platforms          PlatformSet                  `json:"-"`
	TransactionCount   int                          `json:"transaction_count"`
}

// Filtered returns the ownership restricted to the given platforms.
// An empty filter returns the ownership unchanged.
func (o InstrumentOwnership) Filtered(filter PlatformSet) InstrumentOwnership {
	if len(filter) == 0 {
		return o
	}

	filtered := InstrumentOwnership{
		InstrumentID:       o.InstrumentID,
		NetQuantity:        decimal.Zero,
		QuantityByPlatform: make(map[Platform]decimal.Decimal),
		Platforms:          make(PlatformSet),
		TransactionCount:   o.TransactionCount,
	}
	for p, qty := range o.QuantityByPlatform {
		if !filter.Contains(p) {
			continue
		}
		filtered.QuantityByPlatform[p] = qty
		filtered.NetQuantity = filtered.NetQuantity.Add(qty)
	}
	for p := range o.Platforms {
		if filter.Contains(p) {
			filtered.Platforms[p] = struct{}{}
		}
	}
	return filtered
}

// IsActive reports whether the net quantity is strictly positive
func (o InstrumentOwnership) IsActive() bool {
	return o.NetQuantity.IsPositive()
}

// FundSet is the collaborator's answer to "which funds and what do they hold"
type FundSet struct {
	Instruments       []Instrument
	PositionsByFundID map[int64][]PositionSnapshot
}

// Positions returns the latest positions of a fund, nil when none were disclosed
func (f FundSet) Positions(fundID int64) []PositionSnapshot {
	return f.PositionsByFundID[fundID]
}
