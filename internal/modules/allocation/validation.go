package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidBudget is returned for a negative budget
	ErrInvalidBudget = errors.New("budget must not be negative")
	// ErrNoEntries is returned when there is nothing to allocate to
	ErrNoEntries = errors.New("at least one entry is required")
	// ErrInvalidEntry is returned for entries with negative prices or targets, or duplicate ids
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrTooManyUnits is returned when the cash could buy more than maxUnits of the cheapest entry
	ErrTooManyUnits = errors.New("request could buy too many units")
)

// maxUnits bounds how many units one request may buy
var maxUnits = decimal.NewFromInt(1_000_000)

// checkUnitBound rejects cash that buys more than maxUnits at the cheapest price
func checkUnitBound(cash, cheapest decimal.Decimal) error {
	if !cash.IsPositive() || !cheapest.IsPositive() {
		return nil
	}
	units, _ := cash.QuoRem(cheapest, 0)
	if units.GreaterThan(maxUnits) {
		return fmt.Errorf("%w: %s at price %s buys %s units, limit is %s", ErrTooManyUnits, cash, cheapest, units, maxUnits)
	}
	return nil
}

// ValidateFresh checks a fresh-investment request before it reaches the allocator
func ValidateFresh(entries []FreshEntry, budget decimal.Decimal) error {
	if budget.IsNegative() {
		return ErrInvalidBudget
	}
	if len(entries) == 0 {
		return ErrNoEntries
	}

	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidEntry, e.ID)
		}
		seen[e.ID] = true
		if e.Price.IsNegative() {
			return fmt.Errorf("%w: id %d has negative price %s", ErrInvalidEntry, e.ID, e.Price)
		}
		if e.TargetPercentage.IsNegative() {
			return fmt.Errorf("%w: id %d has negative target percentage %s", ErrInvalidEntry, e.ID, e.TargetPercentage)
		}
	}

	cheapest := decimal.Zero
	for _, e := range entries {
		if e.Price.IsPositive() && e.TargetPercentage.IsPositive() && (cheapest.IsZero() || e.Price.LessThan(cheapest)) {
			cheapest = e.Price
		}
	}
	return checkUnitBound(budget, cheapest)
}

// ValidateRebalance checks a budget-constrained rebalance request
func ValidateRebalance(entries []RebalanceEntry, budget decimal.Decimal) error {
	if budget.IsNegative() {
		return ErrInvalidBudget
	}
	if len(entries) == 0 {
		return ErrNoEntries
	}

	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidEntry, e.ID)
		}
		seen[e.ID] = true
		if e.Price.IsNegative() {
			return fmt.Errorf("%w: id %d has negative price %s", ErrInvalidEntry, e.ID, e.Price)
		}
	}

	// sell proceeds never exceed the sum of the sell differences
	cash := budget
	cheapest := decimal.Zero
	for _, e := range entries {
		if !e.IsBuy {
			cash = cash.Add(e.Difference.Abs())
			continue
		}
		if e.Price.IsPositive() && e.Difference.IsPositive() && (cheapest.IsZero() || e.Price.LessThan(cheapest)) {
			cheapest = e.Price
		}
	}
	return checkUnitBound(cash, cheapest)
}
