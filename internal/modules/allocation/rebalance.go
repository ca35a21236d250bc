package allocation

import (
	"github.com/shopspring/decimal"
)

// RebalanceEntry is one instrument's signed distance from its target value.
// Difference is positive for buys.
type RebalanceEntry struct {
	ID         int64           `json:"id"`
	Price      decimal.Decimal `json:"price"`
	Difference decimal.Decimal `json:"difference"`
	IsBuy      bool            `json:"is_buy"`
}

// UnitAllocation is the whole number of units to trade for one instrument
type UnitAllocation struct {
	Units int64 `json:"units"`
	IsBuy bool  `json:"is_buy"`
}

// RebalanceResult is a rebalance scaled down to the cash available.
// Spent plus TotalRemaining equals AvailableBudget.
type RebalanceResult struct {
	Allocations     map[int64]UnitAllocation `json:"allocations"`
	TotalRemaining  decimal.Decimal          `json:"total_remaining"`
	AvailableBudget decimal.Decimal          `json:"available_budget"`
}

// RebalanceWithBudget shares budget plus sell proceeds between the buys in proportion to
// what each one needs. It returns nil when the cash covers every buy in full, so the caller
// can trade the unconstrained amounts instead.
//
// Sell proceeds count only whole units: floor(|difference| / price) × price. Sell entries
// appear in the result with those units. Every entry id is present in the result, and buys
// without a positive price or difference get zero units. With optimize set, leftover cash
// buys one more unit at a time for the affordable buy furthest below its proportional share.
func RebalanceWithBudget(entries []RebalanceEntry, budget decimal.Decimal, optimize bool) *RebalanceResult {
	var buys []RebalanceEntry
	totalBuyNeeded := decimal.Zero
	for _, e := range entries {
		if e.IsBuy && e.Difference.IsPositive() && e.Price.IsPositive() {
			buys = append(buys, e)
			totalBuyNeeded = totalBuyNeeded.Add(e.Difference)
		}
	}
	if !totalBuyNeeded.IsPositive() {
		return nil
	}

	allocations := make(map[int64]UnitAllocation, len(entries))
	sellProceeds := decimal.Zero
	for _, e := range entries {
		allocations[e.ID] = UnitAllocation{Units: 0, IsBuy: e.IsBuy}
		if e.IsBuy || !e.Price.IsPositive() {
			continue
		}
		units, _ := e.Difference.Abs().QuoRem(e.Price, 0)
		sellProceeds = sellProceeds.Add(units.Mul(e.Price))
		allocations[e.ID] = UnitAllocation{Units: units.IntPart(), IsBuy: false}
	}

	available := budget.Add(sellProceeds)
	if totalBuyNeeded.LessThanOrEqual(available) {
		return nil
	}

	spent := decimal.Zero
	for _, e := range buys {
		units, _ := wholeUnits(e.Difference.Mul(available), totalBuyNeeded.Mul(e.Price))
		allocations[e.ID] = UnitAllocation{Units: units.IntPart(), IsBuy: true}
		spent = spent.Add(units.Mul(e.Price))
	}

	if optimize {
		for available.Sub(spent).IsPositive() {
			remaining := available.Sub(spent)
			best := furthestBelowShare(buys, allocations, available, totalBuyNeeded, remaining)
			if best < 0 {
				break
			}
			e := buys[best]
			run := belowShareRun(buys, allocations, available, totalBuyNeeded, remaining, best)
			a := allocations[e.ID]
			a.Units += run
			allocations[e.ID] = a
			spent = spent.Add(e.Price.Mul(decimal.NewFromInt(run)))
		}
	}

	return &RebalanceResult{
		Allocations:     allocations,
		TotalRemaining:  available.Sub(spent),
		AvailableBudget: available,
	}
}

// belowShare is a buy's proportional share of available minus what its units cost,
// scaled by totalBuyNeeded so it stays exact.
func belowShare(e RebalanceEntry, allocations map[int64]UnitAllocation, available, totalBuyNeeded decimal.Decimal) decimal.Decimal {
	allocated := e.Price.Mul(decimal.NewFromInt(allocations[e.ID].Units))
	return e.Difference.Mul(available).Sub(totalBuyNeeded.Mul(allocated))
}

func furthestBelowShare(
	buys []RebalanceEntry,
	allocations map[int64]UnitAllocation,
	available, totalBuyNeeded, remaining decimal.Decimal,
) int {
	best := -1
	var bestDeficit decimal.Decimal
	for i, e := range buys {
		if e.Price.GreaterThan(remaining) {
			continue
		}
		deficit := belowShare(e, allocations, available, totalBuyNeeded)
		if best < 0 || deficit.GreaterThan(bestDeficit) {
			best, bestDeficit = i, deficit
		}
	}
	return best
}

// belowShareRun counts how many units in a row furthestBelowShare would pick buys[best] for.
// Shares are fixed, so each unit only lowers best's own lead by totalBuyNeeded × price.
func belowShareRun(
	buys []RebalanceEntry,
	allocations map[int64]UnitAllocation,
	available, totalBuyNeeded, remaining decimal.Decimal,
	best int,
) int64 {
	b := buys[best]
	run, _ := remaining.QuoRem(b.Price, 0)
	bDeficit := belowShare(b, allocations, available, totalBuyNeeded)
	shrink := totalBuyNeeded.Mul(b.Price)
	for i, e := range buys {
		if i == best || e.Price.GreaterThan(remaining) {
			continue
		}
		lead := bDeficit.Sub(belowShare(e, allocations, available, totalBuyNeeded))
		run = decimal.Min(run, unitsUntilOvertaken(lead, shrink, i < best))
	}
	return run.IntPart()
}
