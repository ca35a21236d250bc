// Package allocation turns target weights and cash into whole units to buy or sell.
package allocation

import (
	"sort"

	"github.com/shopspring/decimal"
)

const fractionPrecision = 16

// FreshEntry is one instrument to receive part of a new investment
type FreshEntry struct {
	ID               int64           `json:"id"`
	Price            decimal.Decimal `json:"price"`
	TargetPercentage decimal.Decimal `json:"target_percentage"`
}

// AllocateFreshInvestment splits budget into whole units per entry using largest-remainder
// apportionment, then spends any leftover on the entries furthest below their target share.
// Every entry id is present in the result. Entries without a positive price or target get
// zero units, and their target is left out of the total the others are measured against.
// The units bought never cost more than budget.
func AllocateFreshInvestment(entries []FreshEntry, budget decimal.Decimal) map[int64]int64 {
	units := make(map[int64]int64, len(entries))
	eligible := make([]FreshEntry, 0, len(entries))
	totalPercentage := decimal.Zero
	for _, e := range entries {
		units[e.ID] = 0
		if e.Price.IsPositive() && e.TargetPercentage.IsPositive() {
			eligible = append(eligible, e)
			totalPercentage = totalPercentage.Add(e.TargetPercentage)
		}
	}
	if len(eligible) == 0 || !budget.IsPositive() {
		return units
	}

	remaining := budget
	remainders := make([]decimal.Decimal, len(eligible))
	for i, e := range eligible {
		base, fraction := wholeUnits(budget.Mul(e.TargetPercentage), totalPercentage.Mul(e.Price))
		units[e.ID] = base.IntPart()
		remaining = remaining.Sub(base.Mul(e.Price))
		remainders[i] = fraction
	}

	order := make([]int, len(eligible))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for _, i := range order {
		e := eligible[i]
		if e.Price.LessThanOrEqual(remaining) {
			units[e.ID]++
			remaining = remaining.Sub(e.Price)
		}
	}

	spent := budget.Sub(remaining)
	for remaining.IsPositive() {
		best := mostUnderweight(eligible, units, totalPercentage, spent, remaining)
		if best < 0 {
			break
		}
		e := eligible[best]
		run := underweightRun(eligible, units, totalPercentage, spent, remaining, best)
		units[e.ID] += run
		cost := e.Price.Mul(decimal.NewFromInt(run))
		remaining = remaining.Sub(cost)
		spent = spent.Add(cost)
	}
	return units
}

// wholeUnits returns floor(num / den) and the fractional part left over, for positive operands.
// The fraction is rounded and only good for ordering.
func wholeUnits(num, den decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	q, r := num.QuoRem(den, 0)
	return q, r.DivRound(den, fractionPrecision)
}

// underweight is an entry's target share minus its share of spent, scaled by
// totalPercentage × spent so it stays exact.
func underweight(e FreshEntry, units map[int64]int64, totalPercentage, spent decimal.Decimal) decimal.Decimal {
	held := e.Price.Mul(decimal.NewFromInt(units[e.ID]))
	return e.TargetPercentage.Mul(spent).Sub(totalPercentage.Mul(held))
}

// mostUnderweight returns the index of the affordable entry whose share of spent is furthest
// below its target share, or -1 when nothing is affordable. The first entry wins ties.
func mostUnderweight(
	eligible []FreshEntry,
	units map[int64]int64,
	totalPercentage, spent, remaining decimal.Decimal,
) int {
	best := -1
	var bestDeficit decimal.Decimal
	for i, e := range eligible {
		if e.Price.GreaterThan(remaining) {
			continue
		}
		deficit := underweight(e, units, totalPercentage, spent)
		if best < 0 || deficit.GreaterThan(bestDeficit) {
			best, bestDeficit = i, deficit
		}
	}
	return best
}

// underweightRun counts how many units in a row mostUnderweight would pick eligible[best]
// for. Each unit bought for best adds its price to spent, which lowers best's lead over a
// rival by price × (totalPercentage - best target + rival target). The run stops when a
// rival catches up or the cash runs out.
func underweightRun(
	eligible []FreshEntry,
	units map[int64]int64,
	totalPercentage, spent, remaining decimal.Decimal,
	best int,
) int64 {
	b := eligible[best]
	run, _ := remaining.QuoRem(b.Price, 0)
	bDeficit := underweight(b, units, totalPercentage, spent)
	for i, e := range eligible {
		if i == best || e.Price.GreaterThan(remaining) {
			continue
		}
		lead := bDeficit.Sub(underweight(e, units, totalPercentage, spent))
		shrink := b.Price.Mul(totalPercentage.Sub(b.TargetPercentage).Add(e.TargetPercentage))
		run = decimal.Min(run, unitsUntilOvertaken(lead, shrink, i < best))
	}
	return run.IntPart()
}

// unitsUntilOvertaken returns how many units the leader keeps winning when its lead shrinks
// by shrink per unit. A rival that wins ties takes over as soon as the lead reaches zero.
func unitsUntilOvertaken(lead, shrink decimal.Decimal, rivalWinsTies bool) decimal.Decimal {
	q, r := lead.QuoRem(shrink, 0)
	if rivalWinsTies && r.IsZero() {
		return q
	}
	return q.Add(decimal.NewFromInt(1))
}
