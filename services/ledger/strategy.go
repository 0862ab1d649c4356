package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	StrategyGreedy = "greedy"
	StrategyExact  = "exact"
)

// Strategy picks which candidate earnings cover amount exactly. Candidates
// arrive oldest-cleared first; implementations never split an earning.
type Strategy interface {
	Name() string
	Select(candidates []*Earning, amount decimal.Decimal) ([]*Earning, bool)
}

// Greedy walks candidates in order and takes every earning that still fits,
// skipping any that would overshoot. It can miss exact subsets that exist.
type Greedy struct{}

func (Greedy) Name() string { return StrategyGreedy }

func (Greedy) Select(candidates []*Earning, amount decimal.Decimal) ([]*Earning, bool) {
	remaining := amount
	selected := make([]*Earning, 0, len(candidates))
	for _, e := range candidates {
		if remaining.IsZero() {
			break
		}
		if !e.Amount.IsPositive() || e.Amount.GreaterThan(remaining) {
			continue
		}
		selected = append(selected, e)
		remaining = remaining.Sub(e.Amount)
	}
	if !remaining.IsZero() {
		return nil, false
	}
	return selected, true
}

// maxSubsetStates bounds the subset-sum table.
const maxSubsetStates = 1 << 20

// ExactSubset falls back to a subset-sum search over the first Limit
// candidates when the greedy pass cannot match the amount exactly.
type ExactSubset struct {
	Limit int
}

func (ExactSubset) Name() string { return StrategyExact }

func (x ExactSubset) Select(candidates []*Earning, amount decimal.Decimal) ([]*Earning, bool) {
	if selected, ok := (Greedy{}).Select(candidates, amount); ok {
		return selected, true
	}

	target, ok := minorUnits(amount)
	if !ok || target <= 0 {
		return nil, false
	}

	pool := candidates
	if x.Limit > 0 && len(pool) > x.Limit {
		pool = pool[:x.Limit]
	}

	values := make([]int64, len(pool))
	// reach[sum] is the index of the candidate that first completed sum.
	reach := map[int64]int{0: -1}
	for i, e := range pool {
		v, ok := minorUnits(e.Amount)
		if !ok || v <= 0 || v > target {
			continue
		}
		values[i] = v

		sums := make([]int64, 0, len(reach))
		for sum := range reach {
			sums = append(sums, sum)
		}
		for _, sum := range sums {
			next := sum + v
			if next > target {
				continue
			}
			if _, seen := reach[next]; !seen {
				reach[next] = i
			}
		}

		if _, done := reach[target]; done {
			break
		}
		if len(reach) > maxSubsetStates {
			return nil, false
		}
	}

	if _, ok := reach[target]; !ok {
		return nil, false
	}

	picked := make([]int, 0)
	for sum := target; sum > 0; {
		i := reach[sum]
		picked = append(picked, i)
		sum -= values[i]
	}
	sort.Ints(picked)

	selected := make([]*Earning, 0, len(picked))
	for _, i := range picked {
		selected = append(selected, pool[i])
	}
	return selected, true
}

// minorUnits converts a two-decimal amount to cents.
func minorUnits(d decimal.Decimal) (int64, bool) {
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, false
	}
	return shifted.IntPart(), true
}
