package consolidation

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/pkg/money"
)

// Utilization is spent as a percentage of allocated, rounded to 2 places.
// Nothing allocated yields 0. Overspend is reported as is (1200 of 1000 is 120).
func Utilization(allocated, spent decimal.Decimal) decimal.Decimal {
	if !allocated.IsPositive() {
		return decimal.Zero
	}
	return money.Percent(spent, allocated)
}

// AggregateBy groups records by key and totals each group. Groups are ordered by key.
func AggregateBy(records []Record, key func(Record) string) []Aggregate {
	index := make(map[string]int)
	aggs := make([]Aggregate, 0)

	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(aggs)
			index[k] = i
			aggs = append(aggs, Aggregate{Key: k, Allocated: decimal.Zero, Spent: decimal.Zero})
		}
		aggs[i].Count++
		aggs[i].Allocated = aggs[i].Allocated.Add(r.Allocated)
		aggs[i].Spent = aggs[i].Spent.Add(r.Spent)
	}

	for i := range aggs {
		aggs[i].Utilization = Utilization(aggs[i].Allocated, aggs[i].Spent)
	}
	sortByKey(aggs)
	return aggs
}

// TopN returns the n items ranking highest, in descending rank. Equal ranks
// keep their input order.
func TopN[T any](items []T, n int, rank func(T) decimal.Decimal) []T {
	if n <= 0 {
		return []T{}
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return rank(b).Cmp(rank(a))
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// GenerateAlerts grades every record against the thresholds: critical at or
// above Critical, warning at or above Warning, nothing below.
func GenerateAlerts(records []Record, t Thresholds) []Alert {
	alerts := make([]Alert, 0)
	for _, r := range records {
		var (
			severity  Severity
			threshold decimal.Decimal
		)
		switch {
		case reaches(r, t.Critical):
			severity, threshold = SeverityCritical, t.Critical
		case reaches(r, t.Warning):
			severity, threshold = SeverityWarning, t.Warning
		default:
			continue
		}

		alerts = append(alerts, Alert{
			RecordID:    r.ID,
			OwnerID:     r.OwnerID,
			OwnerName:   r.OwnerName,
			Category:    r.Category,
			Severity:    severity,
			Utilization: r.Utilization(),
			Threshold:   threshold,
		})
	}
	return alerts
}

// reaches compares the exact ratio, spent*100 >= percent*allocated, so a
// record just under a threshold is not promoted by the display rounding
func reaches(r Record, percent decimal.Decimal) bool {
	if !r.Allocated.IsPositive() {
		return false
	}
	return r.Spent.Mul(decimal.NewFromInt(100)).GreaterThanOrEqual(percent.Mul(r.Allocated))
}
