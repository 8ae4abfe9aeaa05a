package consolidation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func record(owner, typ, category, allocated, spent string) Record {
	return Record{
		ID:         uuid.New(),
		Kind:       KindBudget,
		OwnerID:    owner,
		Type:       typ,
		Category:   category,
		FiscalYear: 2026,
		Currency:   "INR",
		Allocated:  dec(allocated),
		Spent:      dec(spent),
		Status:     "active",
	}
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		name      string
		allocated string
		spent     string
		expected  string
	}{
		{name: "nothing allocated", allocated: "0", spent: "500", expected: "0"},
		{name: "over-utilized is not clamped", allocated: "1000", spent: "1200", expected: "120"},
		{name: "partial", allocated: "1000", spent: "750", expected: "75"},
		{name: "rounded to two places", allocated: "3", spent: "1", expected: "33.33"},
		{name: "nothing spent", allocated: "1000", spent: "0", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Utilization(dec(tt.allocated), dec(tt.spent))
			assert.True(t, dec(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestAggregateBy(t *testing.T) {
	records := []Record{
		record("alice", "opex", "travel", "1000", "900"),
		record("bob", "capex", "hardware", "5000", "1000"),
		record("alice", "opex", "software", "1000", "300"),
		record("carol", "capex", "hardware", "0", "250"),
	}

	aggs := AggregateBy(records, func(r Record) string { return r.Type })
	require.Len(t, aggs, 2)

	assert.Equal(t, "capex", aggs[0].Key)
	assert.Equal(t, 2, aggs[0].Count)
	assert.True(t, dec("5000").Equal(aggs[0].Allocated))
	assert.True(t, dec("1250").Equal(aggs[0].Spent))
	assert.True(t, dec("25").Equal(aggs[0].Utilization))

	assert.Equal(t, "opex", aggs[1].Key)
	assert.Equal(t, 2, aggs[1].Count)
	assert.True(t, dec("2000").Equal(aggs[1].Allocated))
	assert.True(t, dec("1200").Equal(aggs[1].Spent))
	assert.True(t, dec("60").Equal(aggs[1].Utilization))
}

func TestAggregateBy_IsRepeatable(t *testing.T) {
	records := []Record{
		record("alice", "opex", "travel", "1000", "900"),
		record("bob", "capex", "hardware", "5000", "1000"),
		record("carol", "grants", "research", "200", "10"),
	}
	key := func(r Record) string { return r.OwnerID }

	assert.Equal(t, AggregateBy(records, key), AggregateBy(records, key))
}

func TestAggregateBy_Empty(t *testing.T) {
	aggs := AggregateBy(nil, func(r Record) string { return r.Type })
	assert.NotNil(t, aggs)
	assert.Empty(t, aggs)
}

func TestTopN_StableDescending(t *testing.T) {
	a := record("a", "t", "c", "100", "0")
	b := record("b", "t", "c", "300", "0")
	c := record("c", "t", "c", "100", "0")
	e := record("e", "t", "c", "300", "0")
	f := record("f", "t", "c", "50", "0")

	top := TopN([]Record{a, b, c, e, f}, 3, func(r Record) decimal.Decimal { return r.Allocated })
	require.Len(t, top, 3)

	// ties keep input order: b before e, a before c
	assert.Equal(t, []string{"b", "e", "a"}, []string{top[0].OwnerID, top[1].OwnerID, top[2].OwnerID})
}

func TestTopN_Bounds(t *testing.T) {
	items := []Record{record("a", "t", "c", "1", "0"), record("b", "t", "c", "2", "0")}
	rank := func(r Record) decimal.Decimal { return r.Allocated }

	assert.Empty(t, TopN(items, 0, rank))
	assert.Len(t, TopN(items, 10, rank), 2)
	assert.Equal(t, "a", items[0].OwnerID, "input must not be reordered")
}

func TestGenerateAlerts(t *testing.T) {
	thresholds := DefaultThresholds()
	records := []Record{
		record("under", "t", "c", "1000", "749.90"),
		record("warning-edge", "t", "c", "1000", "750"),
		record("warning", "t", "c", "1000", "899.90"),
		record("critical-edge", "t", "c", "1000", "900"),
		record("over", "t", "c", "1000", "1200"),
		record("unallocated", "t", "c", "0", "500"),
	}

	alerts := GenerateAlerts(records, thresholds)
	require.Len(t, alerts, 4)

	got := make(map[string]Severity)
	for _, a := range alerts {
		got[a.OwnerID] = a.Severity
	}
	assert.Equal(t, map[string]Severity{
		"warning-edge":  SeverityWarning,
		"warning":       SeverityWarning,
		"critical-edge": SeverityCritical,
		"over":          SeverityCritical,
	}, got)

	assert.True(t, dec("120").Equal(alerts[3].Utilization))
	assert.True(t, thresholds.Critical.Equal(alerts[3].Threshold))
}

func TestGenerateAlerts_RoundingDoesNotPromote(t *testing.T) {
	// 89995 of 100000 is 89.995%, displayed as 90.00
	records := []Record{record("near", "t", "c", "100000.00", "89995.00")}

	alerts := GenerateAlerts(records, DefaultThresholds())
	require.Len(t, alerts, 1)

	assert.Equal(t, SeverityWarning, alerts[0].Severity)
	assert.True(t, dec("75").Equal(alerts[0].Threshold))
	assert.True(t, dec("90").Equal(alerts[0].Utilization))
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Warning: dec("90"), Critical: dec("90")}.Validate())
	assert.Error(t, Thresholds{Warning: dec("95"), Critical: dec("90")}.Validate())
	assert.Error(t, Thresholds{Warning: dec("-1"), Critical: dec("90")}.Validate())
}

func TestDimension_KeyFunc(t *testing.T) {
	r := record("alice", "opex", "travel", "1", "1")

	for dim, want := range map[Dimension]string{
		DimensionType:     "opex",
		DimensionCategory: "travel",
		DimensionOwner:    "alice",
		DimensionStatus:   "active",
	} {
		key, err := dim.KeyFunc()
		require.NoError(t, err)
		assert.Equal(t, want, key(r))
	}

	_, err := Dimension("region").KeyFunc()
	assert.ErrorIs(t, err, ErrInvalidDimension)
}
