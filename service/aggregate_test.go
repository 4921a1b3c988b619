package service

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Go-routine-4595/equipment-dash/model"
)

func TestFilterRecords(t *testing.T) {
	list := pumpsAndValves()

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{name: "all keeps order", filter: model.FilterAll, want: []string{"P-1", "P-2", "V-1"}},
		{name: "pump", filter: "Pump", want: []string{"P-1", "P-2"}},
		{name: "valve", filter: "Valve", want: []string{"V-1"}},
		{name: "unknown type", filter: "Compressor", want: []string{}},
		{name: "case sensitive", filter: "pump", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRecords(list, tt.filter)
			names := []string{}
			for _, r := range got {
				assert.True(t, tt.filter == model.FilterAll || r.Type == tt.filter)
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFilterRecords_IsPure(t *testing.T) {
	list := pumpsAndValves()

	first := FilterRecords(list, "Pump")
	second := FilterRecords(list, "Pump")

	assert.Equal(t, first, second)
	assert.Equal(t, pumpsAndValves(), list, "input must not be modified")
}

func TestTypeOptions(t *testing.T) {
	list := append(pumpsAndValves(), model.EquipmentRecord{Name: "P-3", Type: "Pump"})

	assert.Equal(t, []string{"All", "Pump", "Valve"}, TypeOptions(list))
	assert.Equal(t, []string{"All"}, TypeOptions(nil))
}

func TestAggregate_PumpScenario(t *testing.T) {
	list := []model.EquipmentRecord{
		{Type: "Pump", Flowrate: "10"},
		{Type: "Pump", Flowrate: "20"},
		{Type: "Valve", Flowrate: "5"},
	}

	stats := Aggregate(FilterRecords(list, "Pump"))

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 15.0, stats.AvgFlowrate)
}

func TestAggregate_AllFields(t *testing.T) {
	stats := Aggregate(pumpsAndValves())

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 35.0/3, stats.AvgFlowrate)
	assert.Equal(t, 7.0/3, stats.AvgPressure)
	assert.Equal(t, 50.0, stats.AvgTemperature)
}

func TestAggregate_EmptySubsetIsZero(t *testing.T) {
	for _, subset := range [][]model.EquipmentRecord{nil, {}} {
		stats := Aggregate(subset)
		assert.Equal(t, model.Stats{}, stats)
		assert.False(t, math.IsNaN(stats.AvgFlowrate))
		assert.False(t, math.IsNaN(stats.AvgPressure))
		assert.False(t, math.IsNaN(stats.AvgTemperature))
	}
}

func TestAggregate_RepeatedCallsAreBitIdentical(t *testing.T) {
	list := []model.EquipmentRecord{
		{Type: "Pump", Flowrate: "0.1", Pressure: "1e-9", Temperature: "273.15"},
		{Type: "Pump", Flowrate: "0.2", Pressure: "12345.6789", Temperature: "-40.5"},
		{Type: "Pump", Flowrate: "0.3", Pressure: "0.5", Temperature: "99.99"},
	}

	first := Aggregate(list)
	for i := 0; i < 100; i++ {
		again := Aggregate(list)
		require.Equal(t, math.Float64bits(first.AvgFlowrate), math.Float64bits(again.AvgFlowrate))
		require.Equal(t, math.Float64bits(first.AvgPressure), math.Float64bits(again.AvgPressure))
		require.Equal(t, math.Float64bits(first.AvgTemperature), math.Float64bits(again.AvgTemperature))
	}
	// left to right: (0.1 + 0.2) + 0.3
	a, b, c := 0.1, 0.2, 0.3
	assert.Equal(t, ((a+b)+c)/3, first.AvgFlowrate)
}

func TestAggregate_UnparseableCountsAsZero(t *testing.T) {
	stats := Aggregate([]model.EquipmentRecord{
		{Flowrate: "10"},
		{Flowrate: "broken"},
	})

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 5.0, stats.AvgFlowrate)
}

func TestAggregate_NonFiniteCountsAsZero(t *testing.T) {
	snap := model.Snapshot{Equipment: []model.EquipmentRecord{
		{Type: "Pump", Flowrate: "10", Pressure: "Inf", Temperature: "-Infinity"},
		{Type: "Pump", Flowrate: "NaN", Pressure: "4", Temperature: "20"},
	}}

	v := Derive(snap, model.FilterAll)

	assert.Equal(t, 5.0, v.Stats.AvgFlowrate)
	assert.Equal(t, 2.0, v.Stats.AvgPressure)
	assert.Equal(t, 10.0, v.Stats.AvgTemperature)
	_, err := json.Marshal(v)
	require.NoError(t, err)
}

func TestBuildChart(t *testing.T) {
	summary := &model.SummaryPayload{TypeDistribution: []model.TypeCount{
		{Type: "Pump", Count: 2},
		{Type: "Valve", Count: 1},
	}}

	series := BuildChart(summary)

	assert.Equal(t, []string{"Pump", "Valve"}, series.Labels)
	assert.Equal(t, []int{2, 1}, series.Counts)
}

func TestBuildChart_KeepsBackendOrder(t *testing.T) {
	summary := &model.SummaryPayload{TypeDistribution: []model.TypeCount{
		{Type: "Valve", Count: 1},
		{Type: "Compressor", Count: 9},
		{Type: "Pump", Count: 2},
	}}

	series := BuildChart(summary)

	assert.Equal(t, []string{"Valve", "Compressor", "Pump"}, series.Labels)
	assert.Equal(t, []int{1, 9, 2}, series.Counts)
}

func TestBuildChart_NilSummary(t *testing.T) {
	series := BuildChart(nil)

	assert.NotNil(t, series.Labels)
	assert.NotNil(t, series.Counts)
	assert.Empty(t, series.Labels)
	assert.Empty(t, series.Counts)
}

func TestDerive(t *testing.T) {
	snap := model.Snapshot{
		CycleID:   "c-1",
		Equipment: pumpsAndValves(),
		Summary: &model.SummaryPayload{
			Total:       3,
			AvgFlowrate: 11.67,
			TypeDistribution: []model.TypeCount{
				{Type: "Pump", Count: 2},
				{Type: "Valve", Count: 1},
			},
		},
	}

	v := Derive(snap, "Pump")

	assert.Equal(t, "c-1", v.CycleID)
	assert.Equal(t, "Pump", v.Filter)
	assert.Equal(t, []string{"All", "Pump", "Valve"}, v.TypeOptions)
	assert.Equal(t, 2, v.Stats.Total)
	assert.Equal(t, 15.0, v.Stats.AvgFlowrate)
	assert.Equal(t, 3, v.ServerStats.Total)
	assert.Equal(t, 11.67, v.ServerStats.AvgFlowrate)
	assert.Len(t, v.Rows, 2)
	assert.Equal(t, []string{"Pump", "Valve"}, v.Chart.Labels)
	assert.NotNil(t, v.History)
}

func TestDerive_StaleFilterShowsEmptySubset(t *testing.T) {
	snap := model.Snapshot{Equipment: records(3, "Pump")}

	v := Derive(snap, "Valve")

	assert.Equal(t, "Valve", v.Filter)
	assert.NotNil(t, v.Rows)
	assert.Empty(t, v.Rows)
	assert.Equal(t, model.Stats{}, v.Stats)
	assert.Equal(t, []string{"All", "Pump"}, v.TypeOptions)
}
