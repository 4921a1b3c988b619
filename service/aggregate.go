package service

import (
	"github.com/Go-routine-4595/equipment-dash/model"
)

// TypeOptions returns "All" followed by the distinct equipment types in the
// order they first appear in the list.
func TypeOptions(list []model.EquipmentRecord) []string {
	var (
		seen    map[string]struct{}
		options []string
	)

	seen = make(map[string]struct{}, len(list))
	options = append(options, model.FilterAll)
	for _, r := range list {
		if _, ok := seen[r.Type]; ok {
			continue
		}
		seen[r.Type] = struct{}{}
		options = append(options, r.Type)
	}
	return options
}

// FilterRecords keeps the records whose type equals filter, in input order.
// "All" returns the list itself. A filter that matches no type yields an empty
// subset.
func FilterRecords(list []model.EquipmentRecord, filter string) []model.EquipmentRecord {
	if filter == model.FilterAll {
		return list
	}

	subset := make([]model.EquipmentRecord, 0, len(list))
	for _, r := range list {
		if r.Type == filter {
			subset = append(subset, r)
		}
	}
	return subset
}

// Aggregate counts the subset and averages its measurements. Sums accumulate
// left to right; an empty subset averages to 0.
func Aggregate(subset []model.EquipmentRecord) model.Stats {
	var (
		stats                  model.Stats
		flowrate, pressure, tp float64
	)

	stats.Total = len(subset)
	if stats.Total == 0 {
		return stats
	}

	for _, r := range subset {
		flowrate += r.Flowrate.Float()
		pressure += r.Pressure.Float()
		tp += r.Temperature.Float()
	}

	n := float64(stats.Total)
	stats.AvgFlowrate = flowrate / n
	stats.AvgPressure = pressure / n
	stats.AvgTemperature = tp / n
	return stats
}

// BuildChart turns the summary distribution into a chart series, keeping the
// backend's ordering.
func BuildChart(summary *model.SummaryPayload) model.ChartSeries {
	series := model.ChartSeries{
		Labels: []string{},
		Counts: []int{},
	}
	if summary == nil {
		return series
	}

	for _, tc := range summary.TypeDistribution {
		series.Labels = append(series.Labels, tc.Type)
		series.Counts = append(series.Counts, tc.Count)
	}
	return series
}

func serverStats(summary *model.SummaryPayload) model.Stats {
	if summary == nil {
		return model.Stats{}
	}
	return model.Stats{
		Total:          summary.Total,
		AvgFlowrate:    summary.AvgFlowrate,
		AvgPressure:    summary.AvgPressure,
		AvgTemperature: summary.AvgTemperature,
	}
}

// Derive builds the view model from a snapshot and a filter value. It has no
// side effects and is re-run after every snapshot or filter change.
func Derive(snap model.Snapshot, filter string) model.View {
	var (
		rows    []model.EquipmentRecord
		history []model.UploadHistoryEntry
	)

	rows = FilterRecords(snap.Equipment, filter)
	if rows == nil {
		rows = []model.EquipmentRecord{}
	}
	history = snap.History
	if history == nil {
		history = []model.UploadHistoryEntry{}
	}

	return model.View{
		CycleID:     snap.CycleID,
		Filter:      filter,
		TypeOptions: TypeOptions(snap.Equipment),
		Stats:       Aggregate(rows),
		ServerStats: serverStats(snap.Summary),
		Rows:        rows,
		Chart:       BuildChart(snap.Summary),
		History:     history,
	}
}

// syncEvent condenses a derived view into the event sent to publishers.
func syncEvent(v model.View, trigger string, snap model.Snapshot) model.SyncEvent {
	ev := model.SyncEvent{
		CycleID:        snap.CycleID,
		Trigger:        trigger,
		Timestamp:      snap.FetchedAt,
		Total:          v.Stats.Total,
		AvgFlowrate:    v.Stats.AvgFlowrate,
		AvgPressure:    v.Stats.AvgPressure,
		AvgTemperature: v.Stats.AvgTemperature,
		Labels:         v.Chart.Labels,
		Counts:         v.Chart.Counts,
	}
	if len(snap.History) > 0 {
		latest := snap.History[0]
		ev.LatestUpload = &latest
	}
	return ev
}
