package usecase

import "github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"

// Summarize computes the statistics snapshot of a RowSet.
//
// Means are plain float64 sum/count with no rounding. An empty RowSet fails
// with entity.ErrEmptyInput; there is no such thing as the mean of nothing.
func Summarize(rows entity.RowSet) (entity.Summary, error) {
	if len(rows) == 0 {
		return entity.Summary{}, entity.ErrEmptyInput
	}

	var flowrate, pressure, temperature float64
	dist := make(map[string]int)

	for _, row := range rows {
		flowrate += row.Flowrate
		pressure += row.Pressure
		temperature += row.Temperature
		dist[row.Category]++
	}

	n := float64(len(rows))

	return entity.Summary{
		RowCount:           len(rows),
		MeanFlowrate:       flowrate / n,
		MeanPressure:       pressure / n,
		MeanTemperature:    temperature / n,
		DistributionByType: dist,
	}, nil
}
