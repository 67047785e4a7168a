package entity

import "time"

// Dataset is one ingested upload. It is immutable once created; it only goes
// away through retention or an explicit delete.
type Dataset struct {
	ID        int64
	OwnerID   string
	Filename  string
	CreatedAt time.Time
	Summary   Summary
}

// EquipmentRow is one parsed line of an upload, owned by its Dataset.
type EquipmentRow struct {
	ID          int64
	DatasetID   int64
	Name        string
	Category    string
	Flowrate    float64
	Pressure    float64
	Temperature float64
}

// RowSet is the ordered output of parsing an upload.
type RowSet []EquipmentRow

// Summary is the statistics snapshot stored with a Dataset.
type Summary struct {
	RowCount           int            `json:"total_equipment_count"`
	MeanFlowrate       float64        `json:"average_flowrate"`
	MeanPressure       float64        `json:"average_pressure"`
	MeanTemperature    float64        `json:"average_temperature"`
	DistributionByType map[string]int `json:"distribution_by_type"`
}
