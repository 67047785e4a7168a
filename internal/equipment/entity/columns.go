package entity

// Required upload column headers, in canonical order.
const (
	ColumnName        = "Equipment Name"
	ColumnType        = "Type"
	ColumnFlowrate    = "Flowrate"
	ColumnPressure    = "Pressure"
	ColumnTemperature = "Temperature"
)

// RequiredColumns lists every column an upload must carry.
func RequiredColumns() []string {
	return []string{ColumnName, ColumnType, ColumnFlowrate, ColumnPressure, ColumnTemperature}
}

// DefaultRetentionLimit is the number of datasets kept per owner.
const DefaultRetentionLimit = 5
