package inbound

import (
	"net/http"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

// Dataset ids are snowflake numbers and travel as strings: they do not fit a
// JavaScript number.

type Dataset struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   entity.Summary `json:"summary"`
}

func toHTTPDataset(d entity.Dataset) Dataset {
	return Dataset{
		ID:        formatID(d.ID),
		Filename:  d.Filename,
		Timestamp: d.CreatedAt,
		Summary:   d.Summary,
	}
}

type IngestResponse struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   entity.Summary `json:"summary"`
	Evicted   []string       `json:"evicted"`
}

func (IngestResponse) StatusCode() int {
	return http.StatusCreated
}

func (IngestResponse) Message() string {
	return "dataset ingested"
}

type HistoryResponse []Dataset

func (r HistoryResponse) Meta() map[string]any {
	return map[string]any{"count": len(r)}
}

type Row struct {
	Name        string  `json:"equipment_name"`
	Type        string  `json:"type"`
	Flowrate    float64 `json:"flowrate"`
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
}

type RowsResponse struct {
	DatasetID string `json:"dataset_id"`
	Items     []Row  `json:"items"`
}

type DeleteResponse struct{}

func (DeleteResponse) StatusCode() int {
	return http.StatusNoContent
}
