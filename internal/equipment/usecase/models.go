package usecase

import (
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

type IngestResult struct {
	DatasetID int64
	Filename  string
	CreatedAt time.Time
	Summary   entity.Summary
	Evicted   []int64
}

type ReportResult struct {
	DatasetID int64
	Filename  string
	Content   []byte
}
