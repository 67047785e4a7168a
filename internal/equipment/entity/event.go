package entity

import "time"

type EventKind string

const (
	EventDatasetIngested EventKind = "DATASET_INGESTED"
	EventDatasetEvicted  EventKind = "DATASET_EVICTED"
	EventDatasetDeleted  EventKind = "DATASET_DELETED"
)

// DatasetEvent describes a committed change to an owner's history.
type DatasetEvent struct {
	EventID    string
	Kind       EventKind
	OwnerID    string
	DatasetID  int64
	Filename   string
	OccurredAt time.Time
}
