package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/usecase"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgerror"
)

// InMemoryStore keeps datasets in process memory. It is meant for tests and
// single-instance demos; everything is lost on restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	datasets map[int64]*datasetRecord
	owners   map[string][]int64 // owner -> dataset ids, any order
	nextRow  int64

	ownerLocks keyedMutex
}

type datasetRecord struct {
	dataset entity.Dataset
	rows    []entity.EquipmentRow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		datasets: make(map[int64]*datasetRecord),
		owners:   make(map[string][]int64),
	}
}

func (s *InMemoryStore) InTx(ctx context.Context, owner string, fn func(ctx context.Context, tx usecase.Tx) error) error {
	unlock := s.ownerLocks.Lock(owner)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s, owner: owner, deleted: make(map[int64]struct{})}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

func (s *InMemoryStore) ListRecent(ctx context.Context, owner string, limit int) ([]entity.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	datasets := make([]entity.Dataset, 0, len(s.owners[owner]))
	for _, id := range s.owners[owner] {
		datasets = append(datasets, s.datasets[id].dataset)
	}
	sortNewestFirst(datasets)

	if limit > 0 && len(datasets) > limit {
		datasets = datasets[:limit]
	}

	for i := range datasets {
		datasets[i].Summary = cloneSummary(datasets[i].Summary)
	}

	return datasets, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id int64, owner string) (entity.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.get(id, owner)
	if err != nil {
		return entity.Dataset{}, err
	}

	dataset := rec.dataset
	dataset.Summary = cloneSummary(dataset.Summary)
	return dataset, nil
}

func (s *InMemoryStore) Rows(ctx context.Context, id int64, owner string) ([]entity.EquipmentRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.get(id, owner)
	if err != nil {
		return nil, err
	}

	return slices.Clone(rec.rows), nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id int64, owner string) error {
	return s.InTx(ctx, owner, func(ctx context.Context, tx usecase.Tx) error {
		s.mu.RLock()
		_, err := s.get(id, owner)
		s.mu.RUnlock()
		if err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
}

// get must be called with s.mu held.
func (s *InMemoryStore) get(id int64, owner string) (*datasetRecord, error) {
	rec, ok := s.datasets[id]
	if !ok || rec.dataset.OwnerID != owner {
		return nil, pkgerror.ErrNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range tx.created {
		if _, gone := tx.deleted[rec.dataset.ID]; gone {
			continue
		}
		for i := range rec.rows {
			s.nextRow++
			rec.rows[i].ID = s.nextRow
			rec.rows[i].DatasetID = rec.dataset.ID
		}
		s.datasets[rec.dataset.ID] = rec
		s.owners[tx.owner] = append(s.owners[tx.owner], rec.dataset.ID)
	}

	for id := range tx.deleted {
		rec, ok := s.datasets[id]
		if !ok {
			continue
		}
		delete(s.datasets, id)
		owner := rec.dataset.OwnerID
		s.owners[owner] = slices.DeleteFunc(s.owners[owner], func(v int64) bool { return v == id })
		if len(s.owners[owner]) == 0 {
			delete(s.owners, owner)
		}
	}
}

// memTx stages writes until InTx commits them. Only the owner's lock is held
// while fn runs, so reads here take the store's read lock themselves.
type memTx struct {
	store   *InMemoryStore
	owner   string
	created []*datasetRecord
	deleted map[int64]struct{}
}

func (t *memTx) Create(ctx context.Context, dataset entity.Dataset, rows entity.RowSet) (entity.Dataset, error) {
	if dataset.OwnerID != t.owner {
		return entity.Dataset{}, pkgerror.NewServer(errOwnerMismatch)
	}

	t.store.mu.RLock()
	_, exists := t.store.datasets[dataset.ID]
	latest := t.store.latestCreatedAt(t.owner)
	t.store.mu.RUnlock()

	if exists || t.stagedID(dataset.ID) {
		return entity.Dataset{}, pkgerror.NewBusiness("dataset already exists", pkgerror.CodeConflict)
	}

	for _, rec := range t.created {
		if rec.dataset.CreatedAt.After(latest) {
			latest = rec.dataset.CreatedAt
		}
	}
	dataset.CreatedAt = nextCreatedAt(dataset.CreatedAt, latest)
	dataset.Summary = cloneSummary(dataset.Summary)

	t.created = append(t.created, &datasetRecord{
		dataset: dataset,
		rows:    slices.Clone([]entity.EquipmentRow(rows)),
	})

	return dataset, nil
}

func (t *memTx) ListRecentIDs(ctx context.Context, owner string) ([]int64, error) {
	t.store.mu.RLock()
	datasets := make([]entity.Dataset, 0, len(t.store.owners[owner])+len(t.created))
	for _, id := range t.store.owners[owner] {
		if _, gone := t.deleted[id]; gone {
			continue
		}
		datasets = append(datasets, t.store.datasets[id].dataset)
	}
	t.store.mu.RUnlock()

	for _, rec := range t.created {
		if _, gone := t.deleted[rec.dataset.ID]; gone || rec.dataset.OwnerID != owner {
			continue
		}
		datasets = append(datasets, rec.dataset)
	}

	sortNewestFirst(datasets)

	ids := make([]int64, len(datasets))
	for i, d := range datasets {
		ids[i] = d.ID
	}
	return ids, nil
}

func (t *memTx) Delete(ctx context.Context, id int64) error {
	t.deleted[id] = struct{}{}
	return nil
}

func (t *memTx) stagedID(id int64) bool {
	for _, rec := range t.created {
		if rec.dataset.ID == id {
			return true
		}
	}
	return false
}

// latestCreatedAt must be called with s.mu held.
func (s *InMemoryStore) latestCreatedAt(owner string) time.Time {
	var latest time.Time
	for _, id := range s.owners[owner] {
		if ts := s.datasets[id].dataset.CreatedAt; ts.After(latest) {
			latest = ts
		}
	}
	return latest
}
