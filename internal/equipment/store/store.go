package store

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

var errOwnerMismatch = errors.New("dataset owner does not match transaction owner")

// sortNewestFirst orders by CreatedAt descending, then id descending.
func sortNewestFirst(datasets []entity.Dataset) {
	slices.SortFunc(datasets, func(a, b entity.Dataset) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// nextCreatedAt keeps creation timestamps strictly increasing per owner.
func nextCreatedAt(now, latest time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(latest) {
		return latest.Add(time.Microsecond)
	}
	return now
}

func cloneSummary(s entity.Summary) entity.Summary {
	s.DistributionByType = maps.Clone(s.DistributionByType)
	return s
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
