package usecase

import (
	"context"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
)

// Retention keeps at most Limit datasets per owner.
//
// Enforce must run inside the same Tx that created the newest dataset. The
// datasets it removes are gone for good, together with their rows; there is no
// soft delete and no undo.
type Retention struct {
	Limit int
}

// EffectiveLimit returns Limit, or the default when Limit is not positive.
func (r Retention) EffectiveLimit() int {
	if r.Limit < 1 {
		return entity.DefaultRetentionLimit
	}
	return r.Limit
}

// Enforce deletes every dataset of owner past the Limit most recent ones and
// returns the evicted ids, newest first.
func (r Retention) Enforce(ctx context.Context, tx Tx, owner string) ([]int64, error) {
	ids, err := tx.ListRecentIDs(ctx, owner)
	if err != nil {
		return nil, err
	}

	limit := r.EffectiveLimit()
	if len(ids) <= limit {
		return nil, nil
	}

	evicted := ids[limit:]
	for _, id := range evicted {
		if err := tx.Delete(ctx, id); err != nil {
			return nil, err
		}
	}

	return evicted, nil
}
