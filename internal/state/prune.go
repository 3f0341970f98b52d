// internal/state/prune.go
package state

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// PruneHistory deletes history snapshots created before the cutoff, in
// batches of batchSize rows, and returns the number of rows removed.
// Current state rows are never touched.
func PruneHistory(ctx context.Context, db *gorm.DB, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var total int64
	for {
		var ids []int64
		err := db.WithContext(ctx).
			Model(&StudentModuleHistory{}).
			Where("created_at < ?", cutoff).
			Order("id").
			Limit(batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, mapErr(err)
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := db.WithContext(ctx).Delete(&StudentModuleHistory{}, ids)
		if res.Error != nil {
			return total, mapErr(res.Error)
		}
		total += res.RowsAffected

		if len(ids) < batchSize {
			return total, nil
		}
	}
}
