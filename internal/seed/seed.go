package seed

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/entitlements/internal/catalog"
	catalogrepo "github.com/smallbiznis/entitlements/internal/catalog/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SyncResult counts what SyncPlans changed.
type SyncResult struct {
	Upserted int
	Retired  int64
}

// SyncPlans mirrors every catalog plan into the plan table and retires rows
// for plans the catalog no longer defines. Rows are never deleted: snapshot
// rows keep pointing at plan ids that must stay describable.
func SyncPlans(ctx context.Context, db *gorm.DB, repo catalogrepo.Repository, cat *catalog.Catalog, now time.Time) (SyncResult, error) {
	if db == nil {
		return SyncResult{}, errors.New("seed database handle is required")
	}
	if cat == nil {
		return SyncResult{}, errors.New("seed catalog is required")
	}

	var result SyncResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plans := cat.Plans()
		keep := make([]string, 0, len(plans))
		for _, p := range plans {
			rec := catalogrepo.RecordFromPlan(p, cat.Version(), now)
			if err := repo.Upsert(ctx, tx, &rec); err != nil {
				return err
			}
			keep = append(keep, string(p.ID))
			result.Upserted++
		}

		retired, err := repo.RetireMissing(ctx, tx, keep, now)
		if err != nil {
			return err
		}
		result.Retired = retired
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}

// EnsurePlans is the startup entry point for SyncPlans.
func EnsurePlans(ctx context.Context, db *gorm.DB, cat *catalog.Catalog, log *zap.Logger) error {
	res, err := SyncPlans(ctx, db, catalogrepo.Provide(), cat, time.Now().UTC())
	if err != nil {
		return err
	}
	log.Named("seed").Info("catalog plans synced",
		zap.String("catalog_version", cat.Version()),
		zap.Int("upserted", res.Upserted),
		zap.Int64("retired", res.Retired),
	)
	return nil
}
