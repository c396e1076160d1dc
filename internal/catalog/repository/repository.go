// Package repository persists the plan history table. Each catalog plan is
// mirrored into a row that outlives the plan's removal from the catalog, so
// snapshot rows never point at a plan id nobody can describe.
package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/entitlements/internal/catalog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PlanRecord struct {
	ID              string                               `gorm:"primaryKey;type:varchar(64)"`
	Name            string                               `gorm:"type:text;not null"`
	PriceCents      int64                                `gorm:"not null;default:0"`
	BillingInterval string                               `gorm:"type:varchar(16);not null"`
	Features        datatypes.JSONSlice[string]          `gorm:"not null"`
	Limits          datatypes.JSONType[map[string]int64] `gorm:"not null"`
	CatalogVersion  string                               `gorm:"type:varchar(32);not null"`
	RetiredAt       *time.Time
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PlanRecord) TableName() string { return "plan" }

// RecordFromPlan converts a catalog plan into its persisted form.
func RecordFromPlan(p catalog.Plan, catalogVersion string, now time.Time) PlanRecord {
	features := make([]string, 0, len(p.Features))
	for _, f := range p.Features {
		features = append(features, string(f))
	}
	limits := make(map[string]int64, len(p.Limits))
	for k, v := range p.Limits {
		limits[string(k)] = v
	}
	return PlanRecord{
		ID:              string(p.ID),
		Name:            p.Name,
		PriceCents:      p.PriceCents,
		BillingInterval: string(p.Interval),
		Features:        datatypes.NewJSONSlice(features),
		Limits:          datatypes.NewJSONType(limits),
		CatalogVersion:  catalogVersion,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, rec *PlanRecord) error
	RetireMissing(ctx context.Context, db *gorm.DB, keep []string, now time.Time) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, id string) (*PlanRecord, error)
	List(ctx context.Context, db *gorm.DB) ([]PlanRecord, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

// Upsert refreshes the row to the current definition and clears retirement.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rec *PlanRecord) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"price_cents",
			"billing_interval",
			"features",
			"limits",
			"catalog_version",
			"retired_at",
			"updated_at",
		}),
	}).Create(rec).Error
}

// RetireMissing stamps retired_at on every live plan whose id is not in keep.
func (r *repo) RetireMissing(ctx context.Context, db *gorm.DB, keep []string, now time.Time) (int64, error) {
	q := db.WithContext(ctx).Model(&PlanRecord{}).Where("retired_at IS NULL")
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	res := q.Updates(map[string]any{"retired_at": now, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*PlanRecord, error) {
	var rec PlanRecord
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]PlanRecord, error) {
	var recs []PlanRecord
	if err := db.WithContext(ctx).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
