package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

func (r *ReportRepository) Create(ctx context.Context, rep *db.Report) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

// ListByReporter returns reports filed by a user, newest first.
func (r *ReportRepository) ListByReporter(ctx context.Context, reporterID uint64) ([]db.Report, error) {
	var reps []db.Report
	err := r.db.WithContext(ctx).
		Where("reporter_id = ?", reporterID).
		Order("created_at DESC, id DESC").
		Find(&reps).Error
	return reps, err
}
