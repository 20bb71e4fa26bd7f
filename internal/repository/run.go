package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Latest returns the most recently finished runs.
func (r *RunRepository) Latest(ctx context.Context, limit int) ([]model.Run, error) {
	var runs []model.Run
	result := r.db.WithContext(ctx).Order("finished_at DESC").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// VerifySchema checks that the destination tables exist. Tables are owned
// by the database administrator and never created here.
func VerifySchema(db *gorm.DB) error {
	for _, table := range []string{model.PatientRecord{}.TableName(), model.Run{}.TableName()} {
		if !db.Migrator().HasTable(table) {
			return fmt.Errorf("table %q does not exist", table)
		}
	}
	return nil
}
