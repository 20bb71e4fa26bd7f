package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
)

// ConflictPolicy decides what happens when a patient_id already exists.
type ConflictPolicy string

const (
	// ConflictReject fails the whole batch on the first duplicate key.
	ConflictReject ConflictPolicy = "reject"
	// ConflictSkip keeps the stored row and drops the incoming one.
	ConflictSkip ConflictPolicy = "skip"
	// ConflictUpsert overwrites the stored readings and derived fields.
	ConflictUpsert ConflictPolicy = "upsert"
)

// ParseConflictPolicy validates a policy name.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case ConflictReject, ConflictSkip, ConflictUpsert:
		return p, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

var upsertColumns = []string{"gl_t1", "gl_t2", "gl_t3", "avg_gl", "diab_type"}

type PatientRepository struct {
	db        *gorm.DB
	batchSize int
}

func NewPatientRepository(db *gorm.DB, batchSize int) *PatientRepository {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &PatientRepository{db: db, batchSize: batchSize}
}

// InsertBatch writes records, and the run audit row when run is not nil,
// in a single transaction. It returns the number of patient rows the
// database reports as affected.
func (r *PatientRepository) InsertBatch(ctx context.Context, records []model.PatientRecord, policy ConflictPolicy, run *model.Run) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := tx
		switch policy {
		case ConflictSkip:
			insert = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "patient_id"}},
				DoNothing: true,
			})
		case ConflictUpsert:
			insert = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "patient_id"}},
				DoUpdates: clause.AssignmentColumns(upsertColumns),
			})
		case ConflictReject:
		default:
			return fmt.Errorf("unknown conflict policy %q", policy)
		}

		if len(records) > 0 {
			result := insert.CreateInBatches(records, r.batchSize)
			if result.Error != nil {
				return result.Error
			}
			affected = result.RowsAffected
		}

		if run == nil {
			return nil
		}
		return tx.Create(run).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert patient data: %w", err)
	}

	return affected, nil
}

// List returns up to limit rows ordered by patient_id.
func (r *PatientRepository) List(ctx context.Context, limit int) ([]model.PatientRecord, error) {
	var records []model.PatientRecord
	result := r.db.WithContext(ctx).Order("patient_id").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// Get returns a single patient row.
func (r *PatientRepository) Get(ctx context.Context, patientID string) (*model.PatientRecord, error) {
	record := &model.PatientRecord{}
	result := r.db.WithContext(ctx).Where("patient_id = ?", patientID).First(record)
	if result.Error != nil {
		return nil, result.Error
	}
	return record, nil
}
