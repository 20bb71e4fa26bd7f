package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angadhsingh1/ETL-Pipeline/internal/database"
	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenDialector(sqlite.Open(":memory:"), "silent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	// every pooled connection to :memory: would otherwise see its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.PatientRecord{}, &model.Run{}))
	return db
}

func records() []model.PatientRecord {
	return []model.PatientRecord{
		{PatientID: "1", ReadingT1: 100, ReadingT2: 120, ReadingT3: 110, AvgReading: 110, Category: model.CategoryNormal},
		{PatientID: "2", ReadingT1: 150, ReadingT2: 160, ReadingT3: 170, AvgReading: 160, Category: model.CategoryPreDiabetes},
		{PatientID: "3", ReadingT1: 250, ReadingT2: 260, ReadingT3: 270, AvgReading: 260, Category: model.CategoryDiabetes},
	}
}

func TestInsertBatch(t *testing.T) {
	db := setupDB(t)
	repo := NewPatientRepository(db, 2)

	n, err := repo.InsertBatch(context.Background(), records(), ConflictReject, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, records(), got)

	one, err := repo.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPreDiabetes, one.Category)
}

func TestInsertBatch_Empty(t *testing.T) {
	repo := NewPatientRepository(setupDB(t), 0)

	n, err := repo.InsertBatch(context.Background(), nil, ConflictReject, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertBatch_RejectRollsBack(t *testing.T) {
	db := setupDB(t)
	repo := NewPatientRepository(db, 10)

	_, err := repo.InsertBatch(context.Background(), records()[:1], ConflictReject, nil)
	require.NoError(t, err)

	batch := []model.PatientRecord{
		{PatientID: "9", ReadingT1: 1, ReadingT2: 1, ReadingT3: 1, AvgReading: 1, Category: model.CategoryNormal},
		records()[0],
	}
	_, err = repo.InsertBatch(context.Background(), batch, ConflictReject, nil)
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.PatientRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestInsertBatch_Skip(t *testing.T) {
	db := setupDB(t)
	repo := NewPatientRepository(db, 10)

	_, err := repo.InsertBatch(context.Background(), records()[:1], ConflictReject, nil)
	require.NoError(t, err)

	changed := records()
	changed[0].AvgReading = 999
	n, err := repo.InsertBatch(context.Background(), changed, ConflictSkip, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	one, err := repo.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 110.0, one.AvgReading)
}

func TestInsertBatch_Upsert(t *testing.T) {
	db := setupDB(t)
	repo := NewPatientRepository(db, 10)

	_, err := repo.InsertBatch(context.Background(), records(), ConflictReject, nil)
	require.NoError(t, err)

	update := []model.PatientRecord{
		{PatientID: "1", ReadingT1: 250, ReadingT2: 250, ReadingT3: 250, AvgReading: 250, Category: model.CategoryDiabetes},
	}
	_, err = repo.InsertBatch(context.Background(), update, ConflictUpsert, nil)
	require.NoError(t, err)

	one, err := repo.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, update[0], *one)

	all, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInsertBatch_UnknownPolicy(t *testing.T) {
	repo := NewPatientRepository(setupDB(t), 10)

	_, err := repo.InsertBatch(context.Background(), records(), ConflictPolicy("merge"), nil)
	assert.Error(t, err)
}

func TestParseConflictPolicy(t *testing.T) {
	for _, s := range []string{"reject", "skip", "upsert"} {
		p, err := ParseConflictPolicy(s)
		require.NoError(t, err)
		assert.Equal(t, ConflictPolicy(s), p)
	}

	_, err := ParseConflictPolicy("overwrite")
	assert.Error(t, err)
}

func TestInsertBatch_RecordsRun(t *testing.T) {
	db := setupDB(t)
	patients := NewPatientRepository(db, 10)
	runs := NewRunRepository(db)

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		batch := records()[i : i+1]
		_, err := patients.InsertBatch(context.Background(), batch, ConflictReject, &model.Run{
			ID:           id,
			Source:       "patient_data.csv",
			InputRows:    5,
			LoadedRows:   1,
			RejectedRows: 4,
			Metadata:     datatypes.JSON(`{"on_conflict":"reject"}`),
			StartedAt:    started,
			FinishedAt:   started.Add(time.Duration(i+1) * time.Minute),
		})
		require.NoError(t, err)
	}

	latest, err := runs.Latest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "run-b", latest[0].ID)
	assert.Equal(t, 4, latest[0].RejectedRows)
	assert.JSONEq(t, `{"on_conflict":"reject"}`, string(latest[0].Metadata))
}

func TestInsertBatch_FailedBatchLeavesNoRun(t *testing.T) {
	db := setupDB(t)
	patients := NewPatientRepository(db, 10)

	_, err := patients.InsertBatch(context.Background(), records()[:1], ConflictReject, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = patients.InsertBatch(context.Background(), records(), ConflictReject, &model.Run{
		ID: "run-dup", Source: "patient_data.csv", StartedAt: now, FinishedAt: now,
	})
	require.Error(t, err)

	all, err := NewRunRepository(db).Latest(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestVerifySchema(t *testing.T) {
	db, err := database.OpenDialector(sqlite.Open(":memory:"), "silent")
	require.NoError(t, err)
	defer database.Close(db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = VerifySchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patient_data")

	require.NoError(t, db.AutoMigrate(&model.PatientRecord{}))
	err = VerifySchema(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etl_run")

	require.NoError(t, db.AutoMigrate(&model.Run{}))
	assert.NoError(t, VerifySchema(db))
}
