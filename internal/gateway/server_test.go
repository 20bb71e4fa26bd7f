package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"

	"github.com/angadhsingh1/ETL-Pipeline/internal/database"
	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
	"github.com/angadhsingh1/ETL-Pipeline/internal/repository"
)

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.OpenDialector(sqlite.Open(":memory:"), "silent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.PatientRecord{}, &model.Run{}))

	patients := repository.NewPatientRepository(db, 100)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err = patients.InsertBatch(context.Background(), []model.PatientRecord{
		{PatientID: "1", ReadingT1: 100, ReadingT2: 120, ReadingT3: 110, AvgReading: 110, Category: model.CategoryNormal},
		{PatientID: "2", ReadingT1: 150, ReadingT2: 160, ReadingT3: 170, AvgReading: 160, Category: model.CategoryPreDiabetes},
	}, repository.ConflictReject, &model.Run{
		ID: "run-1", Source: "patient_data.csv", InputRows: 4, LoadedRows: 2, RejectedRows: 2, StartedAt: now, FinishedAt: now.Add(time.Second),
	})
	require.NoError(t, err)

	return NewServer(patients, repository.NewRunRepository(db), zap.NewNop()).Routes()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListPatients(t *testing.T) {
	h := setupServer(t)

	rec := get(t, h, "/patients?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got []PatientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []PatientResponse{{
		PatientID: "1", ReadingT1: 100, ReadingT2: 120, ReadingT3: 110, AvgReading: 110, Category: "Normal",
	}}, got)
}

func TestListPatients_InvalidLimit(t *testing.T) {
	h := setupServer(t)

	for _, target := range []string{"/patients", "/patients?limit=0", "/patients?limit=abc", "/patients?limit=1001"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetPatient(t *testing.T) {
	h := setupServer(t)

	rec := get(t, h, "/patients/2")
	require.Equal(t, http.StatusOK, rec.Code)
	var got PatientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Pre-Diabetes", got.Category)

	rec = get(t, h, "/patients/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	h := setupServer(t)

	rec := get(t, h, "/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, RunResponse{
		ID: "run-1", Source: "patient_data.csv", InputRows: 4, LoadedRows: 2, RejectedRows: 2,
		StartedAt: "2024-03-01T09:00:00Z", FinishedAt: "2024-03-01T09:00:01Z",
	}, got[0])
}

func TestHealthz(t *testing.T) {
	rec := get(t, setupServer(t), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

type failingReader struct{}

func (failingReader) List(context.Context, int) ([]model.PatientRecord, error) {
	return nil, errors.New("connection reset")
}

func (failingReader) Get(context.Context, string) (*model.PatientRecord, error) {
	return nil, errors.New("connection reset")
}

func (failingReader) Latest(context.Context, int) ([]model.Run, error) {
	return nil, errors.New("connection reset")
}

func TestDatabaseErrors(t *testing.T) {
	h := NewServer(failingReader{}, failingReader{}, zap.NewNop()).Routes()

	for _, target := range []string{"/patients?limit=5", "/patients/1", "/runs?limit=5"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.JSONEq(t, `{"error":"database error"}`, rec.Body.String(), target)
	}
}
