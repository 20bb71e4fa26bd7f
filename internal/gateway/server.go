package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
)

const maxLimit = 1000

// PatientReader is the read side of the patient repository.
type PatientReader interface {
	List(ctx context.Context, limit int) ([]model.PatientRecord, error)
	Get(ctx context.Context, patientID string) (*model.PatientRecord, error)
}

// RunReader is the read side of the run repository.
type RunReader interface {
	Latest(ctx context.Context, limit int) ([]model.Run, error)
}

type Server struct {
	patients PatientReader
	runs     RunReader
	log      *zap.Logger
}

type PatientResponse struct {
	PatientID  string  `json:"patient_id"`
	ReadingT1  float64 `json:"reading_t1"`
	ReadingT2  float64 `json:"reading_t2"`
	ReadingT3  float64 `json:"reading_t3"`
	AvgReading float64 `json:"avg_reading"`
	Category   string  `json:"category"`
}

type RunResponse struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	InputRows    int    `json:"input_rows"`
	LoadedRows   int    `json:"loaded_rows"`
	RejectedRows int    `json:"rejected_rows"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(patients PatientReader, runs RunReader, log *zap.Logger) *Server {
	return &Server{patients: patients, runs: runs, log: log}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Get("/patients", s.listPatients)
	r.Get("/patients/{patientID}", s.getPatient)
	r.Get("/runs", s.listRuns)

	return r
}

func (s *Server) listPatients(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(w, r)
	if !ok {
		return
	}

	records, err := s.patients.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "database error", err)
		return
	}

	response := make([]PatientResponse, len(records))
	for i, rec := range records {
		response[i] = toPatientResponse(rec)
	}
	render.JSON(w, r, response)
}

func (s *Server) getPatient(w http.ResponseWriter, r *http.Request) {
	rec, err := s.patients.Get(r.Context(), chi.URLParam(r, "patientID"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.fail(w, r, http.StatusNotFound, "patient not found", nil)
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "database error", err)
		return
	}
	render.JSON(w, r, toPatientResponse(*rec))
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(w, r)
	if !ok {
		return
	}

	runs, err := s.runs.Latest(r.Context(), limit)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "database error", err)
		return
	}

	response := make([]RunResponse, len(runs))
	for i, run := range runs {
		response[i] = RunResponse{
			ID:           run.ID,
			Source:       run.Source,
			InputRows:    run.InputRows,
			LoadedRows:   run.LoadedRows,
			RejectedRows: run.RejectedRows,
			StartedAt:    run.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			FinishedAt:   run.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	render.JSON(w, r, response)
}

func (s *Server) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		s.fail(w, r, http.StatusBadRequest, "missing 'limit' query parameter", nil)
		return 0, false
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxLimit {
		s.fail(w, r, http.StatusBadRequest, "invalid 'limit' parameter - must be an integer between 1 and 1000", nil)
		return 0, false
	}
	return limit, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		s.log.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func toPatientResponse(rec model.PatientRecord) PatientResponse {
	return PatientResponse{
		PatientID:  rec.PatientID,
		ReadingT1:  rec.ReadingT1,
		ReadingT2:  rec.ReadingT2,
		ReadingT3:  rec.ReadingT3,
		AvgReading: rec.AvgReading,
		Category:   string(rec.Category),
	}
}
