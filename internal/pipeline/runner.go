package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/angadhsingh1/ETL-Pipeline/internal/dataset"
	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
	"github.com/angadhsingh1/ETL-Pipeline/internal/notify"
	"github.com/angadhsingh1/ETL-Pipeline/internal/repository"
	"github.com/angadhsingh1/ETL-Pipeline/internal/transform"
)

// Loader reads one batch snapshot.
type Loader interface {
	Load(ctx context.Context, location string) (*dataset.Frame, error)
}

// PatientStore persists projected records together with the run audit row.
type PatientStore interface {
	InsertBatch(ctx context.Context, records []model.PatientRecord, policy repository.ConflictPolicy, run *model.Run) (int64, error)
}

type Options struct {
	ColumnAliases map[string]string
	OnConflict    repository.ConflictPolicy
	DryRun        bool
}

// Result summarises one batch.
type Result struct {
	RunID        string
	Source       string
	InputRows    int
	RetainedRows int
	RejectedRows int
	WrittenRows  int64
	Records      []model.PatientRecord
}

// Runner wires load, clean, project and persist for a single batch.
type Runner struct {
	loader   Loader
	cleaner  *transform.Cleaner
	patients PatientStore
	notifier notify.Notifier
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

func NewRunner(loader Loader, patients PatientStore, notifier notify.Notifier, opts Options, log *zap.Logger) (*Runner, error) {
	cleaner, err := transform.NewCleaner(transform.ReadingColumns)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if opts.OnConflict == "" {
		opts.OnConflict = repository.ConflictReject
	}

	return &Runner{
		loader:   loader,
		cleaner:  cleaner,
		patients: patients,
		notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}, nil
}

// Run processes the batch at source. Any failure aborts the batch; in dry
// run mode nothing is written and no event is published.
func (r *Runner) Run(ctx context.Context, source string) (*Result, error) {
	started := r.now()
	res := &Result{RunID: uuid.NewString(), Source: source}
	log := r.log.With(zap.String("run_id", res.RunID), zap.String("source", source))

	frame, err := r.loader.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	if len(r.opts.ColumnAliases) > 0 {
		if frame, err = frame.Rename(r.opts.ColumnAliases); err != nil {
			return nil, fmt.Errorf("rename columns: %w", err)
		}
	}
	res.InputRows = frame.Len()

	cleaned, err := r.cleaner.Transform(frame)
	if err != nil {
		return nil, err
	}
	res.RetainedRows = cleaned.Len()
	res.RejectedRows = res.InputRows - res.RetainedRows

	records, err := transform.Project(cleaned)
	if err != nil {
		return nil, err
	}
	res.Records = records

	log.Info("Batch transformed",
		zap.Int("input_rows", res.InputRows),
		zap.Int("retained_rows", res.RetainedRows),
		zap.Int("rejected_rows", res.RejectedRows),
	)

	if r.opts.DryRun {
		log.Info("Dry run, skipping database write")
		return res, nil
	}

	metadata, err := json.Marshal(map[string]any{
		"on_conflict": string(r.opts.OnConflict),
		"aliases":     r.opts.ColumnAliases,
	})
	if err != nil {
		return nil, err
	}
	finished := r.now()
	run := &model.Run{
		ID:           res.RunID,
		Source:       source,
		InputRows:    res.InputRows,
		LoadedRows:   res.RetainedRows,
		RejectedRows: res.RejectedRows,
		Metadata:     datatypes.JSON(metadata),
		StartedAt:    started,
		FinishedAt:   finished,
	}

	written, err := r.patients.InsertBatch(ctx, records, r.opts.OnConflict, run)
	if err != nil {
		return nil, err
	}
	res.WrittenRows = written

	log.Info("Batch loaded", zap.Int64("written_rows", written), zap.Duration("took", finished.Sub(started)))

	err = r.notifier.Notify(ctx, notify.LoadCompleted{
		RunID:        res.RunID,
		Source:       source,
		InputRows:    res.InputRows,
		LoadedRows:   res.RetainedRows,
		RejectedRows: res.RejectedRows,
		FinishedAt:   finished,
	})
	if err != nil {
		log.Error("Failed to publish load event", zap.Error(err))
		return res, fmt.Errorf("notify: %w", err)
	}

	return res, nil
}
