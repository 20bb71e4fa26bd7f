package model

import (
	"time"

	"gorm.io/datatypes"
)

// Category is the diagnosis bucket derived from the average reading.
type Category string

const (
	CategoryDiabetes    Category = "Diabetes"
	CategoryPreDiabetes Category = "Pre-Diabetes"
	CategoryNormal      Category = "Normal"
)

// PatientRecord represents the patient_data table. It carries no
// identity or contact fields.
type PatientRecord struct {
	PatientID  string   `gorm:"column:patient_id;primaryKey;type:varchar(64)" json:"patient_id"`
	ReadingT1  float64  `gorm:"column:gl_t1;not null" json:"reading_t1"`
	ReadingT2  float64  `gorm:"column:gl_t2;not null" json:"reading_t2"`
	ReadingT3  float64  `gorm:"column:gl_t3;not null" json:"reading_t3"`
	AvgReading float64  `gorm:"column:avg_gl;not null" json:"avg_reading"`
	Category   Category `gorm:"column:diab_type;type:text;not null" json:"category"`
}

func (PatientRecord) TableName() string { return "patient_data" }

// Values returns the record as a tuple in output column order.
func (r PatientRecord) Values() []any {
	return []any{r.PatientID, r.ReadingT1, r.ReadingT2, r.ReadingT3, r.AvgReading, string(r.Category)}
}

// Run represents the etl_run table, one row per loaded batch
type Run struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)"`
	Source       string         `gorm:"type:text;not null"`
	InputRows    int            `gorm:"not null"`
	LoadedRows   int            `gorm:"not null"`
	RejectedRows int            `gorm:"not null"`
	Metadata     datatypes.JSON `gorm:"type:jsonb"`
	StartedAt    time.Time      `gorm:"not null"`
	FinishedAt   time.Time      `gorm:"not null"`
}

func (Run) TableName() string { return "etl_run" }
