package transform

import (
	"fmt"
	"strings"

	"github.com/angadhsingh1/ETL-Pipeline/internal/dataset"
	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
)

const stageProject = "project"

// OutputColumns is the persisted column order. Anything else in the
// frame, names and contact details included, is dropped here.
var OutputColumns = []string{
	ColumnPatientID,
	ColumnReadingT1,
	ColumnReadingT2,
	ColumnReadingT3,
	ColumnAvgReading,
	ColumnCategory,
}

// Project converts a cleaned frame into patient records, one per row, in
// frame order.
func Project(f *dataset.Frame) ([]model.PatientRecord, error) {
	idx, err := f.Lookup(stageProject, OutputColumns...)
	if err != nil {
		return nil, err
	}

	records := make([]model.PatientRecord, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)

		id := strings.TrimSpace(dataset.String(row[idx[0]]))
		if id == "" {
			return nil, fmt.Errorf("%s: row %d: %s is missing", stageProject, i, ColumnPatientID)
		}

		readings := make([]float64, 4)
		for n, pos := range idx[1:5] {
			v, ok := dataset.Float(row[pos])
			if !ok {
				return nil, fmt.Errorf("%s: row %d: %s is not numeric", stageProject, i, OutputColumns[n+1])
			}
			readings[n] = v
		}

		records = append(records, model.PatientRecord{
			PatientID:  id,
			ReadingT1:  readings[0],
			ReadingT2:  readings[1],
			ReadingT3:  readings[2],
			AvgReading: readings[3],
			Category:   model.Category(dataset.String(row[idx[5]])),
		})
	}

	return records, nil
}

// Tuples flattens records into value tuples in OutputColumns order.
func Tuples(records []model.PatientRecord) [][]any {
	out := make([][]any, len(records))
	for i, r := range records {
		out[i] = r.Values()
	}
	return out
}
