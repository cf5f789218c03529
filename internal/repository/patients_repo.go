package repository

import (
	"context"

	"github.com/aradaody/defi-technique/internal/domain"
)

// MergeOptions settings applied when a clean patient row is written.
type MergeOptions struct {
	Threshold       int    // minimum similarity score for a stored patient to be merged into
	OriginPatientID string // origin system written to the identifier history
	MasterPatientID string // constant written to the identifier history
}

// PatientsRepository warehouse patients and their identifier history.
type PatientsRepository interface {
	// NextUploadID returns MAX(upload_id)+1 over dwh_patient, 0 when no batch was loaded yet.
	NextUploadID(ctx context.Context) (int, error)

	// MergePatient writes one clean row: the best stored match (score >= Threshold, lowest
	// patient_num first) is overwritten with the given sheet columns, otherwise a new patient is
	// inserted. An identifier history entry is appended in both cases. The row is committed on return.
	MergePatient(ctx context.Context, run domain.RunContext, p *domain.Patient, columns []string, opts MergeOptions) (*domain.MergeOutcome, error)
}
