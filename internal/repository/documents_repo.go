package repository

import (
	"context"

	"github.com/aradaody/defi-technique/internal/domain"
)

// PatientNumFinder resolves a hospital patient id to its warehouse key. Satisfied by both
// document repositories and by MemoryPatientsRepo.
type PatientNumFinder interface {
	FindPatientNum(ctx context.Context, hospitalPatientID string) (*int64, error)
}

// DocumentsRepository warehouse documents.
type DocumentsRepository interface {
	// NextUploadID returns MAX(upload_id)+1 over dwh_document, 0 when no batch was loaded yet.
	NextUploadID(ctx context.Context) (int, error)

	// FindPatientNum resolves a hospital patient id through the most recent identifier
	// history entry. Returns nil when the id is unknown.
	FindPatientNum(ctx context.Context, hospitalPatientID string) (*int64, error)

	// InsertDocuments writes the whole batch in one transaction: every row lands or none does.
	InsertDocuments(ctx context.Context, docs []*domain.Document) (int, error)
}
