package repository

import (
	"context"
	"sync"

	"github.com/aradaody/defi-technique/internal/domain"
)

// MemoryDocumentsRepo in-memory DocumentsRepository. Patient numbers are resolved through an
// optional finder: a MemoryPatientsRepo, or the SQL repository of a dry run reading the
// real identifier history.
type MemoryDocumentsRepo struct {
	mu       sync.RWMutex
	docs     []domain.Document
	patients PatientNumFinder
	nextNum  int64
}

func NewMemoryDocumentsRepo(patients PatientNumFinder) *MemoryDocumentsRepo {
	return &MemoryDocumentsRepo{patients: patients, nextNum: 1}
}

var _ DocumentsRepository = (*MemoryDocumentsRepo)(nil)

func (r *MemoryDocumentsRepo) NextUploadID(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.docs) == 0 {
		return 0, nil
	}
	last := r.docs[0].UploadID
	for _, d := range r.docs[1:] {
		if d.UploadID > last {
			last = d.UploadID
		}
	}
	return last + 1, nil
}

func (r *MemoryDocumentsRepo) FindPatientNum(ctx context.Context, hospitalPatientID string) (*int64, error) {
	if r.patients == nil || hospitalPatientID == "" {
		return nil, nil
	}
	return r.patients.FindPatientNum(ctx, hospitalPatientID)
}

func (r *MemoryDocumentsRepo) InsertDocuments(_ context.Context, docs []*domain.Document) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range docs {
		d.DocumentNum = r.nextNum
		r.nextNum++
		r.docs = append(r.docs, *d)
	}
	return len(docs), nil
}

// Documents returns the stored documents in insertion order.
func (r *MemoryDocumentsRepo) Documents() []domain.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Document(nil), r.docs...)
}
