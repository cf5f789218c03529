package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/aradaody/defi-technique/internal/domain"
	"github.com/aradaody/defi-technique/internal/matching"
)

// MemoryPatientsRepo keeps the warehouse in memory. Used when no database is configured
// (dry runs) and by the service tests.
type MemoryPatientsRepo struct {
	mu       sync.RWMutex
	patients map[int64]*domain.Patient
	history  []domain.IdentifierHistory
	nextNum  int64
}

func NewMemoryPatientsRepo() *MemoryPatientsRepo {
	return &MemoryPatientsRepo{
		patients: map[int64]*domain.Patient{},
		nextNum:  1,
	}
}

var _ PatientsRepository = (*MemoryPatientsRepo)(nil)

func (r *MemoryPatientsRepo) NextUploadID(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	last := -1
	for _, p := range r.patients {
		if p.UploadID > last {
			last = p.UploadID
		}
	}
	return last + 1, nil
}

func (r *MemoryPatientsRepo) MergePatient(_ context.Context, run domain.RunContext, p *domain.Patient, columns []string, opts MergeOptions) (*domain.MergeOutcome, error) {
	if p == nil {
		return nil, fmt.Errorf("patient is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]*domain.Patient, 0, len(r.patients))
	for _, sp := range r.patients {
		stored = append(stored, sp)
	}

	target := &domain.Patient{}
	outcome := &domain.MergeOutcome{}
	if best := matching.BestMatch(p, stored, opts.Threshold); best != nil {
		target = best.Patient
		outcome.PatientNum = target.PatientNum
		outcome.Merged = true
		outcome.Score = best.Score
	} else {
		target.PatientNum = r.nextNum
		r.nextNum++
		r.patients[target.PatientNum] = target
		outcome.PatientNum = target.PatientNum
	}

	for _, col := range domain.StoredColumnsOf(columns) {
		target.Set(col, p.Get(col))
	}
	target.UploadID = run.UploadID

	r.history = append(r.history, domain.IdentifierHistory{
		PatientNum:        outcome.PatientNum,
		HospitalPatientID: p.HospitalPatientID,
		OriginPatientID:   opts.OriginPatientID,
		MasterPatientID:   opts.MasterPatientID,
		UploadID:          run.UploadID,
	})

	p.PatientNum = outcome.PatientNum
	p.UploadID = run.UploadID
	return outcome, nil
}

// Patient returns a copy of a stored patient.
func (r *MemoryPatientsRepo) Patient(num int64) (domain.Patient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[num]
	if !ok {
		return domain.Patient{}, false
	}
	return *p, true
}

// Count number of stored patients.
func (r *MemoryPatientsRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patients)
}

// History returns the identifier history in append order.
func (r *MemoryPatientsRepo) History() []domain.IdentifierHistory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.IdentifierHistory(nil), r.history...)
}

var _ PatientNumFinder = (*MemoryPatientsRepo)(nil)

// FindPatientNum LatestPatientNum as a PatientNumFinder.
func (r *MemoryPatientsRepo) FindPatientNum(_ context.Context, hospitalPatientID string) (*int64, error) {
	num, ok := r.LatestPatientNum(hospitalPatientID)
	if !ok {
		return nil, nil
	}
	return &num, nil
}

// LatestPatientNum latest identifier history entry of a hospital patient id.
func (r *MemoryPatientsRepo) LatestPatientNum(hospitalPatientID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found bool
		best  domain.IdentifierHistory
	)
	for _, h := range r.history {
		if h.HospitalPatientID != hospitalPatientID {
			continue
		}
		if !found || h.UploadID > best.UploadID || (h.UploadID == best.UploadID && h.PatientNum > best.PatientNum) {
			best = h
			found = true
		}
	}
	return best.PatientNum, found
}
