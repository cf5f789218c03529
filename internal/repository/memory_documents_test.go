package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradaody/defi-technique/internal/domain"
)

func TestMemoryDocuments_FindPatientNumFromMemoryPatients(t *testing.T) {
	ctx := context.Background()
	patients := NewMemoryPatientsRepo()
	p := &domain.Patient{HospitalPatientID: "12345", Lastname: "Martin"}
	_, err := patients.MergePatient(ctx, domain.NewRunContext(0, time.Now()), p, []string{domain.ColLastname}, MergeOptions{Threshold: 8})
	require.NoError(t, err)

	repo := NewMemoryDocumentsRepo(patients)
	num, err := repo.FindPatientNum(ctx, "12345")
	require.NoError(t, err)
	require.NotNil(t, num)
	assert.Equal(t, p.PatientNum, *num)

	num, err = repo.FindPatientNum(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, num)
}

func TestMemoryDocuments_FindPatientNumFromWarehouse(t *testing.T) {
	db, mock, sqlRepo := setupMockDocumentsDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM dwh_patient_ipphist`).
		WithArgs("12345").
		WillReturnRows(sqlmock.NewRows([]string{"patient_num"}).AddRow(7))

	ctx := context.Background()
	repo := NewMemoryDocumentsRepo(sqlRepo)
	num, err := repo.FindPatientNum(ctx, "12345")
	require.NoError(t, err)
	require.NotNil(t, num)
	assert.Equal(t, int64(7), *num)

	// inserts stay in memory: no statement reaches the warehouse
	n, err := repo.InsertDocuments(ctx, testDocuments())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.Documents(), 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryDocuments_NoFinder(t *testing.T) {
	num, err := NewMemoryDocumentsRepo(nil).FindPatientNum(context.Background(), "12345")
	require.NoError(t, err)
	assert.Nil(t, num)
}
