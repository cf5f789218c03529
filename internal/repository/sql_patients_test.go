package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/database"
	"github.com/aradaody/defi-technique/internal/domain"
)

func setupMockPatientsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SQLPatientsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewSQLPatientsRepository(db, database.DialectSQLite, zap.NewNop())
	return db, mock, repo
}

func testRun(uploadID int) domain.RunContext {
	return domain.NewRunContext(uploadID, time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC))
}

func testPatient() *domain.Patient {
	return &domain.Patient{
		HospitalPatientID: "IPP001",
		Lastname:          "Martin",
		Firstname:         "Louise",
		BirthDate:         "03-04-1980",
		PhoneNumber:       "0612345678",
		MaidenName:        "Bernard",
		ResidenceCity:     "Lyon",
		ResidenceCountry:  "France",
		ResidenceAddress:  "4 place Bellecour",
	}
}

var testOpts = MergeOptions{Threshold: 6, OriginPatientID: "HOSPITAL", MasterPatientID: "1"}

func expectScoreQuery(mock sqlmock.Sqlmock, p *domain.Patient, threshold int) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`SELECT patient_num, score\s+FROM \(`).
		WithArgs(p.Lastname, p.Firstname, p.BirthDate, p.PhoneNumber, p.MaidenName,
			p.ResidenceCity, p.ResidenceCountry, p.ResidenceAddress, threshold)
}

func TestSQLPatients_NextUploadID(t *testing.T) {
	db, mock, repo := setupMockPatientsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(upload_id) FROM dwh_patient")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	id, err := repo.NextUploadID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, id)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(upload_id) FROM dwh_patient")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(3))
	id, err = repo.NextUploadID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPatients_NextUploadID_Error(t *testing.T) {
	db, mock, repo := setupMockPatientsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT MAX`).WillReturnError(errors.New("connection reset"))

	_, err := repo.NextUploadID(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last upload id of dwh_patient")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPatients_MergePatient_Insert(t *testing.T) {
	db, mock, repo := setupMockPatientsDB(t)
	defer db.Close()

	p := testPatient()
	run := testRun(2)
	columns := []string{"HOSPITAL_PATIENT_ID", "LASTNAME", "FIRSTNAME", "UPDATE_DATE"}

	mock.ExpectBegin()
	expectScoreQuery(mock, p, 6).WillReturnRows(sqlmock.NewRows([]string{"patient_num", "score"}))
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO dwh_patient (lastname, firstname, upload_id, update_date) VALUES ($1, $2, $3, $4) RETURNING patient_num")).
		WithArgs("Martin", "Louise", 2, "2024-05-02").
		WillReturnRows(sqlmock.NewRows([]string{"patient_num"}).AddRow(12))
	mock.ExpectExec(`INSERT INTO dwh_patient_ipphist`).
		WithArgs(int64(12), "IPP001", "HOSPITAL", "1", 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outcome, err := repo.MergePatient(context.Background(), run, p, columns, testOpts)
	require.NoError(t, err)
	assert.Equal(t, int64(12), outcome.PatientNum)
	assert.False(t, outcome.Merged)
	assert.Equal(t, int64(12), p.PatientNum)
	assert.Equal(t, 2, p.UploadID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPatients_MergePatient_Update(t *testing.T) {
	db, mock, repo := setupMockPatientsDB(t)
	defer db.Close()

	p := testPatient()
	run := testRun(5)
	columns := []string{"LASTNAME", "HOSPITAL_PATIENT_ID", "FIRSTNAME"}

	mock.ExpectBegin()
	expectScoreQuery(mock, p, 6).WillReturnRows(sqlmock.NewRows([]string{"patient_num", "score"}).AddRow(3, 7))
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE dwh_patient SET lastname = $1, firstname = $2, upload_id = $3, update_date = $4 WHERE patient_num = $5")).
		WithArgs("Martin", "Louise", 5, "2024-05-02", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dwh_patient_ipphist`).
		WithArgs(int64(3), "IPP001", "HOSPITAL", "1", 5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outcome, err := repo.MergePatient(context.Background(), run, p, columns, testOpts)
	require.NoError(t, err)
	assert.Equal(t, &domain.MergeOutcome{PatientNum: 3, Merged: true, Score: 7}, outcome)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPatients_MergePatient_SearchError(t *testing.T) {
	db, mock, repo := setupMockPatientsDB(t)
	defer db.Close()

	p := testPatient()

	mock.ExpectBegin()
	expectScoreQuery(mock, p, 6).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	outcome, err := repo.MergePatient(context.Background(), testRun(0), p, []string{"LASTNAME"}, testOpts)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Contains(t, err.Error(), "similar patients")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPatients_MergePatient_HistoryError(t *testing.T) {
	db, mock, repo := setupMockPatientsDB(t)
	defer db.Close()

	p := testPatient()

	mock.ExpectBegin()
	expectScoreQuery(mock, p, 6).WillReturnRows(sqlmock.NewRows([]string{"patient_num", "score"}))
	mock.ExpectQuery(`INSERT INTO dwh_patient \(`).
		WillReturnRows(sqlmock.NewRows([]string{"patient_num"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO dwh_patient_ipphist`).WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err := repo.MergePatient(context.Background(), testRun(0), p, []string{"LASTNAME"}, testOpts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identifier history")
	assert.Equal(t, int64(0), p.PatientNum)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPatients_MergePatient_Nil(t *testing.T) {
	db, mock, repo := setupMockPatientsDB(t)
	defer db.Close()

	_, err := repo.MergePatient(context.Background(), testRun(0), nil, nil, testOpts)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders(1, 3))
	assert.Equal(t, "$4", placeholders(4, 1))
	assert.Equal(t, "", placeholders(1, 0))
}
