package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/database"
	"github.com/aradaody/defi-technique/internal/domain"
	"github.com/aradaody/defi-technique/internal/matching"
)

// SQLPatientsRepository PatientsRepository over database/sql, for SQLite and PostgreSQL.
type SQLPatientsRepository struct {
	db      *sql.DB
	dialect database.Dialect
	logger  *zap.Logger
}

func NewSQLPatientsRepository(db *sql.DB, dialect database.Dialect, logger *zap.Logger) *SQLPatientsRepository {
	return &SQLPatientsRepository{db: db, dialect: dialect, logger: logger}
}

var _ PatientsRepository = (*SQLPatientsRepository)(nil)

func (r *SQLPatientsRepository) NextUploadID(ctx context.Context) (int, error) {
	return nextUploadID(ctx, r.db, "dwh_patient")
}

func (r *SQLPatientsRepository) MergePatient(ctx context.Context, run domain.RunContext, p *domain.Patient, columns []string, opts MergeOptions) (*domain.MergeOutcome, error) {
	if p == nil {
		return nil, fmt.Errorf("patient is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored := domain.StoredColumnsOf(columns)

	outcome, err := r.findMatch(ctx, tx, p, opts.Threshold)
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		if err := r.updatePatient(ctx, tx, run, p, stored, outcome.PatientNum); err != nil {
			return nil, err
		}
	} else {
		num, err := r.insertPatient(ctx, tx, run, p, stored)
		if err != nil {
			return nil, err
		}
		outcome = &domain.MergeOutcome{PatientNum: num}
	}

	hist := domain.IdentifierHistory{
		PatientNum:        outcome.PatientNum,
		HospitalPatientID: p.HospitalPatientID,
		OriginPatientID:   opts.OriginPatientID,
		MasterPatientID:   opts.MasterPatientID,
		UploadID:          run.UploadID,
	}
	if err := insertIdentifierHistory(ctx, tx, &hist); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.PatientNum = outcome.PatientNum
	p.UploadID = run.UploadID

	r.logger.Debug("Patient merged",
		zap.String("hospital_patient_id", p.HospitalPatientID),
		zap.Int64("patient_num", outcome.PatientNum),
		zap.Bool("merged", outcome.Merged),
		zap.Int("score", outcome.Score),
	)
	return outcome, nil
}

// findMatch returns the stored patient with the lowest patient_num whose score reaches threshold.
func (r *SQLPatientsRepository) findMatch(ctx context.Context, tx *sql.Tx, p *domain.Patient, threshold int) (*domain.MergeOutcome, error) {
	query := fmt.Sprintf(`
		SELECT patient_num, score
		FROM (
			SELECT patient_num, %s AS score
			FROM dwh_patient
		) s
		WHERE score >= $%d
		ORDER BY patient_num
		LIMIT 1
	`, matching.ScoreSQL(r.dialect, 1), len(matching.Fields)+1)

	args := append(matching.ScoreArgs(p), threshold)

	var outcome domain.MergeOutcome
	err := tx.QueryRowContext(ctx, query, args...).Scan(&outcome.PatientNum, &outcome.Score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search similar patients: %w", err)
	}
	outcome.Merged = true
	return &outcome, nil
}

func (r *SQLPatientsRepository) updatePatient(ctx context.Context, tx *sql.Tx, run domain.RunContext, p *domain.Patient, columns []string, patientNum int64) error {
	sets := make([]string, 0, len(columns)+2)
	args := make([]any, 0, len(columns)+3)
	for _, col := range columns {
		args = append(args, p.Get(col))
		sets = append(sets, fmt.Sprintf("%s = $%d", domain.StoredColumns[col], len(args)))
	}
	args = append(args, run.UploadID)
	sets = append(sets, fmt.Sprintf("upload_id = $%d", len(args)))
	args = append(args, run.LoadDay())
	sets = append(sets, fmt.Sprintf("update_date = $%d", len(args)))
	args = append(args, patientNum)

	query := fmt.Sprintf("UPDATE dwh_patient SET %s WHERE patient_num = $%d", strings.Join(sets, ", "), len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update patient %d: %w", patientNum, err)
	}
	return nil
}

func (r *SQLPatientsRepository) insertPatient(ctx context.Context, tx *sql.Tx, run domain.RunContext, p *domain.Patient, columns []string) (int64, error) {
	names := make([]string, 0, len(columns)+2)
	args := make([]any, 0, len(columns)+2)
	for _, col := range columns {
		names = append(names, domain.StoredColumns[col])
		args = append(args, p.Get(col))
	}
	names = append(names, "upload_id", "update_date")
	args = append(args, run.UploadID, run.LoadDay())

	query := fmt.Sprintf("INSERT INTO dwh_patient (%s) VALUES (%s) RETURNING patient_num",
		strings.Join(names, ", "), placeholders(1, len(args)))

	var patientNum int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&patientNum); err != nil {
		return 0, fmt.Errorf("failed to insert patient: %w", err)
	}
	return patientNum, nil
}

func insertIdentifierHistory(ctx context.Context, tx *sql.Tx, h *domain.IdentifierHistory) error {
	query := `
		INSERT INTO dwh_patient_ipphist (
			patient_num,
			hospital_patient_id,
			origin_patient_id,
			master_patient_id,
			upload_id
		) VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, h.PatientNum, h.HospitalPatientID, h.OriginPatientID, h.MasterPatientID, h.UploadID)
	if err != nil {
		return fmt.Errorf("failed to insert identifier history: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nextUploadID table is one of the loader tables, never user input.
func nextUploadID(ctx context.Context, q queryer, table string) (int, error) {
	var last sql.NullInt64
	if err := q.QueryRowContext(ctx, "SELECT MAX(upload_id) FROM "+table).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to read last upload id of %s: %w", table, err)
	}
	if !last.Valid {
		return 0, nil
	}
	return int(last.Int64) + 1, nil
}

// placeholders returns "$from, ..., $from+n-1".
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}
