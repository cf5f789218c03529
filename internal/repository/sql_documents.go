package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/domain"
)

// SQLDocumentsRepository DocumentsRepository over database/sql.
type SQLDocumentsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLDocumentsRepository(db *sql.DB, logger *zap.Logger) *SQLDocumentsRepository {
	return &SQLDocumentsRepository{db: db, logger: logger}
}

var _ DocumentsRepository = (*SQLDocumentsRepository)(nil)

func (r *SQLDocumentsRepository) NextUploadID(ctx context.Context) (int, error) {
	return nextUploadID(ctx, r.db, "dwh_document")
}

func (r *SQLDocumentsRepository) FindPatientNum(ctx context.Context, hospitalPatientID string) (*int64, error) {
	if hospitalPatientID == "" {
		return nil, nil
	}

	query := `
		SELECT patient_num
		FROM dwh_patient_ipphist
		WHERE hospital_patient_id = $1
		ORDER BY upload_id DESC, patient_num DESC
		LIMIT 1
	`
	var patientNum int64
	err := r.db.QueryRowContext(ctx, query, hospitalPatientID).Scan(&patientNum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find patient_num of %s: %w", hospitalPatientID, err)
	}
	return &patientNum, nil
}

func (r *SQLDocumentsRepository) InsertDocuments(ctx context.Context, docs []*domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dwh_document (
			patient_num,
			title,
			document_origin_code,
			document_date,
			id_doc_source,
			document_type,
			displayed_text,
			author,
			update_date,
			upload_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		var patientNum any
		if d.PatientNum != nil {
			patientNum = *d.PatientNum
		}
		_, err := stmt.ExecContext(ctx,
			patientNum,
			d.Title,
			d.DocumentOriginCode,
			d.DocumentDate,
			d.IDDocSource,
			d.DocumentType,
			d.DisplayedText,
			d.Author,
			d.UpdateDate.Format("2006-01-02"),
			d.UploadID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert document %s: %w", d.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("Documents inserted", zap.Int("count", len(docs)))
	return len(docs), nil
}
