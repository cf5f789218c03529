package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/domain"
	"github.com/aradaody/defi-technique/internal/notify"
	"github.com/aradaody/defi-technique/internal/repository"
	"github.com/aradaody/defi-technique/internal/spreadsheet"
	"github.com/aradaody/defi-technique/internal/validation"
)

// PatientLoaderConfig inputs of a patient load.
type PatientLoaderConfig struct {
	SourceFile      string
	DateFormat      string
	DateSeparator   string
	MatchingCount   int
	OriginPatientID string
	MasterPatientID string
	ErrorDir        string
}

// PatientLoader loads a patient sheet: validation, similarity merge, identifier history and
// error report.
type PatientLoader struct {
	cfg      PatientLoaderConfig
	repo     repository.PatientsRepository
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewPatientLoader notifier may be nil.
func NewPatientLoader(cfg PatientLoaderConfig, repo repository.PatientsRepository, notifier notify.Notifier, logger *zap.Logger) *PatientLoader {
	return &PatientLoader{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the job. Header problems abort before any row is processed. A persistence
// failure stops the job; rows committed before it stay committed and the error report is
// still written.
func (l *PatientLoader) Run(ctx context.Context) (*PatientJobResult, error) {
	sheet, err := spreadsheet.ReadPatients(l.cfg.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read patient sheet: %w", err)
	}

	uploadID, err := l.repo.NextUploadID(ctx)
	if err != nil {
		return nil, err
	}
	run := domain.NewRunContext(uploadID, l.now())

	logger := l.logger.With(
		zap.String("job", JobPatients),
		zap.String("run_id", run.RunID),
		zap.Int("upload_id", run.UploadID),
	)
	logger.Info("Patient integration starting",
		zap.String("file", l.cfg.SourceFile),
		zap.Int("rows", len(sheet.Rows)),
		zap.Int("duplicates", sheet.Duplicates),
	)

	res := &PatientJobResult{
		RunID:      run.RunID,
		UploadID:   run.UploadID,
		Read:       len(sheet.Rows),
		Blank:      sheet.Blank,
		Duplicates: sheet.Duplicates,
	}

	validator := &validation.Validator{
		DateFormat:    l.cfg.DateFormat,
		DateSeparator: l.cfg.DateSeparator,
		Now:           l.now,
	}
	opts := repository.MergeOptions{
		Threshold:       l.cfg.MatchingCount,
		OriginPatientID: l.cfg.OriginPatientID,
		MasterPatientID: l.cfg.MasterPatientID,
	}

	var (
		rejected []spreadsheet.RejectedRow
		jobErr   error
	)
	for i := range sheet.Rows {
		row := &sheet.Rows[i]

		if err := ctx.Err(); err != nil {
			jobErr = err
			res.Skipped = len(sheet.Rows) - i
			break
		}

		result := validator.Validate(&row.Patient)
		if !result.Clean() {
			res.Rejected++
			rejected = append(rejected, spreadsheet.RejectedRow{Values: row.Values, Anomaly: result.String()})
			logger.Debug("Row rejected",
				zap.Int("line", row.Line),
				zap.String("anomaly", result.String()),
			)
			continue
		}

		outcome, err := l.repo.MergePatient(ctx, run, &row.Patient, sheet.Headers, opts)
		if err != nil {
			res.Failed++
			res.Skipped = len(sheet.Rows) - i - 1
			jobErr = fmt.Errorf("line %d: %w", row.Line, err)
			logger.Error("Patient integration stopped", zap.Int("line", row.Line), zap.Error(err))
			break
		}
		if outcome.Merged {
			res.Merged++
		} else {
			res.Inserted++
		}
	}

	reportPath := spreadsheet.ErrorReportPath(l.cfg.ErrorDir, run.LoadDate)
	if err := spreadsheet.WriteErrorReport(reportPath, sheet.Headers, rejected); err != nil {
		logger.Error("Failed to write error report", zap.String("path", reportPath), zap.Error(err))
		if jobErr == nil {
			jobErr = err
		}
	} else {
		res.ErrorReport = reportPath
	}

	logger.Info("Patient integration finished",
		zap.Int("inserted", res.Inserted),
		zap.Int("merged", res.Merged),
		zap.Int("rejected", res.Rejected),
		zap.Int("failed", res.Failed),
		zap.String("error_report", res.ErrorReport),
	)

	event := batchEvent(JobPatients, run, res.counts(), jobErr, l.now())
	event.ErrorReport = res.ErrorReport
	publish(ctx, l.notifier, event)

	return res, jobErr
}
