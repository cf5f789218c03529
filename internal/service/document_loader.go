package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/document"
	"github.com/aradaody/defi-technique/internal/domain"
	"github.com/aradaody/defi-technique/internal/notify"
	"github.com/aradaody/defi-technique/internal/repository"
)

// DocumentLoader loads a directory of "<owner>_<sourceDoc>.<ext>" files as one batch.
type DocumentLoader struct {
	dir       string
	repo      repository.DocumentsRepository
	extractor document.TextExtractor
	metadata  *document.MetadataExtractor
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewDocumentLoader extractor defaults to document.FileTextExtractor, notifier may be nil.
func NewDocumentLoader(dir string, repo repository.DocumentsRepository, extractor document.TextExtractor, notifier notify.Notifier, logger *zap.Logger) *DocumentLoader {
	if extractor == nil {
		extractor = document.FileTextExtractor{}
	}
	return &DocumentLoader{
		dir:       dir,
		repo:      repo,
		extractor: extractor,
		metadata:  document.NewMetadataExtractor(),
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Run builds one row per document file, in file name order, and inserts the whole batch in a
// single transaction. Badly named files are skipped; files whose text cannot be read are
// counted as failed and left out.
func (l *DocumentLoader) Run(ctx context.Context) (*DocumentJobResult, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	uploadID, err := l.repo.NextUploadID(ctx)
	if err != nil {
		return nil, err
	}
	run := domain.NewRunContext(uploadID, l.now())

	logger := l.logger.With(
		zap.String("job", JobDocuments),
		zap.String("run_id", run.RunID),
		zap.Int("upload_id", run.UploadID),
	)
	logger.Info("Document integration starting", zap.String("dir", l.dir))

	res := &DocumentJobResult{RunID: run.RunID, UploadID: run.UploadID}
	docs, jobErr := l.collect(ctx, run, entries, res, logger)
	if jobErr != nil {
		logger.Error("Document integration stopped", zap.Error(jobErr))
	} else {
		n, err := l.repo.InsertDocuments(ctx, docs)
		if err != nil {
			jobErr = err
			logger.Error("Document integration failed", zap.Error(err))
		} else {
			res.Loaded = n
			for _, d := range docs {
				if d.PatientNum != nil {
					res.Linked++
				}
			}
		}
	}

	logger.Info("Document integration finished",
		zap.Int("listed", res.Listed),
		zap.Int("loaded", res.Loaded),
		zap.Int("linked", res.Linked),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)

	publish(ctx, l.notifier, batchEvent(JobDocuments, run, res.counts(), jobErr, l.now()))
	return res, jobErr
}

func (l *DocumentLoader) collect(ctx context.Context, run domain.RunContext, entries []os.DirEntry, res *DocumentJobResult, logger *zap.Logger) ([]*domain.Document, error) {
	var docs []*domain.Document
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Listed++

		name := entry.Name()
		fn, ok := document.ParseFileName(name)
		if !ok {
			res.Skipped++
			logger.Debug("File name skipped", zap.String("file", name))
			continue
		}

		kind := document.Classify(fn.Ext)
		if !kind.Supported {
			res.Unsupported++
			logger.Warn("Unsupported document type, loaded without text", zap.String("file", name))
		}

		text, err := l.extractor.Extract(ctx, filepath.Join(l.dir, name), kind)
		if err != nil {
			res.Failed++
			logger.Warn("Failed to extract text", zap.String("file", name), zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)

		patientNum, err := l.repo.FindPatientNum(ctx, fn.HospitalPatientID)
		if err != nil {
			return nil, err
		}

		md := l.metadata.Extract(text)
		docs = append(docs, &domain.Document{
			PatientNum:         patientNum,
			Title:              md.Title,
			DocumentOriginCode: kind.OriginCode,
			DocumentDate:       md.Date,
			IDDocSource:        fn.IDDocSource,
			DocumentType:       kind.DocumentType,
			DisplayedText:      text,
			Author:             md.Author,
			UpdateDate:         run.LoadDate,
			UploadID:           run.UploadID,
			FileName:           name,
			HospitalPatientID:  fn.HospitalPatientID,
		})
	}
	return docs, nil
}
