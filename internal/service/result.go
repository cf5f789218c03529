package service

import (
	"context"
	"time"

	"github.com/aradaody/defi-technique/internal/domain"
	"github.com/aradaody/defi-technique/internal/notify"
)

// Job names, also used as notification job labels.
const (
	JobPatients  = "patients"
	JobDocuments = "documents"
)

// PatientJobResult outcome of a patient load. It is returned together with the error when the
// job stopped early; the counts then describe what was done before the failure.
type PatientJobResult struct {
	RunID       string
	UploadID    int
	Read        int // data rows kept after duplicate removal
	Blank       int // blank rows among Read, always rejected
	Duplicates  int
	Inserted    int
	Merged      int
	Rejected    int // rows routed to the error report
	Failed      int // rows whose persistence failed
	Skipped     int // rows left unprocessed after a failure
	ErrorReport string
}

// Loaded rows written to the warehouse.
func (r *PatientJobResult) Loaded() int {
	return r.Inserted + r.Merged
}

func (r *PatientJobResult) counts() map[string]int {
	return map[string]int{
		"read":       r.Read,
		"blank":      r.Blank,
		"duplicates": r.Duplicates,
		"inserted":   r.Inserted,
		"merged":     r.Merged,
		"rejected":   r.Rejected,
		"failed":     r.Failed,
		"skipped":    r.Skipped,
	}
}

// DocumentJobResult outcome of a document load.
type DocumentJobResult struct {
	RunID       string
	UploadID    int
	Listed      int // regular files found
	Skipped     int // file names without owner/source parts
	Unsupported int // extensions with no text extractor; still loaded
	Failed      int // text extraction failures; not loaded
	Loaded      int
	Linked      int // loaded documents whose owner id resolved to a patient_num
}

func (r *DocumentJobResult) counts() map[string]int {
	return map[string]int{
		"listed":      r.Listed,
		"skipped":     r.Skipped,
		"unsupported": r.Unsupported,
		"failed":      r.Failed,
		"loaded":      r.Loaded,
		"linked":      r.Linked,
	}
}

func batchEvent(job string, run domain.RunContext, counts map[string]int, jobErr error, finished time.Time) *notify.BatchCompleted {
	e := &notify.BatchCompleted{
		Job:        job,
		RunID:      run.RunID,
		UploadID:   run.UploadID,
		LoadDate:   run.LoadDay(),
		Status:     notify.StatusCompleted,
		Counts:     counts,
		StartedAt:  run.StartedAt,
		FinishedAt: finished,
	}
	if jobErr != nil {
		e.Status = notify.StatusFailed
		e.Error = jobErr.Error()
	}
	return e
}

// notifyTimeout bounds the delivery of the end-of-run event.
const notifyTimeout = 10 * time.Second

// publish delivers event on a context detached from the job's cancellation, so an
// interrupted run still reports its failure. Errors are logged by the notifier.
func publish(ctx context.Context, n notify.Notifier, event *notify.BatchCompleted) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	_ = n.Notify(ctx, event)
}
