package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunContext values shared by every record written during one job run.
type RunContext struct {
	RunID     string    // correlation id for logs and notifications
	UploadID  int       // batch identifier, max(upload_id)+1
	LoadDate  time.Time // date part only
	StartedAt time.Time
}

// NewRunContext builds the context of a run started at now.
func NewRunContext(uploadID int, now time.Time) RunContext {
	return RunContext{
		RunID:     uuid.NewString(),
		UploadID:  uploadID,
		LoadDate:  time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		StartedAt: now,
	}
}

// LoadDay formats the load date the way it is written to update_date and file names.
func (r RunContext) LoadDay() string {
	return r.LoadDate.Format("2006-01-02")
}
