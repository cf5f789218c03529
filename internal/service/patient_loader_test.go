package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/domain"
	"github.com/aradaody/defi-technique/internal/repository"
	"github.com/aradaody/defi-technique/internal/spreadsheet"
)

var sheetHeaders = []string{
	"HOSPITAL_PATIENT_ID", "FIRSTNAME", "LASTNAME", "BIRTH_DATE", "SEX", "MAIDEN_NAME",
	"RESIDENCE_ADDRESS", "PHONE_NUMBER", "ZIP_CODE", "RESIDENCE_CITY", "DEATH_DATE", "RESIDENCE_COUNTRY",
}

var (
	rowLouise   = []string{"1001", "Louise", "Martin", "03-04-1980", "F", "Bernard", "4 place Bellecour", "0612345678", "69002", "Lyon", "", "France"}
	rowInvalid  = []string{"1002", "Jean", "D4", "01-01-1970", "M", "", "1 rue", "0600000000", "", "Paris", "", "France"}
	rowLouise2  = []string{"1001B", "Louise", "MARTIN", "03-04-1980", "F", "Bernard", "4 place Bellecour", "0700000000", "69002", "Lyon", "", "France"}
	rowPaul     = []string{"1003", "Paul", "Durand", "01-01-1950", "M", "", "2 avenue Foch", "01 44 00 00 00", "75016", "Paris", "", "France"}
	rowBadDates = []string{"", "Anne", "Petit", "31-02-2020", "X", "", "", "12", "", "Niiice", "01-01-2999", ""}
)

func writeSheet(t *testing.T, headers []string, rows ...[]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	write := func(line int, values []string) {
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &cells))
	}
	write(1, headers)
	for i, r := range rows {
		write(i+2, r)
	}

	path := filepath.Join(t.TempDir(), "patients.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func newTestPatientLoader(t *testing.T, source string, repo repository.PatientsRepository, n *recordingNotifier) (*PatientLoader, string) {
	t.Helper()
	errDir := filepath.Join(t.TempDir(), "errors")
	cfg := PatientLoaderConfig{
		SourceFile:      source,
		DateFormat:      "dd-mm-yyyy",
		DateSeparator:   "-",
		MatchingCount:   6,
		OriginPatientID: "HOSPITAL",
		MasterPatientID: "1",
		ErrorDir:        errDir,
	}
	// a nil *recordingNotifier must not become a non-nil notify.Notifier
	var l *PatientLoader
	if n != nil {
		l = NewPatientLoader(cfg, repo, n, zap.NewNop())
	} else {
		l = NewPatientLoader(cfg, repo, nil, zap.NewNop())
	}
	l.now = fixedClock
	return l, errDir
}

func readReport(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func TestPatientLoader_Run(t *testing.T) {
	source := writeSheet(t, sheetHeaders, rowLouise, rowInvalid, rowLouise2, rowPaul, rowLouise)
	repo := repository.NewMemoryPatientsRepo()
	rec := &recordingNotifier{}
	loader, errDir := newTestPatientLoader(t, source, repo, rec)

	res, err := loader.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.UploadID)
	assert.Equal(t, 4, res.Read)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 3, res.Loaded())

	// the second Louise row was merged into the first one
	assert.Equal(t, 2, repo.Count())
	louise, ok := repo.Patient(1)
	require.True(t, ok)
	assert.Equal(t, "MARTIN", louise.Lastname)
	assert.Equal(t, "0700000000", louise.PhoneNumber)
	assert.Equal(t, "69002", louise.ZipCode)

	hist := repo.History()
	require.Len(t, hist, 3)
	assert.Equal(t, domain.IdentifierHistory{PatientNum: 1, HospitalPatientID: "1001", OriginPatientID: "HOSPITAL", MasterPatientID: "1", UploadID: 0}, hist[0])
	assert.Equal(t, "1001B", hist[1].HospitalPatientID)
	assert.Equal(t, int64(1), hist[1].PatientNum)
	assert.Equal(t, "1003", hist[2].HospitalPatientID)
	for _, h := range hist {
		assert.NotEqual(t, "1002", h.HospitalPatientID, "rejected rows are never loaded")
	}

	assert.Equal(t, filepath.Join(errDir, "Error_integration2024-05-02.xlsx"), res.ErrorReport)
	report := readReport(t, res.ErrorReport)
	require.Len(t, report, 2)
	assert.Equal(t, append(append([]string(nil), sheetHeaders...), "ANOMALY"), report[0])
	assert.Equal(t, "1002", report[1][0])
	assert.Equal(t, "LASTNAME", report[1][len(report[1])-1])

	event := rec.last()
	require.NotNil(t, event)
	assert.Equal(t, "patients", event.Job)
	assert.Equal(t, "completed", event.Status)
	assert.Equal(t, res.RunID, event.RunID)
	assert.Equal(t, 2, event.Counts["inserted"])
	assert.Equal(t, res.ErrorReport, event.ErrorReport)
}

func TestPatientLoader_AnomalyList(t *testing.T) {
	source := writeSheet(t, sheetHeaders, rowBadDates)
	repo := repository.NewMemoryPatientsRepo()
	loader, _ := newTestPatientLoader(t, source, repo, nil)

	res, err := loader.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 0, repo.Count())

	report := readReport(t, res.ErrorReport)
	require.Len(t, report, 2)
	assert.Equal(t,
		"BIRTH_DATE,HOSPITAL_PATIENT_ID,SEX,RESIDENCE_ADDRESS,PHONE_NUMBER,RESIDENCE_CITY,RESIDENCE_COUNTRY,DEATH_DATE",
		report[1][len(report[1])-1])
}

func TestPatientLoader_BlankRowReported(t *testing.T) {
	source := writeSheet(t, sheetHeaders, rowLouise, []string{}, rowPaul)
	repo := repository.NewMemoryPatientsRepo()
	loader, _ := newTestPatientLoader(t, source, repo, nil)

	res, err := loader.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Read)
	assert.Equal(t, 1, res.Blank)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 2, res.Loaded())

	report := readReport(t, res.ErrorReport)
	require.Len(t, report, 2)
	assert.Equal(t,
		"BIRTH_DATE,HOSPITAL_PATIENT_ID,SEX,RESIDENCE_ADDRESS,PHONE_NUMBER,RESIDENCE_COUNTRY",
		report[1][len(report[1])-1])
}

func TestPatientLoader_InvalidHeaders(t *testing.T) {
	headers := append(append([]string(nil), sheetHeaders...), "NICKNAME")
	source := writeSheet(t, headers, append(append([]string(nil), rowLouise...), "Lou"))
	repo := repository.NewMemoryPatientsRepo()
	rec := &recordingNotifier{}
	loader, errDir := newTestPatientLoader(t, source, repo, rec)

	res, err := loader.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, spreadsheet.ErrInvalidHeaders))
	assert.Equal(t, 0, repo.Count())
	assert.Nil(t, rec.last())

	_, statErr := os.Stat(errDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPatientLoader_MissingHeaders(t *testing.T) {
	source := writeSheet(t, []string{"HOSPITAL_PATIENT_ID", "LASTNAME"}, []string{"1", "Martin"})
	loader, _ := newTestPatientLoader(t, source, repository.NewMemoryPatientsRepo(), nil)

	_, err := loader.Run(context.Background())
	assert.ErrorIs(t, err, spreadsheet.ErrMissingHeaders)
}

// failingPatientsRepo fails the n-th MergePatient call (1-based).
type failingPatientsRepo struct {
	*repository.MemoryPatientsRepo
	failAt int
	calls  int
}

func (r *failingPatientsRepo) MergePatient(ctx context.Context, run domain.RunContext, p *domain.Patient, columns []string, opts repository.MergeOptions) (*domain.MergeOutcome, error) {
	r.calls++
	if r.calls == r.failAt {
		return nil, errors.New("database is locked")
	}
	return r.MemoryPatientsRepo.MergePatient(ctx, run, p, columns, opts)
}

func TestPatientLoader_PersistenceFailure(t *testing.T) {
	source := writeSheet(t, sheetHeaders, rowLouise, rowInvalid, rowPaul, rowLouise2)
	mem := repository.NewMemoryPatientsRepo()
	repo := &failingPatientsRepo{MemoryPatientsRepo: mem, failAt: 2}
	rec := &recordingNotifier{}
	loader, _ := newTestPatientLoader(t, source, repo, rec)

	res, err := loader.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Contains(t, err.Error(), "line 4")

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)

	// committed rows stay, the report is still written
	assert.Equal(t, 1, mem.Count())
	report := readReport(t, res.ErrorReport)
	assert.Len(t, report, 2)

	event := rec.last()
	require.NotNil(t, event)
	assert.Equal(t, "failed", event.Status)
	assert.Contains(t, event.Error, "database is locked")
}

func TestPatientLoader_UploadIDIncreasesAcrossRuns(t *testing.T) {
	repo := repository.NewMemoryPatientsRepo()

	first, _ := newTestPatientLoader(t, writeSheet(t, sheetHeaders, rowLouise), repo, nil)
	res1, err := first.Run(context.Background())
	require.NoError(t, err)

	second, _ := newTestPatientLoader(t, writeSheet(t, sheetHeaders, rowPaul), repo, nil)
	res2, err := second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, res1.UploadID+1, res2.UploadID)
	assert.Equal(t, 1, repo.History()[1].UploadID)
}

func TestPatientLoader_Cancelled(t *testing.T) {
	source := writeSheet(t, sheetHeaders, rowLouise, rowPaul)
	repo := repository.NewMemoryPatientsRepo()
	rec := &recordingNotifier{}
	loader, _ := newTestPatientLoader(t, source, repo, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := loader.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, repo.Count())

	// the failure is still reported, on a live context
	event := rec.last()
	require.NotNil(t, event)
	assert.Equal(t, "failed", event.Status)
	assert.Contains(t, event.Error, "context canceled")
	require.Len(t, rec.ctxErrs, 1)
	assert.NoError(t, rec.ctxErrs[0])
}
