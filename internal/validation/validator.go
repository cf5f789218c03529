package validation

import (
	"strings"
	"time"

	"github.com/aradaody/defi-technique/internal/domain"
)

// Result anomalies found on one row, as column names in check order. Empty means clean.
type Result struct {
	Anomalies []string
}

// Clean reports whether no check failed.
func (r Result) Clean() bool {
	return len(r.Anomalies) == 0
}

// String the ANOMALY cell of the error report.
func (r Result) String() string {
	return strings.Join(r.Anomalies, ",")
}

// Validator applies the field rules of a patient row. Dates are checked with the configured
// format and separator against Now.
type Validator struct {
	DateFormat    string
	DateSeparator string
	Now           func() time.Time
}

// NewValidator returns a Validator using the wall clock.
func NewValidator(dateFormat, dateSeparator string) *Validator {
	return &Validator{DateFormat: dateFormat, DateSeparator: dateSeparator, Now: time.Now}
}

// Validate runs every field check on p and collects the failed column names.
func (v *Validator) Validate(p *domain.Patient) Result {
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}

	var anomalies []string
	check := func(ok bool, column string) {
		if !ok {
			anomalies = append(anomalies, column)
		}
	}

	check(ValidName(p.Lastname), domain.ColLastname)
	check(ValidName(p.Firstname), domain.ColFirstname)
	check(ValidDate(p.BirthDate, v.DateFormat, v.DateSeparator, now), domain.ColBirthDate)
	check(p.HospitalPatientID != "", domain.ColHospitalPatientID)
	check(ValidSex(p.Sex), domain.ColSex)
	check(ValidPlaceName(p.ResidenceAddress), domain.ColResidenceAddress)
	check(ValidPhoneNumber(p.PhoneNumber), domain.ColPhoneNumber)
	check(HasNoRepeatingLetters(p.ResidenceCity), domain.ColResidenceCity)
	check(ValidPlaceName(p.ResidenceCountry), domain.ColResidenceCountry)
	if p.DeathDate != "" {
		check(ValidDate(p.DeathDate, v.DateFormat, v.DateSeparator, now), domain.ColDeathDate)
	}

	return Result{Anomalies: anomalies}
}
