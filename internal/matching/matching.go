// Package matching scores how close an incoming patient row is to a stored patient.
package matching

import (
	"fmt"
	"strings"

	"github.com/aradaody/defi-technique/internal/database"
	"github.com/aradaody/defi-technique/internal/domain"
)

// Field one compared column: the sheet name and the dwh_patient column.
type Field struct {
	Column   string
	DBColumn string
}

// Fields compared columns, in score order. The score is the number of them that match.
var Fields = []Field{
	{domain.ColLastname, "lastname"},
	{domain.ColFirstname, "firstname"},
	{domain.ColBirthDate, "birth_date"},
	{domain.ColPhoneNumber, "phone_number"},
	{domain.ColMaidenName, "maiden_name"},
	{domain.ColResidenceCity, "residence_city"},
	{domain.ColResidenceCountry, "residence_country"},
	{domain.ColResidenceAddress, "residence_address"},
}

// MaxScore score of two identical records.
var MaxScore = len(Fields)

// Like reports whether value matches the SQL LIKE pattern, ignoring case.
// "%" matches any run of characters, "_" exactly one; there is no escape character.
func Like(value, pattern string) bool {
	v := []rune(strings.ToLower(value))
	p := []rune(strings.ToLower(pattern))

	vi, pi := 0, 0
	star, mark := -1, 0
	for vi < len(v) {
		switch {
		case pi < len(p) && p[pi] == '%':
			star = pi
			mark = vi
			pi++
		case pi < len(p) && (p[pi] == '_' || p[pi] == v[vi]):
			vi++
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			vi = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

// Score counts the compared fields of existing that match the incoming values used as patterns.
func Score(incoming, existing *domain.Patient) int {
	score := 0
	for _, f := range Fields {
		if Like(existing.Get(f.Column), incoming.Get(f.Column)) {
			score++
		}
	}
	return score
}

// Candidate stored patient with its score.
type Candidate struct {
	Patient *domain.Patient
	Score   int
}

// BestMatch returns the candidate scoring at least threshold. Among several, the one with the
// lowest warehouse key wins, whatever its score. Nil when none qualifies.
func BestMatch(incoming *domain.Patient, existing []*domain.Patient, threshold int) *Candidate {
	var best *Candidate
	for _, p := range existing {
		s := Score(incoming, p)
		if s < threshold {
			continue
		}
		if best == nil || p.PatientNum < best.Patient.PatientNum {
			best = &Candidate{Patient: p, Score: s}
		}
	}
	return best
}

// ScoreSQL returns the SQL expression computing Score inside the store. It consumes
// len(Fields) placeholders starting at $first, bound with ScoreArgs.
func ScoreSQL(dialect database.Dialect, first int) string {
	op := dialect.LikeOperator()
	escape := ""
	if dialect == database.DialectPostgres {
		// backslash escapes by default in PostgreSQL, not in SQLite
		escape = " ESCAPE ''"
	}

	terms := make([]string, len(Fields))
	for i, f := range Fields {
		terms[i] = fmt.Sprintf("CASE WHEN %s %s $%d%s THEN 1 ELSE 0 END", f.DBColumn, op, first+i, escape)
	}
	return strings.Join(terms, " + ")
}

// ScoreArgs the values bound to the ScoreSQL placeholders.
func ScoreArgs(p *domain.Patient) []any {
	args := make([]any, len(Fields))
	for i, f := range Fields {
		args[i] = p.Get(f.Column)
	}
	return args
}
