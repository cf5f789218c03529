// Package document turns clinical document files into warehouse document rows.
package document

import (
	"path/filepath"
	"strings"
)

// FileName parts of a document file name "<owner>_<sourceDoc>[_...].<ext>".
type FileName struct {
	HospitalPatientID string // owner identifier
	IDDocSource       string // source document identifier
	Ext               string // lower-cased extension with its dot, "" when none
}

// ParseFileName splits the base name (extension removed) on "_". Names with fewer than two
// segments are not document files and yield ok=false. Segments after the second are ignored.
func ParseFileName(name string) (FileName, bool) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return FileName{}, false
	}
	return FileName{
		HospitalPatientID: parts[0],
		IDDocSource:       parts[1],
		Ext:               strings.ToLower(ext),
	}, true
}
