package document

import "github.com/aradaody/defi-technique/internal/domain"

// Kind document type and origin derived from the file extension.
type Kind struct {
	DocumentType string
	OriginCode   string
	Supported    bool // false: no text is extracted and type/origin stay blank
}

var kinds = map[string]Kind{
	".pdf":  {DocumentType: domain.DocumentTypePDF, OriginCode: domain.OriginDossierPatient, Supported: true},
	".docx": {DocumentType: domain.DocumentTypeDOCX, OriginCode: domain.OriginRadiologieSoftware, Supported: true},
}

// Classify maps an extension (".pdf", ".docx") to its kind. Unknown extensions return a
// zero Kind.
func Classify(ext string) Kind {
	return kinds[ext]
}
