package domain

import "time"

// Document types and origins assigned from the file extension.
const (
	DocumentTypePDF  = "PDF"
	DocumentTypeDOCX = "DOCX"

	OriginDossierPatient     = "DOSSIER_PATIENT"
	OriginRadiologieSoftware = "RADIOLOGIE_SOFTWARE"
)

// Document warehouse document (dwh_document).
type Document struct {
	DocumentNum        int64     `db:"document_num"`
	PatientNum         *int64    `db:"patient_num"` // nil when the owner id is unknown to the warehouse
	Title              string    `db:"title"`
	DocumentOriginCode string    `db:"document_origin_code"`
	DocumentDate       string    `db:"document_date"` // raw text as found in the document
	IDDocSource        string    `db:"id_doc_source"`
	DocumentType       string    `db:"document_type"`
	DisplayedText      string    `db:"displayed_text"`
	Author             string    `db:"author"`
	UpdateDate         time.Time `db:"update_date"`
	UploadID           int       `db:"upload_id"`

	FileName          string `db:"-"`
	HospitalPatientID string `db:"-"` // owner id parsed from the file name
}
