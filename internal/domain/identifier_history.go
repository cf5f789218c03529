package domain

// IdentifierHistory one dwh_patient_ipphist row. Rows are only ever appended.
type IdentifierHistory struct {
	PatientNum        int64  `db:"patient_num"`
	HospitalPatientID string `db:"hospital_patient_id"`
	OriginPatientID   string `db:"origin_patient_id"`
	MasterPatientID   string `db:"master_patient_id"`
	UploadID          int    `db:"upload_id"`
}
