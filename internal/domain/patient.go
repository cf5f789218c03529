package domain

// Patient column names, as they appear in the source sheet and in the ANOMALY column.
const (
	ColHospitalPatientID = "HOSPITAL_PATIENT_ID"
	ColFirstname         = "FIRSTNAME"
	ColLastname          = "LASTNAME"
	ColBirthDate         = "BIRTH_DATE"
	ColSex               = "SEX"
	ColMaidenName        = "MAIDEN_NAME"
	ColResidenceAddress  = "RESIDENCE_ADDRESS"
	ColPhoneNumber       = "PHONE_NUMBER"
	ColZipCode           = "ZIP_CODE"
	ColResidenceCity     = "RESIDENCE_CITY"
	ColDeathDate         = "DEATH_DATE"
	ColResidenceCountry  = "RESIDENCE_COUNTRY"
	ColDeathCode         = "DEATH_CODE"
	ColUpdateDate        = "UPDATE_DATE"
	ColBirthCountry      = "BIRTH_COUNTRY"
	ColBirthCity         = "BIRTH_CITY"
	ColBirthZipCode      = "BIRTH_ZIP_CODE"
)

// PatientColumns the only headers accepted in a patient sheet (case-sensitive, exact match).
var PatientColumns = []string{
	ColHospitalPatientID, ColFirstname, ColLastname, ColBirthDate, ColSex, ColMaidenName,
	ColResidenceAddress, ColPhoneNumber, ColZipCode, ColResidenceCity, ColDeathDate,
	ColResidenceCountry, ColDeathCode, ColUpdateDate, ColBirthCountry, ColBirthCity, ColBirthZipCode,
}

// RequiredPatientColumns headers read by validation and matching; a sheet without one of them
// cannot be loaded.
var RequiredPatientColumns = []string{
	ColHospitalPatientID, ColFirstname, ColLastname, ColBirthDate, ColSex, ColMaidenName,
	ColResidenceAddress, ColPhoneNumber, ColResidenceCity, ColDeathDate, ColResidenceCountry,
}

// IsPatientColumn reports whether name is an accepted patient header.
func IsPatientColumn(name string) bool {
	for _, c := range PatientColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Patient warehouse patient (dwh_patient). Source fields are kept as the raw sheet text.
type Patient struct {
	PatientNum int64 `db:"patient_num"` // warehouse key, assigned on first insert

	HospitalPatientID string `db:"-"` // external id, lives in dwh_patient_ipphist

	Firstname        string `db:"firstname"`
	Lastname         string `db:"lastname"`
	BirthDate        string `db:"birth_date"`
	Sex              string `db:"sex"`
	MaidenName       string `db:"maiden_name"`
	ResidenceAddress string `db:"residence_address"`
	PhoneNumber      string `db:"phone_number"`
	ZipCode          string `db:"zip_code"`
	ResidenceCity    string `db:"residence_city"`
	DeathDate        string `db:"death_date"`
	ResidenceCountry string `db:"residence_country"`
	DeathCode        string `db:"death_code"`
	SourceUpdateDate string `db:"-"` // UPDATE_DATE cell; the stored update_date is the load date
	BirthCountry     string `db:"birth_country"`
	BirthCity        string `db:"birth_city"`
	BirthZipCode     string `db:"birth_zip_code"`

	UploadID int `db:"upload_id"`
}

// field returns a pointer to the struct field behind a sheet column.
func (p *Patient) field(column string) *string {
	switch column {
	case ColHospitalPatientID:
		return &p.HospitalPatientID
	case ColFirstname:
		return &p.Firstname
	case ColLastname:
		return &p.Lastname
	case ColBirthDate:
		return &p.BirthDate
	case ColSex:
		return &p.Sex
	case ColMaidenName:
		return &p.MaidenName
	case ColResidenceAddress:
		return &p.ResidenceAddress
	case ColPhoneNumber:
		return &p.PhoneNumber
	case ColZipCode:
		return &p.ZipCode
	case ColResidenceCity:
		return &p.ResidenceCity
	case ColDeathDate:
		return &p.DeathDate
	case ColResidenceCountry:
		return &p.ResidenceCountry
	case ColDeathCode:
		return &p.DeathCode
	case ColUpdateDate:
		return &p.SourceUpdateDate
	case ColBirthCountry:
		return &p.BirthCountry
	case ColBirthCity:
		return &p.BirthCity
	case ColBirthZipCode:
		return &p.BirthZipCode
	}
	return nil
}

// Get returns the value of a sheet column, "" for unknown columns.
func (p *Patient) Get(column string) string {
	if f := p.field(column); f != nil {
		return *f
	}
	return ""
}

// Set assigns a sheet column; unknown columns are ignored.
func (p *Patient) Set(column, value string) {
	if f := p.field(column); f != nil {
		*f = value
	}
}

// StoredColumns maps sheet columns to dwh_patient columns. HOSPITAL_PATIENT_ID goes to the
// identifier history and UPDATE_DATE is always the load date, so neither is listed.
var StoredColumns = map[string]string{
	ColFirstname:        "firstname",
	ColLastname:         "lastname",
	ColBirthDate:        "birth_date",
	ColSex:              "sex",
	ColMaidenName:       "maiden_name",
	ColResidenceAddress: "residence_address",
	ColPhoneNumber:      "phone_number",
	ColZipCode:          "zip_code",
	ColResidenceCity:    "residence_city",
	ColDeathDate:        "death_date",
	ColResidenceCountry: "residence_country",
	ColDeathCode:        "death_code",
	ColBirthCountry:     "birth_country",
	ColBirthCity:        "birth_city",
	ColBirthZipCode:     "birth_zip_code",
}

// StoredColumnsOf keeps, in sheet order, the columns that are written to dwh_patient.
func StoredColumnsOf(headers []string) []string {
	var out []string
	for _, h := range headers {
		if _, ok := StoredColumns[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

// PatientRow one data row of the patient sheet.
type PatientRow struct {
	Line    int      // 1-based sheet row, header is line 1
	Patient Patient  // typed view
	Values  []string // original cell texts in header order
}

// MergeOutcome result of resolving one clean row against the warehouse.
type MergeOutcome struct {
	PatientNum int64
	Merged     bool // true when an existing patient was updated
	Score      int  // similarity score of the chosen candidate, 0 for inserts
}
