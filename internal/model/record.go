package model

import "time"

// CID is an opaque content identifier returned by the object store.
type CID string

// RecordType classifies a stored medical document.
type RecordType string

const (
	RecordLabResult        RecordType = "lab_result"
	RecordImaging          RecordType = "imaging"
	RecordPrescription     RecordType = "prescription"
	RecordConsultation     RecordType = "consultation"
	RecordDischargeSummary RecordType = "discharge_summary"
	RecordVaccination      RecordType = "vaccination"
	RecordOther            RecordType = "other"
)

func (t RecordType) Valid() bool {
	switch t {
	case RecordLabResult, RecordImaging, RecordPrescription, RecordConsultation,
		RecordDischargeSummary, RecordVaccination, RecordOther:
		return true
	}
	return false
}

// MedicalRecordReference points at an encrypted document in the object
// store. The payload never leaves the store in plaintext.
type MedicalRecordReference struct {
	PatientID       string
	ContentCID      CID
	MetadataCID     CID
	RecordType      RecordType
	ContentChecksum []byte
	UploadedBy      string
	UploadedAt      time.Time
}

// RecordMeta is the sealed metadata persisted under the metadata CID,
// bound to the content CID as additional authenticated data.
type RecordMeta struct {
	Filename        string     `json:"filename"`
	ContentType     string     `json:"content_type"`
	RecordType      RecordType `json:"record_type"`
	UploadedBy      string     `json:"uploaded_by"`
	UploadedAt      time.Time  `json:"uploaded_at"`
	ContentChecksum []byte     `json:"content_checksum"`
}
