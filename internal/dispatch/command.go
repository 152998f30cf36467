package dispatch

import (
	"time"

	"github.com/hengadev/healthcore/internal/labs"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/records"
)

// Name returns the stable command tag for logging and metrics.
func Name(cmd Command) string { return cmd.name() }

// Command is one typed request delivered by the transport layer together
// with an authenticated caller ID.
type Command interface {
	// name is the stable command tag used in deny audit entries.
	name() string
	// targetPatient is the patient the command is scoped to, empty when
	// the command is not patient-scoped or the target is resolved later.
	targetPatient() string
}

type RegisterPatient struct {
	Profile model.PatientProfile
	RawID   []byte
	IDType  model.NationalIDType
}

type UpdatePatient struct {
	PatientID string
	Patch     model.PatientPatch
}

type GetPatient struct {
	PatientID string
}

type AssignRole struct {
	UserID string
	Role   model.Role
}

type RevokeRole struct {
	UserID string
}

type IssueCard struct {
	PatientID string
	IDType    model.NationalIDType
}

type TapCard struct {
	CardHash []byte
}

type GrantEmergencyAccess struct {
	PatientID string
	Reason    string
}

type GrantConsent struct {
	PatientID string
	GranteeID string
	Scope     model.ConsentScope
	ExpiresAt *time.Time
}

type RevokeConsent struct {
	PatientID string
	GranteeID string
}

type UploadRecord struct {
	PatientID  string
	RecordType model.RecordType
	Plaintext  []byte
	Meta       records.UploadMeta
}

type DownloadRecord struct {
	ContentCID  model.CID
	MetadataCID model.CID
}

type ListRecords struct {
	PatientID string
}

type SubmitLabResult struct {
	PatientID string
	Payload   labs.SubmissionPayload
}

// ReviewAction selects the lab review outcome.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

type ReviewLabResult struct {
	SubmissionID string
	Action       ReviewAction
	Reason       string
}

type ListPatientLabs struct {
	PatientID string
}

type ReadAuditLog struct {
	PatientID string
}

type SuspendCard struct {
	CardHash []byte
}

type RevokeCard struct {
	CardHash []byte
}

func (RegisterPatient) name() string { return "register_patient" }
func (UpdatePatient) name() string { return "update_patient" }
func (GetPatient) name() string { return "get_patient" }
func (AssignRole) name() string { return "assign_role" }
func (RevokeRole) name() string { return "revoke_role" }
func (IssueCard) name() string { return "issue_card" }
func (TapCard) name() string { return "tap_card" }
func (GrantEmergencyAccess) name() string { return "grant_emergency_access" }
func (GrantConsent) name() string { return "grant_consent" }
func (RevokeConsent) name() string { return "revoke_consent" }
func (UploadRecord) name() string { return "upload_record" }
func (DownloadRecord) name() string { return "download_record" }
func (ListRecords) name() string { return "list_records" }
func (SubmitLabResult) name() string { return "submit_lab_result" }
func (ReviewLabResult) name() string { return "review_lab_result" }
func (ListPatientLabs) name() string { return "list_patient_labs" }
func (ReadAuditLog) name() string { return "read_audit_log" }
func (SuspendCard) name() string { return "suspend_card" }
func (RevokeCard) name() string { return "revoke_card" }

func (RegisterPatient) targetPatient() string { return "" }
func (c UpdatePatient) targetPatient() string { return c.PatientID }
func (c GetPatient) targetPatient() string { return c.PatientID }
func (AssignRole) targetPatient() string { return "" }
func (RevokeRole) targetPatient() string { return "" }
func (c IssueCard) targetPatient() string { return c.PatientID }
func (TapCard) targetPatient() string { return "" }
func (c GrantEmergencyAccess) targetPatient() string { return c.PatientID }
func (c GrantConsent) targetPatient() string { return c.PatientID }
func (c RevokeConsent) targetPatient() string { return c.PatientID }
func (c UploadRecord) targetPatient() string { return c.PatientID }
func (DownloadRecord) targetPatient() string { return "" }
func (c ListRecords) targetPatient() string { return c.PatientID }
func (c SubmitLabResult) targetPatient() string { return c.PatientID }
func (ReviewLabResult) targetPatient() string { return "" }
func (c ListPatientLabs) targetPatient() string { return c.PatientID }
func (c ReadAuditLog) targetPatient() string { return c.PatientID }
func (SuspendCard) targetPatient() string { return "" }
func (RevokeCard) targetPatient() string { return "" }

// Results returned by the dispatcher.

type RegisterPatientResult struct {
	PatientID        string
	NationalHealthID string
}

type AssignRoleResult struct {
	UserID string
	Role   model.Role
}

type IssueCardResult struct {
	CardID    string
	CardHash  []byte
	QRPayload string
}

type TapCardResult struct {
	PatientID string
}

type GrantEmergencyAccessResult struct {
	GrantID   string
	ExpiresAt time.Time
}

type GrantConsentResult struct {
	GrantID string
}

type UploadRecordResult struct {
	ContentCID  model.CID
	MetadataCID model.CID
	Reference   *model.MedicalRecordReference
}

type DownloadRecordResult struct {
	Plaintext []byte
	Meta      *model.RecordMeta
}

type ReviewLabResultResult struct {
	SubmissionID string
	Status       model.LabStatus
}
