package healthcore

import (
	"github.com/hengadev/healthcore/internal/config"
	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/dispatch"
	"github.com/hengadev/healthcore/internal/labs"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/monitoring"
	"github.com/hengadev/healthcore/internal/permission"
	"github.com/hengadev/healthcore/internal/records"
)

// Domain types.
type (
	Role             = model.Role
	Capability       = model.Capability
	User             = model.User
	Patient          = model.Patient
	PatientProfile   = model.PatientProfile
	PatientPatch     = model.PatientPatch
	EmergencyInfo    = model.EmergencyInfo
	EmergencyContact = model.EmergencyContact
	NationalIDType   = model.NationalIDType
	Card             = model.Card
	CardStatus       = model.CardStatus
	ConsentGrant     = model.ConsentGrant
	ConsentScope     = model.ConsentScope
	EmergencyGrant   = model.EmergencyGrant
	CID              = model.CID
	RecordType       = model.RecordType
	RecordReference  = model.MedicalRecordReference
	RecordMeta       = model.RecordMeta
	LabSubmission    = model.LabSubmission
	LabResult        = model.LabResult
	LabStatus        = model.LabStatus
	AuditEvent       = model.AuditEvent
	EventKind        = model.EventKind
	Clock            = model.Clock
)

// Capability interfaces.
type (
	ObjectStore = model.ObjectStore
	KeyProvider = model.KeyProvider
)

// Configuration.
type (
	Option       = config.Option
	FileConfig   = config.FileConfig
	Argon2Params = crypto.Argon2Params
)

// Monitoring.
type (
	MetricsCollector  = monitoring.MetricsCollector
	ObservabilityHook = monitoring.ObservabilityHook
)

// Command surface.
type (
	Command              = dispatch.Command
	RegisterPatient      = dispatch.RegisterPatient
	UpdatePatient        = dispatch.UpdatePatient
	GetPatient           = dispatch.GetPatient
	AssignRole           = dispatch.AssignRole
	RevokeRole           = dispatch.RevokeRole
	IssueCard            = dispatch.IssueCard
	SuspendCard          = dispatch.SuspendCard
	RevokeCard           = dispatch.RevokeCard
	TapCard              = dispatch.TapCard
	GrantEmergencyAccess = dispatch.GrantEmergencyAccess
	GrantConsent         = dispatch.GrantConsent
	RevokeConsent        = dispatch.RevokeConsent
	UploadRecord         = dispatch.UploadRecord
	UploadMeta           = records.UploadMeta
	DownloadRecord       = dispatch.DownloadRecord
	ListRecords          = dispatch.ListRecords
	SubmitLabResult      = dispatch.SubmitLabResult
	SubmissionPayload    = labs.SubmissionPayload
	ReviewLabResult      = dispatch.ReviewLabResult
	ReviewAction         = dispatch.ReviewAction
	ListPatientLabs      = dispatch.ListPatientLabs
	ReadAuditLog         = dispatch.ReadAuditLog
)

// Command results.
type (
	RegisterPatientResult      = dispatch.RegisterPatientResult
	AssignRoleResult           = dispatch.AssignRoleResult
	IssueCardResult            = dispatch.IssueCardResult
	TapCardResult              = dispatch.TapCardResult
	GrantEmergencyAccessResult = dispatch.GrantEmergencyAccessResult
	GrantConsentResult         = dispatch.GrantConsentResult
	UploadRecordResult         = dispatch.UploadRecordResult
	DownloadRecordResult       = dispatch.DownloadRecordResult
	ReviewLabResultResult      = dispatch.ReviewLabResultResult
)

// Role constants.
const (
	RoleAdmin         = model.RoleAdmin
	RoleDoctor        = model.RoleDoctor
	RoleNurse         = model.RoleNurse
	RoleLabTechnician = model.RoleLabTechnician
	RolePharmacist    = model.RolePharmacist
	RolePatient       = model.RolePatient
)

// National ID types.
const (
	NationalIDTypeNIN      = model.NationalIDTypeNIN
	NationalIDTypePassport = model.NationalIDTypePassport
	NationalIDTypeDriverID = model.NationalIDTypeDriverID
)

// Record types.
const (
	RecordLabResult        = model.RecordLabResult
	RecordImaging          = model.RecordImaging
	RecordPrescription     = model.RecordPrescription
	RecordConsultation     = model.RecordConsultation
	RecordDischargeSummary = model.RecordDischargeSummary
	RecordVaccination      = model.RecordVaccination
	RecordOther            = model.RecordOther
)

// Consent scopes.
const (
	ScopeFull      = model.ScopeFull
	ScopeLimited   = model.ScopeLimited
	ScopeEmergency = model.ScopeEmergency
)

// Card statuses.
const (
	CardActive    = model.CardActive
	CardSuspended = model.CardSuspended
	CardRevoked   = model.CardRevoked
)

// Lab statuses.
const (
	LabPending  = model.LabPending
	LabApproved = model.LabApproved
	LabRejected = model.LabRejected
)

// Review actions.
const (
	ReviewApprove = dispatch.ReviewApprove
	ReviewReject  = dispatch.ReviewReject
)

// EmergencyGrantTTL is the fixed emergency access window.
const EmergencyGrantTTL = permission.EmergencyGrantTTL
