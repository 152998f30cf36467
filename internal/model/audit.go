package model

import "time"

// EventKind is the type tag of an audit event.
type EventKind string

const (
	EventPatientRegistered EventKind = "patient_registered"
	EventPatientUpdated    EventKind = "patient_updated"
	EventPatientViewed     EventKind = "patient_viewed"
	EventRoleAssigned      EventKind = "role_assigned"
	EventRoleRevoked       EventKind = "role_revoked"
	EventCardIssued        EventKind = "card_issued"
	EventCardSuspended     EventKind = "card_suspended"
	EventCardRevoked       EventKind = "card_revoked"
	EventEmergencyGranted  EventKind = "emergency_granted"
	EventConsentGranted    EventKind = "consent_granted"
	EventConsentRevoked    EventKind = "consent_revoked"
	EventRecordUploaded    EventKind = "record_uploaded"
	EventRecordDownloaded  EventKind = "record_downloaded"
	EventRecordListed      EventKind = "record_listed"
	EventLabSubmitted      EventKind = "lab_submitted"
	EventLabApproved       EventKind = "lab_approved"
	EventLabRejected       EventKind = "lab_rejected"
	EventAuditRead         EventKind = "audit_read"
	EventAccessAttempt     EventKind = "access_attempt"
	EventIntegrity         EventKind = "integrity_event"
)

// AuditEvent is one append-only entry in a patient's log. Sequence is
// strictly increasing per patient and corresponds to commit order.
type AuditEvent struct {
	ID        string
	Sequence  uint64
	Kind      EventKind
	PatientID string
	ActorID   string
	ActorRole Role
	Timestamp time.Time
	Location  string
	Emergency bool
	Details   map[string]string
}
