package permission

import (
	"time"

	"github.com/hengadev/healthcore/internal/model"
)

// access is one cell of the role capability table.
type access int8

const (
	never access = iota
	ownOnly
	related
	always
)

// table is the role capability matrix. ownOnly entries require the caller
// to bind to the target patient; related entries admit the role to the
// command class but gate the read behind an active consent or emergency
// grant, so patient data never opens on role alone; never entries may
// still be lifted by a consent grant on patient-scoped reads.
var table = map[model.Capability]map[model.Role]access{
	model.CapAssignRole: {
		model.RoleAdmin: always,
	},
	model.CapRevokeRole: {
		model.RoleAdmin: always,
	},
	model.CapRegisterPatient: {
		model.RoleAdmin: always, model.RoleDoctor: always, model.RoleNurse: always,
		model.RoleLabTechnician: always, model.RolePharmacist: always,
	},
	model.CapUpdatePatient: {
		model.RoleAdmin: always, model.RoleDoctor: always, model.RoleNurse: always,
	},
	model.CapUploadRecord: {
		model.RoleAdmin: always, model.RoleDoctor: always, model.RoleNurse: always,
	},
	model.CapDownloadRecord: {
		model.RoleAdmin: always, model.RoleDoctor: related, model.RoleNurse: related,
		model.RoleLabTechnician: related, model.RolePharmacist: related,
		model.RolePatient: ownOnly,
	},
	model.CapListRecords: {
		model.RoleAdmin: always, model.RoleDoctor: related, model.RoleNurse: related,
		model.RoleLabTechnician: related, model.RolePharmacist: related,
		model.RolePatient: ownOnly,
	},
	model.CapSubmitLabResult: {
		model.RoleAdmin: always, model.RoleDoctor: always, model.RoleNurse: always,
		model.RoleLabTechnician: always,
	},
	model.CapReviewLabResult: {
		model.RoleAdmin: always, model.RoleDoctor: always, model.RoleNurse: always,
	},
	model.CapGrantEmergencyAccess: {
		model.RoleAdmin: always, model.RoleDoctor: always, model.RoleNurse: always,
		model.RoleLabTechnician: always, model.RolePharmacist: always,
	},
	model.CapReadAuditLog: {
		model.RoleAdmin: always, model.RoleDoctor: related, model.RoleNurse: related,
		model.RoleLabTechnician: related, model.RolePharmacist: related,
		model.RolePatient: ownOnly,
	},
	model.CapReadPatient: {
		model.RoleAdmin: always, model.RoleDoctor: related, model.RoleNurse: related,
		model.RoleLabTechnician: related, model.RolePharmacist: related,
		model.RolePatient: ownOnly,
	},
}

// consentCovers maps a consent scope to the capabilities it lifts.
func consentCovers(scope model.ConsentScope, cap model.Capability) (ok, emergencyInfoOnly bool) {
	switch scope {
	case model.ScopeFull:
		switch cap {
		case model.CapReadPatient, model.CapDownloadRecord, model.CapListRecords, model.CapReadAuditLog:
			return true, false
		}
	case model.ScopeLimited:
		switch cap {
		case model.CapReadPatient, model.CapListRecords:
			return true, false
		}
	case model.ScopeEmergency:
		if cap == model.CapReadPatient {
			return true, true
		}
	}
	return false, false
}

// Decision is the engine's verdict on one command.
type Decision struct {
	Allowed bool
	// Reason is the deny reason code; empty on Allow.
	Reason string
	// Emergency is set when an unexpired emergency grant covers the
	// caller/patient pair; events committed under it carry the flag.
	Emergency bool
	// EmergencyInfoOnly restricts a patient read to the emergency subset.
	EmergencyInfoOnly bool
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// SelfResolver reports the patient a user ID binds to, when the user is
// the patient themselves.
type SelfResolver interface {
	PatientLink(userID string) (string, bool)
}

// Engine is the only authoriser in the system. Every enforcement point
// calls Authorize before doing work.
type Engine struct {
	consents  *ConsentStore
	emergency *EmergencyStore
	links     SelfResolver
}

func NewEngine(consents *ConsentStore, emergency *EmergencyStore, links SelfResolver) *Engine {
	return &Engine{consents: consents, emergency: emergency, links: links}
}

func (e *Engine) Consents() *ConsentStore    { return e.consents }
func (e *Engine) Emergency() *EmergencyStore { return e.emergency }

// Authorize decides whether caller may exercise cap against
// targetPatientID at now. An empty targetPatientID means the command is
// not patient-scoped. now is read once per command by the dispatcher; a
// grant expiring mid-command remains valid for that command's duration.
func (e *Engine) Authorize(caller *model.User, cap model.Capability, targetPatientID string, now time.Time) Decision {
	// A missing caller record outranks any Allow path.
	if caller == nil {
		return deny("USER_NOT_FOUND")
	}

	d := e.authorize(caller, cap, targetPatientID, now)
	if d.Allowed && targetPatientID != "" {
		if _, ok := e.emergency.Effective(targetPatientID, caller.ID, now); ok {
			d.Emergency = true
		}
	}
	return d
}

func (e *Engine) authorize(caller *model.User, cap model.Capability, targetPatientID string, now time.Time) Decision {
	switch table[cap][caller.Role] {
	case always:
		return allow()
	case related:
		return e.byGrant(caller, cap, targetPatientID, now, "ACCESS_DENIED")
	case ownOnly:
		if targetPatientID != "" {
			if own, ok := e.links.PatientLink(caller.ID); ok && own == targetPatientID {
				return allow()
			}
		}
		// An explicit consent grant overrides the own-record restriction.
		return e.byGrant(caller, cap, targetPatientID, now, "ACCESS_DENIED")
	default:
		if targetPatientID == "" {
			return deny("INSUFFICIENT_ROLE")
		}
		return e.byGrant(caller, cap, targetPatientID, now, "INSUFFICIENT_ROLE")
	}
}

// byGrant lifts a deny through consent grants, and through an emergency
// grant for provider roles on patient-scoped reads.
func (e *Engine) byGrant(caller *model.User, cap model.Capability, targetPatientID string, now time.Time, reason string) Decision {
	if targetPatientID == "" {
		return deny(reason)
	}
	for _, g := range e.consents.Effective(targetPatientID, caller.ID, now) {
		if ok, infoOnly := consentCovers(g.Scope, cap); ok {
			return Decision{Allowed: true, EmergencyInfoOnly: infoOnly}
		}
	}
	if caller.Role.IsProvider() {
		if _, ok := e.emergency.Effective(targetPatientID, caller.ID, now); ok {
			switch cap {
			case model.CapReadPatient:
				return Decision{Allowed: true, Emergency: true, EmergencyInfoOnly: true}
			case model.CapListRecords, model.CapDownloadRecord:
				return Decision{Allowed: true, Emergency: true}
			}
		}
	}
	return deny(reason)
}
