package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/cards"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/identity"
	"github.com/hengadev/healthcore/internal/labs"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/monitoring"
	"github.com/hengadev/healthcore/internal/permission"
	"github.com/hengadev/healthcore/internal/records"
)

// Dispatcher resolves the caller, authorises through the permission
// engine and routes to the owning service. Every dispatched command ends
// in exactly one of: typed result, typed error, or panic on invariant
// violation.
type Dispatcher struct {
	users    model.UserRegistry
	patients model.PatientStore
	engine   *permission.Engine
	registry *identity.Registry
	cards    *cards.Service
	records  *records.Service
	index    *records.Index
	labs     *labs.Service
	log      *audit.Log
	clock    model.Clock
	hook     monitoring.ObservabilityHook
}

func New(
	users model.UserRegistry,
	patients model.PatientStore,
	engine *permission.Engine,
	registry *identity.Registry,
	cardSvc *cards.Service,
	recordSvc *records.Service,
	index *records.Index,
	labSvc *labs.Service,
	log *audit.Log,
	clock model.Clock,
	hook monitoring.ObservabilityHook,
) *Dispatcher {
	if hook == nil {
		hook = &monitoring.NoOpObservabilityHook{}
	}
	return &Dispatcher{
		users:    users,
		patients: patients,
		engine:   engine,
		registry: registry,
		cards:    cardSvc,
		records:  recordSvc,
		index:    index,
		labs:     labSvc,
		log:      log,
		clock:    clock,
		hook:     hook,
	}
}

// capabilityFor maps a command to the capability the engine checks.
func capabilityFor(cmd Command) model.Capability {
	switch cmd.(type) {
	case RegisterPatient:
		return model.CapRegisterPatient
	case UpdatePatient:
		return model.CapUpdatePatient
	case GetPatient:
		return model.CapReadPatient
	case AssignRole:
		return model.CapAssignRole
	case RevokeRole:
		return model.CapRevokeRole
	case IssueCard, SuspendCard, RevokeCard:
		return model.CapRegisterPatient
	case GrantEmergencyAccess:
		return model.CapGrantEmergencyAccess
	case UploadRecord:
		return model.CapUploadRecord
	case DownloadRecord:
		return model.CapDownloadRecord
	case ListRecords:
		return model.CapListRecords
	case SubmitLabResult:
		return model.CapSubmitLabResult
	case ReviewLabResult:
		return model.CapReviewLabResult
	case ListPatientLabs:
		return model.CapListRecords
	case ReadAuditLog:
		return model.CapReadAuditLog
	}
	return ""
}

// denyError maps an engine reason code to its sentinel.
func denyError(reason string) error {
	switch reason {
	case "USER_NOT_FOUND":
		return hcerr.ErrUserNotFound
	case "INSUFFICIENT_ROLE":
		return hcerr.ErrInsufficientRole
	default:
		return hcerr.ErrAccessDenied
	}
}

// Dispatch executes one command on behalf of callerID. The wall clock is
// read exactly once; a grant expiring mid-command stays valid for the
// command's duration. Cancellation is honoured only before the permission
// decision.
func (d *Dispatcher) Dispatch(ctx context.Context, callerID string, cmd Command) (any, error) {
	now := d.clock()

	// The tap path is the unauthenticated emergency entry point; it
	// resolves a card to a patient ID and nothing else.
	if tap, ok := cmd.(TapCard); ok {
		patientID, err := d.cards.Tap(tap.CardHash)
		if err != nil {
			return nil, err
		}
		return TapCardResult{PatientID: patientID}, nil
	}

	caller, found := d.users.Get(callerID)
	if !found {
		return nil, hcerr.ErrUserNotFound
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Consent commands sit outside the capability table: the authority is
	// the patient themselves or a provider acting as operator, checked in
	// checkConsentAuthority with its own deny audit.
	switch c := cmd.(type) {
	case GrantConsent:
		return d.grantConsent(ctx, caller, c, now)
	case RevokeConsent:
		return d.revokeConsent(ctx, caller, c, now)
	}

	target := cmd.targetPatient()
	switch c := cmd.(type) {
	case DownloadRecord:
		// Resolve the owning patient before authorising.
		if ref, ok := d.index.ByContentCID(c.ContentCID); ok {
			target = ref.PatientID
		}
	case ReviewLabResult:
		if sub, ok := d.labs.Get(c.SubmissionID); ok {
			target = sub.PatientID
		}
	}

	decision := d.engine.Authorize(caller, capabilityFor(cmd), target, now)
	if !decision.Allowed {
		d.auditDeny(ctx, caller, cmd, target, decision.Reason, now)
		return nil, denyError(decision.Reason)
	}

	// Past the permission decision the command runs to completion.
	return d.route(ctx, caller, cmd, decision, now)
}

// auditDeny records a refused access attempt. It writes under a bypass:
// no permission check guards it, so a deny cannot be suppressed by the
// caller's missing audit-log rights.
func (d *Dispatcher) auditDeny(ctx context.Context, caller *model.User, cmd Command, target, reason string, now time.Time) {
	d.hook.OnAccessDenied(ctx, cmd.name(), caller.ID, reason)
	if target == "" {
		return
	}
	_ = d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventAccessAttempt,
		PatientID: target,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details: map[string]string{
			"command": cmd.name(),
			"granted": "false",
			"reason":  reason,
		},
	})
}

func (d *Dispatcher) route(ctx context.Context, caller *model.User, cmd Command, decision permission.Decision, now time.Time) (any, error) {
	switch c := cmd.(type) {
	case RegisterPatient:
		p, err := d.registry.Register(ctx, caller, c.Profile, c.RawID, c.IDType, now)
		if err != nil {
			return nil, err
		}
		return RegisterPatientResult{PatientID: p.ID, NationalHealthID: p.NationalHealthID}, nil

	case UpdatePatient:
		p, err := d.registry.Update(ctx, caller, c.PatientID, c.Patch, now, decision.Emergency)
		if err != nil {
			return nil, err
		}
		return p, nil

	case GetPatient:
		return d.registry.Get(ctx, caller, c.PatientID, now, decision.Emergency, decision.EmergencyInfoOnly)

	case AssignRole:
		return d.assignRole(ctx, caller, c, now)

	case RevokeRole:
		return d.revokeRole(ctx, caller, c, now)

	case IssueCard:
		card, qr, err := d.cards.Issue(ctx, caller, c.PatientID, c.IDType, now)
		if err != nil {
			return nil, err
		}
		return IssueCardResult{CardID: card.ID, CardHash: card.Hash, QRPayload: qr}, nil

	case SuspendCard:
		return nil, d.cards.Suspend(ctx, caller, c.CardHash, now)

	case RevokeCard:
		return nil, d.cards.Revoke(ctx, caller, c.CardHash, now)

	case GrantEmergencyAccess:
		return d.grantEmergency(ctx, caller, c, now)

	case UploadRecord:
		ref, err := d.records.Upload(ctx, caller, c.PatientID, c.RecordType, c.Plaintext, c.Meta, now, decision.Emergency)
		if err != nil {
			return nil, err
		}
		return UploadRecordResult{ContentCID: ref.ContentCID, MetadataCID: ref.MetadataCID, Reference: ref}, nil

	case DownloadRecord:
		plaintext, meta, err := d.records.Download(ctx, caller, c.ContentCID, c.MetadataCID, now, decision.Emergency)
		if err != nil {
			return nil, err
		}
		return DownloadRecordResult{Plaintext: plaintext, Meta: meta}, nil

	case ListRecords:
		return d.records.List(ctx, caller, c.PatientID, now, decision.Emergency)

	case SubmitLabResult:
		sub, err := d.labs.Submit(ctx, caller, c.PatientID, c.Payload, now)
		if err != nil {
			return nil, err
		}
		return sub, nil

	case ReviewLabResult:
		return d.reviewLab(ctx, caller, c, now)

	case ListPatientLabs:
		return d.listLabs(ctx, caller, c, decision, now)

	case ReadAuditLog:
		return d.readAudit(ctx, caller, c, decision, now)
	}
	panic(fmt.Sprintf("unhandled command %T", cmd))
}

func (d *Dispatcher) assignRole(ctx context.Context, caller *model.User, c AssignRole, now time.Time) (any, error) {
	if c.Role == model.RoleAdmin {
		return nil, hcerr.ErrCannotAssignAdmin
	}
	if !c.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", hcerr.ErrInvalidPayload, c.Role)
	}
	target, ok := d.users.Get(c.UserID)
	if !ok {
		return nil, hcerr.ErrUserNotFound
	}
	if !d.users.CompareAndSwapRole(c.UserID, target.Role, c.Role) {
		return nil, fmt.Errorf("%w: role changed concurrently", hcerr.ErrInvalidStateTransition)
	}
	err := d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventRoleAssigned,
		PatientID: c.UserID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"role": string(c.Role)},
	})
	if err != nil {
		if !d.users.CompareAndSwapRole(c.UserID, c.Role, target.Role) {
			panic("role assignment rollback failed")
		}
		return nil, err
	}
	return AssignRoleResult{UserID: c.UserID, Role: c.Role}, nil
}

func (d *Dispatcher) revokeRole(ctx context.Context, caller *model.User, c RevokeRole, now time.Time) (any, error) {
	if c.UserID == caller.ID {
		return nil, hcerr.ErrCannotRevokeOwnRole
	}
	target, ok := d.users.Get(c.UserID)
	if !ok {
		return nil, hcerr.ErrUserNotFound
	}
	if target.Role == model.RolePatient {
		return nil, hcerr.ErrNoRoleToRevoke
	}
	if !d.users.CompareAndSwapRole(c.UserID, target.Role, model.RolePatient) {
		return nil, fmt.Errorf("%w: role changed concurrently", hcerr.ErrInvalidStateTransition)
	}
	err := d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventRoleRevoked,
		PatientID: c.UserID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"revoked_role": string(target.Role)},
	})
	if err != nil {
		if !d.users.CompareAndSwapRole(c.UserID, model.RolePatient, target.Role) {
			panic("role revocation rollback failed")
		}
		return nil, err
	}
	return map[string]string{"user_id": c.UserID}, nil
}

func (d *Dispatcher) grantEmergency(ctx context.Context, caller *model.User, c GrantEmergencyAccess, now time.Time) (any, error) {
	if c.Reason == "" {
		return nil, hcerr.ErrMissingReason
	}
	if _, ok := d.patients.Get(c.PatientID); !ok {
		return nil, hcerr.ErrPatientNotFound
	}
	g := d.engine.Emergency().Grant(c.PatientID, caller.ID, c.Reason, now)
	err := d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventEmergencyGranted,
		PatientID: c.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: true,
		Details:   map[string]string{"grant_id": g.ID, "reason": c.Reason},
	})
	if err != nil {
		return nil, err
	}
	return GrantEmergencyAccessResult{GrantID: g.ID, ExpiresAt: g.ExpiresAt}, nil
}

// grantConsent is allowed for the patient on their own record and for any
// provider acting as operator.
func (d *Dispatcher) grantConsent(ctx context.Context, caller *model.User, c GrantConsent, now time.Time) (any, error) {
	if err := d.checkConsentAuthority(ctx, caller, c.PatientID, "grant_consent", now); err != nil {
		return nil, err
	}
	if !c.Scope.Valid() {
		return nil, fmt.Errorf("%w: unknown consent scope %q", hcerr.ErrInvalidPayload, c.Scope)
	}
	if _, ok := d.users.Get(c.GranteeID); !ok {
		return nil, hcerr.ErrUserNotFound
	}
	g := d.engine.Consents().Grant(c.PatientID, c.GranteeID, c.Scope, now, c.ExpiresAt)
	err := d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventConsentGranted,
		PatientID: c.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"grant_id": g.ID, "grantee": c.GranteeID, "scope": string(c.Scope)},
	})
	if err != nil {
		d.engine.Consents().Revoke(c.PatientID, c.GranteeID)
		return nil, err
	}
	return GrantConsentResult{GrantID: g.ID}, nil
}

func (d *Dispatcher) revokeConsent(ctx context.Context, caller *model.User, c RevokeConsent, now time.Time) (any, error) {
	if err := d.checkConsentAuthority(ctx, caller, c.PatientID, "revoke_consent", now); err != nil {
		return nil, err
	}
	d.engine.Consents().Revoke(c.PatientID, c.GranteeID)
	err := d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventConsentRevoked,
		PatientID: c.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"grantee": c.GranteeID},
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"patient_id": c.PatientID}, nil
}

func (d *Dispatcher) checkConsentAuthority(ctx context.Context, caller *model.User, patientID, command string, now time.Time) error {
	if _, ok := d.patients.Get(patientID); !ok {
		return hcerr.ErrPatientNotFound
	}
	if caller.Role.IsProvider() {
		return nil
	}
	if own, ok := d.patients.PatientLink(caller.ID); ok && own == patientID {
		return nil
	}
	d.hook.OnAccessDenied(ctx, command, caller.ID, "ACCESS_DENIED")
	_ = d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventAccessAttempt,
		PatientID: patientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"command": command, "granted": "false", "reason": "ACCESS_DENIED"},
	})
	return hcerr.ErrAccessDenied
}

func (d *Dispatcher) reviewLab(ctx context.Context, caller *model.User, c ReviewLabResult, now time.Time) (any, error) {
	switch c.Action {
	case ReviewApprove:
		sub, err := d.labs.Approve(ctx, caller, c.SubmissionID, now)
		if err != nil {
			return nil, err
		}
		return ReviewLabResultResult{SubmissionID: sub.ID, Status: sub.Status}, nil
	case ReviewReject:
		sub, err := d.labs.Reject(ctx, caller, c.SubmissionID, c.Reason, now)
		if err != nil {
			return nil, err
		}
		return ReviewLabResultResult{SubmissionID: sub.ID, Status: sub.Status}, nil
	default:
		return nil, fmt.Errorf("%w: unknown review action %q", hcerr.ErrInvalidPayload, c.Action)
	}
}

func (d *Dispatcher) listLabs(ctx context.Context, caller *model.User, c ListPatientLabs, decision permission.Decision, now time.Time) (any, error) {
	if _, ok := d.patients.Get(c.PatientID); !ok {
		return nil, hcerr.ErrPatientNotFound
	}
	patientView := caller.Role == model.RolePatient
	subs := d.labs.ListForPatient(c.PatientID, patientView)
	err := d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventRecordListed,
		PatientID: c.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: decision.Emergency,
		Details:   map[string]string{"listing": "labs"},
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (d *Dispatcher) readAudit(ctx context.Context, caller *model.User, c ReadAuditLog, decision permission.Decision, now time.Time) (any, error) {
	events := d.log.Read(c.PatientID, audit.Filter{})
	err := d.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventAuditRead,
		PatientID: c.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: decision.Emergency,
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
