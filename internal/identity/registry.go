package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/store"
)

// HealthIDPrefix starts every minted national health identifier.
const HealthIDPrefix = "MCHI"

// mintAttempts bounds the health-ID collision retry. Exceeding it means
// the 32-bit suffix space is effectively exhausted.
const mintAttempts = 8

// Registry owns patient identity: registration, updates and lookups.
// Authorisation happens in the dispatcher before any call lands here.
type Registry struct {
	patients model.PatientStore
	locks    *store.PatientLocks
	log      *audit.Log
}

func NewRegistry(patients model.PatientStore, locks *store.PatientLocks, log *audit.Log) *Registry {
	return &Registry{patients: patients, locks: locks, log: log}
}

func validateProfile(p model.PatientProfile) error {
	var errs errsx.Map
	if strings.TrimSpace(p.Name) == "" {
		errs.Set("name", "name is required")
	}
	if p.DateOfBirth.IsZero() {
		errs.Set("date_of_birth", "date of birth is required")
	}
	if err := errs.AsError(); err != nil {
		return fmt.Errorf("%w: %v", hcerr.ErrInvalidPayload, err)
	}
	return nil
}

// Register mints a patient identity. rawID is consumed: it is hashed with
// domain separation and zeroised, never stored. Duplicate identities are
// rejected before any state is written.
func (r *Registry) Register(ctx context.Context, caller *model.User, profile model.PatientProfile, rawID []byte, idType model.NationalIDType, now time.Time) (*model.Patient, error) {
	if err := validateProfile(profile); err != nil {
		crypto.Zeroise(rawID)
		return nil, err
	}
	if !idType.Valid() {
		crypto.Zeroise(rawID)
		return nil, fmt.Errorf("%w: unknown national id type %q", hcerr.ErrInvalidPayload, idType)
	}
	hash := crypto.HashNationalID(rawID, string(idType))

	if _, dup := r.patients.GetByNationalHash(hash); dup {
		return nil, hcerr.ErrDuplicateIdentity
	}

	p := &model.Patient{
		ID:             uuid.NewString(),
		Name:           profile.Name,
		DateOfBirth:    profile.DateOfBirth,
		Emergency:      profile.Emergency,
		LastModifiedBy: caller.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created := false
	for attempt := 0; attempt < mintAttempts; attempt++ {
		healthID, err := mintHealthID(now)
		if err != nil {
			return nil, err
		}
		p.NationalHealthID = healthID
		err = r.patients.Create(p, hash)
		if err == nil {
			created = true
			break
		}
		if err == hcerr.ErrDuplicateIdentity {
			return nil, err
		}
		// Health-ID collision: redraw.
	}
	if !created {
		return nil, hcerr.ErrIDExhaustion
	}

	r.locks.Lock(p.ID)
	defer r.locks.Unlock(p.ID)
	err := r.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventPatientRegistered,
		PatientID: p.ID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"national_health_id": p.NationalHealthID},
	})
	if err != nil {
		r.patients.Remove(p.ID)
		return nil, err
	}
	return p, nil
}

// mintHealthID draws a fresh MCHI-YYYY-XXXX-XXXX identifier.
func mintHealthID(now time.Time) (string, error) {
	b, err := crypto.RandomBytes(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d-%02X%02X-%02X%02X", HealthIDPrefix, now.Year(), b[0], b[1], b[2], b[3]), nil
}

// Update applies a whitelisted patch to the patient's emergency profile.
// Timestamps and last_modified_by are set here, never by the caller.
func (r *Registry) Update(ctx context.Context, caller *model.User, patientID string, patch model.PatientPatch, now time.Time, emergency bool) (*model.Patient, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: empty patch", hcerr.ErrInvalidPayload)
	}

	r.locks.Lock(patientID)
	defer r.locks.Unlock(patientID)

	prior, ok := r.patients.Get(patientID)
	if !ok {
		return nil, hcerr.ErrPatientNotFound
	}

	var updated *model.Patient
	err := r.patients.Update(patientID, func(p *model.Patient) error {
		applyPatch(p, patch)
		p.LastModifiedBy = caller.ID
		p.UpdatedAt = now
		cp := *p
		updated = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventPatientUpdated,
		PatientID: patientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: emergency,
		Details:   map[string]string{"fields": patchedFields(patch)},
	})
	if err != nil {
		// Audit must follow the state write; restore the prior profile.
		restoreErr := r.patients.Update(patientID, func(p *model.Patient) error {
			*p = *prior
			return nil
		})
		if restoreErr != nil {
			panic(fmt.Sprintf("patient update rollback failed: %v", restoreErr))
		}
		return nil, err
	}
	return updated, nil
}

func applyPatch(p *model.Patient, patch model.PatientPatch) {
	if patch.Allergies != nil {
		p.Emergency.Allergies = append([]string(nil), *patch.Allergies...)
	}
	if patch.CurrentMeds != nil {
		p.Emergency.CurrentMeds = append([]string(nil), *patch.CurrentMeds...)
	}
	if patch.ChronicConditions != nil {
		p.Emergency.ChronicConditions = append([]string(nil), *patch.ChronicConditions...)
	}
	if patch.EmergencyContacts != nil {
		p.Emergency.EmergencyContacts = append([]model.EmergencyContact(nil), *patch.EmergencyContacts...)
	}
	if patch.OrganDonor != nil {
		p.Emergency.OrganDonor = *patch.OrganDonor
	}
	if patch.DNR != nil {
		p.Emergency.DNR = *patch.DNR
	}
}

func patchedFields(patch model.PatientPatch) string {
	var fields []string
	if patch.Allergies != nil {
		fields = append(fields, "allergies")
	}
	if patch.CurrentMeds != nil {
		fields = append(fields, "current_meds")
	}
	if patch.ChronicConditions != nil {
		fields = append(fields, "chronic_conditions")
	}
	if patch.EmergencyContacts != nil {
		fields = append(fields, "emergency_contacts")
	}
	if patch.OrganDonor != nil {
		fields = append(fields, "organ_donor")
	}
	if patch.DNR != nil {
		fields = append(fields, "dnr")
	}
	return strings.Join(fields, ",")
}

// Get returns a patient by ID, recording the read. When infoOnly is set
// the result is stripped to the emergency subset.
func (r *Registry) Get(ctx context.Context, caller *model.User, patientID string, now time.Time, emergency, infoOnly bool) (*model.Patient, error) {
	p, ok := r.patients.Get(patientID)
	if !ok {
		return nil, hcerr.ErrPatientNotFound
	}
	if infoOnly {
		p = &model.Patient{
			ID:               p.ID,
			NationalHealthID: p.NationalHealthID,
			Name:             p.Name,
			Emergency:        p.Emergency,
		}
	}
	err := r.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventPatientViewed,
		PatientID: patientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: emergency,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByNationalHash resolves a patient through the uniqueness index.
func (r *Registry) GetByNationalHash(hash [32]byte) (*model.Patient, error) {
	p, ok := r.patients.GetByNationalHash(hash)
	if !ok {
		return nil, hcerr.ErrPatientNotFound
	}
	return p, nil
}
