package permission

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hengadev/healthcore/internal/model"
)

// EmergencyGrantTTL is the fixed lifetime of an emergency grant. It is a
// policy constant, never per-call configuration.
const EmergencyGrantTTL = 15 * time.Minute

// ConsentStore holds consent grants keyed by (patient, grantee).
type ConsentStore struct {
	mu     sync.RWMutex
	grants map[string][]*model.ConsentGrant
}

func NewConsentStore() *ConsentStore {
	return &ConsentStore{grants: make(map[string][]*model.ConsentGrant)}
}

func consentKey(patientID, granteeID string) string {
	return patientID + "\x00" + granteeID
}

// Grant records a new active consent grant and returns it.
func (s *ConsentStore) Grant(patientID, granteeID string, scope model.ConsentScope, now time.Time, expiresAt *time.Time) *model.ConsentGrant {
	g := &model.ConsentGrant{
		ID:        uuid.NewString(),
		PatientID: patientID,
		GranteeID: granteeID,
		Scope:     scope,
		GrantedAt: now,
		ExpiresAt: expiresAt,
		Status:    model.ConsentActive,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := consentKey(patientID, granteeID)
	s.grants[k] = append(s.grants[k], g)
	return g
}

// Revoke marks every active grant for (patient, grantee) revoked.
func (s *ConsentStore) Revoke(patientID, granteeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants[consentKey(patientID, granteeID)] {
		if g.Status == model.ConsentActive {
			g.Status = model.ConsentRevoked
		}
	}
}

// Effective returns the grants for (patient, grantee) that authorise
// access at now.
func (s *ConsentStore) Effective(patientID, granteeID string, now time.Time) []*model.ConsentGrant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ConsentGrant
	for _, g := range s.grants[consentKey(patientID, granteeID)] {
		if g.EffectiveAt(now) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out
}

// EmergencyStore holds time-bounded emergency grants.
type EmergencyStore struct {
	mu     sync.RWMutex
	grants map[string][]*model.EmergencyGrant
}

func NewEmergencyStore() *EmergencyStore {
	return &EmergencyStore{grants: make(map[string][]*model.EmergencyGrant)}
}

// Grant creates an emergency grant expiring EmergencyGrantTTL after now.
func (s *EmergencyStore) Grant(patientID, granteeID, reason string, now time.Time) *model.EmergencyGrant {
	g := &model.EmergencyGrant{
		ID:        uuid.NewString(),
		PatientID: patientID,
		GranteeID: granteeID,
		Reason:    reason,
		GrantedAt: now,
		ExpiresAt: now.Add(EmergencyGrantTTL),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := consentKey(patientID, granteeID)
	s.grants[k] = append(s.grants[k], g)
	return g
}

// Effective reports whether (patient, grantee) has an unexpired emergency
// grant at now.
func (s *EmergencyStore) Effective(patientID, granteeID string, now time.Time) (*model.EmergencyGrant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants[consentKey(patientID, granteeID)] {
		if g.EffectiveAt(now) {
			cp := *g
			return &cp, true
		}
	}
	return nil, false
}
