package model

import "time"

// ConsentScope bounds what a consent grant permits.
type ConsentScope string

const (
	ScopeFull      ConsentScope = "full"
	ScopeLimited   ConsentScope = "limited"
	ScopeEmergency ConsentScope = "emergency"
)

func (s ConsentScope) Valid() bool {
	switch s {
	case ScopeFull, ScopeLimited, ScopeEmergency:
		return true
	}
	return false
}

// ConsentStatus is the stored lifecycle state of a consent grant. A grant
// past its expiry is treated as Expired regardless of the stored status.
type ConsentStatus string

const (
	ConsentActive  ConsentStatus = "active"
	ConsentExpired ConsentStatus = "expired"
	ConsentRevoked ConsentStatus = "revoked"
)

// ConsentGrant allows a named user access to a named patient's records
// under a scope.
type ConsentGrant struct {
	ID        string
	PatientID string
	GranteeID string
	Scope     ConsentScope
	GrantedAt time.Time
	ExpiresAt *time.Time
	Status    ConsentStatus
}

// EffectiveAt reports whether the grant authorises access at now.
func (g *ConsentGrant) EffectiveAt(now time.Time) bool {
	if g.Status != ConsentActive {
		return false
	}
	if g.ExpiresAt != nil && g.ExpiresAt.Before(now) {
		return false
	}
	return true
}

// EmergencyGrant is a time-bounded provider permission created in response
// to an emergency tap or a direct patient-ID request. Lifetime is fixed.
type EmergencyGrant struct {
	ID        string
	PatientID string
	GranteeID string
	Reason    string
	GrantedAt time.Time
	ExpiresAt time.Time
}

// EffectiveAt reports whether the grant window covers now.
func (g *EmergencyGrant) EffectiveAt(now time.Time) bool {
	return !now.After(g.ExpiresAt)
}
