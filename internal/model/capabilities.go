package model

import (
	"context"
	"time"
)

// Clock supplies the single wall-clock reading a command is evaluated
// against. Injected so grant expiry and minting years are deterministic in
// tests.
type Clock func() time.Time

// ObjectStore is the narrow capability over the external content-addressed
// store. Put returns the CID the bytes are retrievable under.
type ObjectStore interface {
	Put(ctx context.Context, b []byte) (CID, error)
	Get(ctx context.Context, cid CID) ([]byte, error)
}

// KeyProvider supplies per-patient master key material. Key material is
// read-only after initialisation and never persists alongside ciphertext.
type KeyProvider interface {
	PatientMaster(ctx context.Context, patientID string) ([]byte, error)
}

// UserRegistry holds authenticated actors.
type UserRegistry interface {
	Get(userID string) (*User, bool)
	Put(u *User) error
	// CompareAndSwapRole updates a user's role only if the current role
	// matches old. Returns false on mismatch or missing user.
	CompareAndSwapRole(userID string, old, new Role) bool
}

// PatientStore holds patients plus the injective national-ID-hash index.
type PatientStore interface {
	Get(patientID string) (*Patient, bool)
	GetByNationalHash(hash [32]byte) (*Patient, bool)
	GetByHealthID(healthID string) (*Patient, bool)
	// Create registers the patient and its national-ID hash atomically;
	// it fails if the hash or the health ID is already bound.
	Create(p *Patient, hash [32]byte) error
	// Update applies fn to the stored patient under the entry lock.
	Update(patientID string, fn func(*Patient) error) error
	// Remove unregisters a patient and its index entries. Only used to
	// roll back a registration whose audit append failed.
	Remove(patientID string)
	// PatientLink reports the patient bound to a user ID, if the user is
	// the patient themselves.
	PatientLink(userID string) (string, bool)
	LinkUser(userID, patientID string)
}

// CardIndex maps opaque card tokens to cards. Lookups are constant-time
// over the token comparison.
type CardIndex interface {
	Get(cardID string) (*Card, bool)
	GetByHash(hash []byte) (*Card, bool)
	ActiveByPatient(patientID string) (*Card, bool)
	Put(c *Card) error
	// UpdateStatus transitions a card's lifecycle state under the entry lock.
	UpdateStatus(cardID string, status CardStatus, now time.Time) error
}
