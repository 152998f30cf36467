package model

import "time"

// CardStatus is the lifecycle state of an issued card.
type CardStatus string

const (
	CardActive    CardStatus = "active"
	CardSuspended CardStatus = "suspended"
	CardRevoked   CardStatus = "revoked"
)

// Card is a physical NFC/QR credential bound to one patient. At most one
// Active card exists per patient.
type Card struct {
	ID             string
	PatientID      string
	Hash           []byte
	NationalIDType NationalIDType
	Status         CardStatus
	IssuedAt       time.Time
	UpdatedAt      time.Time
}
