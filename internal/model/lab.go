package model

import "time"

// LabStatus is the review state of a lab submission. Approved and Rejected
// are terminal.
type LabStatus string

const (
	LabPending  LabStatus = "pending"
	LabApproved LabStatus = "approved"
	LabRejected LabStatus = "rejected"
)

// LabResult is a single measured value within a submission.
type LabResult struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
	Abnormal       bool   `json:"abnormal,omitempty"`
}

// LabSubmission moves Pending -> Approved | Rejected under reviewer
// control. A Pending submission is invisible to the patient.
type LabSubmission struct {
	ID              string
	PatientID       string
	SubmitterID     string
	TestName        string
	Category        string
	Results         []LabResult
	Notes           string
	Status          LabStatus
	SubmittedAt     time.Time
	ReviewerID      string
	ReviewedAt      *time.Time
	RejectionReason string
	ContentCID      CID
	MetadataCID     CID
}
