package labs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/records"
	"github.com/hengadev/healthcore/internal/store"
)

// SubmissionPayload is the input to a lab submission.
type SubmissionPayload struct {
	TestName string
	Category string
	Results  []model.LabResult
	Notes    string
}

// Uploader is the slice of the record service approval needs.
type Uploader interface {
	Upload(ctx context.Context, caller *model.User, patientID string, recordType model.RecordType, plaintext []byte, meta records.UploadMeta, now time.Time, emergency bool) (*model.MedicalRecordReference, error)
}

// Service runs the lab-review state machine: Pending -> Approved|Rejected,
// terminal states final. A Pending submission is invisible to the patient.
//
// A reviewer may approve their own submission; a single-doctor practice
// runs and signs off the same test.
type Service struct {
	mu          sync.RWMutex
	submissions map[string]*model.LabSubmission
	byPatient   map[string][]string

	patients model.PatientStore
	uploader Uploader
	locks    *store.PatientLocks
	log      *audit.Log
}

func NewService(patients model.PatientStore, uploader Uploader, locks *store.PatientLocks, log *audit.Log) *Service {
	return &Service{
		submissions: make(map[string]*model.LabSubmission),
		byPatient:   make(map[string][]string),
		patients:    patients,
		uploader:    uploader,
		locks:       locks,
		log:         log,
	}
}

func validatePayload(p SubmissionPayload) error {
	var errs errsx.Map
	if strings.TrimSpace(p.TestName) == "" {
		errs.Set("test_name", "test name is required")
	}
	if len(p.Results) == 0 {
		errs.Set("results", "at least one result is required")
	}
	for n, r := range p.Results {
		if strings.TrimSpace(r.Name) == "" {
			errs.Set(fmt.Sprintf("results[%d].name", n), "result name is required")
		}
	}
	if err := errs.AsError(); err != nil {
		return fmt.Errorf("%w: %v", hcerr.ErrInvalidPayload, err)
	}
	return nil
}

// Submit creates a Pending submission.
func (s *Service) Submit(ctx context.Context, caller *model.User, patientID string, payload SubmissionPayload, now time.Time) (*model.LabSubmission, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}
	if _, ok := s.patients.Get(patientID); !ok {
		return nil, hcerr.ErrPatientNotFound
	}

	sub := &model.LabSubmission{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		SubmitterID: caller.ID,
		TestName:    payload.TestName,
		Category:    payload.Category,
		Results:     append([]model.LabResult(nil), payload.Results...),
		Notes:       payload.Notes,
		Status:      model.LabPending,
		SubmittedAt: now,
	}

	s.locks.Lock(patientID)
	defer s.locks.Unlock(patientID)

	s.mu.Lock()
	s.submissions[sub.ID] = sub
	s.byPatient[patientID] = append(s.byPatient[patientID], sub.ID)
	s.mu.Unlock()

	err := s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventLabSubmitted,
		PatientID: patientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"submission_id": sub.ID, "test_name": sub.TestName},
	})
	if err != nil {
		s.mu.Lock()
		delete(s.submissions, sub.ID)
		ids := s.byPatient[patientID]
		s.byPatient[patientID] = ids[:len(ids)-1]
		s.mu.Unlock()
		return nil, err
	}
	cp := *sub
	return &cp, nil
}

// Approve moves Pending -> Approved and publishes the canonical result
// document through the record service, so the patient record index and
// the lab listing agree afterwards.
func (s *Service) Approve(ctx context.Context, reviewer *model.User, submissionID string, now time.Time) (*model.LabSubmission, error) {
	// Claim the submission before the upload so a concurrent reviewer
	// cannot publish the document twice.
	s.mu.Lock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		s.mu.Unlock()
		return nil, hcerr.ErrSubmissionNotFound
	}
	if sub.Status != model.LabPending || sub.ReviewerID != "" {
		s.mu.Unlock()
		return nil, hcerr.ErrAlreadyReviewed
	}
	sub.ReviewerID = reviewer.ID
	s.mu.Unlock()

	doc, err := canonicalResultsJSON(sub)
	if err != nil {
		s.unclaim(sub)
		return nil, err
	}

	// Upload takes the patient lock itself and audits RecordUploaded.
	ref, err := s.uploader.Upload(ctx, reviewer, sub.PatientID, model.RecordLabResult, doc, records.UploadMeta{
		Filename:    sub.TestName + ".json",
		ContentType: "application/json",
	}, now, false)
	if err != nil {
		s.unclaim(sub)
		return nil, err
	}

	s.locks.Lock(sub.PatientID)
	defer s.locks.Unlock(sub.PatientID)

	s.mu.Lock()
	reviewed := now
	sub.Status = model.LabApproved
	sub.ReviewedAt = &reviewed
	sub.ContentCID = ref.ContentCID
	sub.MetadataCID = ref.MetadataCID
	s.mu.Unlock()

	err = s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventLabApproved,
		PatientID: sub.PatientID,
		ActorID:   reviewer.ID,
		ActorRole: reviewer.Role,
		Timestamp: now,
		Details:   map[string]string{"submission_id": sub.ID, "content_cid": string(ref.ContentCID)},
	})
	if err != nil {
		s.mu.Lock()
		sub.Status = model.LabPending
		sub.ReviewerID = ""
		sub.ReviewedAt = nil
		sub.ContentCID = ""
		sub.MetadataCID = ""
		s.mu.Unlock()
		return nil, err
	}
	cp := *sub
	return &cp, nil
}

// unclaim releases a review claim after a failed approval.
func (s *Service) unclaim(sub *model.LabSubmission) {
	s.mu.Lock()
	sub.ReviewerID = ""
	s.mu.Unlock()
}

// Reject moves Pending -> Rejected. A non-empty reason is required.
func (s *Service) Reject(ctx context.Context, reviewer *model.User, submissionID, reason string, now time.Time) (*model.LabSubmission, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, hcerr.ErrMissingReason
	}
	s.mu.RLock()
	sub, ok := s.submissions[submissionID]
	s.mu.RUnlock()
	if !ok {
		return nil, hcerr.ErrSubmissionNotFound
	}

	s.locks.Lock(sub.PatientID)
	defer s.locks.Unlock(sub.PatientID)

	s.mu.Lock()
	if sub.Status != model.LabPending || sub.ReviewerID != "" {
		s.mu.Unlock()
		return nil, hcerr.ErrAlreadyReviewed
	}
	reviewed := now
	sub.Status = model.LabRejected
	sub.ReviewerID = reviewer.ID
	sub.ReviewedAt = &reviewed
	sub.RejectionReason = reason
	s.mu.Unlock()

	err := s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventLabRejected,
		PatientID: sub.PatientID,
		ActorID:   reviewer.ID,
		ActorRole: reviewer.Role,
		Timestamp: now,
		Details:   map[string]string{"submission_id": sub.ID, "reason": reason},
	})
	if err != nil {
		s.mu.Lock()
		sub.Status = model.LabPending
		sub.ReviewerID = ""
		sub.ReviewedAt = nil
		sub.RejectionReason = ""
		s.mu.Unlock()
		return nil, err
	}
	cp := *sub
	return &cp, nil
}

// ListForPatient returns the patient's submissions. patientView hides
// everything that is not Approved.
func (s *Service) ListForPatient(patientID string, patientView bool) []*model.LabSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.LabSubmission
	for _, id := range s.byPatient[patientID] {
		sub := s.submissions[id]
		if patientView && sub.Status != model.LabApproved {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	return out
}

// Get returns a submission by ID.
func (s *Service) Get(submissionID string) (*model.LabSubmission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, false
	}
	cp := *sub
	return &cp, true
}

// canonicalResultsJSON serialises the approved results deterministically:
// results sorted by name, timestamps in RFC 3339 UTC, keys in struct
// order under encoding/json.
func canonicalResultsJSON(sub *model.LabSubmission) ([]byte, error) {
	results := append([]model.LabResult(nil), sub.Results...)
	sort.Slice(results, func(a, b int) bool { return results[a].Name < results[b].Name })
	doc := struct {
		SubmissionID string            `json:"submission_id"`
		TestName     string            `json:"test_name"`
		Category     string            `json:"category,omitempty"`
		Results      []model.LabResult `json:"results"`
		Notes        string            `json:"notes,omitempty"`
		SubmittedAt  string            `json:"submitted_at"`
		SubmittedBy  string            `json:"submitted_by"`
	}{
		SubmissionID: sub.ID,
		TestName:     sub.TestName,
		Category:     sub.Category,
		Results:      results,
		Notes:        sub.Notes,
		SubmittedAt:  sub.SubmittedAt.UTC().Format(time.RFC3339),
		SubmittedBy:  sub.SubmitterID,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialise lab results: %w", err)
	}
	return b, nil
}
