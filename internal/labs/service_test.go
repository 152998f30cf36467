package labs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/records"
	"github.com/hengadev/healthcore/internal/store"
	"github.com/hengadev/healthcore/providers/memstore"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type staticKeys struct{}

func (staticKeys) PatientMaster(ctx context.Context, patientID string) ([]byte, error) {
	return []byte("master-" + patientID), nil
}

func newTestService(t *testing.T) (*Service, *records.Service, *records.Index, *audit.Log) {
	t.Helper()
	patients := store.NewPatients()
	require.NoError(t, patients.Create(&model.Patient{ID: "P1", NationalHealthID: "MCHI-2025-AAAA-0001"}, [32]byte{1}))

	locks := store.NewPatientLocks()
	log := audit.NewLog(nil)
	index := records.NewIndex()
	recordSvc := records.NewService(memstore.New(), staticKeys{}, patients, index, locks, log, crypto.TestArgon2Params())
	return NewService(patients, recordSvc, locks, log), recordSvc, index, log
}

func tech() *model.User {
	return &model.User{ID: "LAB-1", Role: model.RoleLabTechnician}
}

func reviewer() *model.User {
	return &model.User{ID: "DOC-3", Role: model.RoleDoctor}
}

func payload() SubmissionPayload {
	return SubmissionPayload{
		TestName: "complete blood count",
		Category: "hematology",
		Results: []model.LabResult{
			{Name: "wbc", Value: "6.1", Unit: "10^9/L", ReferenceRange: "4.0-11.0"},
			{Name: "hgb", Value: "14.2", Unit: "g/dL", ReferenceRange: "13.5-17.5"},
		},
	}
}

func TestSubmitCreatesPending(t *testing.T) {
	svc, _, _, log := newTestService(t)

	sub, err := svc.Submit(context.Background(), tech(), "P1", payload(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, model.LabPending, sub.Status)
	assert.Equal(t, "LAB-1", sub.SubmitterID)

	events := log.Read("P1", audit.Filter{Kind: model.EventLabSubmitted})
	require.Len(t, events, 1)
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		patient string
		payload SubmissionPayload
		wantErr error
	}{
		{"missing test name", "P1", SubmissionPayload{Results: payload().Results}, hcerr.ErrInvalidPayload},
		{"no results", "P1", SubmissionPayload{TestName: "cbc"}, hcerr.ErrInvalidPayload},
		{"unnamed result", "P1", SubmissionPayload{TestName: "cbc", Results: []model.LabResult{{Value: "1"}}}, hcerr.ErrInvalidPayload},
		{"unknown patient", "P404", payload(), hcerr.ErrPatientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tech(), tt.patient, tt.payload, fixedNow)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApprovePublishesRecord(t *testing.T) {
	svc, recordSvc, index, log := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, tech(), "P1", payload(), fixedNow)
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	approved, err := svc.Approve(ctx, reviewer(), sub.ID, later)
	require.NoError(t, err)
	assert.Equal(t, model.LabApproved, approved.Status)
	assert.Equal(t, "DOC-3", approved.ReviewerID)
	require.NotNil(t, approved.ReviewedAt)
	assert.NotEmpty(t, approved.ContentCID)
	assert.NotEmpty(t, approved.MetadataCID)

	// The patient record index and the submission agree.
	refs := index.ForPatient("P1")
	require.Len(t, refs, 1)
	assert.Equal(t, approved.ContentCID, refs[0].ContentCID)
	assert.Equal(t, model.RecordLabResult, refs[0].RecordType)

	// The published document is the canonical serialisation: results
	// sorted by name, RFC 3339 UTC timestamp.
	plaintext, _, err := recordSvc.Download(ctx, reviewer(), approved.ContentCID, approved.MetadataCID, later, false)
	require.NoError(t, err)
	var doc struct {
		SubmissionID string            `json:"submission_id"`
		Results      []model.LabResult `json:"results"`
		SubmittedAt  string            `json:"submitted_at"`
	}
	require.NoError(t, json.Unmarshal(plaintext, &doc))
	assert.Equal(t, sub.ID, doc.SubmissionID)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, "hgb", doc.Results[0].Name)
	assert.Equal(t, "wbc", doc.Results[1].Name)
	assert.Equal(t, "2025-06-01T12:00:00Z", doc.SubmittedAt)

	assert.Len(t, log.Read("P1", audit.Filter{Kind: model.EventLabApproved}), 1)
	assert.Len(t, log.Read("P1", audit.Filter{Kind: model.EventRecordUploaded}), 1)
}

func TestSelfReviewIsPermitted(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	// A doctor both runs and signs off the same test.
	doc := &model.User{ID: "DOC-5", Role: model.RoleDoctor}
	sub, err := svc.Submit(ctx, doc, "P1", payload(), fixedNow)
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, doc, sub.ID, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, approved.SubmitterID, approved.ReviewerID)
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _, _, log := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, tech(), "P1", payload(), fixedNow)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, reviewer(), sub.ID, "  ", fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrMissingReason)

	rejected, err := svc.Reject(ctx, reviewer(), sub.ID, "hemolyzed sample", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, model.LabRejected, rejected.Status)
	assert.Equal(t, "hemolyzed sample", rejected.RejectionReason)

	assert.Len(t, log.Read("P1", audit.Filter{Kind: model.EventLabRejected}), 1)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, tech(), "P1", payload(), fixedNow)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, reviewer(), sub.ID, "contaminated", fixedNow)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, reviewer(), sub.ID, fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrAlreadyReviewed)
	_, err = svc.Reject(ctx, reviewer(), sub.ID, "again", fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrAlreadyReviewed)

	_, err = svc.Approve(ctx, reviewer(), "missing", fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrSubmissionNotFound)
}

func TestListForPatientHidesPendingFromPatientView(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	pending, err := svc.Submit(ctx, tech(), "P1", payload(), fixedNow)
	require.NoError(t, err)

	// A pending submission is invisible to the patient.
	assert.Empty(t, svc.ListForPatient("P1", true))
	assert.Len(t, svc.ListForPatient("P1", false), 1)

	_, err = svc.Approve(ctx, reviewer(), pending.ID, fixedNow)
	require.NoError(t, err)

	visible := svc.ListForPatient("P1", true)
	require.Len(t, visible, 1)
	assert.Equal(t, model.LabApproved, visible[0].Status)

	// Rejected submissions stay invisible to the patient.
	second, err := svc.Submit(ctx, tech(), "P1", payload(), fixedNow)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, reviewer(), second.ID, "qc failure", fixedNow)
	require.NoError(t, err)

	assert.Len(t, svc.ListForPatient("P1", true), 1)
	assert.Len(t, svc.ListForPatient("P1", false), 2)
}
