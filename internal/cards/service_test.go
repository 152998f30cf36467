package cards

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/store"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.Cards, *audit.Log) {
	t.Helper()
	patients := store.NewPatients()
	require.NoError(t, patients.Create(&model.Patient{
		ID:               "P1",
		NationalHealthID: "MCHI-2025-AAAA-0001",
		Name:             "Ada",
	}, [32]byte{1}))

	cardIndex := store.NewCards()
	log := audit.NewLog(nil)
	return NewService(cardIndex, patients, store.NewPatientLocks(), log), cardIndex, log
}

func provider() *model.User {
	return &model.User{ID: "DOC-1", Role: model.RoleDoctor}
}

func TestIssueCard(t *testing.T) {
	svc, _, log := newTestService(t)
	ctx := context.Background()

	card, qr, err := svc.Issue(ctx, provider(), "P1", model.NationalIDTypeNIN, fixedNow)
	require.NoError(t, err)
	assert.Len(t, card.Hash, 32)
	assert.Equal(t, model.CardActive, card.Status)

	// QR payload is base64 of {health_id, card_hash} compact JSON.
	raw, err := base64.StdEncoding.DecodeString(qr)
	require.NoError(t, err)
	var payload QRPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "MCHI-2025-AAAA-0001", payload.HealthID)
	assert.Len(t, payload.CardHash, 64)

	events := log.Read("P1", audit.Filter{Kind: model.EventCardIssued})
	require.Len(t, events, 1)
}

func TestIssueRevokesPriorActiveCard(t *testing.T) {
	svc, cardIndex, _ := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.Issue(ctx, provider(), "P1", model.NationalIDTypeNIN, fixedNow)
	require.NoError(t, err)
	second, _, err := svc.Issue(ctx, provider(), "P1", model.NationalIDTypeNIN, fixedNow.Add(time.Hour))
	require.NoError(t, err)

	old, _ := cardIndex.Get(first.ID)
	assert.Equal(t, model.CardRevoked, old.Status)

	active, ok := cardIndex.ActiveByPatient("P1")
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
}

func TestIssueUnknownPatient(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.Issue(context.Background(), provider(), "P404", model.NationalIDTypeNIN, fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrPatientNotFound)
}

func TestTapResolvesOnlyActiveCards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	card, _, err := svc.Issue(ctx, provider(), "P1", model.NationalIDTypeNIN, fixedNow)
	require.NoError(t, err)

	patientID, err := svc.Tap(card.Hash)
	require.NoError(t, err)
	assert.Equal(t, "P1", patientID)

	// Tap serves from cache on repeat; the status gate still applies.
	patientID, err = svc.Tap(card.Hash)
	require.NoError(t, err)
	assert.Equal(t, "P1", patientID)

	require.NoError(t, svc.Suspend(ctx, provider(), card.Hash, fixedNow))
	_, err = svc.Tap(card.Hash)
	assert.ErrorIs(t, err, hcerr.ErrCardInactive)

	unknown := make([]byte, 32)
	_, err = svc.Tap(unknown)
	assert.ErrorIs(t, err, hcerr.ErrCardNotFound)
}

func TestCardLifecycleTransitions(t *testing.T) {
	svc, cardIndex, log := newTestService(t)
	ctx := context.Background()

	card, _, err := svc.Issue(ctx, provider(), "P1", model.NationalIDTypeNIN, fixedNow)
	require.NoError(t, err)

	require.NoError(t, svc.Suspend(ctx, provider(), card.Hash, fixedNow))
	got, _ := cardIndex.Get(card.ID)
	assert.Equal(t, model.CardSuspended, got.Status)

	// A suspended card cannot be suspended again.
	err = svc.Suspend(ctx, provider(), card.Hash, fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrInvalidStateTransition)

	require.NoError(t, svc.Revoke(ctx, provider(), card.Hash, fixedNow))
	got, _ = cardIndex.Get(card.ID)
	assert.Equal(t, model.CardRevoked, got.Status)

	// Revocation is terminal.
	err = svc.Suspend(ctx, provider(), card.Hash, fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrInvalidStateTransition)
	err = svc.Revoke(ctx, provider(), card.Hash, fixedNow)
	assert.ErrorIs(t, err, hcerr.ErrInvalidStateTransition)

	assert.Len(t, log.Read("P1", audit.Filter{Kind: model.EventCardSuspended}), 1)
	assert.Len(t, log.Read("P1", audit.Filter{Kind: model.EventCardRevoked}), 1)
}
