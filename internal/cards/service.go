package cards

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/store"
)

// tapCacheTTL bounds how long a tap resolution may be served from cache.
// The authoritative status check still runs on every tap; the cache only
// skips the index walk.
const tapCacheTTL = 2 * time.Minute

// QRPayload is the content packed into an issued card's QR code.
type QRPayload struct {
	HealthID string `json:"health_id"`
	CardHash string `json:"card_hash"`
}

// Service manages card issuance, lifecycle and tap resolution.
type Service struct {
	cards    model.CardIndex
	patients model.PatientStore
	locks    *store.PatientLocks
	log      *audit.Log
	tapCache *gocache.Cache
}

func NewService(cards model.CardIndex, patients model.PatientStore, locks *store.PatientLocks, log *audit.Log) *Service {
	return &Service{
		cards:    cards,
		patients: patients,
		locks:    locks,
		log:      log,
		tapCache: gocache.New(tapCacheTTL, 2*tapCacheTTL),
	}
}

// Issue creates a fresh card for the patient, revoking any prior Active
// card so the single-active-card invariant holds.
func (s *Service) Issue(ctx context.Context, caller *model.User, patientID string, idType model.NationalIDType, now time.Time) (*model.Card, string, error) {
	if !idType.Valid() {
		return nil, "", fmt.Errorf("%w: unknown national id type %q", hcerr.ErrInvalidPayload, idType)
	}
	p, ok := s.patients.Get(patientID)
	if !ok {
		return nil, "", hcerr.ErrPatientNotFound
	}

	token, err := crypto.NewCardToken()
	if err != nil {
		return nil, "", err
	}

	s.locks.Lock(patientID)
	defer s.locks.Unlock(patientID)

	var revoked *model.Card
	if prior, ok := s.cards.ActiveByPatient(patientID); ok {
		if err := s.cards.UpdateStatus(prior.ID, model.CardRevoked, now); err != nil {
			return nil, "", err
		}
		s.tapCache.Delete(hex.EncodeToString(prior.Hash))
		revoked = prior
	}

	card := &model.Card{
		ID:             uuid.NewString(),
		PatientID:      patientID,
		Hash:           token,
		NationalIDType: idType,
		Status:         model.CardActive,
		IssuedAt:       now,
		UpdatedAt:      now,
	}
	if err := s.cards.Put(card); err != nil {
		return nil, "", err
	}

	qr, err := encodeQRPayload(p.NationalHealthID, token)
	if err != nil {
		return nil, "", err
	}

	details := map[string]string{"card_id": card.ID}
	if revoked != nil {
		details["revoked_card_id"] = revoked.ID
	}
	err = s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventCardIssued,
		PatientID: patientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   details,
	})
	if err != nil {
		s.cards.UpdateStatus(card.ID, model.CardRevoked, now)
		if revoked != nil {
			s.cards.UpdateStatus(revoked.ID, model.CardActive, now)
		}
		return nil, "", err
	}
	return card, qr, nil
}

func encodeQRPayload(healthID string, token []byte) (string, error) {
	payload, err := json.Marshal(QRPayload{
		HealthID: healthID,
		CardHash: hex.EncodeToString(token),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode qr payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Tap resolves a presented card token to a patient ID. This is the public
// emergency entry point: it requires no authentication and releases
// nothing beyond the patient ID. The subsequent emergency grant request
// must be authenticated.
func (s *Service) Tap(cardHash []byte) (string, error) {
	key := hex.EncodeToString(cardHash)
	if cached, ok := s.tapCache.Get(key); ok {
		card, found := s.cards.Get(cached.(string))
		if found && card.Status == model.CardActive {
			return card.PatientID, nil
		}
		s.tapCache.Delete(key)
	}

	card, ok := s.cards.GetByHash(cardHash)
	if !ok {
		return "", hcerr.ErrCardNotFound
	}
	if card.Status != model.CardActive {
		return "", hcerr.ErrCardInactive
	}
	s.tapCache.SetDefault(key, card.ID)
	return card.PatientID, nil
}

// Suspend transitions an Active card to Suspended.
func (s *Service) Suspend(ctx context.Context, caller *model.User, cardHash []byte, now time.Time) error {
	return s.transition(ctx, caller, cardHash, model.CardSuspended, model.EventCardSuspended, now)
}

// Revoke transitions a card to Revoked. Revocation is terminal.
func (s *Service) Revoke(ctx context.Context, caller *model.User, cardHash []byte, now time.Time) error {
	return s.transition(ctx, caller, cardHash, model.CardRevoked, model.EventCardRevoked, now)
}

func (s *Service) transition(ctx context.Context, caller *model.User, cardHash []byte, status model.CardStatus, kind model.EventKind, now time.Time) error {
	card, ok := s.cards.GetByHash(cardHash)
	if !ok {
		return hcerr.ErrCardNotFound
	}
	if card.Status == model.CardRevoked {
		return fmt.Errorf("%w: card is revoked", hcerr.ErrInvalidStateTransition)
	}
	if status == model.CardSuspended && card.Status != model.CardActive {
		return fmt.Errorf("%w: only an active card can be suspended", hcerr.ErrInvalidStateTransition)
	}

	s.locks.Lock(card.PatientID)
	defer s.locks.Unlock(card.PatientID)

	prior := card.Status
	if err := s.cards.UpdateStatus(card.ID, status, now); err != nil {
		return err
	}
	s.tapCache.Delete(hex.EncodeToString(cardHash))

	err := s.log.Append(ctx, &model.AuditEvent{
		Kind:      kind,
		PatientID: card.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details:   map[string]string{"card_id": card.ID},
	})
	if err != nil {
		s.cards.UpdateStatus(card.ID, prior, now)
		return err
	}
	return nil
}

// Resolve returns the card bound to a card token without a status
// gate. Used by authorised lookups, not by the public tap path.
func (s *Service) Resolve(cardHash []byte) (*model.Card, error) {
	card, ok := s.cards.GetByHash(cardHash)
	if !ok {
		return nil, hcerr.ErrCardNotFound
	}
	return card, nil
}
