package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hengadev/healthcore/internal/audit"
	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/store"
)

// recordKeyInfo domain-separates record keys derived from a patient
// master secret.
const recordKeyInfo = "record-v1"

// UploadMeta is the caller-supplied part of a record's metadata.
type UploadMeta struct {
	Filename    string
	ContentType string
}

// Service seals records into the object store and opens them back.
// Key material flows through the KeyProvider and never persists beside
// ciphertext.
type Service struct {
	objects  model.ObjectStore
	keys     model.KeyProvider
	patients model.PatientStore
	index    *Index
	locks    *store.PatientLocks
	log      *audit.Log
	params   *crypto.Argon2Params
}

func NewService(objects model.ObjectStore, keys model.KeyProvider, patients model.PatientStore, index *Index, locks *store.PatientLocks, log *audit.Log, params *crypto.Argon2Params) *Service {
	return &Service{
		objects:  objects,
		keys:     keys,
		patients: patients,
		index:    index,
		locks:    locks,
		log:      log,
		params:   params,
	}
}

// contentAAD binds a content envelope to its patient and record type.
func contentAAD(patientID string, recordType model.RecordType) []byte {
	digest := crypto.HashContent([]byte(patientID + string(recordType)))
	return digest[:]
}

// Upload seals plaintext and its metadata into the object store and
// registers the reference on the patient's index.
func (s *Service) Upload(ctx context.Context, caller *model.User, patientID string, recordType model.RecordType, plaintext []byte, meta UploadMeta, now time.Time, emergency bool) (*model.MedicalRecordReference, error) {
	if !recordType.Valid() {
		return nil, fmt.Errorf("%w: unknown record type %q", hcerr.ErrInvalidPayload, recordType)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: empty record payload", hcerr.ErrInvalidPayload)
	}
	if _, ok := s.patients.Get(patientID); !ok {
		return nil, hcerr.ErrPatientNotFound
	}

	checksum := crypto.HashContent(plaintext)

	master, err := s.keys.PatientMaster(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain patient key material: %w", err)
	}
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveKey(master, salt, recordKeyInfo, s.params)
	if err != nil {
		return nil, err
	}

	// Content envelope, bound to (patient, record type).
	nonceC, sealedC, err := crypto.Seal(key, contentAAD(patientID, recordType), plaintext)
	if err != nil {
		return nil, err
	}
	contentWire, err := (&crypto.Envelope{Salt: salt, Nonce: nonceC, Sealed: sealedC}).Encode()
	if err != nil {
		return nil, err
	}
	contentCID, err := s.objects.Put(ctx, contentWire)
	if err != nil {
		return nil, hcerr.NewStoreUnavailable("put content envelope", err)
	}

	// Metadata envelope, bound to the content CID. Ciphertext without its
	// metadata envelope is inert.
	recordMeta := model.RecordMeta{
		Filename:        meta.Filename,
		ContentType:     meta.ContentType,
		RecordType:      recordType,
		UploadedBy:      caller.ID,
		UploadedAt:      now.UTC(),
		ContentChecksum: checksum[:],
	}
	metaJSON, err := json.Marshal(recordMeta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record metadata: %w", err)
	}
	nonceM, sealedM, err := crypto.Seal(key, []byte(contentCID), metaJSON)
	if err != nil {
		return nil, err
	}
	metaWire, err := (&crypto.Envelope{Salt: salt, Nonce: nonceM, Sealed: sealedM}).Encode()
	if err != nil {
		return nil, err
	}
	metadataCID, err := s.objects.Put(ctx, metaWire)
	if err != nil {
		return nil, hcerr.NewStoreUnavailable("put metadata envelope", err)
	}

	ref := &model.MedicalRecordReference{
		PatientID:       patientID,
		ContentCID:      contentCID,
		MetadataCID:     metadataCID,
		RecordType:      recordType,
		ContentChecksum: checksum[:],
		UploadedBy:      caller.ID,
		UploadedAt:      now,
	}

	s.locks.Lock(patientID)
	defer s.locks.Unlock(patientID)
	s.index.Append(ref)
	err = s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventRecordUploaded,
		PatientID: patientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: emergency,
		Details: map[string]string{
			"content_cid": string(contentCID),
			"record_type": string(recordType),
		},
	})
	if err != nil {
		s.index.Drop(ref)
		return nil, err
	}
	return ref, nil
}

// Download fetches both envelopes, re-derives the record key and opens
// metadata then content. A checksum mismatch on the recovered plaintext is
// a fatal integrity failure and is audited before it propagates.
func (s *Service) Download(ctx context.Context, caller *model.User, contentCID, metadataCID model.CID, now time.Time, emergency bool) ([]byte, *model.RecordMeta, error) {
	ref, ok := s.index.ByContentCID(contentCID)
	if !ok {
		return nil, nil, hcerr.ErrRecordNotFound
	}
	if ref.MetadataCID != metadataCID {
		return nil, nil, hcerr.ErrRecordNotFound
	}

	metaWire, err := s.objects.Get(ctx, metadataCID)
	if err != nil {
		return nil, nil, hcerr.NewStoreUnavailable("get metadata envelope", err)
	}
	contentWire, err := s.objects.Get(ctx, contentCID)
	if err != nil {
		return nil, nil, hcerr.NewStoreUnavailable("get content envelope", err)
	}

	metaEnv, err := crypto.DecodeEnvelope(metaWire)
	if err != nil {
		return nil, nil, s.integrityFailure(ctx, caller, ref, now, "malformed metadata envelope", err)
	}
	contentEnv, err := crypto.DecodeEnvelope(contentWire)
	if err != nil {
		return nil, nil, s.integrityFailure(ctx, caller, ref, now, "malformed content envelope", err)
	}

	master, err := s.keys.PatientMaster(ctx, ref.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to obtain patient key material: %w", err)
	}

	metaKey, err := crypto.DeriveKey(master, metaEnv.Salt, recordKeyInfo, s.params)
	if err != nil {
		return nil, nil, err
	}
	metaJSON, err := crypto.Open(metaKey, metaEnv.Nonce, []byte(contentCID), metaEnv.Sealed)
	if err != nil {
		return nil, nil, s.integrityFailure(ctx, caller, ref, now, "metadata envelope rejected", err)
	}
	var meta model.RecordMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, s.integrityFailure(ctx, caller, ref, now, "metadata decode failed", err)
	}

	contentKey, err := crypto.DeriveKey(master, contentEnv.Salt, recordKeyInfo, s.params)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := crypto.Open(contentKey, contentEnv.Nonce, contentAAD(ref.PatientID, meta.RecordType), contentEnv.Sealed)
	if err != nil {
		return nil, nil, s.integrityFailure(ctx, caller, ref, now, "content envelope rejected", err)
	}

	checksum := crypto.HashContent(plaintext)
	if !bytes.Equal(checksum[:], meta.ContentChecksum) || !bytes.Equal(checksum[:], ref.ContentChecksum) {
		return nil, nil, s.integrityFailure(ctx, caller, ref, now, "checksum mismatch", hcerr.ErrIntegrityFailure)
	}

	err = s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventRecordDownloaded,
		PatientID: ref.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: emergency,
		Details:   map[string]string{"content_cid": string(contentCID)},
	})
	if err != nil {
		return nil, nil, err
	}
	return plaintext, &meta, nil
}

// integrityFailure records an integrity event and returns the caller-facing
// error. No plaintext accompanies it.
func (s *Service) integrityFailure(ctx context.Context, caller *model.User, ref *model.MedicalRecordReference, now time.Time, detail string, cause error) error {
	// The integrity event is best effort: the failure propagates even if
	// the sink is down.
	_ = s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventIntegrity,
		PatientID: ref.PatientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Details: map[string]string{
			"content_cid": string(ref.ContentCID),
			"detail":      detail,
		},
	})
	return fmt.Errorf("%w: %s", hcerr.ErrIntegrityFailure, detail)
}

// List returns the patient's record references, newest last. No payloads.
func (s *Service) List(ctx context.Context, caller *model.User, patientID string, now time.Time, emergency bool) ([]*model.MedicalRecordReference, error) {
	if _, ok := s.patients.Get(patientID); !ok {
		return nil, hcerr.ErrPatientNotFound
	}
	refs := s.index.ForPatient(patientID)
	err := s.log.Append(ctx, &model.AuditEvent{
		Kind:      model.EventRecordListed,
		PatientID: patientID,
		ActorID:   caller.ID,
		ActorRole: caller.Role,
		Timestamp: now,
		Emergency: emergency,
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
