package store

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
)

// Users is the in-memory UserRegistry.
type Users struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

func NewUsers() *Users {
	return &Users{users: make(map[string]*model.User)}
}

func (s *Users) Get(userID string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (s *Users) Put(u *model.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", hcerr.ErrInvalidPayload)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", hcerr.ErrInvalidPayload, u.Role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Users) CompareAndSwapRole(userID string, old, new model.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Role != old {
		return false
	}
	u.Role = new
	return true
}

// Patients is the in-memory PatientStore. The national-ID-hash index and
// the health-ID index are maintained atomically with patient creation.
type Patients struct {
	mu        sync.RWMutex
	patients  map[string]*model.Patient
	byHash    map[[32]byte]string
	byHealth  map[string]string
	userLinks map[string]string
}

func NewPatients() *Patients {
	return &Patients{
		patients:  make(map[string]*model.Patient),
		byHash:    make(map[[32]byte]string),
		byHealth:  make(map[string]string),
		userLinks: make(map[string]string),
	}
}

func (s *Patients) Get(patientID string) (*model.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[patientID]
	if !ok {
		return nil, false
	}
	cp := clonePatient(p)
	return &cp, true
}

func (s *Patients) GetByNationalHash(hash [32]byte) (*model.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, false
	}
	cp := clonePatient(s.patients[id])
	return &cp, true
}

func (s *Patients) GetByHealthID(healthID string) (*model.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHealth[healthID]
	if !ok {
		return nil, false
	}
	cp := clonePatient(s.patients[id])
	return &cp, true
}

func (s *Patients) Create(p *model.Patient, hash [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byHash[hash]; dup {
		return hcerr.ErrDuplicateIdentity
	}
	if _, dup := s.byHealth[p.NationalHealthID]; dup {
		return fmt.Errorf("health id %s already bound", p.NationalHealthID)
	}
	cp := clonePatient(p)
	s.patients[p.ID] = &cp
	s.byHash[hash] = p.ID
	s.byHealth[p.NationalHealthID] = p.ID
	return nil
}

func (s *Patients) Update(patientID string, fn func(*model.Patient) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return hcerr.ErrPatientNotFound
	}
	return fn(p)
}

func (s *Patients) Remove(patientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[patientID]
	if !ok {
		return
	}
	for h, id := range s.byHash {
		if id == patientID {
			delete(s.byHash, h)
		}
	}
	delete(s.byHealth, p.NationalHealthID)
	delete(s.patients, patientID)
}

func (s *Patients) PatientLink(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userLinks[userID]
	return id, ok
}

func (s *Patients) LinkUser(userID, patientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userLinks[userID] = patientID
}

// HealthIDInUse reports whether a minted health ID is already bound.
func (s *Patients) HealthIDInUse(healthID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHealth[healthID]
	return ok
}

func clonePatient(p *model.Patient) model.Patient {
	cp := *p
	cp.Emergency.Allergies = append([]string(nil), p.Emergency.Allergies...)
	cp.Emergency.CurrentMeds = append([]string(nil), p.Emergency.CurrentMeds...)
	cp.Emergency.ChronicConditions = append([]string(nil), p.Emergency.ChronicConditions...)
	cp.Emergency.EmergencyContacts = append([]model.EmergencyContact(nil), p.Emergency.EmergencyContacts...)
	return cp
}

// Cards is the in-memory CardIndex. Token lookup goes through a hex key
// map and re-verifies the token with a constant-time comparison.
type Cards struct {
	mu        sync.RWMutex
	cards     map[string]*model.Card
	byHashHex map[string]string
}

func NewCards() *Cards {
	return &Cards{
		cards:     make(map[string]*model.Card),
		byHashHex: make(map[string]string),
	}
}

func (s *Cards) Get(cardID string) (*model.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[cardID]
	if !ok {
		return nil, false
	}
	cp := cloneCard(c)
	return &cp, true
}

func (s *Cards) GetByHash(hash []byte) (*model.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHashHex[hex.EncodeToString(hash)]
	if !ok {
		return nil, false
	}
	c := s.cards[id]
	if subtle.ConstantTimeCompare(c.Hash, hash) != 1 {
		return nil, false
	}
	cp := cloneCard(c)
	return &cp, true
}

func (s *Cards) ActiveByPatient(patientID string) (*model.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cards {
		if c.PatientID == patientID && c.Status == model.CardActive {
			cp := cloneCard(c)
			return &cp, true
		}
	}
	return nil, false
}

func (s *Cards) Put(c *model.Card) error {
	if len(c.Hash) != 32 {
		return fmt.Errorf("%w: card hash must be 32 bytes", hcerr.ErrInvalidPayload)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hex.EncodeToString(c.Hash)
	if _, dup := s.byHashHex[key]; dup {
		return fmt.Errorf("card hash collision")
	}
	cp := cloneCard(c)
	s.cards[c.ID] = &cp
	s.byHashHex[key] = c.ID
	return nil
}

func (s *Cards) UpdateStatus(cardID string, status model.CardStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok {
		return hcerr.ErrCardNotFound
	}
	c.Status = status
	c.UpdatedAt = now
	return nil
}

func cloneCard(c *model.Card) model.Card {
	cp := *c
	cp.Hash = append([]byte(nil), c.Hash...)
	return cp
}
