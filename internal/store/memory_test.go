package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/hcerr"
	"github.com/hengadev/healthcore/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestUsersPutGet(t *testing.T) {
	users := NewUsers()

	require.NoError(t, users.Put(&model.User{ID: "U1", Name: "Ada", Role: model.RoleDoctor}))

	u, ok := users.Get("U1")
	require.True(t, ok)
	assert.Equal(t, model.RoleDoctor, u.Role)

	_, ok = users.Get("missing")
	assert.False(t, ok)

	assert.Error(t, users.Put(&model.User{Name: "no id", Role: model.RoleNurse}))
	assert.Error(t, users.Put(&model.User{ID: "U2", Role: model.Role("chief")}))
}

func TestUsersCompareAndSwapRole(t *testing.T) {
	users := NewUsers()
	require.NoError(t, users.Put(&model.User{ID: "U1", Name: "Ada", Role: model.RoleNurse}))

	assert.False(t, users.CompareAndSwapRole("U1", model.RoleDoctor, model.RolePharmacist))
	assert.True(t, users.CompareAndSwapRole("U1", model.RoleNurse, model.RoleDoctor))

	u, _ := users.Get("U1")
	assert.Equal(t, model.RoleDoctor, u.Role)
}

func TestPatientsCreateEnforcesUniqueness(t *testing.T) {
	patients := NewPatients()
	hash := crypto.HashNationalID([]byte("123"), "nin")

	p := &model.Patient{ID: "P1", NationalHealthID: "MCHI-2025-AAAA-0001", Name: "Ada"}
	require.NoError(t, patients.Create(p, hash))

	// Same national hash: duplicate identity.
	dup := &model.Patient{ID: "P2", NationalHealthID: "MCHI-2025-AAAA-0002", Name: "Bob"}
	err := patients.Create(dup, crypto.HashNationalID([]byte("123"), "nin"))
	assert.ErrorIs(t, err, hcerr.ErrDuplicateIdentity)

	// Same health ID, different hash: minting collision, not a duplicate.
	collide := &model.Patient{ID: "P3", NationalHealthID: "MCHI-2025-AAAA-0001", Name: "Eve"}
	err = patients.Create(collide, crypto.HashNationalID([]byte("456"), "nin"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, hcerr.ErrDuplicateIdentity)

	got, ok := patients.GetByNationalHash(hash)
	require.True(t, ok)
	assert.Equal(t, "P1", got.ID)

	got, ok = patients.GetByHealthID("MCHI-2025-AAAA-0001")
	require.True(t, ok)
	assert.Equal(t, "P1", got.ID)
}

func TestPatientsRemoveUnbindsIndexes(t *testing.T) {
	patients := NewPatients()
	hash := crypto.HashNationalID([]byte("123"), "nin")
	require.NoError(t, patients.Create(&model.Patient{ID: "P1", NationalHealthID: "MCHI-2025-AAAA-0001"}, hash))

	patients.Remove("P1")

	_, ok := patients.Get("P1")
	assert.False(t, ok)
	_, ok = patients.GetByNationalHash(hash)
	assert.False(t, ok)
	assert.False(t, patients.HealthIDInUse("MCHI-2025-AAAA-0001"))

	// Identity is free again.
	require.NoError(t, patients.Create(&model.Patient{ID: "P2", NationalHealthID: "MCHI-2025-AAAA-0001"}, hash))
}

func TestPatientsGetReturnsCopies(t *testing.T) {
	patients := NewPatients()
	hash := crypto.HashNationalID([]byte("123"), "nin")
	require.NoError(t, patients.Create(&model.Patient{
		ID:               "P1",
		NationalHealthID: "MCHI-2025-AAAA-0001",
		Emergency:        model.EmergencyInfo{Allergies: []string{"penicillin"}},
	}, hash))

	got, _ := patients.Get("P1")
	got.Emergency.Allergies[0] = "mutated"
	got.Name = "mutated"

	fresh, _ := patients.Get("P1")
	assert.Equal(t, "penicillin", fresh.Emergency.Allergies[0])
	assert.Empty(t, fresh.Name)
}

func TestCardsHashLookup(t *testing.T) {
	cards := NewCards()
	hash, err := crypto.NewCardToken()
	require.NoError(t, err)

	card := &model.Card{ID: "C1", PatientID: "P1", Hash: hash, Status: model.CardActive, IssuedAt: testNow}
	require.NoError(t, cards.Put(card))

	got, ok := cards.GetByHash(hash)
	require.True(t, ok)
	assert.Equal(t, "C1", got.ID)

	other, err := crypto.NewCardToken()
	require.NoError(t, err)
	_, ok = cards.GetByHash(other)
	assert.False(t, ok)

	assert.Error(t, cards.Put(&model.Card{ID: "C2", Hash: []byte("short")}))
}

func TestCardsActiveByPatient(t *testing.T) {
	cards := NewCards()
	h1, _ := crypto.NewCardToken()
	h2, _ := crypto.NewCardToken()
	require.NoError(t, cards.Put(&model.Card{ID: "C1", PatientID: "P1", Hash: h1, Status: model.CardActive}))

	got, ok := cards.ActiveByPatient("P1")
	require.True(t, ok)
	assert.Equal(t, "C1", got.ID)

	require.NoError(t, cards.UpdateStatus("C1", model.CardRevoked, testNow))
	_, ok = cards.ActiveByPatient("P1")
	assert.False(t, ok)

	require.NoError(t, cards.Put(&model.Card{ID: "C2", PatientID: "P1", Hash: h2, Status: model.CardActive}))
	got, ok = cards.ActiveByPatient("P1")
	require.True(t, ok)
	assert.Equal(t, "C2", got.ID)
}

func TestPatientLocksSerialisePerPatient(t *testing.T) {
	locks := NewPatientLocks()
	locks.Lock("P1")

	acquired := make(chan struct{})
	go func() {
		locks.Lock("P1")
		close(acquired)
		locks.Unlock("P1")
	}()

	select {
	case <-acquired:
		t.Fatal("second writer acquired a held patient lock")
	case <-time.After(50 * time.Millisecond):
	}

	// A different patient is not serialised behind P1.
	locks.Lock("P2")
	locks.Unlock("P2")

	locks.Unlock("P1")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second writer never acquired the released lock")
	}
}
