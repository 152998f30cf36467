package records

import (
	"sync"

	"github.com/hengadev/healthcore/internal/model"
)

// Index is the per-patient medical record index. It holds references
// only; payloads stay in the object store.
type Index struct {
	mu        sync.RWMutex
	byPatient map[string][]*model.MedicalRecordReference
	byContent map[model.CID]*model.MedicalRecordReference
}

func NewIndex() *Index {
	return &Index{
		byPatient: make(map[string][]*model.MedicalRecordReference),
		byContent: make(map[model.CID]*model.MedicalRecordReference),
	}
}

// Append registers a reference.
func (i *Index) Append(ref *model.MedicalRecordReference) {
	i.mu.Lock()
	defer i.mu.Unlock()
	cp := *ref
	i.byPatient[ref.PatientID] = append(i.byPatient[ref.PatientID], &cp)
	i.byContent[ref.ContentCID] = &cp
}

// Drop removes a reference. Only used to roll back an upload whose audit
// append failed.
func (i *Index) Drop(ref *model.MedicalRecordReference) {
	i.mu.Lock()
	defer i.mu.Unlock()
	refs := i.byPatient[ref.PatientID]
	for n := len(refs) - 1; n >= 0; n-- {
		if refs[n].ContentCID == ref.ContentCID {
			i.byPatient[ref.PatientID] = append(refs[:n], refs[n+1:]...)
			break
		}
	}
	delete(i.byContent, ref.ContentCID)
}

// ForPatient returns the patient's references in upload order.
func (i *Index) ForPatient(patientID string) []*model.MedicalRecordReference {
	i.mu.RLock()
	defer i.mu.RUnlock()
	refs := i.byPatient[patientID]
	out := make([]*model.MedicalRecordReference, 0, len(refs))
	for _, r := range refs {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// ByContentCID resolves a reference from its content CID.
func (i *Index) ByContentCID(cid model.CID) (*model.MedicalRecordReference, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	r, ok := i.byContent[cid]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}
