// Package memstore provides an in-memory content-addressed ObjectStore
// for tests and single-node deployments.
package memstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/model"
)

// Store is a content-addressed in-memory object store. The CID is the hex
// SHA-256 digest of the stored bytes.
type Store struct {
	mu      sync.RWMutex
	objects map[model.CID][]byte
}

func New() *Store {
	return &Store{objects: make(map[model.CID][]byte)}
}

func (s *Store) Put(ctx context.Context, b []byte) (model.CID, error) {
	digest := crypto.HashContent(b)
	cid := model.CID(hex.EncodeToString(digest[:]))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[cid] = append([]byte(nil), b...)
	return cid, nil
}

func (s *Store) Get(ctx context.Context, cid model.CID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[cid]
	if !ok {
		return nil, fmt.Errorf("object %s not found", cid)
	}
	return append([]byte(nil), b...), nil
}

// Corrupt flips one byte of a stored object in place. Test helper for
// integrity-failure paths.
func (s *Store) Corrupt(cid model.CID, offset int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[cid]
	if !ok || offset >= len(b) {
		return false
	}
	b[offset] ^= 0x01
	return true
}
