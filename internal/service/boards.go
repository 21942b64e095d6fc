package service

import (
	"sync"
)

// APIFor returns a task backend client authenticated as uid.
type APIFor func(uid string) TaskAPI

// Boards keeps one Store per signed-in identity.
type Boards struct {
	apiFor    APIFor
	corrector Corrector

	mu     sync.Mutex
	stores map[string]*Store
}

func NewBoards(apiFor APIFor, corrector Corrector) *Boards {
	return &Boards{
		apiFor:    apiFor,
		corrector: corrector,
		stores:    make(map[string]*Store),
	}
}

// For returns the store of uid, creating an empty one on first use.
func (b *Boards) For(uid string) *Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.stores[uid]; ok {
		return s
	}
	s := NewStore(b.apiFor(uid), uid, b.corrector)
	b.stores[uid] = s
	return s
}

// Drop forgets the store of uid so the next For starts from a fresh load.
func (b *Boards) Drop(uid string) {
	b.mu.Lock()
	delete(b.stores, uid)
	b.mu.Unlock()
}
