package verify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/staffgate/dialogue"
)

// ClaimTTL bounds how long a takeover confirmation stays answerable.
const ClaimTTL = 10 * time.Minute

// Claim is a pending cross-account takeover handshake: the submitted
// identity is already linked to another telegram account, and that account
// holder gets to allow or block the takeover.
type Claim struct {
	ID                string
	RequesterID       int64
	RequesterUsername string
	EmployeeCode      int64
	Form              dialogue.Form
	ExpiresAt         time.Time
}

// ClaimStore keeps pending claims in memory. Sessions survive only as long
// as the process; an unanswered claim simply forces a fresh /start.
type ClaimStore struct {
	mu     sync.Mutex
	claims map[string]*Claim
	ttl    time.Duration
	now    func() time.Time
}

// NewClaimStore builds a store with the given session lifetime; ttl <= 0
// falls back to ClaimTTL.
func NewClaimStore(ttl time.Duration) *ClaimStore {
	if ttl <= 0 {
		ttl = ClaimTTL
	}
	return &ClaimStore{
		claims: make(map[string]*Claim),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Create registers a new claim and returns it with a fresh session id.
func (s *ClaimStore) Create(requesterID int64, requesterUsername string, employeeCode int64, form dialogue.Form) *Claim {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Claim{
		ID:                uuid.NewString(),
		RequesterID:       requesterID,
		RequesterUsername: requesterUsername,
		EmployeeCode:      employeeCode,
		Form:              form,
		ExpiresAt:         s.now().Add(s.ttl),
	}
	s.claims[c.ID] = c
	return c
}

// Take removes and returns the claim for the session id. Expired sessions
// are deleted lazily on lookup and reported as absent.
func (s *ClaimStore) Take(id string) (*Claim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, false
	}
	delete(s.claims, id)
	if s.now().After(c.ExpiresAt) {
		return nil, false
	}
	return c, true
}

// Len reports the number of pending claims (diagnostics only).
func (s *ClaimStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}
