package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimStoreCreateAndTake(t *testing.T) {
	s := NewClaimStore(time.Minute)
	c := s.Create(42, "new", 7, testForm())
	require.NotEmpty(t, c.ID)
	assert.Equal(t, int64(42), c.RequesterID)
	assert.Equal(t, int64(7), c.EmployeeCode)

	got, ok := s.Take(c.ID)
	require.True(t, ok)
	assert.Equal(t, c.ID, got.ID)

	_, ok = s.Take(c.ID)
	assert.False(t, ok, "a claim can be taken once")
}

func TestClaimStoreUniqueIDs(t *testing.T) {
	s := NewClaimStore(time.Minute)
	a := s.Create(1, "", 7, testForm())
	b := s.Create(2, "", 8, testForm())
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, s.Len())
}

func TestClaimStoreExpiry(t *testing.T) {
	s := NewClaimStore(10 * time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	c := s.Create(42, "", 7, testForm())

	s.now = func() time.Time { return base.Add(11 * time.Minute) }
	_, ok := s.Take(c.ID)
	assert.False(t, ok, "expired claims are not answerable")
	assert.Equal(t, 0, s.Len(), "expired claims are removed on lookup")
}

func TestClaimStoreUnknownID(t *testing.T) {
	s := NewClaimStore(time.Minute)
	_, ok := s.Take("missing")
	assert.False(t, ok)
}

func TestClaimStoreDefaultTTL(t *testing.T) {
	s := NewClaimStore(0)
	assert.Equal(t, ClaimTTL, s.ttl)
}
