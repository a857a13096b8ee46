package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/storage/personnel"
)

// Query carries the identity fields collected by the registration dialogue.
// Phone, when present, must already be trunk-canonical.
type Query struct {
	LastName     string
	FirstName    string
	MiddleName   *string
	DepartmentID int64
	PositionID   int64
	Phone        string
}

// CandidateSource is the broad-filter half of the two-phase match.
type CandidateSource interface {
	FindCandidates(ctx context.Context, f personnel.IdentityFilter) ([]personnel.Record, error)
}

// Matcher resolves a Query to at most one personnel record. The repository
// query narrows candidates; Refine is the authoritative correctness gate,
// because string comparison semantics of the personnel database are not
// trusted across deployments.
type Matcher struct {
	source CandidateSource
}

// NewMatcher builds a Matcher over a candidate source.
func NewMatcher(source CandidateSource) *Matcher {
	return &Matcher{source: source}
}

// Match returns the best-matching record or nil when none qualifies.
func (m *Matcher) Match(ctx context.Context, q Query) (*personnel.Record, error) {
	candidates, err := m.source.FindCandidates(ctx, personnel.IdentityFilter{
		LastName:     q.LastName,
		FirstName:    q.FirstName,
		MiddleName:   q.MiddleName,
		DepartmentID: q.DepartmentID,
		PositionID:   q.PositionID,
	})
	if err != nil {
		return nil, fmt.Errorf("identity: candidate query: %w", err)
	}

	rec := Refine(q, candidates)
	logger.SVCIdentity.Debug("match refined",
		slog.String("event", "identity.match"),
		slog.Int("candidates", len(candidates)),
		slog.Bool("matched", rec != nil),
		slog.Bool("phone_gate", q.Phone != ""),
	)
	return rec, nil
}

// Refine applies the exact in-memory rules over an already-fetched candidate
// set: case-insensitive equality on last and first name, null-aware equality
// on middle name, and (when a phone was supplied) a hard phone
// disambiguation after independently canonicalizing the stored value.
// Namesake ties without a phone resolve to the first candidate in store
// order; the system does not disambiguate further.
func Refine(q Query, candidates []personnel.Record) *personnel.Record {
	var exact []personnel.Record
	for _, c := range candidates {
		if !equalFold(c.LastName, q.LastName) || !equalFold(c.FirstName, q.FirstName) {
			continue
		}
		if !middleNamesMatch(c.MiddleName, q.MiddleName) {
			continue
		}
		exact = append(exact, c)
	}
	if len(exact) == 0 {
		return nil
	}

	if q.Phone != "" {
		for i := range exact {
			stored := ""
			if exact[i].Phone != nil {
				stored = NormalizePhone(*exact[i].Phone)
			}
			if stored == q.Phone {
				return &exact[i]
			}
		}
		// Phone is a hard disambiguator: names matched but the phone did not.
		return nil
	}

	return &exact[0]
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func middleNamesMatch(stored, entered *string) bool {
	storedEmpty := stored == nil || strings.TrimSpace(*stored) == ""
	enteredEmpty := entered == nil || strings.TrimSpace(*entered) == ""
	if storedEmpty || enteredEmpty {
		return storedEmpty == enteredEmpty
	}
	return equalFold(*stored, *entered)
}
