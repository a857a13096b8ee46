package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/staffgate/storage/personnel"
)

func strPtr(s string) *string { return &s }

func record(code int64, last, first string, middle *string, phone *string) personnel.Record {
	return personnel.Record{
		Code:       code,
		LastName:   last,
		FirstName:  first,
		MiddleName: middle,
		Phone:      phone,
	}
}

func TestRefineExactNames(t *testing.T) {
	candidates := []personnel.Record{
		record(1, "Иванов", "Иван", nil, nil),
		record(2, "Иванова", "Иван", nil, nil),
	}
	got := Refine(Query{LastName: "Иванов", FirstName: "Иван"}, candidates)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Code)
}

func TestRefineCaseInsensitive(t *testing.T) {
	candidates := []personnel.Record{
		record(1, "ИВАНОВ", "иван", nil, nil),
	}
	got := Refine(Query{LastName: "Иванов", FirstName: "Иван"}, candidates)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Code)
}

func TestRefineMiddleNameNullAware(t *testing.T) {
	noMiddle := record(1, "Иванов", "Иван", nil, nil)
	withMiddle := record(2, "Иванов", "Иван", strPtr("Петрович"), nil)

	// Entered middle matches only the record that has one.
	got := Refine(Query{LastName: "Иванов", FirstName: "Иван", MiddleName: strPtr("Петрович")},
		[]personnel.Record{noMiddle, withMiddle})
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Code)

	// Declining the middle name matches only the record without one.
	got = Refine(Query{LastName: "Иванов", FirstName: "Иван"},
		[]personnel.Record{withMiddle, noMiddle})
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Code)

	// An empty stored middle counts the same as NULL.
	blank := record(3, "Иванов", "Иван", strPtr("  "), nil)
	got = Refine(Query{LastName: "Иванов", FirstName: "Иван"}, []personnel.Record{blank})
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.Code)
}

func TestRefinePhoneDisambiguatesNamesakes(t *testing.T) {
	a := record(1, "Иванов", "Иван", nil, strPtr("+7 900 111-22-33"))
	b := record(2, "Иванов", "Иван", nil, strPtr("89002224455"))

	got := Refine(Query{LastName: "Иванов", FirstName: "Иван", Phone: "9002224455"},
		[]personnel.Record{a, b})
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.Code)
}

func TestRefinePhoneIsHardGate(t *testing.T) {
	a := record(1, "Иванов", "Иван", nil, strPtr("9001112233"))
	got := Refine(Query{LastName: "Иванов", FirstName: "Иван", Phone: "9009999999"},
		[]personnel.Record{a})
	assert.Nil(t, got, "matching names with a mismatched phone must not match")
}

func TestRefineStoredPhoneNormalizedIndependently(t *testing.T) {
	// The stored value uses a different spelling of the same number.
	a := record(1, "Иванов", "Иван", nil, strPtr("8 (900) 111-22-33"))
	got := Refine(Query{LastName: "Иванов", FirstName: "Иван", Phone: "9001112233"},
		[]personnel.Record{a})
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Code)
}

func TestRefineNamesakeTieWithoutPhone(t *testing.T) {
	a := record(1, "Иванов", "Иван", nil, nil)
	b := record(2, "Иванов", "Иван", nil, nil)
	got := Refine(Query{LastName: "Иванов", FirstName: "Иван"}, []personnel.Record{a, b})
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Code, "ties resolve to the first candidate in store order")
}

func TestRefineNoCandidates(t *testing.T) {
	assert.Nil(t, Refine(Query{LastName: "Иванов", FirstName: "Иван"}, nil))
}
