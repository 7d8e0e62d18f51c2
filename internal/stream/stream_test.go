package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsZeroZero(t *testing.T) {
	s := New()
	_, err := s.Add("0-0", []FieldValue{{Field: "k", Value: "v"}})
	require.ErrorIs(t, err, ErrStreamIDTooSmall)
}

func TestAddExplicitIDMustIncrease(t *testing.T) {
	s := New()
	id, err := s.Add("0-1", []FieldValue{{Field: "k", Value: "v"}})
	require.NoError(t, err)
	assert.Equal(t, "0-1", id)

	_, err = s.Add("0-1", []FieldValue{{Field: "k", Value: "v"}})
	require.ErrorIs(t, err, ErrStreamIDNotIncreasing)
}

func TestAddPartialWildcardSeq(t *testing.T) {
	s := New()
	id, err := s.Add("0-1", []FieldValue{{Field: "k", Value: "v"}})
	require.NoError(t, err)
	assert.Equal(t, "0-1", id)

	id, err = s.Add("0-*", []FieldValue{{Field: "k", Value: "v"}})
	require.NoError(t, err)
	assert.Equal(t, "0-2", id)
}

func TestAddFullWildcardOnEmptyStreamIsNotZeroZero(t *testing.T) {
	s := New()
	id, err := s.Add("*", []FieldValue{{Field: "k", Value: "v"}})
	require.NoError(t, err)
	assert.NotEqual(t, "0-0", id)
}

func TestRangeInclusive(t *testing.T) {
	s := New()
	_, err := s.Add("1-1", []FieldValue{{Field: "a", Value: "1"}})
	require.NoError(t, err)
	_, err = s.Add("2-1", []FieldValue{{Field: "b", Value: "2"}})
	require.NoError(t, err)
	_, err = s.Add("3-1", []FieldValue{{Field: "c", Value: "3"}})
	require.NoError(t, err)

	entries, err := s.Range("1-1", "2-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1-1", entries[0].ID.String())
	assert.Equal(t, "2-1", entries[1].ID.String())
}

func TestRangeShorthandBounds(t *testing.T) {
	s := New()
	_, err := s.Add("5-1", []FieldValue{{Field: "a", Value: "1"}})
	require.NoError(t, err)
	_, err = s.Add("5-2", []FieldValue{{Field: "b", Value: "2"}})
	require.NoError(t, err)

	entries, err := s.Range("5", "5")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entries, err = s.Range("-", "+")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestFieldOrderPreserved(t *testing.T) {
	s := New()
	_, err := s.Add("1-1", []FieldValue{{Field: "z", Value: "1"}, {Field: "a", Value: "2"}})
	require.NoError(t, err)
	entries, err := s.Range("-", "+")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Fields, 2)
	assert.Equal(t, "z", entries[0].Fields[0].Field)
	assert.Equal(t, "a", entries[0].Fields[1].Field)
}
