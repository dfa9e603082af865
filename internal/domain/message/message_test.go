package message

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"transport-connect/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func draft(content string) Draft {
	return Draft{RequestID: "r1", SenderID: "d", Content: content}
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name string
		d    Draft
		err  error
	}{
		{"empty content", draft("   "), ErrEmptyContent},
		{"missing request", Draft{SenderID: "d", Content: "hi"}, ErrEmptyRequestID},
		{"too long", draft(strings.Repeat("я", MaxContentLength+1)), ErrContentTooLong},
		{"system kind", Draft{RequestID: "r1", Content: "x", Kind: KindSystem}, ErrInvalidKind},
		{"bad location", Draft{RequestID: "r1", Content: "x", Location: &geo.Point{Lng: 200}}, geo.ErrInvalidLongitude},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.d, 0, now)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	m, err := New(Draft{RequestID: " r1 ", SenderID: "d", Content: strings.Repeat("я", MaxContentLength), TTL: time.Hour}, 0, now)
	require.NoError(t, err)
	assert.Equal(t, "r1", m.RequestID)
	assert.Equal(t, KindText, m.Kind)
	assert.Equal(t, StatusSent, m.Status)
	assert.Equal(t, PriorityNormal, m.Priority)
	require.NotNil(t, m.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *m.ExpiresAt)
}

func TestStampKeepsTTL(t *testing.T) {
	m, err := New(Draft{RequestID: "r1", SenderID: "d", Content: "hi", TTL: time.Hour}, 0, now)
	require.NoError(t, err)

	later := now.Add(3 * time.Second)
	m.Stamp(later)
	assert.Equal(t, later, m.CreatedAt)
	assert.Equal(t, later, m.UpdatedAt)
	require.NotNil(t, m.ExpiresAt)
	assert.Equal(t, later.Add(time.Hour), *m.ExpiresAt)

	plain, err := New(draft("hi"), 0, now)
	require.NoError(t, err)
	plain.Stamp(later)
	assert.Nil(t, plain.ExpiresAt)
}

func TestMarkReadOncePerReader(t *testing.T) {
	m, err := New(draft("hi"), 0, now)
	require.NoError(t, err)

	assert.False(t, m.MarkRead("d", now))
	assert.True(t, m.MarkRead("s", now))
	assert.False(t, m.MarkRead("s", now.Add(time.Minute)))
	assert.Len(t, m.ReadBy, 1)
	assert.Equal(t, StatusRead, m.Status)
}

func TestEditKeepsBoundedHistory(t *testing.T) {
	m, err := New(draft("v0"), 0, now)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Edit("s", "nope", now, 0, 3), ErrNotAuthor)
	require.NoError(t, m.Edit("d", "v0", now, 0, 3))
	assert.False(t, m.IsEdited)

	for i := 1; i <= 5; i++ {
		require.NoError(t, m.Edit("d", fmt.Sprintf("v%d", i), now, 0, 3))
	}
	assert.True(t, m.IsEdited)
	assert.Equal(t, "v5", m.Content)
	require.Len(t, m.EditHistory, 3)
	assert.Equal(t, "v2", m.EditHistory[0].Content)
	assert.Equal(t, "v4", m.EditHistory[2].Content)

	sys := NewSystem("r1", "Request accepted", now)
	assert.True(t, sys.IsSystem())
	assert.ErrorIs(t, sys.Edit("", "x", now, 0, 0), ErrSystemImmutable)
}

func TestDeleteIsIrreversible(t *testing.T) {
	m, err := New(Draft{RequestID: "r1", SenderID: "d", Content: "secret", Location: &geo.Point{Lat: 1}}, 0, now)
	require.NoError(t, err)
	_, err = m.AddReaction("s", "👍", now)
	require.NoError(t, err)

	_, err = m.Delete("s", false, now)
	assert.ErrorIs(t, err, ErrNotAuthor)

	changed, err := m.Delete("admin", true, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, DeletedPlaceholder, m.Content)
	assert.Nil(t, m.Location)
	assert.Nil(t, m.Reactions)
	assert.Equal(t, "admin", m.DeletedBy)

	changed, err = m.Delete("d", false, now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.ErrorIs(t, m.Edit("d", "back", now, 0, 0), ErrAlreadyDeleted)
	_, err = m.AddReaction("s", "👍", now)
	assert.ErrorIs(t, err, ErrAlreadyDeleted)
}

func TestReactions(t *testing.T) {
	m, err := New(draft("hi"), 0, now)
	require.NoError(t, err)

	added, err := m.AddReaction("s", "👍", now)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = m.AddReaction("s", "👍", now)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = m.AddReaction("d", "👍", now)
	require.NoError(t, err)
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, 2, m.Reactions[0].Count)

	_, err = m.AddReaction("d", " ", now)
	assert.ErrorIs(t, err, ErrInvalidEmoji)

	removed, err := m.RemoveReaction("s", "👍", now)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = m.RemoveReaction("d", "👍", now)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, m.Reactions)

	removed, err = m.RemoveReaction("d", "👍", now)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCloneIsDeep(t *testing.T) {
	m, err := New(draft("hi"), 0, now)
	require.NoError(t, err)
	_, err = m.AddReaction("s", "🔥", now)
	require.NoError(t, err)

	cp := m.Clone()
	cp.Reactions[0].Users[0] = "x"
	cp.MarkRead("s", now)
	assert.Equal(t, "s", m.Reactions[0].Users[0])
	assert.Empty(t, m.ReadBy)
}

func TestParseKindAndPriority(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindText, k)
	_, err = ParseKind("system")
	assert.ErrorIs(t, err, ErrInvalidKind)

	p, err := ParsePriority("URGENT")
	require.NoError(t, err)
	assert.True(t, p.Elevated())
	assert.False(t, PriorityNormal.Elevated())
	_, err = ParsePriority("meh")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}
