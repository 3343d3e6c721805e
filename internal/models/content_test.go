package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknell/vibe-coder-sub002/internal/observer"
	"github.com/rknell/vibe-coder-sub002/internal/validate"
)

func newBaseItem(t *testing.T, content string, ct ContentType, p Priority) *ContentItem {
	t.Helper()
	c := &ContentItem{}
	require.NoError(t, c.init(content, ct, p))
	return c
}

func TestNewContentItemDefaults(t *testing.T) {
	c := newBaseItem(t, "  hello  ", ContentTypeInbox, "")

	assert.Equal(t, "hello", c.Content(), "content is sanitized")
	assert.Equal(t, ContentTypeInbox, c.Type())
	assert.Equal(t, PriorityMedium, c.Priority(), "unknown priority falls back to medium")
	assert.True(t, validate.ID(c.ID()), "id %q is not a canonical UUID", c.ID())
	assert.False(t, c.CreatedAt().IsZero())
	assert.Equal(t, c.CreatedAt(), c.UpdatedAt())
}

func TestNewContentItemRejectsInvalidContent(t *testing.T) {
	for name, content := range map[string]string{
		"empty":              "",
		"whitespace only":    "   \n  ",
		"blocked script tag": "hi <script>alert(1)</script>",
	} {
		t.Run(name, func(t *testing.T) {
			c := &ContentItem{}
			err := c.init(content, ContentTypeTodo, PriorityLow)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestUpdateContent(t *testing.T) {
	c := newBaseItem(t, "original", ContentTypeInbox, PriorityLow)

	require.NoError(t, c.UpdateContent("  replaced  "))
	assert.Equal(t, "replaced", c.Content())
	assert.False(t, c.UpdatedAt().Before(c.CreatedAt()), "updatedAt must never precede createdAt")
}

func TestUpdateContentRejectsEmptyAfterSanitize(t *testing.T) {
	c := newBaseItem(t, "original", ContentTypeInbox, PriorityLow)

	err := c.UpdateContent("   \x00\x1f   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "original", c.Content(), "failed update must not mutate")
}

func TestUpdatePriority(t *testing.T) {
	c := newBaseItem(t, "x", ContentTypeTodo, PriorityLow)

	require.NoError(t, c.UpdatePriority(PriorityUrgent))
	assert.Equal(t, PriorityUrgent, c.Priority())

	err := c.UpdatePriority("extreme")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, PriorityUrgent, c.Priority())
}

func TestPriorityOrdinal(t *testing.T) {
	assert.Equal(t, 1, PriorityLow.Ordinal())
	assert.Equal(t, 2, PriorityMedium.Ordinal())
	assert.Equal(t, 3, PriorityHigh.Ordinal())
	assert.Equal(t, 4, PriorityUrgent.Ordinal())
	assert.Equal(t, 0, Priority("bogus").Ordinal())
	assert.False(t, Priority("").Valid())
}

func TestMetadata(t *testing.T) {
	c := newBaseItem(t, "x", ContentTypeInbox, PriorityLow)

	c.SetMetadata("thread", "t-1")
	c.SetMetadata("depth", 3)
	assert.Equal(t, "t-1", c.Metadata()["thread"])

	// The accessor hands out a copy.
	c.Metadata()["thread"] = "tampered"
	assert.Equal(t, "t-1", c.Metadata()["thread"])

	c.RemoveMetadata("thread")
	_, ok := c.Metadata()["thread"]
	assert.False(t, ok)
}

func TestContentItemNotifiesOnMutation(t *testing.T) {
	c := newBaseItem(t, "x", ContentTypeInbox, PriorityLow)

	var events []observer.Event
	unsub := c.Subscribe(func(ev observer.Event) { events = append(events, ev) })
	defer unsub()

	require.NoError(t, c.UpdateContent("y"))
	require.NoError(t, c.UpdatePriority(PriorityHigh))
	c.SetMetadata("k", "v")

	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, c.ID(), ev.Source)
		assert.Equal(t, observer.KindContent, ev.Kind)
	}
}

func TestContentItemValidate(t *testing.T) {
	c := newBaseItem(t, "x", ContentTypeInbox, PriorityLow)
	require.NoError(t, c.Validate())

	c.id = "not-a-uuid"
	c.content = ""
	err := c.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 2, "all violations are collected, not just the first")
}
