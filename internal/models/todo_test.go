package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknell/vibe-coder-sub002/internal/observer"
)

func TestCompletionStampsCompletedAt(t *testing.T) {
	item := mustTodo(t, "write the report", PriorityHigh, nil)

	assert.False(t, item.IsCompleted())
	assert.Nil(t, item.CompletedAt())

	item.MarkCompleted()
	require.True(t, item.IsCompleted())
	require.NotNil(t, item.CompletedAt(), "completedAt must be set exactly when completed")

	item.MarkIncomplete()
	assert.False(t, item.IsCompleted())
	assert.Nil(t, item.CompletedAt(), "reopening must clear completedAt")
}

func TestCompletionIsIdempotent(t *testing.T) {
	item := mustTodo(t, "x", PriorityLow, nil)

	var notifications int
	unsub := item.Subscribe(func(observer.Event) { notifications++ })
	defer unsub()

	item.MarkCompleted()
	first := item.CompletedAt()
	item.MarkCompleted()

	assert.Equal(t, 1, notifications)
	assert.True(t, first.Equal(*item.CompletedAt()), "repeat completion must not re-stamp")

	item.MarkIncomplete()
	item.MarkIncomplete()
	assert.Equal(t, 2, notifications)
}

func TestOverdue(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		due       *time.Time
		completed bool
		want      bool
	}{
		{"past due, pending", &past, false, true},
		{"past due, completed", &past, true, false},
		{"future due", &future, false, false},
		{"no due date", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := mustTodo(t, "x", PriorityMedium, tt.due)
			if tt.completed {
				item.MarkCompleted()
			}
			assert.Equal(t, tt.want, item.IsOverdue())
		})
	}
}

func TestTimeUntilDue(t *testing.T) {
	item := mustTodo(t, "x", PriorityMedium, nil)
	assert.Nil(t, item.TimeUntilDue(), "no due date means no remaining time")

	item.SetDueDate(time.Now().Add(time.Hour))
	remaining := item.TimeUntilDue()
	require.NotNil(t, remaining)
	assert.Greater(t, *remaining, 50*time.Minute)

	item.SetDueDate(time.Now().Add(-time.Minute))
	assert.Nil(t, item.TimeUntilDue(), "a passed due date yields nil, not a negative duration")

	item.ClearDueDate()
	assert.Nil(t, item.DueDate())
}

func TestClearDueDateWithoutOneIsSilent(t *testing.T) {
	item := mustTodo(t, "x", PriorityMedium, nil)

	var notifications int
	unsub := item.Subscribe(func(observer.Event) { notifications++ })
	defer unsub()

	item.ClearDueDate()
	assert.Equal(t, 0, notifications)
}

func TestTags(t *testing.T) {
	item := mustTodo(t, "x", PriorityMedium, nil)

	item.AddTag("  urgent  ")
	item.AddTag("review")
	item.AddTag("urgent") // duplicate
	item.AddTag("   ")    // empty after trim
	assert.Equal(t, []string{"urgent", "review"}, item.Tags())

	item.AddTag("Urgent") // tags are case-sensitive
	assert.Equal(t, []string{"urgent", "review", "Urgent"}, item.Tags())

	item.RemoveTag("review")
	assert.Equal(t, []string{"urgent", "Urgent"}, item.Tags())

	item.RemoveTag("missing") // no-op
	assert.Equal(t, []string{"urgent", "Urgent"}, item.Tags())
}

func TestTodoValidateCompletionInvariant(t *testing.T) {
	item := mustTodo(t, "x", PriorityMedium, nil)
	require.NoError(t, item.Validate())

	item.MarkCompleted()
	require.NoError(t, item.Validate())

	// Force the inconsistent state the invariant guards against.
	item.isCompleted = true
	item.completedAt = nil
	err := item.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTodoJSONRoundTrip(t *testing.T) {
	due := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	item := mustTodo(t, "ship it", PriorityUrgent, &due)
	item.AddTag("release")
	item.MarkCompleted()

	data, err := json.Marshal(item)
	require.NoError(t, err)

	var got TodoItem
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, item.ID(), got.ID())
	assert.Equal(t, "ship it", got.Content())
	assert.Equal(t, PriorityUrgent, got.Priority())
	assert.True(t, got.IsCompleted())
	require.NotNil(t, got.CompletedAt())
	require.NotNil(t, got.DueDate())
	assert.True(t, due.Equal(*got.DueDate()))
	assert.Equal(t, []string{"release"}, got.Tags())
}

func TestTodoUnmarshalRejectsInconsistentCompletion(t *testing.T) {
	item := mustTodo(t, "x", PriorityMedium, nil)
	data, err := json.Marshal(item)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	doc["is_completed"] = true // completed_at stays absent
	corrupt, err := json.Marshal(doc)
	require.NoError(t, err)

	var got TodoItem
	err = json.Unmarshal(corrupt, &got)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
