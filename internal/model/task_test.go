package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_SmallTask(t *testing.T) {
	var task Task
	assert.Equal(t, "", task.SmallTask())

	task.SubTasks = []SubTask{{Text: "eggs"}, {Text: "bread"}}
	assert.Equal(t, "eggs, bread", task.SmallTask())
}

func TestTask_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(Task{ID: 7, Text: "Buy milk"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Buy milk", got["task"])
	assert.Equal(t, "", got["small_task"])
	assert.Equal(t, []any{}, got["sub_tasks"])
}

func TestUser_IsGuest(t *testing.T) {
	assert.True(t, User{Email: "guest123"}.IsGuest())
	assert.False(t, User{Email: "a@example.com"}.IsGuest())
}
