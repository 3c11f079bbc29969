package model

import (
	"encoding/json"
	"strings"
	"time"
)

// SubTaskSeparator joins sub-task texts in their flat string form.
const SubTaskSeparator = ", "

// Task is an open to-do item owned by a user and filed under a page.
type Task struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	PageID    *int64    `json:"page_id,omitempty" db:"page_id"`
	Text      string    `json:"task" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// SubTasks is populated by store queries, ordered by sort_order.
	SubTasks []SubTask `json:"sub_tasks" db:"-"`
}

// SmallTask returns the sub-task texts joined in insertion order.
// A task without sub-tasks yields the empty string.
func (t Task) SmallTask() string {
	if len(t.SubTasks) == 0 {
		return ""
	}
	texts := make([]string, len(t.SubTasks))
	for i, st := range t.SubTasks {
		texts[i] = st.Text
	}
	return strings.Join(texts, SubTaskSeparator)
}

// MarshalJSON adds the joined small_task string alongside the sub-tasks.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	subs := t.SubTasks
	if subs == nil {
		subs = []SubTask{}
	}
	p := plain(t)
	p.SubTasks = subs
	return json.Marshal(struct {
		plain
		SmallTask string `json:"small_task"`
	}{plain: p, SmallTask: t.SmallTask()})
}

// SubTask is a free-text item attached to a task.
// Its lifecycle is bound to the parent task (CASCADE delete).
type SubTask struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	Text      string    `json:"text" db:"text"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DoneTask records a completed task. It replaces the originating Task row.
type DoneTask struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	PageID      *int64    `json:"page_id,omitempty" db:"page_id"`
	Text        string    `json:"done_task" db:"text"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}
