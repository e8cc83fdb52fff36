package models

import (
	"strconv"
	"time"

	"github.com/noah-isme/taskroster/pkg/record"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Defaults applied to new tasks.
const (
	DefaultPriority = PriorityMedium
	DefaultCategory = "general"
)

// Priorities lists the accepted priority values.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// Task is a to-do item. DeletedAt is set while the task sits in the bin.
type Task struct {
	ID          int64      `db:"id" json:"id"`
	Description string     `db:"description" json:"description"`
	Priority    string     `db:"priority" json:"priority"`
	Category    string     `db:"category" json:"category"`
	Completed   bool       `db:"completed" json:"completed"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// TaskFields carries a partial task for create and update calls. Nil fields are left
// untouched.
type TaskFields struct {
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Category    *string `json:"category,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Empty reports whether no field is set.
func (f TaskFields) Empty() bool {
	return f.Description == nil && f.Priority == nil && f.Category == nil && f.Completed == nil
}

// Apply copies the set fields onto t.
func (f TaskFields) Apply(t *Task) {
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Category != nil {
		t.Category = *f.Category
	}
	if f.Completed != nil {
		t.Completed = *f.Completed
	}
}

// ValidPriority reports whether p is an accepted priority.
func ValidPriority(p string) bool {
	for _, candidate := range Priorities {
		if p == candidate {
			return true
		}
	}
	return false
}

// TaskSchema fixes the delimited layout of tasks.
var TaskSchema = record.Schema{
	Name: "tasks",
	Key:  "ID",
	Fields: []record.Field{
		{Name: "ID"},
		{Name: "Description"},
		{Name: "Priority"},
		{Name: "Category"},
		{Name: "Completed"},
		{Name: "CreatedAt"},
	},
	MinFields: 3,
	Compare:   []string{"Description", "Priority", "Category", "Completed"},
}

// ToRecord converts a task to its delimited form.
func (t Task) ToRecord() record.Record {
	created := ""
	if !t.CreatedAt.IsZero() {
		created = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return record.Record{
		"ID":          strconv.FormatInt(t.ID, 10),
		"Description": t.Description,
		"Priority":    t.Priority,
		"Category":    t.Category,
		"Completed":   strconv.FormatBool(t.Completed),
		"CreatedAt":   created,
	}
}

// TaskFromRecord rebuilds a task. Empty priority and category fall back to defaults.
func TaskFromRecord(r record.Record) (Task, error) {
	id, err := strconv.ParseInt(r["ID"], 10, 64)
	if err != nil {
		return Task{}, err
	}
	t := Task{
		ID:          id,
		Description: r["Description"],
		Priority:    r["Priority"],
		Category:    r["Category"],
	}
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if v := r["Completed"]; v != "" {
		if t.Completed, err = strconv.ParseBool(v); err != nil {
			return Task{}, err
		}
	}
	if v := r["CreatedAt"]; v != "" {
		if t.CreatedAt, err = time.Parse(time.RFC3339, v); err != nil {
			return Task{}, err
		}
	}
	return t, nil
}

// TaskRecords converts a task slice.
func TaskRecords(tasks []Task) []record.Record {
	out := make([]record.Record, len(tasks))
	for i, t := range tasks {
		out[i] = t.ToRecord()
	}
	return out
}
