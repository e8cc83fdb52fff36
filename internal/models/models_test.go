package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRecordRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	task := Task{ID: 7, Description: "Buy milk, eggs", Priority: PriorityHigh, Category: "home", Completed: true, CreatedAt: created}

	got, err := TaskFromRecord(task.ToRecord())
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestTaskFromRecordDefaults(t *testing.T) {
	got, err := TaskFromRecord(TaskSchema.FromRow([]string{"3", "Walk dog", ""}))
	require.NoError(t, err)
	assert.Equal(t, DefaultPriority, got.Priority)
	assert.Equal(t, DefaultCategory, got.Category)
	assert.False(t, got.Completed)

	_, err = TaskFromRecord(TaskSchema.FromRow([]string{"x", "Walk dog", ""}))
	assert.Error(t, err)
}

func TestTaskFieldsApply(t *testing.T) {
	done := true
	desc := "Updated"
	task := Task{Description: "Old", Priority: PriorityLow}
	TaskFields{Completed: &done, Description: &desc}.Apply(&task)
	assert.True(t, task.Completed)
	assert.Equal(t, "Updated", task.Description)
	assert.Equal(t, PriorityLow, task.Priority)
	assert.True(t, TaskFields{}.Empty())
}

func TestStudentSchemaValidate(t *testing.T) {
	today := func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	schema := StudentSchema(16, today)

	valid := Student{StudentID: "S001", Name: "Ada Lovelace", Course: "Maths", DOB: "01/01/2010", EnrollDate: "01/01/2027", Address: "12 Main Street", Completed: CompletedNo}
	assert.Empty(t, schema.Validate(valid.ToRecord()))

	young := valid
	young.EnrollDate = "01/01/2024"
	assert.Equal(t, []string{"student must be at least 16 years old at enrollment"}, schema.Validate(young.ToRecord()))

	bad := valid
	bad.DOB = "31/02/2010"
	bad.Completed = "maybe"
	errs := schema.Validate(bad.ToRecord())
	assert.Equal(t, []string{"Date of Birth must be in DD/MM/YYYY format", "Completed must be Yes or No"}, errs)
}

func TestStudentRecordRoundTrip(t *testing.T) {
	s := Student{StudentID: "S001", Name: "Ada", Course: "Maths", DOB: "10/12/1815", EnrollDate: "01/01/1832", Address: "London", Completed: CompletedYes, Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	got, err := StudentFromRecord(s.ToRecord())
	require.NoError(t, err)
	assert.Equal(t, s, got)

	r := s.ToRecord()
	r[StudentFieldAddress] = ` 1 "Rue" <Haut> `
	escaped, err := StudentFromRecord(r)
	require.NoError(t, err)
	assert.Equal(t, "1 &quot;Rue&quot; &lt;Haut&gt;", escaped.Address)
	twice, err := StudentFromRecord(escaped.ToRecord())
	require.NoError(t, err)
	assert.Equal(t, escaped, twice)

	r[StudentFieldTimestamp] = "yesterday"
	_, err = StudentFromRecord(r)
	assert.Error(t, err)
}
