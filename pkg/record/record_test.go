package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskroster/pkg/validation"
)

func testSchema() Schema {
	return Schema{
		Name: "people",
		Key:  "id",
		Fields: []Field{
			{Name: "id", Rule: validation.ID, Message: "bad id"},
			{Name: "name", Rule: validation.Name},
			{Name: "course"},
		},
		MinFields: 2,
		Compare:   []string{"name", "course"},
		Cross: []CrossRule{func(r Record) []string {
			if r["name"] == r["course"] && r["name"] != "" {
				return []string{"name equals course"}
			}
			return nil
		}},
	}
}

func TestRowAndFromRow(t *testing.T) {
	s := testSchema()
	assert.Equal(t, []string{"id", "name", "course"}, s.Header())

	r := s.FromRow([]string{"A01", "Ann"})
	assert.Equal(t, Record{"id": "A01", "name": "Ann", "course": ""}, r)
	assert.Equal(t, []string{"A01", "Ann", ""}, s.Row(r))

	r = s.FromRow([]string{"A01", "Ann", "Art", "extra"})
	assert.Equal(t, "Art", r.Get("course"))
	assert.Len(t, r, 3)
}

func TestValidateCollectsAllInOrder(t *testing.T) {
	s := testSchema()
	errs := s.Validate(Record{"id": "x", "name": "7", "course": "7"})
	require.Len(t, errs, 3)
	assert.Equal(t, "bad id", errs[0])
	assert.Contains(t, errs[1], "name:")
	assert.Equal(t, "name equals course", errs[2])

	assert.Empty(t, s.Validate(Record{"id": "A01", "name": "Ann", "course": "Art"}))
}

func TestSummarize(t *testing.T) {
	s := testSchema()
	sum := s.Summarize([]Record{
		{"id": "A01", "name": "Ann", "course": "Art"},
		{"id": "!", "name": "Bob", "course": "Art"},
	})
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Valid)
	assert.Equal(t, 1, sum.Invalid)
	require.Len(t, sum.Issues, 1)
	assert.Equal(t, 1, sum.Issues[0].Index)
	assert.Equal(t, "!", sum.Issues[0].ID)
}

func TestConsistency(t *testing.T) {
	s := testSchema()
	issues := s.Consistency([]Record{
		{"id": "A01", "name": "Ann", "course": "Art"},
		{"id": "A02", "name": "Music", "course": "music"},
		{"id": "A01", "name": "Ann B", "course": "Art"},
	}, "name", "course")
	require.Len(t, issues, 2)
	assert.Equal(t, IssueFieldsMatch, issues[0].Type)
	assert.Equal(t, []int{1}, issues[0].Indices)
	assert.Equal(t, IssueDuplicateID, issues[1].Type)
	assert.Equal(t, []int{0, 2}, issues[1].Indices)
}

func TestCloneIsIndependent(t *testing.T) {
	r := Record{"id": "A01"}
	c := r.Clone()
	c["id"] = "B02"
	assert.Equal(t, "A01", r["id"])
}
