// Package record provides a schema-driven record shape shared by the task and
// student domains. A Schema fixes the field order used for delimited text, names the
// key field, and keys validators by field name.
package record

import (
	"fmt"
	"strings"

	"github.com/noah-isme/taskroster/pkg/validation"
)

// Record is a set of named text fields.
type Record map[string]string

// Get returns the value of a field, or "" when absent.
func (r Record) Get(field string) string {
	return r[field]
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Field describes one column.
type Field struct {
	Name string
	// Rule validates the field; nil means unchecked.
	Rule validation.Rule
	// Message replaces the rule's reason in validation output when set.
	Message string
}

// CrossRule validates relations between fields of an already field-checked record.
type CrossRule func(Record) []string

// Schema describes a record collection.
type Schema struct {
	Name      string
	Key       string
	Fields    []Field
	MinFields int
	Compare   []string
	Cross     []CrossRule
}

// Header returns the field names in order.
func (s Schema) Header() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Row returns the record values in schema order.
func (s Schema) Row(r Record) []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = r[f.Name]
	}
	return out
}

// FromRow rebuilds a record positionally. Missing trailing values are left empty and
// extra values are ignored.
func (s Schema) FromRow(values []string) Record {
	r := make(Record, len(s.Fields))
	for i, f := range s.Fields {
		if i < len(values) {
			r[f.Name] = values[i]
		} else {
			r[f.Name] = ""
		}
	}
	return r
}

// KeyOf returns the key field value.
func (s Schema) KeyOf(r Record) string {
	return r[s.Key]
}

// Validate runs every field rule in schema order, then every cross rule, and returns
// all failure messages. Cross rules only run when the field rules they depend on were
// satisfied, which each CrossRule checks for itself.
func (s Schema) Validate(r Record) []string {
	var errs []string
	for _, f := range s.Fields {
		if f.Rule == nil {
			continue
		}
		res := f.Rule(r[f.Name])
		if res.Valid {
			continue
		}
		if f.Message != "" {
			errs = append(errs, f.Message)
		} else {
			errs = append(errs, fmt.Sprintf("%s: %s", f.Name, res.Reason))
		}
	}
	for _, rule := range s.Cross {
		errs = append(errs, rule(r)...)
	}
	return errs
}

// Issue is one invalid record in a summary.
type Issue struct {
	Index  int      `json:"index"`
	ID     string   `json:"id"`
	Errors []string `json:"errors"`
}

// Summary aggregates validation over a collection.
type Summary struct {
	Total   int     `json:"total"`
	Valid   int     `json:"valid"`
	Invalid int     `json:"invalid"`
	Issues  []Issue `json:"issues"`
}

// Summarize validates every record.
func (s Schema) Summarize(records []Record) Summary {
	sum := Summary{Total: len(records), Issues: []Issue{}}
	for i, r := range records {
		errs := s.Validate(r)
		if len(errs) == 0 {
			sum.Valid++
			continue
		}
		sum.Invalid++
		sum.Issues = append(sum.Issues, Issue{Index: i, ID: s.KeyOf(r), Errors: errs})
	}
	return sum
}

// Consistency issue kinds.
const (
	IssueDuplicateID = "duplicate_id"
	IssueFieldsMatch = "fields_match"
)

// ConsistencyIssue flags a suspicious pattern across or within records.
type ConsistencyIssue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Indices []int  `json:"indices"`
}

// Consistency reports duplicate keys and records whose two given fields hold the same
// text (case-insensitive). Pass empty field names to skip the second check.
func (s Schema) Consistency(records []Record, fieldA, fieldB string) []ConsistencyIssue {
	issues := []ConsistencyIssue{}
	first := make(map[string]int, len(records))
	for i, r := range records {
		key := s.KeyOf(r)
		if j, dup := first[key]; dup {
			issues = append(issues, ConsistencyIssue{
				Type:    IssueDuplicateID,
				Message: fmt.Sprintf("duplicate %s: %s", s.Key, key),
				Indices: []int{j, i},
			})
		} else {
			first[key] = i
		}
		if fieldA == "" || fieldB == "" {
			continue
		}
		a, b := strings.TrimSpace(r[fieldA]), strings.TrimSpace(r[fieldB])
		if a != "" && strings.EqualFold(a, b) {
			issues = append(issues, ConsistencyIssue{
				Type:    IssueFieldsMatch,
				Message: fmt.Sprintf("%s and %s are identical: %s", fieldA, fieldB, a),
				Indices: []int{i},
			})
		}
	}
	return issues
}
