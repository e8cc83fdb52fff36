package bridge

import (
	"github.com/noah-isme/taskroster/pkg/record"
)

// Conflict is a shared id whose compared fields differ between the two sides.
type Conflict struct {
	ID       string        `json:"id"`
	Fields   []string      `json:"fields"`
	Local    record.Record `json:"local"`
	Imported record.Record `json:"imported"`
}

// Report partitions two collections by id.
type Report struct {
	LocalCount      int        `json:"local_count"`
	ImportedCount   int        `json:"imported_count"`
	CommonIDs       []string   `json:"common_ids"`
	LocalOnlyIDs    []string   `json:"local_only_ids"`
	ImportedOnlyIDs []string   `json:"imported_only_ids"`
	Conflicts       []Conflict `json:"conflicts"`
}

// index keeps the first record seen per key, plus key order.
type index struct {
	order []string
	byKey map[string]record.Record
}

func buildIndex(schema record.Schema, records []record.Record) index {
	idx := index{byKey: make(map[string]record.Record, len(records))}
	for _, r := range records {
		key := schema.KeyOf(r)
		if _, ok := idx.byKey[key]; ok {
			continue
		}
		idx.byKey[key] = r
		idx.order = append(idx.order, key)
	}
	return idx
}

// Reconcile compares local against imported. Common and local-only ids follow local
// order; imported-only ids follow imported order. Neither input is modified.
func Reconcile(schema record.Schema, local, imported []record.Record) Report {
	l := buildIndex(schema, local)
	im := buildIndex(schema, imported)

	report := Report{
		LocalCount:      len(local),
		ImportedCount:   len(imported),
		CommonIDs:       []string{},
		LocalOnlyIDs:    []string{},
		ImportedOnlyIDs: []string{},
		Conflicts:       []Conflict{},
	}

	for _, id := range l.order {
		other, ok := im.byKey[id]
		if !ok {
			report.LocalOnlyIDs = append(report.LocalOnlyIDs, id)
			continue
		}
		report.CommonIDs = append(report.CommonIDs, id)
		mine := l.byKey[id]
		if fields := diff(schema.Compare, mine, other); len(fields) > 0 {
			report.Conflicts = append(report.Conflicts, Conflict{
				ID:       id,
				Fields:   fields,
				Local:    mine.Clone(),
				Imported: other.Clone(),
			})
		}
	}
	for _, id := range im.order {
		if _, ok := l.byKey[id]; !ok {
			report.ImportedOnlyIDs = append(report.ImportedOnlyIDs, id)
		}
	}
	return report
}

func diff(fields []string, a, b record.Record) []string {
	var out []string
	for _, f := range fields {
		if a[f] != b[f] {
			out = append(out, f)
		}
	}
	return out
}

// MergeResult is the outcome of applying the import policy.
type MergeResult struct {
	Records []record.Record `json:"-"`
	Updated []string        `json:"updated"`
	Added   []string        `json:"added"`
}

// Merge applies the import policy: on conflict the imported record replaces the local
// one, imported-only records are appended, everything else is kept as is. Callers
// must obtain confirmation before persisting the result.
func Merge(schema record.Schema, local, imported []record.Record) MergeResult {
	report := Reconcile(schema, local, imported)
	im := buildIndex(schema, imported)

	conflicted := make(map[string]struct{}, len(report.Conflicts))
	for _, c := range report.Conflicts {
		conflicted[c.ID] = struct{}{}
	}

	res := MergeResult{Records: make([]record.Record, 0, len(local)+len(report.ImportedOnlyIDs)), Updated: []string{}, Added: []string{}}
	for _, r := range local {
		key := schema.KeyOf(r)
		if _, ok := conflicted[key]; ok {
			res.Records = append(res.Records, im.byKey[key].Clone())
			res.Updated = append(res.Updated, key)
			delete(conflicted, key)
			continue
		}
		res.Records = append(res.Records, r.Clone())
	}
	for _, id := range report.ImportedOnlyIDs {
		res.Records = append(res.Records, im.byKey[id].Clone())
		res.Added = append(res.Added, id)
	}
	return res
}
