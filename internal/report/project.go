package report

import (
	"sort"

	"vipham/internal/domain"
)

// Group is one violation section of a report.
type Group struct {
	Violation string
	Records   []domain.Record
}

// Project groups rs by violation label. Groups are ordered by label and records
// within a group by ascending timestamp; rs itself is left untouched.
func Project(rs []domain.Record) []Group {
	byViolation := make(map[string][]domain.Record)
	for _, r := range rs {
		byViolation[r.Violation] = append(byViolation[r.Violation], r)
	}

	labels := make([]string, 0, len(byViolation))
	for label := range byViolation {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	groups := make([]Group, 0, len(labels))
	for _, label := range labels {
		records := byViolation[label]
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Timestamp.Before(records[j].Timestamp)
		})
		groups = append(groups, Group{Violation: label, Records: records})
	}
	return groups
}

// Flatten returns the records of groups in display order.
func Flatten(groups []Group) []domain.Record {
	var out []domain.Record
	for _, g := range groups {
		out = append(out, g.Records...)
	}
	return out
}
