package session

import (
	"fmt"
	"strings"
	"time"

	"vipham/internal/domain"
	"vipham/internal/report"
)

// EditRow is one editable line of the report. ID and Timestamp are carried
// through unchanged; the text fields hold whatever the user typed or selected.
type EditRow struct {
	ID        string
	Timestamp time.Time
	FullName  string
	ClassName string
	Violation string
	Deleted   bool
}

// EditBuffer holds pending edits until they are saved or discarded. Rows are
// in report display order.
type EditBuffer struct {
	rows  []EditRow
	index map[string]int
}

func newEditBuffer(groups []report.Group) *EditBuffer {
	b := &EditBuffer{index: make(map[string]int)}
	for _, r := range report.Flatten(groups) {
		b.index[r.ID] = len(b.rows)
		b.rows = append(b.rows, EditRow{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			FullName:  r.FullName,
			ClassName: r.ClassName,
			Violation: r.Violation,
		})
	}
	return b
}

// Rows returns a copy of the pending rows, deleted ones included.
func (b *EditBuffer) Rows() []EditRow {
	out := make([]EditRow, len(b.rows))
	copy(out, b.rows)
	return out
}

func (b *EditBuffer) Row(id string) (EditRow, bool) {
	i, ok := b.index[id]
	if !ok {
		return EditRow{}, false
	}
	return b.rows[i], true
}

// Update overwrites the editable fields of the row with the given id.
func (b *EditBuffer) Update(id, fullName, className, violation string) error {
	i, ok := b.index[id]
	if !ok {
		return fmt.Errorf("edit row %q not found", id)
	}
	b.rows[i].FullName = fullName
	b.rows[i].ClassName = className
	b.rows[i].Violation = violation
	return nil
}

// Delete marks a row for removal on save.
func (b *EditBuffer) Delete(id string) error {
	i, ok := b.index[id]
	if !ok {
		return fmt.Errorf("edit row %q not found", id)
	}
	b.rows[i].Deleted = true
	return nil
}

// Records builds the working set the buffer describes. Deleted rows and rows
// left with an empty field are dropped.
func (b *EditBuffer) Records() []domain.Record {
	out := make([]domain.Record, 0, len(b.rows))
	for _, row := range b.rows {
		if row.Deleted {
			continue
		}
		rec := domain.Record{
			ID:        row.ID,
			FullName:  strings.TrimSpace(row.FullName),
			ClassName: strings.TrimSpace(row.ClassName),
			Violation: strings.TrimSpace(row.Violation),
			Timestamp: row.Timestamp,
		}
		if !rec.Valid() {
			continue
		}
		out = append(out, rec)
	}
	return out
}
