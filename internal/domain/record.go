package domain

import "time"

// Record is one student violation entry in a session's working set.
type Record struct {
	ID        string
	FullName  string
	ClassName string
	Violation string
	Timestamp time.Time
}

// Valid reports whether the record carries all required fields.
func (r Record) Valid() bool {
	return r.FullName != "" && r.ClassName != "" && r.Violation != ""
}

// CloneRecords returns an independent copy of rs. A nil input yields an empty,
// non-nil slice so snapshots never alias the caller's backing array.
func CloneRecords(rs []Record) []Record {
	out := make([]Record, len(rs))
	copy(out, rs)
	return out
}

// UserInfo is the identity captured when a session starts. It is stamped on every export.
type UserInfo struct {
	Name string
	Role string
}

func (u UserInfo) Complete() bool {
	return u.Name != "" && u.Role != ""
}
