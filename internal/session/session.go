// Package session owns one user's working set, history and pending edit, and
// serializes access to them.
package session

import (
	"fmt"
	"strings"
	"time"

	"vipham/internal/domain"
	"vipham/internal/history"
	"vipham/internal/parser"
	"vipham/internal/report"
	"vipham/internal/violation"
)

// Options configure new sessions.
type Options struct {
	Normalizer *violation.Normalizer
	Separator  string
	TrackRedo  bool
	Clock      func() time.Time
}

// Input is one submission. Text takes precedence over File when both are set.
type Input struct {
	Text string
	File []byte
}

// SubmitResult describes a committed submission.
type SubmitResult struct {
	Added        []domain.Record
	Unrecognized []string
}

// Correction records a violation changed in edit mode from unrecognized text
// to a canonical label.
type Correction struct {
	RecordID string
	Phrase   string
	Label    string
}

// Status summarizes a session for display.
type Status struct {
	Records   int
	UndoDepth int
	RedoDepth int
	TrackRedo bool
	Editing   bool
}

type Session struct {
	key     string
	user    domain.UserInfo
	history *history.History
	parser  *parser.Parser
	pending *EditBuffer
	touched time.Time
	clock   func() time.Time
}

func New(key string, opts Options) *Session {
	n := opts.Normalizer
	if n == nil {
		n = violation.NewNormalizer()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		key:     key,
		history: history.New(opts.TrackRedo),
		parser:  parser.New(n, parser.WithSeparator(opts.Separator), parser.WithClock(clock)),
		clock:   clock,
		touched: clock(),
	}
}

func (s *Session) Key() string { return s.key }

// Login captures the identity stamped on exports. It is set once; later calls
// are rejected so an export always carries the identity the session began with.
func (s *Session) Login(u domain.UserInfo) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Role = strings.TrimSpace(u.Role)
	if !u.Complete() {
		return fmt.Errorf("%w: name and role are required", domain.ErrNotLoggedIn)
	}
	if s.user.Complete() {
		return fmt.Errorf("identity already set for %s", s.user.Name)
	}
	s.user = u
	s.touch()
	return nil
}

func (s *Session) Identity() domain.UserInfo { return s.user }

func (s *Session) LoggedIn() bool { return s.user.Complete() }

func (s *Session) ready() error {
	if !s.LoggedIn() {
		return domain.ErrNotLoggedIn
	}
	if s.pending != nil {
		return domain.ErrEditInProgress
	}
	return nil
}

// Submit parses in and appends the resulting records. Nothing changes unless
// at least one record was extracted.
func (s *Session) Submit(in Input) (SubmitResult, error) {
	if err := s.ready(); err != nil {
		return SubmitResult{}, err
	}

	var records []domain.Record
	switch {
	case strings.TrimSpace(in.Text) != "":
		records = s.parser.ParseText(in.Text)
	case len(in.File) > 0:
		rows, err := parser.ReadWorkbook(in.File)
		if err != nil {
			return SubmitResult{}, err
		}
		records, err = s.parser.ParseTable(rows)
		if err != nil {
			return SubmitResult{}, err
		}
	default:
		return SubmitResult{}, domain.ErrNoInput
	}
	if len(records) == 0 {
		return SubmitResult{}, domain.ErrEmptyResult
	}

	s.history.Append(records)
	s.touch()

	result := SubmitResult{Added: records}
	seen := make(map[string]bool)
	for _, r := range records {
		if violation.Recognized(r.Violation) || seen[r.Violation] {
			continue
		}
		seen[r.Violation] = true
		result.Unrecognized = append(result.Unrecognized, r.Violation)
	}
	return result, nil
}

// Undo reports whether a previous state was restored.
func (s *Session) Undo() (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	ok := s.history.Undo()
	s.touch()
	return ok, nil
}

func (s *Session) Redo() (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	ok := s.history.Redo()
	s.touch()
	return ok, nil
}

// Clear empties the report. Callers confirm with the user first; the cleared
// state remains reachable through Undo.
func (s *Session) Clear() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.history.Clear()
	s.touch()
	return nil
}

// BeginEdit opens an edit buffer over the current report, replacing any
// buffer left open.
func (s *Session) BeginEdit() (*EditBuffer, error) {
	if !s.LoggedIn() {
		return nil, domain.ErrNotLoggedIn
	}
	s.pending = newEditBuffer(s.Report())
	s.touch()
	return s.pending, nil
}

func (s *Session) PendingEdit() (*EditBuffer, error) {
	if s.pending == nil {
		return nil, domain.ErrNoPendingEdit
	}
	return s.pending, nil
}

func (s *Session) Editing() bool { return s.pending != nil }

// CancelEdit discards the pending buffer.
func (s *Session) CancelEdit() {
	s.pending = nil
	s.touch()
}

// SaveEdit replaces the working set with the pending buffer's records.
func (s *Session) SaveEdit() ([]Correction, error) {
	if s.pending == nil {
		return nil, domain.ErrNoPendingEdit
	}
	before := make(map[string]domain.Record)
	for _, r := range s.history.Working() {
		before[r.ID] = r
	}

	next := s.pending.Records()
	var corrections []Correction
	for _, r := range next {
		old, ok := before[r.ID]
		if !ok || old.Violation == r.Violation {
			continue
		}
		if !violation.Recognized(old.Violation) && violation.Recognized(r.Violation) {
			corrections = append(corrections, Correction{RecordID: r.ID, Phrase: old.Violation, Label: r.Violation})
		}
	}

	s.history.Replace(next)
	s.pending = nil
	s.touch()
	return corrections, nil
}

// Records returns the working set in append order.
func (s *Session) Records() []domain.Record {
	return s.history.Working()
}

// Report returns the working set grouped for display.
func (s *Session) Report() []report.Group {
	return report.Project(s.history.Working())
}

func (s *Session) Status() Status {
	return Status{
		Records:   s.history.Len(),
		UndoDepth: s.history.UndoDepth(),
		RedoDepth: s.history.RedoDepth(),
		TrackRedo: s.history.TracksRedo(),
		Editing:   s.pending != nil,
	}
}

// Export writes the working set to a file stamped with the session identity.
// It returns the exported records alongside the file description.
func (s *Session) Export(e *report.Exporter, kind string) (report.Export, []domain.Record, error) {
	exp, records, err := s.export(e, kind)
	if err == nil {
		s.touch()
	}
	return exp, records, err
}

// ExportScheduled is Export for unattended runs. It leaves LastActive alone so
// a frequent schedule does not keep idle sessions alive.
func (s *Session) ExportScheduled(e *report.Exporter, kind string) (report.Export, []domain.Record, error) {
	return s.export(e, kind)
}

func (s *Session) export(e *report.Exporter, kind string) (report.Export, []domain.Record, error) {
	if err := s.ready(); err != nil {
		return report.Export{}, nil, err
	}
	records := s.history.Working()
	if len(records) == 0 {
		return report.Export{}, nil, domain.ErrEmptyResult
	}
	exp, err := e.Export(kind, s.key, s.user, records)
	if err != nil {
		return report.Export{}, nil, err
	}
	return exp, records, nil
}

// LastActive is the time of the most recent operation.
func (s *Session) LastActive() time.Time { return s.touched }

func (s *Session) touch() { s.touched = s.clock() }
