// Package sqlite keeps the export ledger and the edit-mode corrections that
// feed the glossary.
package sqlite

import (
	"database/sql"
	"time"

	"vipham/internal/domain"
	"vipham/internal/report"

	_ "github.com/mattn/go-sqlite3"
)

const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		kind         TEXT NOT NULL,
		path         TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		author       TEXT NOT NULL,
		author_role  TEXT DEFAULT '',
		channel_id   TEXT DEFAULT '',
		user_id      TEXT DEFAULT '',
		trigger_kind TEXT NOT NULL DEFAULT 'manual',
		exported_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exports_exported_at ON exports(exported_at);
	CREATE INDEX IF NOT EXISTS idx_exports_channel ON exports(channel_id);

	CREATE TABLE IF NOT EXISTS export_items (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		export_id   INTEGER NOT NULL,
		record_id   TEXT NOT NULL,
		full_name   TEXT NOT NULL,
		class_name  TEXT NOT NULL,
		violation   TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_export_items_export ON export_items(export_id);

	CREATE TABLE IF NOT EXISTS violation_corrections (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id    TEXT DEFAULT '',
		phrase       TEXT NOT NULL,
		label        TEXT NOT NULL,
		corrected_by TEXT DEFAULT '',
		corrected_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_vc_date ON violation_corrections(corrected_at);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// --- Export ledger ---

type ExportEntry struct {
	ID          int64
	Kind        string
	Path        string
	RecordCount int
	Author      string
	AuthorRole  string
	ChannelID   string
	UserID      string
	Trigger     string
	ExportedAt  time.Time
}

// InsertExport records one export and the records it contained.
func InsertExport(db *sql.DB, e ExportEntry, records []domain.Record) (int64, error) {
	if e.Trigger == "" {
		e.Trigger = TriggerManual
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO exports (kind, path, record_count, author, author_role, channel_id, user_id, trigger_kind, exported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.Path, e.RecordCount, e.Author, e.AuthorRole, e.ChannelID, e.UserID, e.Trigger, e.ExportedAt,
	)
	if err != nil {
		return 0, err
	}
	exportID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO export_items (export_id, record_id, full_name, class_name, violation, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(exportID, r.ID, r.FullName, r.ClassName, r.Violation, r.Timestamp.UTC()); err != nil {
			return 0, err
		}
	}
	return exportID, tx.Commit()
}

func GetRecentExports(db *sql.DB, channelID string, limit int) ([]ExportEntry, error) {
	rows, err := db.Query(
		`SELECT id, kind, path, record_count, author, author_role, channel_id, user_id, trigger_kind, exported_at
		 FROM exports
		 WHERE channel_id = ?
		 ORDER BY exported_at DESC, id DESC
		 LIMIT ?`,
		channelID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportEntry
	for rows.Next() {
		var e ExportEntry
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.Path, &e.RecordCount, &e.Author, &e.AuthorRole,
			&e.ChannelID, &e.UserID, &e.Trigger, &e.ExportedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Stats ---

type ExportStats struct {
	TotalExports int
	TotalRecords int
	PNGExports   int
	XLSXExports  int
	AutoExports  int
	Corrections  int
}

func GetExportStats(db *sql.DB, since time.Time) (ExportStats, error) {
	var s ExportStats
	err := db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(record_count), 0),
		        COALESCE(SUM(CASE WHEN kind = 'png' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'xlsx' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN trigger_kind = 'auto' THEN 1 ELSE 0 END), 0)
		 FROM exports WHERE exported_at >= ?`,
		since,
	).Scan(&s.TotalExports, &s.TotalRecords, &s.PNGExports, &s.XLSXExports, &s.AutoExports)
	if err != nil {
		return s, err
	}

	err = db.QueryRow(
		`SELECT COUNT(*) FROM violation_corrections WHERE corrected_at >= ?`,
		since,
	).Scan(&s.Corrections)
	return s, err
}

type ViolationCount struct {
	Violation string
	Count     int
}

// GetViolationCounts counts exported records per violation. A record exported
// more than once is counted once.
func GetViolationCounts(db *sql.DB, since time.Time, limit int) ([]ViolationCount, error) {
	rows, err := db.Query(
		`SELECT violation, COUNT(DISTINCT record_id) AS cnt
		 FROM export_items
		 WHERE recorded_at >= ?
		 GROUP BY violation
		 ORDER BY cnt DESC, violation
		 LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ViolationCount
	for rows.Next() {
		var c ViolationCount
		if err := rows.Scan(&c.Violation, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Corrections ---

type Correction struct {
	ID          int64
	RecordID    string
	Phrase      string
	Label       string
	CorrectedBy string
	CorrectedAt time.Time
}

func InsertCorrection(db *sql.DB, c Correction) error {
	if c.CorrectedAt.IsZero() {
		c.CorrectedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO violation_corrections (record_id, phrase, label, corrected_by, corrected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.RecordID, c.Phrase, c.Label, c.CorrectedBy, c.CorrectedAt,
	)
	return err
}

func GetRecentCorrections(db *sql.DB, since time.Time, limit int) ([]Correction, error) {
	rows, err := db.Query(
		`SELECT id, record_id, phrase, label, corrected_by, corrected_at
		 FROM violation_corrections
		 WHERE corrected_at >= ?
		 ORDER BY corrected_at DESC, id DESC
		 LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var c Correction
		if err := rows.Scan(&c.ID, &c.RecordID, &c.Phrase, &c.Label, &c.CorrectedBy, &c.CorrectedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func CountCorrectionsByPhrase(db *sql.DB, phrase, label string) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM violation_corrections
		 WHERE LOWER(TRIM(phrase)) = LOWER(TRIM(?))
		   AND label = ?`,
		phrase, label,
	).Scan(&count)
	return count, err
}

// NewExportEntry describes exp for the ledger.
func NewExportEntry(exp report.Export, author domain.UserInfo, channelID, userID, trigger string) ExportEntry {
	at := exp.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return ExportEntry{
		Kind:        exp.Kind,
		Path:        exp.Path,
		RecordCount: exp.RecordCount,
		Author:      author.Name,
		AuthorRole:  author.Role,
		ChannelID:   channelID,
		UserID:      userID,
		Trigger:     trigger,
		ExportedAt:  at.UTC(),
	}
}
