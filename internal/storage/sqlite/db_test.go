package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"vipham/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vipham-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitDBIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		db, err := InitDB(dbPath)
		if err != nil {
			t.Fatalf("InitDB attempt %d failed: %v", i+1, err)
		}
		_ = db.Close()
	}
}

func TestExportLedgerAndStats(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	records := []domain.Record{
		{ID: "r1", FullName: "A", ClassName: "10A1", Violation: domain.ViolationLate, Timestamp: base},
		{ID: "r2", FullName: "B", ClassName: "10A2", Violation: domain.ViolationLate, Timestamp: base.Add(time.Minute)},
		{ID: "r3", FullName: "C", ClassName: "10A3", Violation: domain.ViolationSandals, Timestamp: base.Add(2 * time.Minute)},
	}
	id, err := InsertExport(db, ExportEntry{
		Kind:        "xlsx",
		Path:        "/tmp/a.xlsx",
		RecordCount: len(records),
		Author:      "Trần Văn B",
		AuthorRole:  "Giám thị",
		ChannelID:   "C1",
		UserID:      "U1",
		ExportedAt:  base,
	}, records)
	if err != nil {
		t.Fatalf("InsertExport failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero export id")
	}
	if _, err := InsertExport(db, ExportEntry{
		Kind:        "png",
		Path:        "/tmp/a.png",
		RecordCount: 2,
		Author:      "Trần Văn B",
		ChannelID:   "C1",
		Trigger:     TriggerAuto,
		ExportedAt:  base.Add(time.Hour),
	}, records[:2]); err != nil {
		t.Fatalf("InsertExport failed: %v", err)
	}

	recent, err := GetRecentExports(db, "C1", 10)
	if err != nil {
		t.Fatalf("GetRecentExports failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Kind != "png" || recent[1].Trigger != TriggerManual {
		t.Fatalf("unexpected recent exports: %+v", recent)
	}
	if other, _ := GetRecentExports(db, "C2", 10); len(other) != 0 {
		t.Fatalf("expected no exports for other channel, got %d", len(other))
	}

	stats, err := GetExportStats(db, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetExportStats failed: %v", err)
	}
	if stats.TotalExports != 2 || stats.TotalRecords != 5 || stats.PNGExports != 1 || stats.XLSXExports != 1 || stats.AutoExports != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	counts, err := GetViolationCounts(db, base.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("GetViolationCounts failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 violation buckets, got %+v", counts)
	}
	if counts[0].Violation != domain.ViolationLate || counts[0].Count != 2 {
		t.Fatalf("expected late x2 first, got %+v", counts[0])
	}
	if counts[1].Violation != domain.ViolationSandals || counts[1].Count != 1 {
		t.Fatalf("expected sandals x1 second, got %+v", counts[1])
	}
}

func TestCorrectionsCountByPhrase(t *testing.T) {
	db := newTestDB(t)

	for _, phrase := range []string{"nhuộm tóc", "  Nhuộm tóc ", "nhuộm tóc"} {
		if err := InsertCorrection(db, Correction{Phrase: phrase, Label: domain.ViolationNoUniform, CorrectedBy: "U1"}); err != nil {
			t.Fatalf("InsertCorrection failed: %v", err)
		}
	}
	if err := InsertCorrection(db, Correction{Phrase: "nhuộm tóc", Label: domain.ViolationLate}); err != nil {
		t.Fatalf("InsertCorrection failed: %v", err)
	}

	count, err := CountCorrectionsByPhrase(db, "nhuộm tóc", domain.ViolationNoUniform)
	if err != nil {
		t.Fatalf("CountCorrectionsByPhrase failed: %v", err)
	}
	// LOWER folds ASCII only; the capital N here is ASCII.
	if count != 3 {
		t.Fatalf("expected 3 matching corrections, got %d", count)
	}

	recent, err := GetRecentCorrections(db, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("GetRecentCorrections failed: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("expected 4 recent corrections, got %d", len(recent))
	}

	stats, err := GetExportStats(db, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetExportStats failed: %v", err)
	}
	if stats.Corrections != 4 || stats.TotalExports != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
