package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	KindPNG  = "png"
	KindXLSX = "xlsx"
)

// ExportFilename returns the dated file name for an export kind.
func ExportFilename(kind string, date time.Time) string {
	day := date.Format("2006-01-02")
	switch kind {
	case KindPNG:
		return fmt.Sprintf("bao-cao-vi-pham-%s.png", day)
	case KindXLSX:
		return fmt.Sprintf("tong-hop-vi-pham-%s.xlsx", day)
	default:
		return sanitizeFilename(fmt.Sprintf("bao-cao-vi-pham-%s.%s", day, kind))
	}
}

// writeExportFile writes data into outputDir under a per-session subdirectory so
// two sessions exporting on the same day do not overwrite each other. A name
// already taken in that directory gets a numeric suffix; earlier exports stay
// on disk for the ledger rows that point at them.
func writeExportFile(data []byte, outputDir, scope, name string) (string, error) {
	dir := outputDir
	if scope = sanitizeFilename(strings.TrimSpace(scope)); scope != "" {
		dir = filepath.Join(outputDir, scope)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name = sanitizeFilename(name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := name
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	return strings.TrimLeft(s, ".")
}
