package report

import (
	"fmt"
	"log"
	"time"

	"vipham/internal/domain"
)

// Export describes a file written by an Exporter.
type Export struct {
	Kind string
	// Name is the dated file name shown to users. Path may carry a numeric
	// suffix when that name was already taken on disk.
	Name        string
	Path        string
	RecordCount int
	CreatedAt   time.Time
}

// Exporter renders reports to files in a directory.
type Exporter struct {
	OutputDir string
	Location  *time.Location
	Now       func() time.Time
}

func NewExporter(outputDir string, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{OutputDir: outputDir, Location: loc, Now: time.Now}
}

func (e *Exporter) now() time.Time {
	if e.Now == nil {
		return time.Now().In(e.Location)
	}
	return e.Now().In(e.Location)
}

// Export writes rs as kind into a directory scoped to one session. Every
// failure is reported as domain.ErrExport.
func (e *Exporter) Export(kind, scope string, author domain.UserInfo, rs []domain.Record) (Export, error) {
	now := e.now()
	h := Header{Author: author, GeneratedAt: now}

	var (
		data []byte
		err  error
	)
	switch kind {
	case KindXLSX:
		data, err = BuildXLSX(h, rs, e.Location)
	case KindPNG:
		data, err = RenderPNG(h, Project(rs), e.Location)
	default:
		return Export{}, fmt.Errorf("%w: unknown export kind %q", domain.ErrExport, kind)
	}
	if err != nil {
		log.Printf("export render error kind=%s scope=%s: %v", kind, scope, err)
		return Export{}, fmt.Errorf("%w: %v", domain.ErrExport, err)
	}

	name := ExportFilename(kind, now)
	path, err := writeExportFile(data, e.OutputDir, scope, name)
	if err != nil {
		log.Printf("export write error kind=%s scope=%s: %v", kind, scope, err)
		return Export{}, fmt.Errorf("%w: %v", domain.ErrExport, err)
	}
	log.Printf("export written kind=%s path=%s records=%d", kind, path, len(rs))
	return Export{Kind: kind, Name: name, Path: path, RecordCount: len(rs), CreatedAt: now}, nil
}
