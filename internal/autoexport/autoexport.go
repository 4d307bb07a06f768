// Package autoexport periodically exports every non-empty session to a
// spreadsheet and hands the file to an uploader.
package autoexport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"vipham/internal/domain"
	"vipham/internal/report"
	"vipham/internal/session"
	"vipham/internal/storage/sqlite"

	"github.com/robfig/cron/v3"
)

// Uploader delivers an exported file to a channel.
type Uploader interface {
	UploadExport(ctx context.Context, channelID string, exp report.Export, comment string) error
}

type Runner struct {
	Registry        *session.Registry
	Exporter        *report.Exporter
	DB              *sql.DB
	Uploader        Uploader
	ReportChannelID string
}

// Result tracks what one run did.
type Result struct {
	Sessions int
	Exported int
	Empty    int
	Errors   []string
}

type pendingUpload struct {
	channelID string
	export    report.Export
	author    domain.UserInfo
}

// RunOnce exports every session that has an identity and at least one record.
// Files are written and recorded under each session's lock; uploads happen
// after all locks are released.
func (r *Runner) RunOnce(ctx context.Context) Result {
	var result Result
	var uploads []pendingUpload

	_ = r.Registry.Each(func(s *session.Session) error {
		result.Sessions++
		if !s.LoggedIn() || s.Editing() {
			result.Empty++
			return nil
		}
		exp, records, err := s.ExportScheduled(r.Exporter, report.KindXLSX)
		if errors.Is(err, domain.ErrEmptyResult) {
			result.Empty++
			return nil
		}
		if err != nil {
			log.Printf("auto-export session=%s error: %v", s.Key(), err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", s.Key(), err))
			return nil
		}

		channelID, userID := session.SplitKey(s.Key())
		if r.DB != nil {
			entry := sqlite.NewExportEntry(exp, s.Identity(), channelID, userID, sqlite.TriggerAuto)
			if _, err := sqlite.InsertExport(r.DB, entry, records); err != nil {
				log.Printf("auto-export ledger error session=%s: %v", s.Key(), err)
			}
		}
		if r.ReportChannelID != "" {
			channelID = r.ReportChannelID
		}
		uploads = append(uploads, pendingUpload{channelID: channelID, export: exp, author: s.Identity()})
		result.Exported++
		return nil
	})

	if r.Uploader == nil {
		return result
	}
	for _, u := range uploads {
		comment := fmt.Sprintf("Tự động xuất báo cáo: %d vi phạm (người tạo: %s)", u.export.RecordCount, u.author.Name)
		if err := r.Uploader.UploadExport(ctx, u.channelID, u.export, comment); err != nil {
			log.Printf("auto-export upload error channel=%s path=%s: %v", u.channelID, u.export.Path, err)
			result.Errors = append(result.Errors, fmt.Sprintf("upload %s: %v", u.channelID, err))
		}
	}
	return result
}

// FormatSummary returns a one-line summary of a run.
func FormatSummary(result Result) string {
	if result.Sessions == 0 {
		return "no active sessions"
	}
	msg := fmt.Sprintf("exported %d of %d sessions", result.Exported, result.Sessions)
	if result.Empty > 0 {
		msg += fmt.Sprintf(" (%d empty)", result.Empty)
	}
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nErrors:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}

// ParseSchedule parses a standard 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(expr))
}

// Start runs the scheduler in a goroutine until ctx is done. An empty
// schedule disables it.
// Examples: "0 17 * * 1-5" (weekdays 17:00), "30 11 * * *" (daily 11:30).
func Start(ctx context.Context, schedule string, loc *time.Location, runner *Runner) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("Auto-export disabled (auto_export_schedule not set)")
		return
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		log.Printf("Invalid auto_export_schedule '%s': %v; auto-export disabled", schedule, err)
		return
	}
	log.Printf("Auto-export scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next auto-export at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Println("Auto-export stopped")
				return
			case <-timer.C:
			}

			result := runner.RunOnce(ctx)
			log.Printf("Auto-export complete: %s", FormatSummary(result))
		}
	}()
}
