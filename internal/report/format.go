package report

import (
	"fmt"
	"strings"
	"time"

	"vipham/internal/domain"
)

const (
	Title        = "BÁO CÁO TỔNG HỢP VI PHẠM"
	DefaultZone  = "Asia/Ho_Chi_Minh"
	emptyMessage = "Chưa có dữ liệu."
)

// Header is the identity and date block printed above every report.
type Header struct {
	Author      domain.UserInfo
	GeneratedAt time.Time
}

// FormatDate renders t the way Vietnamese locale dates are written (d/m/yyyy).
func FormatDate(t time.Time) string {
	return t.Format("2/1/2006")
}

// FormatClock renders the time of day in loc.
func FormatClock(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04:05")
}

// GroupHeading is the section title of a group.
func GroupHeading(g Group) string {
	return fmt.Sprintf("%s - (Tổng số: %d)", strings.ToUpper(g.Violation), len(g.Records))
}

// RenderText renders groups as Slack mrkdwn.
func RenderText(h Header, groups []Group, loc *time.Location) string {
	if len(groups) == 0 {
		return emptyMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", Title)
	fmt.Fprintf(&b, "Ngày %s\n", FormatDate(h.GeneratedAt))
	fmt.Fprintf(&b, "*Người tạo:* %s | *Chức vụ:* %s\n", h.Author.Name, h.Author.Role)
	for _, g := range groups {
		fmt.Fprintf(&b, "\n*%s*\n", GroupHeading(g))
		for _, r := range g.Records {
			fmt.Fprintf(&b, "• %s - %s - %s\n", r.FullName, r.ClassName, FormatClock(r.Timestamp, loc))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
