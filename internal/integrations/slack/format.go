package slackbot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vipham/internal/domain"
	"vipham/internal/integrations/llm"
	"vipham/internal/report"
	"vipham/internal/session"
	"vipham/internal/storage/sqlite"

	"github.com/slack-go/slack"
)

const (
	sectionTextLimit = 2900
	maxReportChunks  = 40
)

// parseLoginText splits "Name | Role".
func parseLoginText(text string) (domain.UserInfo, bool) {
	name, role, found := strings.Cut(text, "|")
	if !found {
		return domain.UserInfo{}, false
	}
	u := domain.UserInfo{Name: strings.TrimSpace(name), Role: strings.TrimSpace(role)}
	return u, u.Complete()
}

func parsePageArg(text string) int {
	page, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || page < 1 {
		return 0
	}
	return page - 1
}

// parseModalMeta reads "<prefix><arg>|<channel>".
func parseModalMeta(meta, prefix string) (string, string, bool) {
	parts := strings.Split(strings.TrimSpace(meta), "|")
	if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
		return "", "", false
	}
	return strings.TrimPrefix(parts[0], prefix), strings.TrimSpace(parts[1]), true
}

// pageBounds clamps page into range and returns the slice bounds for it.
func pageBounds(total, size, page int) (int, int, int) {
	if total == 0 {
		return 0, 0, 0
	}
	if page < 0 {
		page = 0
	}
	start := page * size
	if start >= total {
		page = (total - 1) / size
		start = page * size
	}
	end := start + size
	if end > total {
		end = total
	}
	return page, start, end
}

func pageCount(total, size int) int {
	if total == 0 {
		return 0
	}
	return (total + size - 1) / size
}

// chunkLines splits text on line boundaries into pieces no longer than limit
// bytes. A single longer line is cut at a rune boundary.
func chunkLines(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			cut := limit
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			flush()
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line)+1 > limit {
			flush()
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return chunks
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func historyLine(st session.Status) string {
	line := fmt.Sprintf("%d vi phạm | Hoàn tác: %d", st.Records, st.UndoDepth)
	if st.TrackRedo {
		line += fmt.Sprintf(" | Làm lại: %d", st.RedoDepth)
	}
	return line
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

// buildReportBlocks renders the grouped report with its action buttons.
func buildReportBlocks(author domain.UserInfo, groups []report.Group, st session.Status, loc *time.Location, now time.Time) []slack.Block {
	text := report.RenderText(report.Header{Author: author, GeneratedAt: now}, groups, loc)
	chunks := chunkLines(text, sectionTextLimit)
	truncated := false
	if len(chunks) > maxReportChunks {
		chunks = chunks[:maxReportChunks]
		truncated = true
	}

	var blocks []slack.Block
	for _, c := range chunks {
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn(c), nil, nil))
	}
	if truncated {
		blocks = append(blocks, slack.NewSectionBlock(mrkdwn("_Báo cáo quá dài, hãy dùng `/vp-export xlsx` để xem đầy đủ._"), nil, nil))
	}
	blocks = append(blocks, slack.NewContextBlock("vp_history", mrkdwn(historyLine(st))))

	var buttons []slack.BlockElement
	if st.UndoDepth > 0 {
		buttons = append(buttons, slack.NewButtonBlockElement(actionUndo, "undo", plain("Hoàn tác")))
	}
	if st.TrackRedo && st.RedoDepth > 0 {
		buttons = append(buttons, slack.NewButtonBlockElement(actionRedo, "redo", plain("Làm lại")))
	}
	if st.Records > 0 {
		buttons = append(buttons,
			slack.NewButtonBlockElement(actionEditOpen, "1", plain("Sửa")),
			slack.NewButtonBlockElement(actionExport, report.KindPNG, plain("Xuất ảnh")),
			slack.NewButtonBlockElement(actionExport, report.KindXLSX, plain("Xuất Excel")),
			slack.NewButtonBlockElement(actionClearOpen, "clear", plain("Xóa hết")).WithStyle(slack.StyleDanger),
		)
	}
	if len(buttons) > 0 {
		blocks = append(blocks, slack.NewActionBlock("vp_actions", buttons...))
	}
	return blocks
}

func formatSubmitReply(res session.SubmitResult, suggestions []llm.Suggestion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Đã thêm %d vi phạm.", len(res.Added))
	if len(res.Unrecognized) > 0 {
		sb.WriteString("\nChưa nhận dạng được (giữ nguyên):")
		byPhrase := make(map[string]llm.Suggestion, len(suggestions))
		for _, s := range suggestions {
			byPhrase[s.Phrase] = s
		}
		for _, u := range res.Unrecognized {
			if s, ok := byPhrase[u]; ok {
				fmt.Fprintf(&sb, "\n• %s → gợi ý: _%s_", u, s.Label)
			} else {
				fmt.Fprintf(&sb, "\n• %s", u)
			}
		}
		sb.WriteString("\nDùng `/vp-edit` để chọn lại loại vi phạm.")
	}
	return sb.String()
}

func formatStats(allTime, recent sqlite.ExportStats, counts []sqlite.ViolationCount, exports []sqlite.ExportEntry, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("*Thống kê xuất báo cáo*\n\n")

	sb.WriteString("*Toàn bộ*\n")
	fmt.Fprintf(&sb, "- Lượt xuất: %d (ảnh %d, Excel %d, tự động %d)\n", allTime.TotalExports, allTime.PNGExports, allTime.XLSXExports, allTime.AutoExports)
	fmt.Fprintf(&sb, "- Vi phạm đã xuất: %d\n", allTime.TotalRecords)
	fmt.Fprintf(&sb, "- Lượt sửa loại vi phạm: %d\n", allTime.Corrections)

	sb.WriteString("\n*30 ngày gần nhất*\n")
	fmt.Fprintf(&sb, "- Lượt xuất: %d\n", recent.TotalExports)
	fmt.Fprintf(&sb, "- Vi phạm đã xuất: %d\n", recent.TotalRecords)

	if len(counts) > 0 {
		sb.WriteString("\n*Theo loại vi phạm (30 ngày)*\n")
		for _, c := range counts {
			fmt.Fprintf(&sb, "- %s: %d\n", c.Violation, c.Count)
		}
	}
	if len(exports) > 0 {
		sb.WriteString("\n*Lần xuất gần đây trong kênh*\n")
		for _, e := range exports {
			fmt.Fprintf(&sb, "- %s %s: %d vi phạm, %s (%s)\n",
				e.ExportedAt.In(loc).Format("02/01 15:04"), strings.ToUpper(e.Kind), e.RecordCount, e.Author, e.Trigger)
		}
	}
	return sb.String()
}

func helpText() string {
	lines := []string{
		"*Báo cáo vi phạm học sinh*",
		"",
		"`/vp-login Họ tên | Chức vụ`: Đăng nhập (bắt buộc trước khi nhập).",
		"`/vp <dòng>`: Nhập vi phạm, mỗi dòng một học sinh (Shift+Enter để xuống dòng).",
		">`Nguyễn Văn A - 10A1 - quên thẻ`",
		">`Lê Thị B 11B2 đi học muộn`",
		"Tải lên tệp `.xlsx` có cột `Họ và tên`, `Lớp`, `Lỗi vi phạm` để nhập hàng loạt.",
		"",
		"`/vp-report`: Xem báo cáo theo loại vi phạm.",
		"`/vp-undo` · `/vp-redo`: Hoàn tác / làm lại.",
		"`/vp-edit [trang]`: Sửa hoặc xóa từng dòng.",
		"`/vp-clear`: Xóa toàn bộ (có xác nhận, hoàn tác được).",
		"`/vp-export png|xlsx`: Xuất ảnh hoặc Excel.",
		"`/vp-stats`: Thống kê xuất báo cáo.",
		"`/vp-help`: Hướng dẫn.",
	}
	return strings.Join(lines, "\n")
}

func welcomeText() string {
	return "Xin chào! Tôi giúp tổng hợp báo cáo vi phạm học sinh.\n" +
		"• `/vp-login Họ tên | Chức vụ` để bắt đầu\n" +
		"• `/vp-help` để xem tất cả lệnh"
}
