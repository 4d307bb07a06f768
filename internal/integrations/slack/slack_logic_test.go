package slackbot

import (
	"strings"
	"testing"
	"time"

	"vipham/internal/domain"
	"vipham/internal/integrations/llm"
	"vipham/internal/report"
	"vipham/internal/session"
	"vipham/internal/storage/sqlite"

	"github.com/slack-go/slack"
)

func TestParseLoginText(t *testing.T) {
	tests := []struct {
		in   string
		want domain.UserInfo
		ok   bool
	}{
		{"Trần Văn B | Giám thị", domain.UserInfo{Name: "Trần Văn B", Role: "Giám thị"}, true},
		{"  Cô Lan|GVCN 10A1 ", domain.UserInfo{Name: "Cô Lan", Role: "GVCN 10A1"}, true},
		{"Trần Văn B", domain.UserInfo{}, false},
		{" | Giám thị", domain.UserInfo{Role: "Giám thị"}, false},
	}
	for _, tt := range tests {
		got, ok := parseLoginText(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("parseLoginText(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePageArgAndBounds(t *testing.T) {
	if got := parsePageArg(" 3 "); got != 2 {
		t.Fatalf("parsePageArg(3) = %d, want 2", got)
	}
	for _, in := range []string{"", "0", "-2", "abc"} {
		if got := parsePageArg(in); got != 0 {
			t.Fatalf("parsePageArg(%q) = %d, want 0", in, got)
		}
	}

	page, start, end := pageBounds(25, 10, 5)
	if page != 2 || start != 20 || end != 25 {
		t.Fatalf("pageBounds clamp = %d %d %d", page, start, end)
	}
	if page, start, end := pageBounds(0, 10, 1); page != 0 || start != 0 || end != 0 {
		t.Fatalf("pageBounds empty = %d %d %d", page, start, end)
	}
	if pageCount(25, 10) != 3 || pageCount(10, 10) != 1 || pageCount(0, 10) != 0 {
		t.Fatal("unexpected pageCount")
	}
}

func TestParseModalMeta(t *testing.T) {
	arg, ch, ok := parseModalMeta("edit:2|C123", editMetaPrefix)
	if !ok || arg != "2" || ch != "C123" {
		t.Fatalf("parseModalMeta = %q %q %v", arg, ch, ok)
	}
	if _, _, ok := parseModalMeta("clear:|C1", editMetaPrefix); ok {
		t.Fatal("expected prefix mismatch to fail")
	}
	if _, _, ok := parseModalMeta("edit:1", editMetaPrefix); ok {
		t.Fatal("expected missing channel part to fail")
	}
}

func TestChunkLines(t *testing.T) {
	text := strings.Repeat("dòng ngắn\n", 50)
	chunks := chunkLines(text, 100)
	total := 0
	for _, c := range chunks {
		if len(c) > 100 {
			t.Fatalf("chunk longer than limit: %d", len(c))
		}
		total += strings.Count(c, "dòng ngắn")
	}
	if total != 50 {
		t.Fatalf("expected all 50 lines preserved, got %d", total)
	}

	long := strings.Repeat("đ", 80) // 160 bytes
	for _, c := range chunkLines(long, 50) {
		if !utf8Valid(c) {
			t.Fatalf("chunk split inside a rune: %q", c)
		}
	}
}

func utf8Valid(s string) bool {
	return strings.ToValidUTF8(s, "\uFFFD") == s
}

func TestBuildReportBlocksButtons(t *testing.T) {
	groups := report.Project([]domain.Record{
		{ID: "1", FullName: "A", ClassName: "10A1", Violation: domain.ViolationLate, Timestamp: time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)},
	})
	st := session.Status{Records: 1, UndoDepth: 1, TrackRedo: true}
	blocks := buildReportBlocks(domain.UserInfo{Name: "GT", Role: "Giám thị"}, groups, st, time.UTC, time.Now())

	actions, ok := blocks[len(blocks)-1].(*slack.ActionBlock)
	if !ok {
		t.Fatalf("expected trailing action block, got %T", blocks[len(blocks)-1])
	}
	var ids []string
	for _, el := range actions.Elements.ElementSet {
		if btn, ok := el.(*slack.ButtonBlockElement); ok {
			ids = append(ids, btn.ActionID+"="+btn.Value)
		}
	}
	got := strings.Join(ids, ",")
	want := "vp_undo=undo,vp_edit_open=1,vp_export=png,vp_export=xlsx,vp_clear_open=clear"
	if got != want {
		t.Fatalf("buttons = %s, want %s", got, want)
	}

	empty := buildReportBlocks(domain.UserInfo{Name: "GT", Role: "GT"}, nil, session.Status{TrackRedo: true}, time.UTC, time.Now())
	if _, ok := empty[len(empty)-1].(*slack.ActionBlock); ok {
		t.Fatal("expected no action block for an empty report without history")
	}
}

func TestBuildEditModalPagingAndCustomOption(t *testing.T) {
	var rows []session.EditRow
	for i := 0; i < 12; i++ {
		rows = append(rows, session.EditRow{
			ID:        string(rune('a' + i)),
			FullName:  "HS",
			ClassName: "10A1",
			Violation: domain.ViolationLate,
		})
	}
	rows[11].Violation = "nói chuyện riêng trong giờ"
	rows[11].Deleted = true

	view := buildEditModal(rows, 1, 10, "C1")
	if view.PrivateMetadata != "edit:1|C1" {
		t.Fatalf("unexpected metadata %q", view.PrivateMetadata)
	}
	if view.Title.Text != "Sửa báo cáo 2/2" {
		t.Fatalf("unexpected title %q", view.Title.Text)
	}
	if len(view.Blocks.BlockSet) != 2*5 {
		t.Fatalf("expected 2 rows of 5 blocks, got %d", len(view.Blocks.BlockSet))
	}

	var sel *slack.SelectBlockElement
	var box *slack.CheckboxGroupsBlockElement
	for _, blk := range view.Blocks.BlockSet {
		in, ok := blk.(*slack.InputBlock)
		if !ok {
			continue
		}
		switch in.BlockID {
		case editBlockViolation + "l":
			sel = in.Element.(*slack.SelectBlockElement)
		case editBlockDelete + "l":
			box = in.Element.(*slack.CheckboxGroupsBlockElement)
		}
	}
	if sel == nil || sel.InitialOption == nil || sel.InitialOption.Value != customViolationValue {
		t.Fatalf("expected custom option preselected, got %+v", sel)
	}
	if len(sel.Options) != 6 {
		t.Fatalf("expected 5 labels plus custom, got %d", len(sel.Options))
	}
	if box == nil || len(box.InitialOptions) != 1 {
		t.Fatal("expected deleted row to keep its checkbox ticked")
	}

	single := buildEditModal(rows[:3], 0, 10, "C1")
	if single.Submit.Text != "Lưu" || single.Title.Text != "Sửa báo cáo" {
		t.Fatalf("unexpected single-page modal %q / %q", single.Submit.Text, single.Title.Text)
	}
}

func TestParseEditSubmission(t *testing.T) {
	rows := []session.EditRow{
		{ID: "r1", FullName: "A", ClassName: "10A1", Violation: "nói chuyện"},
		{ID: "r2", FullName: "B", ClassName: "10A2", Violation: domain.ViolationLate},
		{ID: "r3", FullName: "C", ClassName: "10A3", Violation: domain.ViolationLate},
	}
	values := map[string]map[string]slack.BlockAction{
		editBlockName + "r1":      {editActionName: {Value: "A2"}},
		editBlockClass + "r1":     {editActionClass: {Value: "10A9"}},
		editBlockViolation + "r1": {editActionViolation: {SelectedOption: slack.OptionBlockObject{Value: customViolationValue}}},
		editBlockName + "r2":      {editActionName: {Value: "B"}},
		editBlockClass + "r2":     {editActionClass: {Value: "10A2"}},
		editBlockViolation + "r2": {editActionViolation: {SelectedOption: slack.OptionBlockObject{Value: domain.ViolationSandals}}},
		editBlockDelete + "r2":    {editActionDelete: {SelectedOptions: []slack.OptionBlockObject{{Value: deleteOptionValue}}}},
	}

	got := parseEditSubmission(values, rows)
	if len(got) != 2 {
		t.Fatalf("expected rows outside the page to be skipped, got %+v", got)
	}
	if got[0].FullName != "A2" || got[0].ClassName != "10A9" || got[0].Violation != "nói chuyện" || got[0].Delete {
		t.Fatalf("unexpected r1 edit %+v", got[0])
	}
	if got[1].Violation != domain.ViolationSandals || !got[1].Delete {
		t.Fatalf("unexpected r2 edit %+v", got[1])
	}
}

func TestFormatSubmitReply(t *testing.T) {
	res := session.SubmitResult{
		Added:        make([]domain.Record, 3),
		Unrecognized: []string{"nhuộm tóc", "đánh nhau"},
	}
	got := formatSubmitReply(res, []llm.Suggestion{{Phrase: "nhuộm tóc", Label: domain.ViolationNoUniform}})
	for _, want := range []string{"Đã thêm 3 vi phạm.", "• nhuộm tóc → gợi ý: _Không mặc áo đoàn_", "• đánh nhau\n", "/vp-edit"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply missing %q:\n%s", want, got)
		}
	}
	if plainReply := formatSubmitReply(session.SubmitResult{Added: make([]domain.Record, 1)}, nil); plainReply != "Đã thêm 1 vi phạm." {
		t.Fatalf("unexpected reply %q", plainReply)
	}
}

func TestFormatStats(t *testing.T) {
	at := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	got := formatStats(
		sqlite.ExportStats{TotalExports: 4, TotalRecords: 30, PNGExports: 1, XLSXExports: 3, AutoExports: 2, Corrections: 5},
		sqlite.ExportStats{TotalExports: 2, TotalRecords: 10},
		[]sqlite.ViolationCount{{Violation: domain.ViolationLate, Count: 7}},
		[]sqlite.ExportEntry{{Kind: "xlsx", RecordCount: 5, Author: "GT", Trigger: sqlite.TriggerAuto, ExportedAt: at}},
		time.UTC,
	)
	for _, want := range []string{
		"- Lượt xuất: 4 (ảnh 1, Excel 3, tự động 2)",
		"- Lượt sửa loại vi phạm: 5",
		"- Đi học muộn: 7",
		"- 19/10 03:00 XLSX: 5 vi phạm, GT (auto)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats missing %q:\n%s", want, got)
		}
	}
}

func TestHistoryLine(t *testing.T) {
	if got := historyLine(session.Status{Records: 2, UndoDepth: 3, RedoDepth: 1, TrackRedo: true}); got != "2 vi phạm | Hoàn tác: 3 | Làm lại: 1" {
		t.Fatalf("historyLine = %q", got)
	}
	if got := historyLine(session.Status{Records: 2, UndoDepth: 3}); got != "2 vi phạm | Hoàn tác: 3" {
		t.Fatalf("historyLine without redo = %q", got)
	}
}

func TestIsSpreadsheet(t *testing.T) {
	if !isSpreadsheet(&slack.File{Filetype: "xlsx"}) || !isSpreadsheet(&slack.File{Name: "DS.XLSX"}) {
		t.Fatal("expected xlsx to be accepted")
	}
	if isSpreadsheet(&slack.File{Filetype: "png", Name: "a.png"}) || isSpreadsheet(nil) {
		t.Fatal("expected non-xlsx to be rejected")
	}
}

func TestCappedBuffer(t *testing.T) {
	c := &cappedBuffer{limit: 4}
	if _, err := c.Write([]byte("abc")); err != nil {
		t.Fatalf("write within limit: %v", err)
	}
	if _, err := c.Write([]byte("de")); err != errUploadTooLarge {
		t.Fatalf("expected errUploadTooLarge, got %v", err)
	}
}
