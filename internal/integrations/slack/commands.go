package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"vipham/internal/domain"
	"vipham/internal/integrations/llm"
	"vipham/internal/report"
	"vipham/internal/session"
	"vipham/internal/storage/sqlite"

	"github.com/slack-go/slack"
)

func (b *Bot) handleLogin(cmd slack.SlashCommand) {
	u, ok := parseLoginText(cmd.Text)
	if !ok && strings.TrimSpace(cmd.Text) == "" {
		u, ok = b.profileIdentity(cmd.UserID)
	}
	if !ok {
		b.postEphemeral(cmd, "Cú pháp: `/vp-login Họ tên | Chức vụ`")
		return
	}

	err := b.sessions.Do(session.Key(cmd.ChannelID, cmd.UserID), func(s *session.Session) error {
		return s.Login(u)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotLoggedIn) {
			b.postEphemeral(cmd, "Cú pháp: `/vp-login Họ tên | Chức vụ`")
			return
		}
		b.postEphemeral(cmd, "Phiên này đã đăng nhập, danh tính không thể thay đổi.")
		return
	}
	log.Printf("login user=%s channel=%s name=%q role=%q", cmd.UserID, cmd.ChannelID, u.Name, u.Role)
	b.postEphemeral(cmd, fmt.Sprintf("Xin chào %s (%s). Dùng `/vp` để nhập vi phạm.", u.Name, u.Role))
}

// profileIdentity reads name and title from the Slack profile.
func (b *Bot) profileIdentity(userID string) (domain.UserInfo, bool) {
	user, err := b.api.GetUserInfo(userID)
	if err != nil {
		log.Printf("login profile lookup error user=%s: %v", userID, err)
		return domain.UserInfo{}, false
	}
	name := strings.TrimSpace(user.RealName)
	if name == "" {
		name = strings.TrimSpace(user.Profile.DisplayName)
	}
	u := domain.UserInfo{Name: name, Role: strings.TrimSpace(user.Profile.Title)}
	return u, u.Complete()
}

func (b *Bot) handleSubmit(cmd slack.SlashCommand) {
	b.submit(cmd.ChannelID, cmd.UserID, session.Input{Text: cmd.Text}, "text")
}

func (b *Bot) submit(channelID, userID string, in session.Input, source string) {
	key := session.Key(channelID, userID)
	var res session.SubmitResult
	err := b.sessions.Do(key, func(s *session.Session) error {
		var err error
		res, err = s.Submit(in)
		return err
	})
	if err != nil {
		log.Printf("submit rejected source=%s session=%s: %v", source, key, err)
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}
	log.Printf("submit source=%s session=%s added=%d unrecognized=%d", source, key, len(res.Added), len(res.Unrecognized))

	suggestions := b.suggest(res.Unrecognized)
	b.postEphemeralTo(channelID, userID, formatSubmitReply(res, suggestions))
	b.showReport(channelID, userID)
}

func (b *Bot) suggest(phrases []string) []llm.Suggestion {
	if b.suggester == nil || len(phrases) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), suggestTimeout)
	defer cancel()
	suggestions, usage, err := b.suggester.Suggest(ctx, phrases)
	if err != nil {
		log.Printf("llm suggest error (non-fatal): %v", err)
		return nil
	}
	log.Printf("llm suggest phrases=%d suggestions=%d tokens=%d", len(phrases), len(suggestions), usage.TotalTokens())
	return suggestions
}

func (b *Bot) handleReport(cmd slack.SlashCommand) {
	b.showReport(cmd.ChannelID, cmd.UserID)
}

func (b *Bot) showReport(channelID, userID string) {
	var (
		author domain.UserInfo
		groups []report.Group
		st     session.Status
	)
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		if !s.LoggedIn() {
			return domain.ErrNotLoggedIn
		}
		author, groups, st = s.Identity(), s.Report(), s.Status()
		return nil
	})
	if err != nil {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}
	blocks := buildReportBlocks(author, groups, st, b.cfg.Location, time.Now())
	b.postBlocksTo(channelID, userID, report.Title, blocks)
}

func (b *Bot) handleUndo(channelID, userID string) {
	var ok bool
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		var err error
		ok, err = s.Undo()
		return err
	})
	if err != nil {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}
	if !ok {
		b.postEphemeralTo(channelID, userID, "Không còn gì để hoàn tác.")
		return
	}
	b.showReport(channelID, userID)
}

func (b *Bot) handleRedo(channelID, userID string) {
	if !b.cfg.RedoEnabled() {
		b.postEphemeralTo(channelID, userID, "Chức năng làm lại đang tắt.")
		return
	}
	var ok bool
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		var err error
		ok, err = s.Redo()
		return err
	})
	if err != nil {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}
	if !ok {
		b.postEphemeralTo(channelID, userID, "Không còn gì để làm lại.")
		return
	}
	b.showReport(channelID, userID)
}

func (b *Bot) openClearModal(triggerID, channelID, userID string) {
	var st session.Status
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		if !s.LoggedIn() {
			return domain.ErrNotLoggedIn
		}
		if s.Editing() {
			return domain.ErrEditInProgress
		}
		st = s.Status()
		return nil
	})
	if err != nil {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}
	if st.Records == 0 {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(domain.ErrEmptyResult))
		return
	}
	if _, err := b.api.OpenView(triggerID, buildClearModal(channelID, st.Records)); err != nil {
		b.postEphemeralTo(channelID, userID, fmt.Sprintf("Không mở được hộp thoại xác nhận: %v", err))
	}
}

func buildClearModal(channelID string, records int) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           plain("Xóa toàn bộ"),
		Close:           plain("Hủy"),
		Submit:          plain("Xóa"),
		CallbackID:      modalClearCallbackID,
		PrivateMetadata: fmt.Sprintf("%s|%s", clearMetaPrefix, channelID),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(
				mrkdwn(fmt.Sprintf("Xóa toàn bộ *%d* vi phạm khỏi báo cáo?\nCó thể hoàn tác bằng `/vp-undo`.", records)),
				nil,
				nil,
			),
		}},
	}
}

func (b *Bot) handleClear(channelID, userID string) {
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		return s.Clear()
	})
	if err != nil {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}
	log.Printf("clear session=%s", session.Key(channelID, userID))
	b.postEphemeralTo(channelID, userID, "Đã xóa toàn bộ báo cáo. Dùng `/vp-undo` để khôi phục.")
}

func (b *Bot) handleExport(channelID, userID, kindArg string) {
	kind := strings.ToLower(strings.TrimSpace(kindArg))
	if kind == "" {
		kind = report.KindXLSX
	}
	if kind != report.KindPNG && kind != report.KindXLSX {
		b.postEphemeralTo(channelID, userID, "Cú pháp: `/vp-export png|xlsx`")
		return
	}

	var (
		exp     report.Export
		records []domain.Record
		author  domain.UserInfo
	)
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		var err error
		exp, records, err = s.Export(b.exporter, kind)
		author = s.Identity()
		return err
	})
	if err != nil {
		log.Printf("export rejected kind=%s user=%s: %v", kind, userID, err)
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}

	b.recordExport(exp, records, author, channelID, userID, sqlite.TriggerManual)

	comment := fmt.Sprintf("Báo cáo vi phạm: %d vi phạm (người tạo: %s, %s)", exp.RecordCount, author.Name, author.Role)
	if err := b.UploadExport(context.Background(), channelID, exp, comment); err != nil {
		log.Printf("Error uploading export file: %v", err)
		b.postEphemeralTo(channelID, userID, fmt.Sprintf("Đã lưu tệp tại %s nhưng không tải lên được kênh. Kiểm tra quyền của bot.", exp.Path))
		return
	}
	log.Printf("export done kind=%s records=%d user=%s", kind, exp.RecordCount, userID)
}

func (b *Bot) recordExport(exp report.Export, records []domain.Record, author domain.UserInfo, channelID, userID, trigger string) {
	if b.db == nil {
		return
	}
	entry := sqlite.NewExportEntry(exp, author, channelID, userID, trigger)
	if _, err := sqlite.InsertExport(b.db, entry, records); err != nil {
		log.Printf("export ledger error (non-fatal) path=%s: %v", exp.Path, err)
	}
}

func (b *Bot) handleStats(cmd slack.SlashCommand) {
	allTime, err := sqlite.GetExportStats(b.db, time.Time{})
	if err != nil {
		b.postEphemeral(cmd, fmt.Sprintf("Lỗi khi tải thống kê: %v", err))
		log.Printf("stats all-time error: %v", err)
		return
	}
	since := time.Now().In(b.cfg.Location).AddDate(0, 0, -30).UTC()
	recent, err := sqlite.GetExportStats(b.db, since)
	if err != nil {
		log.Printf("stats recent error (non-fatal): %v", err)
	}
	counts, err := sqlite.GetViolationCounts(b.db, since, 10)
	if err != nil {
		log.Printf("stats violation counts error (non-fatal): %v", err)
	}
	exports, err := sqlite.GetRecentExports(b.db, cmd.ChannelID, 5)
	if err != nil {
		log.Printf("stats recent exports error (non-fatal): %v", err)
	}
	b.postEphemeral(cmd, formatStats(allTime, recent, counts, exports, b.cfg.Location))
	log.Printf("stats sent user=%s", cmd.UserID)
}
