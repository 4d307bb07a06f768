package slackbot

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"vipham/internal/domain"
	"vipham/internal/session"
	"vipham/internal/storage/sqlite"
	"vipham/internal/violation"

	"github.com/slack-go/slack"
)

const (
	editActionName      = "name_input"
	editActionClass     = "class_input"
	editActionViolation = "violation_input"
	editActionDelete    = "delete_input"

	editBlockName      = "name:"
	editBlockClass     = "class:"
	editBlockViolation = "violation:"
	editBlockDelete    = "delete:"

	customViolationValue = "custom"
	deleteOptionValue    = "delete"
	maxOptionTextRunes   = 75
)

// rowEdit is what one modal row submitted.
type rowEdit struct {
	ID        string
	FullName  string
	ClassName string
	Violation string
	Delete    bool
}

func (b *Bot) openEditModal(triggerID, channelID, userID string, page int) {
	var (
		rows []session.EditRow
		err  error
	)
	err = b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		if len(s.Records()) == 0 && !s.Editing() {
			return domain.ErrEmptyResult
		}
		buf, perr := s.PendingEdit()
		if perr != nil {
			if buf, perr = s.BeginEdit(); perr != nil {
				return perr
			}
		}
		rows = buf.Rows()
		return nil
	})
	if err != nil {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}

	view := buildEditModal(rows, page, b.cfg.EditPageSize, channelID)
	if _, err := b.api.OpenView(triggerID, view); err != nil {
		b.postEphemeralTo(channelID, userID, fmt.Sprintf("Không mở được hộp thoại sửa: %v", err))
	}
}

// buildEditModal renders one page of the pending edit rows. Deleted rows are
// still shown so the choice can be reverted before saving.
func buildEditModal(rows []session.EditRow, page, pageSize int, channelID string) slack.ModalViewRequest {
	if pageSize < 1 {
		pageSize = 10
	}
	page, start, end := pageBounds(len(rows), pageSize, page)
	pages := pageCount(len(rows), pageSize)

	title := "Sửa báo cáo"
	if pages > 1 {
		title = fmt.Sprintf("Sửa báo cáo %d/%d", page+1, pages)
	}

	var blocks []slack.Block
	for i, row := range rows[start:end] {
		blocks = append(blocks, slack.NewSectionBlock(
			mrkdwn(fmt.Sprintf("*%d.* %s", start+i+1, row.Timestamp.Format("02/01 15:04:05"))), nil, nil,
		))

		nameInput := slack.NewPlainTextInputBlockElement(plain("Họ và tên"), editActionName).WithInitialValue(row.FullName)
		nameBlock := slack.NewInputBlock(editBlockName+row.ID, plain(domain.LabelFullName), nil, nameInput)
		nameBlock.Optional = true

		classInput := slack.NewPlainTextInputBlockElement(plain("Lớp"), editActionClass).WithInitialValue(row.ClassName)
		classBlock := slack.NewInputBlock(editBlockClass+row.ID, plain(domain.LabelClassName), nil, classInput)
		classBlock.Optional = true

		violationBlock := slack.NewInputBlock(editBlockViolation+row.ID, plain(domain.LabelViolation), nil, violationSelect(row.Violation))

		deleteOpt := slack.NewOptionBlockObject(deleteOptionValue, plain("Xóa dòng này"), nil)
		deleteBox := slack.NewCheckboxGroupsBlockElement(editActionDelete, deleteOpt)
		if row.Deleted {
			deleteBox.InitialOptions = []*slack.OptionBlockObject{deleteOpt}
		}
		deleteBlock := slack.NewInputBlock(editBlockDelete+row.ID, plain("Xóa"), nil, deleteBox)
		deleteBlock.Optional = true

		blocks = append(blocks, nameBlock, classBlock, violationBlock, deleteBlock)
	}

	submit := "Lưu"
	if pages > 1 {
		submit = "Cập nhật trang"
	}
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           plain(title),
		Close:           plain("Hủy"),
		Submit:          plain(submit),
		CallbackID:      modalEditCallbackID,
		PrivateMetadata: fmt.Sprintf("%s%d|%s", editMetaPrefix, page, channelID),
		NotifyOnClose:   true,
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
}

// violationSelect offers the canonical labels and, for unrecognized text, the
// current value as an extra preselected option.
func violationSelect(current string) *slack.SelectBlockElement {
	var options []*slack.OptionBlockObject
	var initial *slack.OptionBlockObject
	for _, label := range domain.CanonicalViolations() {
		opt := slack.NewOptionBlockObject(label, plain(label), nil)
		options = append(options, opt)
		if label == current {
			initial = opt
		}
	}
	if initial == nil && strings.TrimSpace(current) != "" {
		initial = slack.NewOptionBlockObject(customViolationValue, plain(truncateRunes(current, maxOptionTextRunes)), nil)
		options = append(options, initial)
	}
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain(domain.LabelViolation), editActionViolation, options...)
	if initial != nil {
		sel.InitialOption = initial
	}
	return sel
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

// parseEditSubmission reads the submitted values of the rows on one page.
// A row missing from the submission keeps its buffered values.
func parseEditSubmission(values map[string]map[string]slack.BlockAction, rows []session.EditRow) []rowEdit {
	var out []rowEdit
	for _, row := range rows {
		nameBlock, ok := values[editBlockName+row.ID]
		if !ok {
			continue
		}
		edit := rowEdit{
			ID:        row.ID,
			FullName:  nameBlock[editActionName].Value,
			ClassName: values[editBlockClass+row.ID][editActionClass].Value,
			Violation: row.Violation,
		}
		selected := strings.TrimSpace(values[editBlockViolation+row.ID][editActionViolation].SelectedOption.Value)
		if selected != "" && selected != customViolationValue {
			edit.Violation = selected
		}
		for _, opt := range values[editBlockDelete+row.ID][editActionDelete].SelectedOptions {
			if opt.Value == deleteOptionValue {
				edit.Delete = true
			}
		}
		out = append(out, edit)
	}
	return out
}

func (b *Bot) handleEditSubmission(cb slack.InteractionCallback) {
	pageArg, channelID, ok := parseModalMeta(cb.View.PrivateMetadata, editMetaPrefix)
	if !ok || cb.View.State == nil {
		return
	}
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	userID := cb.User.ID
	page, _ := strconv.Atoi(pageArg)

	var pages int
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		buf, err := s.PendingEdit()
		if err != nil {
			return err
		}
		for _, edit := range parseEditSubmission(cb.View.State.Values, buf.Rows()) {
			if err := buf.Update(edit.ID, edit.FullName, edit.ClassName, edit.Violation); err != nil {
				return err
			}
			if edit.Delete {
				if err := buf.Delete(edit.ID); err != nil {
					return err
				}
			}
		}
		pages = pageCount(len(buf.Rows()), b.cfg.EditPageSize)
		return nil
	})
	if err != nil {
		log.Printf("edit submission error user=%s: %v", userID, err)
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}

	if pages <= 1 {
		b.saveEdit(channelID, userID)
		return
	}
	b.postBlocksTo(channelID, userID, "Đã cập nhật trang sửa.", buildEditNavBlocks(page, pages))
}

func buildEditNavBlocks(page, pages int) []slack.Block {
	var buttons []slack.BlockElement
	for p := 0; p < pages && len(buttons) < 20; p++ {
		if p == page {
			continue
		}
		buttons = append(buttons, slack.NewButtonBlockElement(actionEditPage, strconv.Itoa(p+1), plain(fmt.Sprintf("Trang %d", p+1))))
	}
	buttons = append(buttons,
		slack.NewButtonBlockElement(actionEditSave, "save", plain("Lưu tất cả")).WithStyle(slack.StylePrimary),
		slack.NewButtonBlockElement(actionEditCancel, "cancel", plain("Hủy sửa")),
	)
	return []slack.Block{
		slack.NewSectionBlock(mrkdwn(fmt.Sprintf("Đã cập nhật trang %d/%d. Thay đổi chỉ được áp dụng khi bấm *Lưu tất cả*.", page+1, pages)), nil, nil),
		slack.NewActionBlock("vp_edit_nav", buttons...),
	}
}

func (b *Bot) saveEdit(channelID, userID string) {
	var corrections []session.Correction
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		var err error
		corrections, err = s.SaveEdit()
		return err
	})
	if err != nil {
		b.postEphemeralTo(channelID, userID, domain.UserMessage(err))
		return
	}
	log.Printf("edit saved session=%s corrections=%d", session.Key(channelID, userID), len(corrections))
	b.recordCorrections(corrections, userID)
	b.showReport(channelID, userID)
}

func (b *Bot) cancelEdit(channelID, userID string) {
	ran, _ := b.sessions.Lookup(session.Key(channelID, userID), func(s *session.Session) error {
		if s.Editing() {
			s.CancelEdit()
			log.Printf("edit cancelled session=%s", s.Key())
		}
		return nil
	})
	if ran {
		b.postEphemeralTo(channelID, userID, "Đã hủy sửa, báo cáo giữ nguyên.")
	}
}

// recordCorrections stores edit-mode corrections and grows the glossary once a
// phrase has been corrected to the same label twice.
func (b *Bot) recordCorrections(corrections []session.Correction, userID string) {
	if b.db == nil {
		return
	}
	for _, c := range corrections {
		err := sqlite.InsertCorrection(b.db, sqlite.Correction{
			RecordID:    c.RecordID,
			Phrase:      c.Phrase,
			Label:       c.Label,
			CorrectedBy: userID,
		})
		if err != nil {
			log.Printf("correction insert error record=%s: %v", c.RecordID, err)
			continue
		}
		log.Printf("correction recorded record=%s phrase=%q label=%s by=%s", c.RecordID, c.Phrase, c.Label, userID)
		b.tryAutoGrowGlossary(c.Phrase, c.Label)
	}
}

func (b *Bot) tryAutoGrowGlossary(phrase, label string) {
	path := strings.TrimSpace(b.cfg.GlossaryPath)
	if path == "" {
		return
	}
	count, err := sqlite.CountCorrectionsByPhrase(b.db, phrase, label)
	if err != nil {
		log.Printf("glossary auto-grow count error: %v", err)
		return
	}
	if count < 2 {
		return
	}
	term := violation.GlossaryPhrase(phrase)
	if term == "" {
		return
	}

	b.glossaryMu.Lock()
	defer b.glossaryMu.Unlock()
	added, err := violation.AppendGlossaryTerm(path, term, label)
	if err != nil {
		log.Printf("glossary auto-grow error: %v", err)
		return
	}
	if !added {
		return
	}
	if b.normalizer != nil {
		b.normalizer.AddTerms(violation.GlossaryTerm{Phrase: term, Label: label})
	}
	log.Printf("glossary auto-grown phrase=%q label=%s", term, label)
}
