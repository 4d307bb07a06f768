package slackbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"vipham/internal/report"
	"vipham/internal/session"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const maxUploadBytes = 10 << 20

var errUploadTooLarge = errors.New("file too large")

// cappedBuffer stops accepting writes past its limit.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.buf.Len()+len(p) > c.limit {
		return 0, errUploadTooLarge
	}
	return c.buf.Write(p)
}

func isSpreadsheet(f *slack.File) bool {
	if f == nil {
		return false
	}
	return strings.EqualFold(f.Filetype, "xlsx") || strings.EqualFold(filepath.Ext(f.Name), ".xlsx")
}

// handleFileShared ingests an uploaded spreadsheet. The file is downloaded
// before the session lock is taken.
func (b *Bot) handleFileShared(ev *slackevents.FileSharedEvent) {
	if ev.UserID == "" || ev.UserID == b.botUserID {
		return
	}
	ctx := context.Background()
	file, _, _, err := b.api.GetFileInfoContext(ctx, ev.FileID, 0, 0)
	if err != nil {
		log.Printf("file-shared info error file=%s: %v", ev.FileID, err)
		return
	}
	if !isSpreadsheet(file) {
		return
	}
	channelID := ev.ChannelID
	log.Printf("file-shared xlsx file=%s name=%q user=%s channel=%s size=%d", file.ID, file.Name, ev.UserID, channelID, file.Size)

	if file.Size > maxUploadBytes {
		b.postEphemeralTo(channelID, ev.UserID, fmt.Sprintf("Tệp %s quá lớn (tối đa 10MB).", file.Name))
		return
	}
	data, err := b.download(ctx, file.URLPrivateDownload)
	if err != nil {
		log.Printf("file-shared download error file=%s: %v", file.ID, err)
		b.postEphemeralTo(channelID, ev.UserID, fmt.Sprintf("Không tải được tệp %s.", file.Name))
		return
	}
	b.submit(channelID, ev.UserID, session.Input{File: data}, "xlsx")
}

func (b *Bot) download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("file has no download url")
	}
	out := &cappedBuffer{limit: maxUploadBytes}
	if err := b.api.GetFileContext(ctx, url, out); err != nil {
		return nil, err
	}
	return out.buf.Bytes(), nil
}

// UploadExport posts an exported file to a channel.
func (b *Bot) UploadExport(ctx context.Context, channelID string, exp report.Export, comment string) error {
	fi, err := os.Stat(exp.Path)
	if err != nil {
		return fmt.Errorf("stat export: %w", err)
	}
	if fi.Size() <= 0 {
		return fmt.Errorf("export file is empty: %s", exp.Path)
	}
	name := exp.Name
	if name == "" {
		name = filepath.Base(exp.Path)
	}
	_, err = b.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		File:           exp.Path,
		FileSize:       int(fi.Size()),
		Filename:       name,
		Channel:        channelID,
		Title:          report.Title,
		InitialComment: comment,
	})
	return err
}
