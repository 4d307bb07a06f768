package slackbot

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"vipham/internal/config"
	"vipham/internal/integrations/llm"
	"vipham/internal/report"
	"vipham/internal/session"
	"vipham/internal/violation"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const (
	actionUndo       = "vp_undo"
	actionRedo       = "vp_redo"
	actionEditOpen   = "vp_edit_open"
	actionEditPage   = "vp_edit_page"
	actionEditSave   = "vp_edit_save"
	actionEditCancel = "vp_edit_cancel"
	actionExport     = "vp_export"
	actionClearOpen  = "vp_clear_open"

	modalEditCallbackID  = "vp_edit_modal"
	modalClearCallbackID = "vp_clear_modal"
	editMetaPrefix       = "edit:"
	clearMetaPrefix      = "clear:"

	suggestTimeout = 20 * time.Second
)

// Suggester proposes canonical labels for unrecognized violation text.
type Suggester interface {
	Suggest(ctx context.Context, phrases []string) ([]llm.Suggestion, llm.LLMUsage, error)
}

type Bot struct {
	cfg        config.Config
	db         *sql.DB
	api        *slack.Client
	sessions   *session.Registry
	exporter   *report.Exporter
	normalizer *violation.Normalizer
	suggester  Suggester
	botUserID  string

	// glossaryMu serializes appends to the glossary file.
	glossaryMu sync.Mutex
}

type Deps struct {
	Config     config.Config
	DB         *sql.DB
	API        *slack.Client
	Sessions   *session.Registry
	Exporter   *report.Exporter
	Normalizer *violation.Normalizer
	Suggester  Suggester
}

func New(d Deps) *Bot {
	return &Bot{
		cfg:        d.Config,
		db:         d.DB,
		api:        d.API,
		sessions:   d.Sessions,
		exporter:   d.Exporter,
		normalizer: d.Normalizer,
		suggester:  d.Suggester,
	}
}

func (b *Bot) Start() error {
	if auth, err := b.api.AuthTest(); err != nil {
		log.Printf("auth test error (bot uploads will not be filtered): %v", err)
	} else {
		b.botUserID = auth.UserID
		log.Printf("Slack bot user=%s team=%s", auth.UserID, auth.Team)
	}

	client := socketmode.New(b.api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go b.handleSlashCommand(cmd)
			case socketmode.EventTypeEventsAPI:
				client.Ack(*evt.Request)
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				go b.handleEventsAPI(eventsAPIEvent)
			case socketmode.EventTypeInteractive:
				client.Ack(*evt.Request)
				callback, ok := evt.Data.(slack.InteractionCallback)
				if !ok {
					continue
				}
				go b.handleInteraction(callback)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.Run()
}

func (b *Bot) handleSlashCommand(cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/vp-login":
		b.handleLogin(cmd)
	case "/vp":
		b.handleSubmit(cmd)
	case "/vp-report":
		b.handleReport(cmd)
	case "/vp-undo":
		b.handleUndo(cmd.ChannelID, cmd.UserID)
	case "/vp-redo":
		b.handleRedo(cmd.ChannelID, cmd.UserID)
	case "/vp-clear":
		b.openClearModal(cmd.TriggerID, cmd.ChannelID, cmd.UserID)
	case "/vp-edit":
		b.openEditModal(cmd.TriggerID, cmd.ChannelID, cmd.UserID, parsePageArg(cmd.Text))
	case "/vp-export":
		b.handleExport(cmd.ChannelID, cmd.UserID, cmd.Text)
	case "/vp-stats":
		b.handleStats(cmd)
	case "/vp-help":
		b.postEphemeral(cmd, helpText())
	}
}

func (b *Bot) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.FileSharedEvent:
		b.handleFileShared(ev)
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ev)
	}
}

func (b *Bot) handleMemberJoined(ev *slackevents.MemberJoinedChannelEvent) {
	log.Printf("member-joined user=%s channel=%s", ev.User, ev.Channel)
	_, _, err := b.api.PostMessage(ev.Channel,
		slack.MsgOptionText(welcomeText(), false),
		slack.MsgOptionPostEphemeral(ev.User),
	)
	if err != nil {
		log.Printf("member-joined intro error user=%s channel=%s: %v", ev.User, ev.Channel, err)
	}
}

func (b *Bot) postEphemeral(cmd slack.SlashCommand, text string) {
	b.postEphemeralTo(cmd.ChannelID, cmd.UserID, text)
}

func (b *Bot) postEphemeralTo(channelID, userID, text string) {
	_, err := b.api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}

func (b *Bot) postBlocksTo(channelID, userID, fallback string, blocks []slack.Block) {
	_, err := b.api.PostEphemeral(channelID, userID,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		log.Printf("Error posting blocks: %v", err)
		b.postEphemeralTo(channelID, userID, fallback)
	}
}

func (b *Bot) handleInteraction(cb slack.InteractionCallback) {
	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		b.handleBlockActions(cb)
	case slack.InteractionTypeViewSubmission:
		b.handleViewSubmission(cb)
	case slack.InteractionTypeViewClosed:
		b.handleViewClosed(cb)
	}
}

func (b *Bot) handleBlockActions(cb slack.InteractionCallback) {
	if len(cb.ActionCallback.BlockActions) == 0 {
		return
	}
	act := cb.ActionCallback.BlockActions[0]
	channelID := cb.Channel.ID
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	userID := cb.User.ID

	switch act.ActionID {
	case actionUndo:
		b.handleUndo(channelID, userID)
	case actionRedo:
		b.handleRedo(channelID, userID)
	case actionEditOpen, actionEditPage:
		b.openEditModal(cb.TriggerID, channelID, userID, parsePageArg(act.Value))
	case actionEditSave:
		b.saveEdit(channelID, userID)
	case actionEditCancel:
		b.cancelEdit(channelID, userID)
	case actionExport:
		b.handleExport(channelID, userID, act.Value)
	case actionClearOpen:
		b.openClearModal(cb.TriggerID, channelID, userID)
	}
}

func (b *Bot) handleViewSubmission(cb slack.InteractionCallback) {
	switch cb.View.CallbackID {
	case modalEditCallbackID:
		b.handleEditSubmission(cb)
	case modalClearCallbackID:
		_, channelID, ok := parseModalMeta(cb.View.PrivateMetadata, clearMetaPrefix)
		if !ok {
			return
		}
		if channelID == "" {
			channelID = cb.Container.ChannelID
		}
		b.handleClear(channelID, cb.User.ID)
	}
}

func (b *Bot) handleViewClosed(cb slack.InteractionCallback) {
	if cb.View.CallbackID != modalEditCallbackID {
		return
	}
	_, channelID, ok := parseModalMeta(cb.View.PrivateMetadata, editMetaPrefix)
	if !ok {
		return
	}
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	b.cancelEdit(channelID, cb.User.ID)
}
