package app

import (
	"context"
	"log"
	"os"
	"time"

	"vipham/internal/autoexport"
	"vipham/internal/config"
	"vipham/internal/httpx"
	"vipham/internal/integrations/llm"
	slackbot "vipham/internal/integrations/slack"
	"vipham/internal/report"
	"vipham/internal/session"
	"vipham/internal/storage/sqlite"
	"vipham/internal/violation"

	"github.com/slack-go/slack"
)

const evictionInterval = 15 * time.Minute

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Timezone=%s Separator=%q Redo=%t EditPageSize=%d SessionIdle=%s GlossaryPath=%s AutoExport=%q LLMSuggest=%t ExternalHTTPTimeout=%s",
		cfg.Timezone,
		cfg.TextSeparator,
		cfg.RedoEnabled(),
		cfg.EditPageSize,
		cfg.SessionIdle(),
		cfg.GlossaryPath,
		cfg.AutoExportSchedule,
		cfg.LLMSuggestEnabled,
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	if err := os.MkdirAll(cfg.ExportOutputDir, 0755); err != nil {
		log.Fatalf("Failed to create export dir %s: %v", cfg.ExportOutputDir, err)
	}
	log.Printf("Export output dir: %s", cfg.ExportOutputDir)

	normalizer := violation.NewNormalizer()
	terms, err := violation.LoadGlossaryInto(normalizer, cfg.GlossaryPath)
	if err != nil {
		log.Printf("Glossary load error (continuing without it): %v", err)
	} else if terms > 0 {
		log.Printf("Glossary loaded: %d terms from %s", terms, cfg.GlossaryPath)
	}

	sessions := session.NewRegistry(session.Options{
		Normalizer: normalizer,
		Separator:  cfg.TextSeparator,
		TrackRedo:  cfg.RedoEnabled(),
	})
	exporter := report.NewExporter(cfg.ExportOutputDir, cfg.Location)

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
		slack.OptionHTTPClient(httpx.Client()),
	)

	deps := slackbot.Deps{
		Config:     cfg,
		DB:         db,
		API:        api,
		Sessions:   sessions,
		Exporter:   exporter,
		Normalizer: normalizer,
	}
	if cfg.LLMSuggestEnabled {
		deps.Suggester = llm.NewSuggester(cfg.AnthropicAPIKey, cfg.LLMModel, httpx.Client())
		log.Println("LLM violation suggestions enabled")
	}
	bot := slackbot.New(deps)

	ctx := context.Background()
	autoexport.Start(ctx, cfg.AutoExportSchedule, cfg.Location, &autoexport.Runner{
		Registry:        sessions,
		Exporter:        exporter,
		DB:              db,
		Uploader:        bot,
		ReportChannelID: cfg.ReportChannelID,
	})
	startSessionEviction(ctx, sessions, cfg.SessionIdle())

	log.Println("Starting violation report bot...")
	if err := bot.Start(); err != nil {
		log.Fatalf("Slack bot error: %v", err)
	}
}

// startSessionEviction drops sessions idle for longer than idle.
func startSessionEviction(ctx context.Context, sessions *session.Registry, idle time.Duration) {
	if idle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(evictionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := sessions.Evict(now.Add(-idle)); n > 0 {
					log.Printf("Evicted %d idle sessions (idle > %s)", n, idle)
				}
			}
		}
	}()
}
