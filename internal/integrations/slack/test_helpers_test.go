package slackbot

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vipham/internal/config"
	"vipham/internal/domain"
	"vipham/internal/report"
	"vipham/internal/session"
	sqlitedb "vipham/internal/storage/sqlite"
	"vipham/internal/violation"

	"github.com/slack-go/slack"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlitedb.InitDB(dbPath)
	if err != nil {
		t.Fatalf("init test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// mockSlack records Web API calls by method name.
type mockSlack struct {
	mu       sync.Mutex
	calls    map[string]int
	texts    []string
	server   *httptest.Server
	userInfo map[string]any
}

func (m *mockSlack) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockSlack) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

func (m *mockSlack) allText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.texts, "\n")
}

func newMockSlackAPI(t *testing.T) (*slack.Client, *mockSlack) {
	t.Helper()
	m := &mockSlack{calls: make(map[string]int)}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		path := strings.TrimPrefix(r.URL.Path, "/api/")
		m.mu.Lock()
		m.calls[path]++
		if text := r.Form.Get("text"); text != "" {
			m.texts = append(m.texts, text)
		}
		if blocks := r.Form.Get("blocks"); blocks != "" {
			m.texts = append(m.texts, blocks)
		}
		m.mu.Unlock()

		switch path {
		case "users.info":
			user := m.userInfo
			if user == nil {
				user = map[string]any{"id": "U1", "real_name": "", "profile": map[string]any{}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "user": user})
		case "files.getUploadURLExternal":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":         true,
				"upload_url": m.server.URL + "/upload",
				"file_id":    "F_EXPORT",
			})
		case "files.completeUploadExternal":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":    true,
				"files": []map[string]any{{"id": "F_EXPORT", "title": "export"}},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	t.Cleanup(m.server.Close)

	api := slack.New("xoxb-test", slack.OptionAPIURL(m.server.URL+"/api/"))
	return api, m
}

func newTestBot(t *testing.T, api *slack.Client) *Bot {
	t.Helper()
	n := violation.NewNormalizer()
	cfg := config.Config{
		Location:     time.UTC,
		EditPageSize: 10,
		GlossaryPath: filepath.Join(t.TempDir(), "glossary.yaml"),
	}
	redo := true
	cfg.HistoryRedo = &redo
	return New(Deps{
		Config:     cfg,
		DB:         newTestDB(t),
		API:        api,
		Sessions:   session.NewRegistry(session.Options{Normalizer: n, TrackRedo: true}),
		Exporter:   report.NewExporter(t.TempDir(), time.UTC),
		Normalizer: n,
	})
}

func loginTestUser(t *testing.T, b *Bot, channelID, userID string) {
	t.Helper()
	err := b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		return s.Login(domain.UserInfo{Name: "Trần Văn B", Role: "Giám thị"})
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
}

func sessionRecords(t *testing.T, b *Bot, channelID, userID string) []domain.Record {
	t.Helper()
	var out []domain.Record
	_ = b.sessions.Do(session.Key(channelID, userID), func(s *session.Session) error {
		out = s.Records()
		return nil
	})
	return out
}
