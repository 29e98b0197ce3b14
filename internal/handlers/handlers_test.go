package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/globalchat/internal/backend"
	"github.com/AnshRaj112/globalchat/internal/models"
	"github.com/AnshRaj112/globalchat/internal/services"
)

type memoryAccounts struct {
	mu   sync.Mutex
	byID map[string]models.Account
}

func (m *memoryAccounts) Create(ctx context.Context, email, hash string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			return models.Account{}, services.ErrEmailInUse
		}
	}
	acc := models.Account{ID: uuid.NewString(), Email: email, PasswordHash: hash, Provider: "password"}
	m.byID[acc.ID] = acc
	return acc, nil
}

func (m *memoryAccounts) ByEmail(ctx context.Context, email string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, services.ErrNotFound
}

func (m *memoryAccounts) ByID(ctx context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return models.Account{}, services.ErrNotFound
	}
	return a, nil
}

func (m *memoryAccounts) UpsertFederated(ctx context.Context, ext models.ExternalAccount) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := models.Account{ID: uuid.NewString(), Email: ext.Email, DisplayName: ext.Name, Provider: ext.Provider}
	m.byID[acc.ID] = acc
	return acc, nil
}

type memoryRepo struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (r *memoryRepo) Insert(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := models.Message{ID: uuid.NewString(), UserID: msg.UserID, Kind: msg.Kind, Text: msg.Text, FileURL: msg.FileURL, Timestamp: time.Now().UTC()}
	if err := m.Validate(); err != nil {
		return models.Message{}, err
	}
	r.msgs = append(r.msgs, m)
	return m, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.msgs...), nil
}

func (r *memoryRepo) DeleteOwned(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.msgs {
		if m.ID != id {
			continue
		}
		if m.UserID != userID {
			return services.ErrPermissionDenied
		}
		r.msgs = append(r.msgs[:i], r.msgs[i+1:]...)
		return nil
	}
	return services.ErrNotFound
}

type testEnv struct {
	server  *httptest.Server
	auth    *services.AuthService
	feed    *services.MessageFeed
	objects *services.PebbleStore
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := zerolog.Nop()
	auth := services.NewAuthService(&memoryAccounts{byID: map[string]models.Account{}}, services.NewSessionStore(rdb, 0), logger)
	bus := services.NewLocalBus()
	t.Cleanup(func() { _ = bus.Close() })
	feed := services.NewMessageFeed(&memoryRepo{}, services.NewRecentCache(rdb, logger), bus, logger)

	env := &testEnv{auth: auth, feed: feed, redis: mr}
	r := chi.NewRouter()
	r.Get("/health", (&HealthHandler{Started: time.Now(), Checks: map[string]Pinger{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}}).ServeHTTP)
	r.Get("/api/messages", (&HistoryHandler{Tokens: auth, Feed: feed, Logger: logger}).ServeHTTP)
	r.Get("/", (&PageHandler{SiteKey: "site-key", GoogleClientID: "client.apps", Logger: logger}).ServeHTTP)

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)

	store, err := services.OpenPebbleStore(t.TempDir(), env.server.URL, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	env.objects = store
	r.Get("/objects/*", (&ObjectHandler{Source: store, Logger: logger}).ServeHTTP)

	r.Get("/ws/chat", NewChatHandler(ChatHandler{
		Services:       backend.Services{Auth: auth, Feed: feed, Objects: store},
		AllowedOrigins: []string{"http://allowed.test"},
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	}).ServeHTTP)
	return env
}

type socket struct {
	t    *testing.T
	conn *websocket.Conn
}

func (e *testEnv) dial(t *testing.T) *socket {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &socket{t: t, conn: conn}
}

func (s *socket) send(action ChatClientAction) {
	s.t.Helper()
	require.NoError(s.t, s.conn.WriteJSON(action))
}

// await reads view ops until match returns true.
func (s *socket) await(match func(op viewOp) bool) viewOp {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var op viewOp
		_, data, err := s.conn.ReadMessage()
		require.NoError(s.t, err)
		require.NoError(s.t, json.Unmarshal(data, &op))
		if match(op) {
			return op
		}
	}
}

// awaitAll reads view ops until each named op has been seen once, in any
// order, and returns the first of each.
func (s *socket) awaitAll(names ...string) map[string]viewOp {
	s.t.Helper()
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	got := map[string]viewOp{}
	s.await(func(op viewOp) bool {
		if want[op.Op] {
			if _, seen := got[op.Op]; !seen {
				got[op.Op] = op
			}
		}
		return len(got) == len(want)
	})
	return got
}

func opIs(name string) func(viewOp) bool {
	return func(op viewOp) bool { return op.Op == name }
}

func TestChatSocketSignUpSendAndRetract(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)

	ws.await(opIs("show_auth"))
	ws.send(ChatClientAction{Action: "sign_up", Email: "ann@example.com", Password: "secret1"})

	session := ws.await(opIs("session"))
	require.NotNil(t, session.Token)
	assert.NotEmpty(t, *session.Token)
	label := ws.await(opIs("user_label"))
	assert.Equal(t, "ann@example.com", label.Text)

	ws.send(ChatClientAction{Action: "send_text", Text: "  hello <b>room</b> "})
	appended := ws.awaitAll("append_message", "clear_input")["append_message"]
	assert.True(t, appended.Own)
	assert.Contains(t, appended.HTML, "hello <b>room</b>")

	ws.send(ChatClientAction{Action: "retract", ID: appended.ID, Confirmed: false})
	ws.send(ChatClientAction{Action: "retract", ID: appended.ID, Confirmed: true})
	removed := ws.await(opIs("remove_message"))
	assert.Equal(t, appended.ID, removed.ID)

	msgs, err := env.feed.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChatSocketRestoreAndSharedRoom(t *testing.T) {
	env := newTestEnv(t)
	first := env.dial(t)
	first.await(opIs("show_auth"))
	first.send(ChatClientAction{Action: "sign_up", Email: "ann@example.com", Password: "secret1"})
	token := *first.await(opIs("session")).Token
	first.await(opIs("show_chat"))

	second := env.dial(t)
	second.await(opIs("show_auth"))
	second.send(ChatClientAction{Action: "restore", Token: token})
	second.await(opIs("show_chat"))

	first.send(ChatClientAction{Action: "send_text", Text: "from first"})
	got := second.await(opIs("append_message"))
	assert.Contains(t, got.HTML, "from first")
	assert.True(t, got.Own, "same account on both connections")

	second.send(ChatClientAction{Action: "sign_out"})
	cleared := second.await(opIs("session"))
	require.NotNil(t, cleared.Token)
	assert.Empty(t, *cleared.Token)
	second.await(opIs("show_auth"))
}

func TestChatSocketRestoreUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	ws.await(opIs("show_auth"))
	ws.send(ChatClientAction{Action: "restore", Token: "bogus"})
	op := ws.await(opIs("session"))
	require.NotNil(t, op.Token)
	assert.Empty(t, *op.Token)
}

func TestChatSocketSignInErrorsAndThrottle(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	ws.await(opIs("show_auth"))

	ws.send(ChatClientAction{Action: "sign_in", Email: "nobody@example.com", Password: "whatever"})
	msg := ws.await(opIs("auth_message"))
	assert.Contains(t, msg.Text, services.ErrInvalidCredentials.Error())

	for i := 0; i < 5; i++ {
		ws.send(ChatClientAction{Action: "sign_in", Email: "nobody@example.com", Password: "whatever"})
	}
	throttled := ws.await(func(op viewOp) bool {
		return op.Op == "auth_message" && strings.Contains(op.Text, "Too many attempts")
	})
	assert.NotEmpty(t, throttled.Text)

	ws.send(ChatClientAction{Action: "sign_in_provider", IDToken: "x"})
	unavailable := ws.await(func(op viewOp) bool {
		return op.Op == "auth_message" && strings.Contains(op.Text, "Google")
	})
	assert.Equal(t, "Google sign-in is not available.", unavailable.Text)
}

func TestChatSocketUploadServedFromObjects(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	ws.await(opIs("show_auth"))
	ws.send(ChatClientAction{Action: "sign_up", Email: "ann@example.com", Password: "secret1"})
	ws.await(opIs("show_chat"))

	ws.send(ChatClientAction{Action: "upload", Name: "pic.png", ContentType: "image/png", Data: "iVBORw0KGgo="})
	appended := ws.awaitAll("append_message", "clear_file")["append_message"]
	assert.Contains(t, appended.HTML, "<img src=\""+env.server.URL+"/objects/chats/")

	msgs, err := env.feed.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.KindImage, msgs[0].Kind)

	resp, err := http.Get(msgs[0].FileURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestChatSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/chat"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://allowed.test"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestObjectHandlerMissing(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/objects/chats/nobody/1_x.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := http.Get(env.server.URL + "/api/messages")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	acc, token, err := env.auth.Register(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err := env.feed.Add(ctx, models.NewMessage{UserID: acc.ID, Kind: models.KindText, Text: text})
		require.NoError(t, err)
	}

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/messages?limit=2", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.HasMore)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "two", body.Messages[0].Text)
	assert.Equal(t, "three", body.Messages[1].Text)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.redis.Close()
	resp, err = http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.NotEqual(t, "ok", body.Dependencies["redis"])
}

func TestPageCarriesClientConfig(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sb strings.Builder
	_, _ = io.Copy(&sb, resp.Body)
	page := sb.String()
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, page, "recaptcha/api.js")
	assert.Contains(t, page, `"client.apps"`)
	assert.Contains(t, page, "Log in or sign up to start chatting.")
}

func TestChatSocketUploadedHTMLIsNotServedInline(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	ws.await(opIs("show_auth"))
	ws.send(ChatClientAction{Action: "sign_up", Email: "ann@example.com", Password: "secret1"})
	ws.await(opIs("show_chat"))

	payload := base64.StdEncoding.EncodeToString([]byte(`<script>alert(localStorage["globalchat.session"])</script>`))
	ws.send(ChatClientAction{Action: "upload", Name: "x.html", ContentType: "text/html", Data: payload})
	ws.awaitAll("append_message", "clear_file")

	msgs, err := env.feed.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.KindFile, msgs[0].Kind)

	resp, err := http.Get(msgs[0].FileURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	disposition := resp.Header.Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, "attachment;"), disposition)
	assert.True(t, strings.HasSuffix(disposition, "_x.html"), disposition)
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "sandbox")
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestObjectHandlerContentTypes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for name, tc := range map[string]struct {
		contentType string
		wantType    string
		attachment  bool
	}{
		"1_a.png":  {"image/png", "image/png", false},
		"2_a.mp4":  {"video/mp4; codecs=avc1", "video/mp4", false},
		"3_a.svg":  {"image/svg+xml", "image/svg+xml", false},
		"4_a.js":   {"application/javascript", "application/octet-stream", true},
		"5_a.html": {"text/html; charset=utf-8", "application/octet-stream", true},
		"6_a.bin":  {"", "application/octet-stream", true},
	} {
		ref, err := env.objects.Put(ctx, "chats/u1/"+name, tc.contentType, strings.NewReader("data"))
		require.NoError(t, err)
		u, err := env.objects.URL(ctx, ref)
		require.NoError(t, err)

		resp, err := http.Get(u)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, name)
		assert.Equal(t, tc.wantType, resp.Header.Get("Content-Type"), name)
		assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "sandbox", name)
		if tc.attachment {
			assert.Equal(t, "attachment; filename="+name, resp.Header.Get("Content-Disposition"), name)
		} else {
			assert.Empty(t, resp.Header.Get("Content-Disposition"), name)
		}
	}
}

func TestObjectHandlerEscapedNames(t *testing.T) {
	env := newTestEnv(t)
	ws := env.dial(t)
	ws.await(opIs("show_auth"))
	ws.send(ChatClientAction{Action: "sign_up", Email: "ann@example.com", Password: "secret1"})
	ws.await(opIs("show_chat"))

	ws.send(ChatClientAction{Action: "upload", Name: "photo, 2024.png", ContentType: "image/png", Data: "iVBORw0KGgo="})
	ws.awaitAll("append_message", "clear_file")

	msgs, err := env.feed.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].FileURL, "photo%2C%202024.png")

	resp, err := http.Get(msgs[0].FileURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	// Names whose escaped form is the default encoding reach the handler unescaped.
	ctx := context.Background()
	for _, name := range []string{"1_100%.png", "2_a;b.png", "3_plain.png"} {
		ref, err := env.objects.Put(ctx, "chats/u1/"+name, "image/png", strings.NewReader("x"))
		require.NoError(t, err)
		u, err := env.objects.URL(ctx, ref)
		require.NoError(t, err)
		resp, err := http.Get(u)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, name)
	}
}
