package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/globalchat/internal/backend"
	"github.com/AnshRaj112/globalchat/internal/chat"
	"github.com/AnshRaj112/globalchat/internal/middleware"
	"github.com/AnshRaj112/globalchat/pkg/clientip"
)

const (
	chatPongWait   = 90 * time.Second
	chatPingPeriod = 30 * time.Second
	chatWriteWait  = 10 * time.Second
)

// ChatClientAction is one request from the page.
type ChatClientAction struct {
	Action         string `json:"action"`
	Token          string `json:"token,omitempty"`
	Email          string `json:"email,omitempty"`
	Password       string `json:"password,omitempty"`
	ChallengeToken string `json:"challenge_token,omitempty"`
	IDToken        string `json:"id_token,omitempty"`
	Text           string `json:"text,omitempty"`
	Name           string `json:"name,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	Data           string `json:"data,omitempty"`
	ID             string `json:"id,omitempty"`
	Confirmed      bool   `json:"confirmed,omitempty"`
}

// ChatHandler serves the chat WebSocket. Each connection gets its own
// backend.Client and chat.App.
type ChatHandler struct {
	Services       backend.Services
	Recaptcha      backend.ChallengeVerifier // nil disables the sign-up challenge
	Google         backend.IDTokenVerifier   // nil disables Google sign-in
	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         zerolog.Logger

	// AuthLimiter throttles sign-in and sign-up attempts per client IP.
	AuthLimiter *middleware.LimiterSet
}

// NewChatHandler fills in defaults for the auth limiter: 1 attempt per 5s, burst 5.
func NewChatHandler(h ChatHandler) *ChatHandler {
	if h.AuthLimiter == nil {
		h.AuthLimiter = middleware.NewLimiterSet(rate.Every(5*time.Second), 5, 30*time.Minute)
	}
	return &h
}

func (h *ChatHandler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(r, h.AllowedOrigins)
		},
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ip := clientip.RealClientIP(r)
	logger := h.Logger.With().Str("remote_ip", ip).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := newWSWriter(conn, logger)
	defer out.close()
	view := &wsView{out: out, logger: logger}

	client := backend.NewClient(h.Services, func(token string) {
		out.send(sessionOp(token))
	}, logger)

	var challenge chat.Challenge
	var recaptcha *backend.Challenge
	if h.Recaptcha != nil {
		recaptcha = backend.NewChallenge(h.Recaptcha, ip,
			func(siteKey string) { out.send(viewOp{Op: "challenge", SiteKey: siteKey}) },
			func() { out.send(viewOp{Op: "challenge_reset"}) },
		)
		challenge = recaptcha
	}

	app := chat.New(ctx, chat.Options{
		Auth:           client,
		Messages:       client,
		Objects:        client,
		Challenge:      challenge,
		View:           view,
		Logger:         logger,
		MaxUploadBytes: h.MaxUploadBytes,
	})
	defer app.Close()

	readLimit := int64(64 * 1024)
	if h.MaxUploadBytes > 0 {
		// base64 plus envelope
		readLimit += h.MaxUploadBytes/3*4 + 4
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(chatPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(chatPongWait))
		return nil
	})

	session := &chatSession{handler: h, app: app, client: client, recaptcha: recaptcha, view: view, ip: ip, logger: logger}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(chatPongWait))

		var action ChatClientAction
		if err := json.Unmarshal(data, &action); err != nil {
			logger.Debug().Err(err).Msg("ignoring malformed action")
			continue
		}
		session.dispatch(ctx, action)
	}
}

// chatSession routes page actions to the controllers of one connection.
type chatSession struct {
	handler   *ChatHandler
	app       *chat.App
	client    *backend.Client
	recaptcha *backend.Challenge
	view      *wsView
	ip        string
	logger    zerolog.Logger
}

func (s *chatSession) dispatch(ctx context.Context, a ChatClientAction) {
	switch a.Action {
	case "restore":
		if a.Token == "" {
			return
		}
		if _, err := s.client.Restore(ctx, a.Token); err != nil {
			s.logger.Debug().Err(err).Msg("session restore failed")
			s.view.out.send(sessionOp(""))
		}
	case "show_login":
		s.app.Auth.ShowLoginForm()
	case "show_signup":
		s.app.Auth.ShowSignUpForm(ctx)
	case "sign_up":
		if !s.allowAuth() {
			return
		}
		if s.recaptcha != nil {
			s.recaptcha.SetToken(a.ChallengeToken)
		}
		_ = s.app.Auth.SignUp(ctx, a.Email, a.Password)
	case "sign_in":
		if !s.allowAuth() {
			return
		}
		_ = s.app.Auth.SignIn(ctx, a.Email, a.Password)
	case "sign_in_provider":
		if s.handler.Google == nil {
			s.view.SetAuthMessage("Google sign-in is not available.")
			return
		}
		if !s.allowAuth() {
			return
		}
		_ = s.app.Auth.SignInWithProvider(ctx, backend.NewGoogleProvider(s.handler.Google, a.IDToken))
	case "sign_out":
		s.app.Auth.SignOut(ctx)
	case "send_text":
		_ = s.app.Composer.SendText(ctx, a.Text)
	case "upload":
		s.upload(ctx, a)
	case "retract":
		confirmed := a.Confirmed
		_ = s.app.Retraction.Retract(ctx, a.ID, chat.ConfirmFunc(func(string) bool { return confirmed }))
	default:
		s.logger.Debug().Str("action", a.Action).Msg("ignoring unknown action")
	}
}

func (s *chatSession) allowAuth() bool {
	if s.handler.AuthLimiter.Allow(s.ip) {
		return true
	}
	s.view.SetAuthMessage("Too many attempts. Please try again later.")
	return false
}

func (s *chatSession) upload(ctx context.Context, a ChatClientAction) {
	if a.Data == "" {
		return
	}
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("undecodable upload")
		s.view.Alert(chat.NoticeUploadFailed)
		return
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = "file"
	}
	_ = s.app.Composer.UploadAndSend(ctx, &chat.File{
		Name:        name,
		ContentType: a.ContentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
}
