package handlers

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/chat"
)

// viewOp is one screen update pushed to the page.
type viewOp struct {
	Op      string  `json:"op"`
	Text    string  `json:"text,omitempty"`
	ID      string  `json:"id,omitempty"`
	HTML    string  `json:"html,omitempty"`
	Own     bool    `json:"own,omitempty"`
	Form    string  `json:"form,omitempty"`
	Token   *string `json:"token,omitempty"`
	SiteKey string  `json:"site_key,omitempty"`
}

// sessionOp tells the page to store token. An empty token clears it.
func sessionOp(token string) viewOp {
	return viewOp{Op: "session", Token: &token}
}

// wsWriter serializes writes to one connection and keeps it alive with pings.
type wsWriter struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newWSWriter(conn *websocket.Conn, logger zerolog.Logger) *wsWriter {
	w := &wsWriter{conn: conn, logger: logger, done: make(chan struct{})}
	go w.ping()
	return w
}

func (w *wsWriter) ping() {
	ticker := time.NewTicker(chatPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			if w.closed {
				w.mu.Unlock()
				return
			}
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(chatWriteWait))
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (w *wsWriter) send(op viewOp) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
	if err := w.conn.WriteJSON(op); err != nil {
		w.logger.Debug().Err(err).Str("op", op.Op).Msg("websocket write failed")
		w.closed = true
		close(w.done)
		w.conn.Close()
	}
}

func (w *wsWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
}

// wsView implements chat.View by pushing view operations to the page.
type wsView struct {
	out    *wsWriter
	logger zerolog.Logger
}

var _ chat.View = (*wsView)(nil)

func (v *wsView) ShowAuth()                  { v.out.send(viewOp{Op: "show_auth"}) }
func (v *wsView) ShowChat()                  { v.out.send(viewOp{Op: "show_chat"}) }
func (v *wsView) ShowForm(form chat.Form)    { v.out.send(viewOp{Op: "show_form", Form: string(form)}) }
func (v *wsView) SetAuthMessage(text string) { v.out.send(viewOp{Op: "auth_message", Text: text}) }
func (v *wsView) SetUserLabel(text string)   { v.out.send(viewOp{Op: "user_label", Text: text}) }
func (v *wsView) ClearMessages()             { v.out.send(viewOp{Op: "clear_messages"}) }
func (v *wsView) RemoveMessage(id string)    { v.out.send(viewOp{Op: "remove_message", ID: id}) }
func (v *wsView) ScrollToEnd()               { v.out.send(viewOp{Op: "scroll_end"}) }
func (v *wsView) ClearTextInput()            { v.out.send(viewOp{Op: "clear_input"}) }
func (v *wsView) ClearFileInput()            { v.out.send(viewOp{Op: "clear_file"}) }
func (v *wsView) Alert(text string)          { v.out.send(viewOp{Op: "alert", Text: text}) }

func (v *wsView) AppendMessage(msg chat.Rendered) {
	html, err := chat.RenderHTML(msg)
	if err != nil {
		v.logger.Error().Err(err).Str("message_id", msg.ID).Msg("render message failed")
		return
	}
	v.out.send(viewOp{Op: "append_message", ID: msg.ID, HTML: html, Own: msg.Own})
}
