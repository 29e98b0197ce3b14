package handlers

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/chat"
)

//go:embed static/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type pageData struct {
	Prompt         string
	RetractPrompt  string
	SiteKey        string
	GoogleClientID string
}

// PageHandler serves the single-page chat client.
type PageHandler struct {
	SiteKey        string
	GoogleClientID string
	Logger         zerolog.Logger
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := indexTmpl.Execute(w, pageData{
		Prompt:         chat.PromptSignIn,
		RetractPrompt:  chat.PromptRetract,
		SiteKey:        h.SiteKey,
		GoogleClientID: h.GoogleClientID,
	})
	if err != nil {
		h.Logger.Error().Err(err).Msg("render index failed")
	}
}
