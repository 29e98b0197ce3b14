package chat

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// Message bodies are user HTML; the UGC policy keeps formatting and drops scripts.
var bodyPolicy = bluemonday.UGCPolicy()

var messageTemplate = template.Must(template.New("message").Parse(
	`<div id="msg-{{.ID}}" class="message-item {{if .Own}}my-message{{else}}other-message{{end}}">` +
		`<p class="sender">{{.Author}}</p>` +
		`{{if eq .Kind "text"}}<p>{{.Body}}</p>` +
		`{{else if and (eq .Kind "image") .MediaURL}}<img src="{{.MediaURL}}" alt="image">` +
		`{{else if and (eq .Kind "video") .MediaURL}}<video controls src="{{.MediaURL}}"></video>{{end}}` +
		`{{if .Own}}<span class="delete-btn" data-retract="{{.ID}}">&#x2715;</span>{{end}}` +
		`</div>`))

// DisplayName labels the author of a message for the given viewer. Other
// authors get a truncated-id placeholder; there is no directory lookup.
func DisplayName(authorID string, viewer *models.Identity) string {
	if viewer != nil && viewer.ID == authorID {
		switch {
		case viewer.Email != "":
			return viewer.Email
		case viewer.DisplayName != "":
			return viewer.DisplayName
		default:
			return LabelSelf
		}
	}
	short := []rune(authorID)
	if len(short) > 5 {
		short = short[:5]
	}
	return fmt.Sprintf(otherUserLabelPattern, string(short))
}

// UserLabel is the header label of the signed-in identity.
func UserLabel(id models.Identity) string {
	switch {
	case id.Email != "":
		return id.Email
	case id.DisplayName != "":
		return id.DisplayName
	default:
		return LabelAnonymous
	}
}

// Render builds the view model of msg as seen by viewer.
func Render(msg models.Message, viewer *models.Identity) Rendered {
	return Rendered{
		ID:       msg.ID,
		Author:   DisplayName(msg.UserID, viewer),
		Kind:     msg.Kind,
		Text:     msg.Text,
		MediaURL: msg.FileURL,
		Own:      viewer != nil && viewer.ID == msg.UserID,
	}
}

// RenderHTML turns a rendered message into the markup appended to the feed.
func RenderHTML(r Rendered) (string, error) {
	var buf bytes.Buffer
	err := messageTemplate.Execute(&buf, struct {
		Rendered
		Body template.HTML
	}{
		Rendered: r,
		Body:     template.HTML(bodyPolicy.Sanitize(r.Text)),
	})
	if err != nil {
		return "", fmt.Errorf("render message %s: %w", r.ID, err)
	}
	return buf.String(), nil
}
