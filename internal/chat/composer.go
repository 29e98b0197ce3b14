package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// Composer writes new messages. Nothing is echoed locally: a sent message
// shows up once the feed subscription delivers it.
type Composer struct {
	messages Messages
	objects  Objects
	session  *Session
	view     View
	log      zerolog.Logger

	// MaxUploadBytes rejects larger files before uploading. Zero disables the check.
	MaxUploadBytes int64
	now            func() time.Time
}

func NewComposer(messages Messages, objects Objects, session *Session, view View, logger zerolog.Logger) *Composer {
	return &Composer{
		messages: messages,
		objects:  objects,
		session:  session,
		view:     view,
		log:      logger,
		now:      time.Now,
	}
}

// ObjectPath is the storage path of an upload: chats/<author>/<unix millis>_<filename>.
// Two uploads of the same name in the same millisecond collide.
func ObjectPath(authorID string, at time.Time, filename string) string {
	return fmt.Sprintf("chats/%s/%d_%s", authorID, at.UnixMilli(), filename)
}

// SendText writes a text message. Failures are logged only and the input
// keeps its content.
func (c *Composer) SendText(ctx context.Context, text string) error {
	id, ok := c.session.Identity()
	if !ok {
		return nil
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return nil
	}

	_, err := c.messages.Add(ctx, models.NewMessage{
		UserID: id.ID,
		Kind:   models.KindText,
		Text:   body,
	})
	if err != nil {
		messagesSent.WithLabelValues(string(models.KindText), "error").Inc()
		c.log.Error().Err(err).Msg("send message failed")
		return err
	}
	messagesSent.WithLabelValues(string(models.KindText), "ok").Inc()
	c.view.ClearTextInput()
	return nil
}

// UploadAndSend uploads file and records a message pointing at it. A blob
// whose message could not be recorded is left in storage.
func (c *Composer) UploadAndSend(ctx context.Context, file *File) error {
	id, ok := c.session.Identity()
	if !ok || file == nil {
		return nil
	}
	if c.MaxUploadBytes > 0 && file.Size > c.MaxUploadBytes {
		c.view.Alert(fmt.Sprintf("The file is too large (%s, limit %s).",
			humanize.Bytes(uint64(file.Size)), humanize.Bytes(uint64(c.MaxUploadBytes))))
		return nil
	}

	kind := models.KindFromContentType(file.ContentType)
	path := ObjectPath(id.ID, c.now(), file.Name)

	if err := c.uploadAndRecord(ctx, id, kind, path, file); err != nil {
		messagesSent.WithLabelValues(string(kind), "error").Inc()
		c.log.Error().Err(err).Str("path", path).Msg("file upload failed")
		c.view.Alert(NoticeUploadFailed)
		return err
	}
	messagesSent.WithLabelValues(string(kind), "ok").Inc()
	c.view.ClearFileInput()
	return nil
}

func (c *Composer) uploadAndRecord(ctx context.Context, id models.Identity, kind models.MessageKind, path string, file *File) error {
	ref, err := c.objects.Upload(ctx, path, *file)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	url, err := c.objects.DownloadURL(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve url for %s: %w", path, err)
	}
	_, err = c.messages.Add(ctx, models.NewMessage{
		UserID:  id.ID,
		Kind:    kind,
		Text:    file.Name,
		FileURL: url,
	})
	if err != nil {
		return fmt.Errorf("record message for %s: %w", path, err)
	}
	return nil
}
