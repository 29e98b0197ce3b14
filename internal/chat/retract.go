package chat

import (
	"context"

	"github.com/rs/zerolog"
)

// Retraction deletes messages. Authorship is checked by the backend only;
// the feed offers the control on the viewer's own messages.
type Retraction struct {
	messages Messages
	view     View
	log      zerolog.Logger
}

func NewRetraction(messages Messages, view View, logger zerolog.Logger) *Retraction {
	return &Retraction{messages: messages, view: view, log: logger}
}

// Retract deletes messageID after confirmation. The rendering goes away when
// the feed receives the matching "removed" change.
func (r *Retraction) Retract(ctx context.Context, messageID string, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(PromptRetract) {
		return nil
	}
	if err := r.messages.Delete(ctx, messageID); err != nil {
		retractions.WithLabelValues("error").Inc()
		r.log.Error().Err(err).Str("message_id", messageID).Msg("retract message failed")
		r.view.Alert(NoticeRetractFailed)
		return err
	}
	retractions.WithLabelValues("ok").Inc()
	r.log.Info().Str("message_id", messageID).Msg("message retracted")
	return nil
}
