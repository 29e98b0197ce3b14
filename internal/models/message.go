package models

import (
	"errors"
	"strings"
	"time"
)

// MessageKind is the rendering kind of a message.
// Valid values: "text", "image", "video", "file".
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindFile  MessageKind = "file"
)

var (
	ErrFileURLMissing    = errors.New("message of a media kind requires a fileURL")
	ErrFileURLUnexpected = errors.New("text message must not carry a fileURL")
	ErrUnknownKind       = errors.New("unknown message kind")
)

// KindFromContentType classifies an upload by its declared content type.
func KindFromContentType(contentType string) MessageKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case strings.HasPrefix(ct, "video/"):
		return KindVideo
	default:
		return KindFile
	}
}

// Message is one record of the shared room, stored in the messages collection.
// Field names follow the persisted contract (text, userId, timestamp, type, fileURL).
type Message struct {
	ID        string      `bson:"-" json:"id"`
	UserID    string      `bson:"userId" json:"userId"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	Kind      MessageKind `bson:"type" json:"type"`
	Text      string      `bson:"text" json:"text"`
	FileURL   string      `bson:"fileURL,omitempty" json:"fileURL,omitempty"`
}

// Validate enforces that FileURL is present iff the kind is not text.
func (m Message) Validate() error {
	switch m.Kind {
	case KindText:
		if m.FileURL != "" {
			return ErrFileURLUnexpected
		}
	case KindImage, KindVideo, KindFile:
		if m.FileURL == "" {
			return ErrFileURLMissing
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// NewMessage is the field mapping a client appends; the backend assigns ID and Timestamp.
type NewMessage struct {
	UserID  string
	Kind    MessageKind
	Text    string
	FileURL string
}

// ChangeType is the kind of a change event on the message collection.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
)

// Change is one incremental notification delivered by a message subscription.
// Removed changes only need Message.ID to be set.
type Change struct {
	Type    ChangeType `json:"type"`
	Message Message    `json:"message"`
}
