package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/globalchat/internal/models"
)

// MessagesCollection is the single shared room.
const MessagesCollection = "messages"

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Timestamp time.Time          `bson:"timestamp"`
	Kind      models.MessageKind `bson:"type"`
	Text      string             `bson:"text"`
	FileURL   string             `bson:"fileURL,omitempty"`
}

func (d messageDoc) message() models.Message {
	return models.Message{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Timestamp: d.Timestamp,
		Kind:      d.Kind,
		Text:      d.Text,
		FileURL:   d.FileURL,
	}
}

// MessageStore persists the message collection in MongoDB.
type MessageStore struct {
	col    *mongo.Collection
	now    func() time.Time
	logger zerolog.Logger
}

func NewMessageStore(db *mongo.Database, logger zerolog.Logger) *MessageStore {
	return &MessageStore{
		col:    db.Collection(MessagesCollection),
		now:    time.Now,
		logger: logger.With().Str("component", "messages").Logger(),
	}
}

// EnsureIndexes creates the timestamp index used by List.
// Called on startup after Mongo has connected.
func (s *MessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetName("idx_timestamp"),
	})
	return err
}

// Insert stores msg with a server-assigned id and timestamp.
func (s *MessageStore) Insert(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		UserID:    msg.UserID,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		Kind:      msg.Kind,
		Text:      msg.Text,
		FileURL:   msg.FileURL,
	}
	out := doc.message()
	if err := out.Validate(); err != nil {
		return models.Message{}, err
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return out, nil
}

// List returns every message, oldest first.
func (s *MessageStore) List(ctx context.Context) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []models.Message{}
	for cur.Next(ctx) {
		var d messageDoc
		if err := cur.Decode(&d); err != nil {
			s.logger.Warn().Err(err).Str("raw_id", cur.Current.Lookup("_id").String()).Msg("skipping undecodable message")
			continue
		}
		msgs = append(msgs, d.message())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteOwned removes the message id if it belongs to userID.
func (s *MessageStore) DeleteOwned(ctx context.Context, id, userID string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid, "userId": userID})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if res.DeletedCount == 1 {
		return nil
	}

	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrPermissionDenied
}
