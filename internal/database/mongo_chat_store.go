package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/telemetry"
	"rag-docqa-platform/models"
)

type messageDoc struct {
	ID          int64     `bson:"message_id"`
	ChatID      int64     `bson:"chat_id"`
	Sender      string    `bson:"sender"`
	Text        string    `bson:"text"`
	PayloadJSON *string   `bson:"payload_json,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d messageDoc) model() models.Message {
	return models.Message{
		ID:          d.ID,
		ChatID:      d.ChatID,
		Sender:      d.Sender,
		Text:        d.Text,
		PayloadJSON: payloadRaw(d.PayloadJSON),
		CreatedAt:   d.CreatedAt,
	}
}

// MongoChatStore keeps chats and messages in two collections. Integer ids
// come from a counters collection so the API matches the SQLite store.
type MongoChatStore struct {
	client   *mongo.Client
	chats    *mongo.Collection
	messages *mongo.Collection
	counters *mongo.Collection
	metrics  *telemetry.Metrics
}

func NewMongoChatStore(client *mongo.Client, dbName string, metrics *telemetry.Metrics) *MongoChatStore {
	db := client.Database(dbName)
	return &MongoChatStore{
		client:   client,
		chats:    db.Collection(config.ChatsCollection),
		messages: db.Collection(config.MessagesCollection),
		counters: db.Collection(config.CountersCollection),
		metrics:  metrics,
	}
}

func (s *MongoChatStore) nextID(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return doc.Seq, nil
}

func (s *MongoChatStore) ListChats(ctx context.Context) ([]models.Chat, error) {
	cur, err := s.chats.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "chat_id", Value: -1}}))
	s.metrics.RecordDatabaseOperation("find", config.ChatsCollection, err == nil)
	if err != nil {
		return nil, err
	}
	chats := []models.Chat{}
	if err := cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *MongoChatStore) GetChat(ctx context.Context, id int64) (models.Chat, error) {
	var c models.Chat
	err := s.chats.FindOne(ctx, bson.M{"chat_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Chat{}, ErrChatNotFound
	}
	return c, err
}

func (s *MongoChatStore) CreateChat(ctx context.Context, title, sessionID string) (models.Chat, error) {
	id, err := s.nextID(ctx, config.ChatsCollection)
	if err != nil {
		return models.Chat{}, err
	}
	c := models.Chat{ID: id, Title: title, CreatedAt: time.Now().UTC().Truncate(time.Millisecond), SessionID: sessionID}
	_, err = s.chats.InsertOne(ctx, c)
	s.metrics.RecordDatabaseOperation("insert", config.ChatsCollection, err == nil)
	if err != nil {
		return models.Chat{}, err
	}
	return c, nil
}

func (s *MongoChatStore) DeleteChat(ctx context.Context, id int64) error {
	if _, err := s.messages.DeleteMany(ctx, bson.M{"chat_id": id}); err != nil {
		s.metrics.RecordDatabaseOperation("delete", config.MessagesCollection, false)
		return err
	}
	_, err := s.chats.DeleteOne(ctx, bson.M{"chat_id": id})
	s.metrics.RecordDatabaseOperation("delete", config.ChatsCollection, err == nil)
	return err
}

func (s *MongoChatStore) ListMessages(ctx context.Context, chatID int64) ([]models.Message, error) {
	cur, err := s.messages.Find(ctx, bson.M{"chat_id": chatID}, options.Find().SetSort(bson.D{{Key: "message_id", Value: 1}}))
	s.metrics.RecordDatabaseOperation("find", config.MessagesCollection, err == nil)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, len(docs))
	for i, d := range docs {
		msgs[i] = d.model()
	}
	return msgs, nil
}

func (s *MongoChatStore) AddMessage(ctx context.Context, chatID int64, sender, text string, payload json.RawMessage) (models.Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return models.Message{}, err
	}
	id, err := s.nextID(ctx, config.MessagesCollection)
	if err != nil {
		return models.Message{}, err
	}
	doc := messageDoc{
		ID:          id,
		ChatID:      chatID,
		Sender:      sender,
		Text:        text,
		PayloadJSON: payloadString(payload),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err = s.messages.InsertOne(ctx, doc)
	s.metrics.RecordDatabaseOperation("insert", config.MessagesCollection, err == nil)
	if err != nil {
		return models.Message{}, err
	}
	return doc.model(), nil
}

func (s *MongoChatStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
