package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the chat transcript store.
const (
	ChatsCollection    = "chats"
	MessagesCollection = "messages"
	CountersCollection = "counters"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if err := createIndexes(ctx, client.Database(cfg.DBName)); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return client, nil
}

func createIndexes(ctx context.Context, db *mongo.Database) error {
	chatIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	if _, err := db.Collection(ChatsCollection).Indexes().CreateMany(ctx, chatIndexes); err != nil {
		return err
	}

	messageIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "message_id", Value: 1}},
		},
	}
	if _, err := db.Collection(MessagesCollection).Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return err
	}

	return nil
}
