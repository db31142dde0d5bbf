package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"rag-docqa-platform/models"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		created_at TEXT NOT NULL,
		session_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		payload_json TEXT,
		created_at TEXT NOT NULL,
		FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id)`,
}

// SQLiteChatStore is the single-file chat store for local deployments.
type SQLiteChatStore struct {
	db *sql.DB
}

func NewSQLiteChatStore(path string) (*SQLiteChatStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps the foreign_keys pragma and avoids writer contention
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteMigrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return &SQLiteChatStore{db: db}, nil
}

func (s *SQLiteChatStore) ListChats(ctx context.Context) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_at, session_id FROM chats ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *SQLiteChatStore) GetChat(ctx context.Context, id int64) (models.Chat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, created_at, session_id FROM chats WHERE id = ?`, id)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return c, err
}

func (s *SQLiteChatStore) CreateChat(ctx context.Context, title, sessionID string) (models.Chat, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(title, created_at, session_id) VALUES(?, ?, ?)`,
		title, now.Format(time.RFC3339Nano), sessionID)
	if err != nil {
		return models.Chat{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Chat{}, err
	}
	return models.Chat{ID: id, Title: title, CreatedAt: now, SessionID: sessionID}, nil
}

func (s *SQLiteChatStore) DeleteChat(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteChatStore) ListMessages(ctx context.Context, chatID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, sender, text, payload_json, created_at FROM messages WHERE chat_id = ? ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var (
			m       models.Message
			payload sql.NullString
			created string
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Text, &payload, &created); err != nil {
			return nil, err
		}
		if payload.Valid {
			m.PayloadJSON = json.RawMessage(payload.String)
		}
		m.CreatedAt = parseTime(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteChatStore) AddMessage(ctx context.Context, chatID int64, sender, text string, payload json.RawMessage) (models.Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return models.Message{}, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(chat_id, sender, text, payload_json, created_at) VALUES(?, ?, ?, ?, ?)`,
		chatID, sender, text, payloadString(payload), now.Format(time.RFC3339Nano))
	if err != nil {
		return models.Message{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Message{}, err
	}
	return models.Message{
		ID:          id,
		ChatID:      chatID,
		Sender:      sender,
		Text:        text,
		PayloadJSON: payloadRaw(payloadString(payload)),
		CreatedAt:   now,
	}, nil
}

func (s *SQLiteChatStore) Close(context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(r rowScanner) (models.Chat, error) {
	var (
		c       models.Chat
		created string
	)
	if err := r.Scan(&c.ID, &c.Title, &created, &c.SessionID); err != nil {
		return models.Chat{}, err
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// parseTime accepts RFC 3339 and the naive ISO timestamps of older databases.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
