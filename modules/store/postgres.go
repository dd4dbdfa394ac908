package store

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	code       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);
CREATE TABLE IF NOT EXISTS messages (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	room_code  TEXT NOT NULL,
	author     TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room_code, created_at, seq);
`

// PostgresStore implements Store on a pgx connection pool.
// Timestamps come from the database clock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to PostgreSQL and ensures the schema exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// PutRoom creates the room or overwrites its creation time.
func (s *PostgresStore) PutRoom(ctx context.Context, code string) (*domain.Room, error) {
	room := &domain.Room{Code: code}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (code) VALUES ($1)
		ON CONFLICT (code) DO UPDATE SET created_at = clock_timestamp()
		RETURNING created_at`, code).Scan(&room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to put room: %w", err)
	}
	room.CreatedAt = room.CreatedAt.UTC()
	return room, nil
}

// GetRoom retrieves a room by code.
func (s *PostgresStore) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	room := &domain.Room{}
	err := s.pool.QueryRow(ctx, `SELECT code, created_at FROM rooms WHERE code = $1`, code).
		Scan(&room.Code, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	room.CreatedAt = room.CreatedAt.UTC()
	return room, nil
}

// RoomExists reports whether a room document exists.
func (s *PostgresStore) RoomExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return exists, nil
}

// AppendMessage stores a message with a database-assigned timestamp.
func (s *PostgresStore) AppendMessage(ctx context.Context, code, author, body string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:       uuid.New().String(),
		RoomCode: code,
		Author:   author,
		Body:     body,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, room_code, author, body) VALUES ($1, $2, $3, $4)
		RETURNING seq, created_at`, msg.ID, code, author, body).Scan(&msg.Seq, &msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	msg.Timestamp = msg.Timestamp.UTC()
	return msg, nil
}

// ListMessages returns the room's messages ordered by timestamp.
func (s *PostgresStore) ListMessages(ctx context.Context, code string) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, id, room_code, author, body, created_at
		FROM messages WHERE room_code = $1
		ORDER BY created_at ASC, seq ASC`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.RoomCode, &m.Author, &m.Body, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
