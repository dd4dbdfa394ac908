package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// roomRecord is the GORM model for the rooms table.
type roomRecord struct {
	Code      string `gorm:"primaryKey;size:64"`
	CreatedAt int64  `gorm:"not null;autoCreateTime:false"`
}

func (roomRecord) TableName() string { return "rooms" }

// messageRecord is the GORM model for the messages table.
// SentAt holds unix nanoseconds so ordering never depends on text formatting.
type messageRecord struct {
	Seq      int64  `gorm:"primaryKey;autoIncrement"`
	ID       string `gorm:"uniqueIndex;size:36;not null"`
	RoomCode string `gorm:"index:idx_messages_room_sent,priority:1;size:64;not null"`
	Author   string `gorm:"not null"`
	Body     string `gorm:"not null"`
	SentAt   int64  `gorm:"index:idx_messages_room_sent,priority:2;not null"`
}

func (messageRecord) TableName() string { return "messages" }

func (r messageRecord) toDomain() domain.Message {
	return domain.Message{
		ID:        r.ID,
		RoomCode:  r.RoomCode,
		Author:    r.Author,
		Body:      r.Body,
		Timestamp: time.Unix(0, r.SentAt).UTC(),
		Seq:       r.Seq,
	}
}

// GormStore implements Store on GORM with the SQLite driver.
type GormStore struct {
	db    *gorm.DB
	clock *clock
	// serializes timestamp assignment with the insert so seq and time agree
	writeMu sync.Mutex
}

var _ Store = (*GormStore)(nil)

// OpenSQLite opens (or creates) the SQLite database at path and migrates it.
func OpenSQLite(path string, debug bool) (*GormStore, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// one connection keeps ":memory:" databases shared and writes serialized
	sqlDB.SetMaxOpenConns(1)

	return NewGormStore(db)
}

// NewGormStore wraps an open GORM database and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&roomRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db, clock: newClock()}, nil
}

// PutRoom creates the room or overwrites its creation time.
func (s *GormStore) PutRoom(ctx context.Context, code string) (*domain.Room, error) {
	rec := roomRecord{Code: code, CreatedAt: s.clock.Next().UnixNano()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"created_at"}),
	}).Create(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("failed to put room: %w", err)
	}
	return &domain.Room{Code: rec.Code, CreatedAt: time.Unix(0, rec.CreatedAt).UTC()}, nil
}

// GetRoom retrieves a room by code.
func (s *GormStore) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	var rec roomRecord
	if err := s.db.WithContext(ctx).First(&rec, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &domain.Room{Code: rec.Code, CreatedAt: time.Unix(0, rec.CreatedAt).UTC()}, nil
}

// RoomExists reports whether a room document exists.
func (s *GormStore) RoomExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&roomRecord{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return count > 0, nil
}

// AppendMessage stores a message with a store-assigned timestamp.
func (s *GormStore) AppendMessage(ctx context.Context, code, author, body string) (*domain.Message, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec := messageRecord{
		ID:       uuid.New().String(),
		RoomCode: code,
		Author:   author,
		Body:     body,
		SentAt:   s.clock.Next().UnixNano(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	msg := rec.toDomain()
	return &msg, nil
}

// ListMessages returns the room's messages ordered by timestamp.
func (s *GormStore) ListMessages(ctx context.Context, code string) ([]domain.Message, error) {
	var recs []messageRecord
	err := s.db.WithContext(ctx).
		Where("room_code = ?", code).
		Order("sent_at ASC").
		Order("seq ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(recs))
	for _, rec := range recs {
		messages = append(messages, rec.toDomain())
	}
	return messages, nil
}

// Ping verifies the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
