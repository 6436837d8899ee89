// Package store persists users, rooms, room memberships and chat messages
// in SQLite through GORM, and serves them to the realtime core.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/realtime"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxHistory = 100

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomExists is returned when a room id is taken.
	ErrRoomExists = errors.New("room already exists")
)

// Store is the GORM backed implementation of the room directory, message
// store and profile store.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the SQLite database at dsn and migrates the schema. Use
// ":memory:" for a throwaway database.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	// Each connection to :memory: is its own database.
	if strings.Contains(dsn, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&User{}, &ChatRoom{}, &RoomMember{}, &Message{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindRoom implements realtime.RoomDirectory.
func (s *Store) FindRoom(ctx context.Context, roomID string) (realtime.Room, error) {
	var room ChatRoom
	result := s.db.WithContext(ctx).First(&room, "id = ?", roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return realtime.Room{}, realtime.ErrRoomNotFound
		}
		return realtime.Room{}, result.Error
	}
	return realtime.Room{ID: room.ID, Name: room.Name, Private: room.IsPrivate}, nil
}

// IsMember implements realtime.RoomDirectory. Room owners are always members.
func (s *Store) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	if count > 0 {
		return true, nil
	}

	result = s.db.WithContext(ctx).Model(&ChatRoom{}).
		Where("id = ? AND owner_id = ?", roomID, userID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// FindProfile implements realtime.ProfileStore.
func (s *Store) FindProfile(ctx context.Context, userID string) (realtime.Profile, error) {
	user, err := s.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return realtime.Profile{}, fmt.Errorf("%w: %s", realtime.ErrUnknownUser, userID)
		}
		return realtime.Profile{}, err
	}
	return realtime.Profile{ID: user.ID, Name: user.Name, Picture: user.Picture}, nil
}

// FindUser finds a user by ID.
func (s *Store) FindUser(ctx context.Context, userID string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// Persist implements realtime.MessageStore. The id and timestamp are
// assigned here.
func (s *Store) Persist(ctx context.Context, draft realtime.Draft) (realtime.Message, error) {
	row := Message{
		ID:          uuid.NewString(),
		RoomID:      draft.RoomID,
		UserID:      draft.SenderID,
		Content:     draft.Content,
		MessageType: string(draft.Type),
		ImageURL:    draft.ImageURL,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return realtime.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return toMessage(row), nil
}

// RecentMessages returns up to limit messages of roomID, newest first.
func (s *Store) RecentMessages(ctx context.Context, roomID string, limit int) ([]realtime.Message, error) {
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	var rows []Message
	result := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	out := make([]realtime.Message, len(rows))
	for i, row := range rows {
		out[i] = toMessage(row)
	}
	return out, nil
}

func toMessage(row Message) realtime.Message {
	return realtime.Message{
		ID:        row.ID,
		RoomID:    row.RoomID,
		SenderID:  row.UserID,
		Content:   row.Content,
		Type:      realtime.MessageType(row.MessageType),
		ImageURL:  row.ImageURL,
		CreatedAt: row.CreatedAt,
	}
}
