package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRoomID is the public room created on an empty database.
const DefaultRoomID = "general"

// CreateUser inserts or updates a user.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "picture", "updated_at"}),
	}).Create(user).Error
}

// CreateRoom inserts a room.
func (s *Store) CreateRoom(ctx context.Context, room *ChatRoom) error {
	result := s.db.WithContext(ctx).Create(room)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return result.Error
	}
	return nil
}

// AddMember grants userID access to roomID. Adding twice is a no-op.
func (s *Store) AddMember(ctx context.Context, roomID, userID string) error {
	member := RoomMember{RoomID: roomID, UserID: userID, JoinedAt: s.now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

// Seed creates the default public room when no rooms exist.
func (s *Store) Seed(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ChatRoom{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count rooms: %w", err)
	}
	if count > 0 {
		return nil
	}
	room := &ChatRoom{
		ID:          DefaultRoomID,
		Name:        "General",
		Description: "Public room everyone can join",
	}
	if err := s.CreateRoom(ctx, room); err != nil {
		return fmt.Errorf("seed default room: %w", err)
	}
	return nil
}
