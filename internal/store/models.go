package store

import "time"

// User is a chat user as known to the profile store.
type User struct {
	ID        string `gorm:"primaryKey;size:36"`
	Email     string `gorm:"uniqueIndex;size:255"`
	Name      string `gorm:"size:100;not null"`
	Picture   string `gorm:"size:500"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatRoom is a room users can join.
type ChatRoom struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`
	OwnerID     string `gorm:"size:36"`
	IsPrivate   bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomMember grants a user access to a room.
type RoomMember struct {
	RoomID   string `gorm:"primaryKey;size:36"`
	UserID   string `gorm:"primaryKey;size:36"`
	JoinedAt time.Time
}

// Message is a persisted chat message.
type Message struct {
	ID          string    `gorm:"primaryKey;size:36"`
	RoomID      string    `gorm:"index:idx_messages_room_created,priority:1;size:36;not null"`
	UserID      string    `gorm:"size:36;not null"`
	Content     string    `gorm:"type:text"`
	MessageType string    `gorm:"size:10;not null"`
	ImageURL    string    `gorm:"size:500"`
	CreatedAt   time.Time `gorm:"index:idx_messages_room_created,priority:2"`
}
