package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MembershipLogItem is an append-only entry in a member's membership history.
type MembershipLogItem struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Time        time.Time      `gorm:"not null;index" json:"time"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	MessageCode string         `gorm:"size:64;not null;index" json:"message_code"`
	UserID      string         `gorm:"type:varchar(36);not null;index" json:"user_id"`
	LoggerID    *string        `gorm:"type:varchar(36)" json:"logger_id,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (l *MembershipLogItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// ActivityLogItem is an append-only entry in the public activity feed.
type ActivityLogItem struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Time        time.Time `gorm:"not null;index" json:"time"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	MessageCode string    `gorm:"size:64;not null;index" json:"message_code"`
	Link        string    `gorm:"size:255" json:"link,omitempty"`
	UserID      string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l *ActivityLogItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
