package task

import (
	"time"

	"github.com/lib/pq"
)

// Task is an owned row. Every read and write is filtered by UserID.
type Task struct {
	ID          uint64  `gorm:"primaryKey"`
	UserID      uint64  `gorm:"index;not null"`
	Title       string  `gorm:"type:varchar(500);not null"`
	Description *string `gorm:"type:text"`
	Completed   bool    `gorm:"not null;default:false"`

	DueAt *time.Time `gorm:"type:timestamptz"`

	Tags pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"index;not null;default:now()"`
}
