package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"   json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"   json:"username"`
	Email        string    `gorm:"uniqueIndex;not null"   json:"email"`
	FullName     string    `gorm:"not null"               json:"fullName"`
	Avatar       string    `                              json:"avatar,omitempty"`
	PasswordHash string    `gorm:"not null"               json:"-"`
	Role         string    `gorm:"not null;default:user"  json:"role"`
	RefreshToken *string   `gorm:"column:refresh_token"   json:"-"`
	CreatedAt    time.Time `                              json:"createdAt"`
	UpdatedAt    time.Time `                              json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"                                  json:"id"`
	Title       string     `gorm:"not null;index"                                        json:"title"`
	Description string     `gorm:"not null"                                              json:"description"`
	Status      string     `gorm:"not null;default:pending;index"                        json:"status"`
	Priority    string     `gorm:"not null;default:medium;index"                         json:"priority"`
	DueDate     time.Time  `gorm:"not null"                                              json:"dueDate"`
	AssignedTo  uuid.UUID  `gorm:"type:uuid;not null;index"                              json:"assignedTo"`
	Assignee    *User      `gorm:"foreignKey:AssignedTo;constraint:OnDelete:CASCADE"     json:"assignee,omitempty"`
	Documents   []Document `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"         json:"documents"`
	CreatedAt   time.Time  `                                                             json:"createdAt"`
	UpdatedAt   time.Time  `                                                             json:"updatedAt"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type Document struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	TaskID      uuid.UUID `gorm:"type:uuid;not null;index" json:"taskId"`
	Key         string    `gorm:"not null;uniqueIndex"     json:"key"`
	Name        string    `gorm:"not null"                 json:"name"`
	ContentType string    `                                json:"contentType"`
	Size        int64     `                                json:"size"`
	UploadedBy  uuid.UUID `gorm:"type:uuid;not null"       json:"uploadedBy"`
	CreatedAt   time.Time `                                json:"createdAt"`
}

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &Task{}, &Document{}}
}
