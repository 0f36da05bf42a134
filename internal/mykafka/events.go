package mykafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

const (
	UserRegistered = "user_registered"
	UserLoggedIn   = "user_logged_in"
	UserLoggedOut  = "user_logged_out"
	UserUpdated    = "user_updated"
	UserDeleted    = "user_deleted"

	TaskCreated         = "task_created"
	TaskUpdated         = "task_updated"
	TaskDeleted         = "task_deleted"
	TaskDocumentAdded   = "task_document_added"
	TaskDocumentRemoved = "task_document_removed"
)

type UserEvent struct {
	Type     string    `json:"type"`
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}

// TaskEvent carries the owner so consumers can filter without a lookup.
type TaskEvent struct {
	Type       string       `json:"type"`
	TaskID     uuid.UUID    `json:"taskId"`
	AssignedTo uuid.UUID    `json:"assignedTo"`
	ActorID    uuid.UUID    `json:"actorId"`
	Task       *models.Task `json:"task,omitempty"`
	At         time.Time    `json:"at"`
}
