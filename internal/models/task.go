package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskOnHold      TaskStatus = "onHold"
	TaskInProgress  TaskStatus = "inProgress"
	TaskUnderReview TaskStatus = "underReview"
	TaskCompleted   TaskStatus = "completed"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{TaskPending, TaskOnHold, TaskInProgress, TaskUnderReview, TaskCompleted}

func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID   uuid.UUID  `json:"project" gorm:"type:uuid;index;not null"`
	Name        string     `json:"name" gorm:"not null"`
	Description string     `json:"description" gorm:"not null"`
	Status      TaskStatus `json:"status" gorm:"not null;default:'pending'"`
	SprintID    *uuid.UUID `json:"sprint" gorm:"type:uuid;index"`
	StoryID     *uuid.UUID `json:"story" gorm:"type:uuid;index"`
	AssignedTo  *uuid.UUID `json:"assignedTo" gorm:"type:uuid;index"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t *Task) IsCompleted() bool {
	return t.Status == TaskCompleted
}

func (t *Task) InSprint(id uuid.UUID) bool {
	return t.SprintID != nil && *t.SprintID == id
}
