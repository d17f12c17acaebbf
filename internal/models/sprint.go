package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type SprintStatus string

const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
	SprintCancelled SprintStatus = "cancelled"
)

func (s SprintStatus) Valid() bool {
	switch s {
	case SprintPlanned, SprintActive, SprintCompleted, SprintCancelled:
		return true
	}
	return false
}

type Sprint struct {
	ID        uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID uuid.UUID    `json:"project" gorm:"type:uuid;not null;uniqueIndex:idx_sprint_project_name,priority:1"`
	Name      string       `json:"name" gorm:"not null;uniqueIndex:idx_sprint_project_name,priority:2"`
	StartDate time.Time    `json:"startDate" gorm:"not null"`
	EndDate   time.Time    `json:"endDate" gorm:"not null"`
	Status    SprintStatus `json:"status" gorm:"not null;default:'planned'"`
	Stories   []uuid.UUID  `json:"stories" gorm:"serializer:json;type:text"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (s *Sprint) HasStory(id uuid.UUID) bool {
	for _, st := range s.Stories {
		if st == id {
			return true
		}
	}
	return false
}

func (s *Sprint) RemoveStory(id uuid.UUID) bool {
	kept := s.Stories[:0]
	removed := false
	for _, st := range s.Stories {
		if st == id {
			removed = true
			continue
		}
		kept = append(kept, st)
	}
	s.Stories = kept
	return removed
}
