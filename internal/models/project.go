package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Project struct {
	ID          uuid.UUID   `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectName string      `json:"projectName" gorm:"not null"`
	ClientName  string      `json:"clientName" gorm:"not null"`
	Description string      `json:"description" gorm:"not null"`
	Manager     uuid.UUID   `json:"manager" gorm:"type:uuid;index;not null"`
	Team        []uuid.UUID `json:"team" gorm:"serializer:json;type:text"`
	Tasks       []uuid.UUID `json:"tasks" gorm:"serializer:json;type:text"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (p *Project) HasTeamMember(id uuid.UUID) bool {
	for _, m := range p.Team {
		if m == id {
			return true
		}
	}
	return false
}

// Members returns the team with the manager first, without duplicates.
func (p *Project) Members() []uuid.UUID {
	members := make([]uuid.UUID, 0, len(p.Team)+1)
	members = append(members, p.Manager)
	for _, m := range p.Team {
		if m != p.Manager {
			members = append(members, m)
		}
	}
	return members
}

func (p *Project) AddTask(id uuid.UUID) {
	p.Tasks = append(p.Tasks, id)
}

func (p *Project) RemoveTask(id uuid.UUID) {
	kept := p.Tasks[:0]
	for _, t := range p.Tasks {
		if t != id {
			kept = append(kept, t)
		}
	}
	p.Tasks = kept
}

func (p *Project) RemoveTeamMember(id uuid.UUID) {
	kept := p.Team[:0]
	for _, m := range p.Team {
		if m != id {
			kept = append(kept, m)
		}
	}
	p.Team = kept
}

// ProjectDetail is a project with its tasks resolved.
type ProjectDetail struct {
	Project
	Tasks []Task `json:"tasks"`
}
