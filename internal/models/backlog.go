package models

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

type ProductBacklogItem struct {
	ID                 uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID          uuid.UUID `json:"project" gorm:"type:uuid;not null;uniqueIndex:idx_backlog_project_order,priority:1"`
	Persona            string    `json:"persona" gorm:"not null"`
	Objetivo           string    `json:"objetivo" gorm:"not null"`
	Beneficio          string    `json:"beneficio" gorm:"not null"`
	Title              string    `json:"title" gorm:"not null"`
	Estimate           float64   `json:"estimate" gorm:"not null;default:0"`
	AcceptanceCriteria string    `json:"acceptanceCriteria" gorm:"not null;default:''"`
	Order              int       `json:"order" gorm:"column:position;not null;uniqueIndex:idx_backlog_project_order,priority:2"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (ProductBacklogItem) TableName() string {
	return "product_backlog_items"
}

// BuildStoryTitle composes the user-story sentence. Inputs are expected to be trimmed.
func BuildStoryTitle(persona, objetivo, beneficio string) string {
	return fmt.Sprintf("As %s, I want %s so that %s", persona, objetivo, beneficio)
}

func (i *ProductBacklogItem) RefreshTitle() {
	i.Title = BuildStoryTitle(i.Persona, i.Objetivo, i.Beneficio)
}

// StoryView is the public projection of a backlog item inside a sprint.
type StoryView struct {
	ID                 uuid.UUID `json:"id"`
	Project            uuid.UUID `json:"project"`
	Persona            string    `json:"persona"`
	Objetivo           string    `json:"objetivo"`
	Beneficio          string    `json:"beneficio"`
	Title              string    `json:"title"`
	Estimate           float64   `json:"estimate"`
	AcceptanceCriteria string    `json:"acceptanceCriteria"`
	Order              int       `json:"order"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (i *ProductBacklogItem) View() StoryView {
	return StoryView{
		ID:                 i.ID,
		Project:            i.ProjectID,
		Persona:            i.Persona,
		Objetivo:           i.Objetivo,
		Beneficio:          i.Beneficio,
		Title:              i.Title,
		Estimate:           i.Estimate,
		AcceptanceCriteria: i.AcceptanceCriteria,
		Order:              i.Order,
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
}
