package repositories

import (
	"time"

	"scrumboard/backend/internal/models"

	"github.com/gofrs/uuid"
)

// Documents keep ids as canonical uuid strings so they read naturally in the shell.

type userDoc struct {
	ID              string    `bson:"_id"`
	Email           string    `bson:"email"`
	Password        string    `bson:"password"`
	Name            string    `bson:"name"`
	Confirmed       bool      `bson:"confirmed"`
	Role            string    `bson:"role"`
	YearsExperience int       `bson:"yearsExperience"`
	Technologies    []string  `bson:"technologies"`
	Strengths       []string  `bson:"strengths"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func toUserDoc(u *models.User) *userDoc {
	strengths := make([]string, 0, len(u.DeveloperProfile.Strengths))
	for _, s := range u.DeveloperProfile.Strengths {
		strengths = append(strengths, string(s))
	}
	return &userDoc{
		ID:              u.ID.String(),
		Email:           u.Email,
		Password:        u.Password,
		Name:            u.Name,
		Confirmed:       u.Confirmed,
		Role:            string(u.Role),
		YearsExperience: u.DeveloperProfile.YearsExperience,
		Technologies:    u.DeveloperProfile.Technologies,
		Strengths:       strengths,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (d *userDoc) model() *models.User {
	strengths := make([]models.Strength, 0, len(d.Strengths))
	for _, s := range d.Strengths {
		strengths = append(strengths, models.Strength(s))
	}
	return &models.User{
		ID:        parseID(d.ID),
		Email:     d.Email,
		Password:  d.Password,
		Name:      d.Name,
		Confirmed: d.Confirmed,
		Role:      models.Role(d.Role),
		DeveloperProfile: models.DeveloperProfile{
			YearsExperience: d.YearsExperience,
			Technologies:    d.Technologies,
			Strengths:       strengths,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type tokenDoc struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"`
	User      string    `bson:"user"`
	CreatedAt time.Time `bson:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func toTokenDoc(t *models.Token) *tokenDoc {
	return &tokenDoc{
		ID:        t.ID.String(),
		Token:     t.Token,
		User:      t.UserID.String(),
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

func (d *tokenDoc) model() *models.Token {
	return &models.Token{
		ID:        parseID(d.ID),
		Token:     d.Token,
		UserID:    parseID(d.User),
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}

type projectDoc struct {
	ID          string    `bson:"_id"`
	ProjectName string    `bson:"projectName"`
	ClientName  string    `bson:"clientName"`
	Description string    `bson:"description"`
	Manager     string    `bson:"manager"`
	Team        []string  `bson:"team"`
	Tasks       []string  `bson:"tasks"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toProjectDoc(p *models.Project) *projectDoc {
	return &projectDoc{
		ID:          p.ID.String(),
		ProjectName: p.ProjectName,
		ClientName:  p.ClientName,
		Description: p.Description,
		Manager:     p.Manager.String(),
		Team:        idStrings(p.Team),
		Tasks:       idStrings(p.Tasks),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d *projectDoc) model() *models.Project {
	return &models.Project{
		ID:          parseID(d.ID),
		ProjectName: d.ProjectName,
		ClientName:  d.ClientName,
		Description: d.Description,
		Manager:     parseID(d.Manager),
		Team:        parseIDs(d.Team),
		Tasks:       parseIDs(d.Tasks),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type backlogDoc struct {
	ID                 string    `bson:"_id"`
	Project            string    `bson:"project"`
	Persona            string    `bson:"persona"`
	Objetivo           string    `bson:"objetivo"`
	Beneficio          string    `bson:"beneficio"`
	Title              string    `bson:"title"`
	Estimate           float64   `bson:"estimate"`
	AcceptanceCriteria string    `bson:"acceptanceCriteria"`
	Order              int       `bson:"order"`
	CreatedAt          time.Time `bson:"createdAt"`
	UpdatedAt          time.Time `bson:"updatedAt"`
}

func toBacklogDoc(i *models.ProductBacklogItem) *backlogDoc {
	return &backlogDoc{
		ID:                 i.ID.String(),
		Project:            i.ProjectID.String(),
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

func (d *backlogDoc) model() *models.ProductBacklogItem {
	return &models.ProductBacklogItem{
		ID:                 parseID(d.ID),
		ProjectID:          parseID(d.Project),
		Persona:            d.Persona,
		Objetivo:           d.Objetivo,
		Beneficio:          d.Beneficio,
		Title:              d.Title,
		Estimate:           d.Estimate,
		AcceptanceCriteria: d.AcceptanceCriteria,
		Order:              d.Order,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type sprintDoc struct {
	ID        string    `bson:"_id"`
	Project   string    `bson:"project"`
	Name      string    `bson:"name"`
	StartDate time.Time `bson:"startDate"`
	EndDate   time.Time `bson:"endDate"`
	Status    string    `bson:"status"`
	Stories   []string  `bson:"stories"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toSprintDoc(s *models.Sprint) *sprintDoc {
	return &sprintDoc{
		ID:        s.ID.String(),
		Project:   s.ProjectID.String(),
		Name:      s.Name,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		Status:    string(s.Status),
		Stories:   idStrings(s.Stories),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (d *sprintDoc) model() *models.Sprint {
	return &models.Sprint{
		ID:        parseID(d.ID),
		ProjectID: parseID(d.Project),
		Name:      d.Name,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		Status:    models.SprintStatus(d.Status),
		Stories:   parseIDs(d.Stories),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type taskDoc struct {
	ID          string    `bson:"_id"`
	Project     string    `bson:"project"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Status      string    `bson:"status"`
	Sprint      *string   `bson:"sprint,omitempty"`
	Story       *string   `bson:"story,omitempty"`
	AssignedTo  *string   `bson:"assignedTo,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toTaskDoc(t *models.Task) *taskDoc {
	return &taskDoc{
		ID:          t.ID.String(),
		Project:     t.ProjectID.String(),
		Name:        t.Name,
		Description: t.Description,
		Status:      string(t.Status),
		Sprint:      optionalString(t.SprintID),
		Story:       optionalString(t.StoryID),
		AssignedTo:  optionalString(t.AssignedTo),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d *taskDoc) model() *models.Task {
	return &models.Task{
		ID:          parseID(d.ID),
		ProjectID:   parseID(d.Project),
		Name:        d.Name,
		Description: d.Description,
		Status:      models.TaskStatus(d.Status),
		SprintID:    optionalID(d.Sprint),
		StoryID:     optionalID(d.Story),
		AssignedTo:  optionalID(d.AssignedTo),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func parseID(s string) uuid.UUID {
	return uuid.FromStringOrNil(s)
}

func parseIDs(ss []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		if id := parseID(s); id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func optionalString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optionalID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id, err := uuid.FromString(*s)
	if err != nil {
		return nil
	}
	return &id
}
