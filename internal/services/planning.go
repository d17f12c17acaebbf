package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/planner"

	log "github.com/sirupsen/logrus"
)

// Planner generates a project plan from a validated request payload.
type Planner interface {
	GeneratePlan(ctx context.Context, payload map[string]interface{}) (interface{}, error)
}

type PlanResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type PlanningService interface {
	GenerateProjectPlan(ctx context.Context, user *models.User, payload map[string]interface{}) (*PlanResponse, error)
}

type PlanningServiceImpl struct {
	planner Planner
	logger  log.FieldLogger
	now     func() time.Time
}

func NewPlanningService(p Planner, logger log.FieldLogger) *PlanningServiceImpl {
	return &PlanningServiceImpl{planner: p, logger: logger, now: time.Now}
}

func (s *PlanningServiceImpl) GenerateProjectPlan(ctx context.Context, user *models.User, payload map[string]interface{}) (*PlanResponse, error) {
	if payload == nil {
		return nil, NewValidationError("No project data provided")
	}
	if missing := planner.MissingFields(payload); len(missing) > 0 {
		return nil, NewValidationError("Missing required fields: " + strings.Join(missing, ", "))
	}

	entry := s.logger
	if user != nil {
		entry = entry.WithField("user_id", user.ID.String())
	}
	entry.Info("requesting project plan")

	data, err := s.planner.GeneratePlan(ctx, payload)
	if err != nil {
		switch {
		case errors.Is(err, planner.ErrTimeout):
			return nil, NewTimeoutError("Request timeout", err)
		case errors.Is(err, planner.ErrUpstream), errors.Is(err, planner.ErrCircuitOpen):
			return nil, NewUpstreamError("planning service unavailable", err)
		default:
			return nil, NewInternalError(err)
		}
	}

	return &PlanResponse{
		Status:    "ok",
		Message:   "Planning generated successfully",
		Data:      data,
		Timestamp: s.now().UTC(),
	}, nil
}
