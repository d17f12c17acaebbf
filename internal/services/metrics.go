package services

import (
	"context"
	"time"

	"scrumboard/backend/internal/models"
	"scrumboard/backend/internal/reports"
	"scrumboard/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "scrumboard/backend/services"

// Clock fixes "now" and the calendar used for day boundaries in reports.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

type MetricsService interface {
	ProjectMetrics(ctx context.Context, user *models.User, projectID uuid.UUID) (*reports.ProjectMetrics, error)
}

type MetricsServiceImpl struct {
	store  repositories.Store
	clock  Clock
	tracer trace.Tracer
}

// NewMetricsService uses the global tracer provider when tp is nil.
func NewMetricsService(store repositories.Store, clock Clock, tp trace.TracerProvider) *MetricsServiceImpl {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &MetricsServiceImpl{store: store, clock: clock, tracer: tp.Tracer(tracerName)}
}

func (s *MetricsServiceImpl) ProjectMetrics(ctx context.Context, user *models.User, projectID uuid.UUID) (*reports.ProjectMetrics, error) {
	ctx, span := s.tracer.Start(ctx, "metrics.ProjectMetrics",
		trace.WithAttributes(attribute.String("project.id", projectID.String())))
	defer span.End()

	project, err := visibleProject(ctx, s.store, projectID, user)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	in, err := s.load(ctx, project)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, NewInternalError(err)
	}

	_, computeSpan := s.tracer.Start(ctx, "metrics.compute")
	m := reports.Compute(in)
	computeSpan.End()

	span.SetAttributes(
		attribute.Int("tasks.total", m.Backlog.Total),
		attribute.Int("sprints.total", m.Sprints.Total),
	)
	return &m, nil
}

func (s *MetricsServiceImpl) load(ctx context.Context, project *models.Project) (reports.Input, error) {
	ctx, span := s.tracer.Start(ctx, "metrics.load")
	defer span.End()

	now := s.clock.Today()
	in := reports.Input{Project: *project, Now: now, Location: now.Location()}

	var err error
	if in.Tasks, err = s.store.Tasks().FindByProject(ctx, project.ID); err != nil {
		return in, err
	}
	if in.Sprints, err = s.store.Sprints().FindByProject(ctx, project.ID); err != nil {
		return in, err
	}
	if in.Stories, err = s.store.Backlog().FindByProject(ctx, project.ID); err != nil {
		return in, err
	}
	if in.Members, err = s.store.Users().FindByIDs(ctx, project.Members()); err != nil {
		return in, err
	}
	return in, nil
}
