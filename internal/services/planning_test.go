package services_test

import (
	"context"
	"fmt"
	"testing"

	"scrumboard/backend/internal/planner"
	"scrumboard/backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPlanner struct {
	mock.Mock
}

func (m *mockPlanner) GeneratePlan(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
	args := m.Called(ctx, payload)
	return args.Get(0), args.Error(1)
}

func planPayload() map[string]interface{} {
	return map[string]interface{}{
		"projectInfo":         map[string]interface{}{"name": "Board"},
		"teamMembers":         []interface{}{"ana"},
		"projectRequirements": "auth",
		"sprintConfiguration": map[string]interface{}{"weeks": 2},
	}
}

func TestPlanningService_ValidatesRequiredFields(t *testing.T) {
	p := &mockPlanner{}
	svc := services.NewPlanningService(p, quietLogger())

	_, err := svc.GenerateProjectPlan(context.Background(), nil, nil)
	assert.Equal(t, services.KindValidation, services.KindOf(err))

	payload := planPayload()
	delete(payload, "projectRequirements")
	_, err = svc.GenerateProjectPlan(context.Background(), nil, payload)
	require.Error(t, err)
	assert.Equal(t, services.KindValidation, services.KindOf(err))
	assert.Contains(t, err.Error(), "projectRequirements")

	p.AssertNotCalled(t, "GeneratePlan", mock.Anything, mock.Anything)
}

func TestPlanningService_WrapsResult(t *testing.T) {
	p := &mockPlanner{}
	data := map[string]interface{}{"agentes": []interface{}{}}
	p.On("GeneratePlan", mock.Anything, mock.Anything).Return(data, nil)

	svc := services.NewPlanningService(p, quietLogger())
	resp, err := svc.GenerateProjectPlan(context.Background(), nil, planPayload())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, data, resp.Data)
	assert.False(t, resp.Timestamp.IsZero())
	p.AssertExpectations(t)
}

func TestPlanningService_MapsPlannerFailures(t *testing.T) {
	cases := []struct {
		err  error
		kind services.ErrorKind
	}{
		{fmt.Errorf("%w: status 500", planner.ErrUpstream), services.KindUpstream},
		{planner.ErrCircuitOpen, services.KindUpstream},
		{fmt.Errorf("%w after 1s", planner.ErrTimeout), services.KindTimeout},
		{fmt.Errorf("encode plan request: boom"), services.KindInternal},
	}
	for _, tc := range cases {
		p := &mockPlanner{}
		p.On("GeneratePlan", mock.Anything, mock.Anything).Return(nil, tc.err)

		svc := services.NewPlanningService(p, quietLogger())
		_, err := svc.GenerateProjectPlan(context.Background(), nil, planPayload())
		assert.Equal(t, tc.kind, services.KindOf(err), tc.err.Error())
	}
}
