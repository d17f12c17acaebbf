package planner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"projectInfo":         map[string]interface{}{"name": "Board"},
		"teamMembers":         []interface{}{"ana"},
		"projectRequirements": "login, tasks",
		"sprintConfiguration": map[string]interface{}{"weeks": 2},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(Config{
		WebhookURL: srv.URL,
		Timeout:    timeout,
		Breaker:    BreakerConfig{MaxFailures: 2, Timeout: time.Hour, HalfOpenMaxCalls: 1},
		Logger:     logger,
	})
}

func TestMissingFields(t *testing.T) {
	assert.Empty(t, MissingFields(validPayload()))

	payload := validPayload()
	delete(payload, "teamMembers")
	payload["sprintConfiguration"] = ""
	assert.Equal(t, []string{"teamMembers", "sprintConfiguration"}, MissingFields(payload))
}

func TestGeneratePlan_PostsJSONBody(t *testing.T) {
	var received map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &received))
		_, _ = w.Write([]byte(`{"agentes":[{"agente":"PO"}],"extra":true}`))
	}, time.Second)

	result, err := client.GeneratePlan(context.Background(), validPayload())
	require.NoError(t, err)
	assert.Equal(t, "Board", received["projectInfo"].(map[string]interface{})["name"])

	obj := result.(map[string]interface{})
	assert.Len(t, obj, 1)
	assert.Contains(t, obj, "agentes")
}

func TestGeneratePlan_WrapsBacklogIntoSingleAgent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"backlog":[{"title":"story"}]}]`))
	}, time.Second)

	result, err := client.GeneratePlan(context.Background(), validPayload())
	require.NoError(t, err)

	agentes := result.(map[string]interface{})["agentes"].([]interface{})
	require.Len(t, agentes, 1)
	agent := agentes[0].(map[string]interface{})
	assert.Equal(t, "Agente", agent["agente"])
	assert.Len(t, agent["backlog"], 1)
}

func TestGeneratePlan_EmptyAndTextBodies(t *testing.T) {
	body := ""
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}, time.Second)

	result, err := client.GeneratePlan(context.Background(), validPayload())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"status": "ok", "message": "Workflow completed successfully"}, result)

	body = "workflow accepted"
	result, err = client.GeneratePlan(context.Background(), validPayload())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"status": "ok", "message": "workflow accepted"}, result)
}

func TestGeneratePlan_Non2xxIsUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Second)

	_, err := client.GeneratePlan(context.Background(), validPayload())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestGeneratePlan_TimeoutIsTimeoutError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := client.GeneratePlan(context.Background(), validPayload())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestGeneratePlan_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}, time.Second)

	for i := 0; i < 2; i++ {
		_, err := client.GeneratePlan(context.Background(), validPayload())
		assert.ErrorIs(t, err, ErrUpstream)
	}
	assert.Equal(t, BreakerOpen, client.Breaker().State())

	_, err := client.GeneratePlan(context.Background(), validPayload())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, map[string]interface{}{}, Normalize([]interface{}{}))
	assert.Equal(t, "plain", Normalize("plain"))

	obj := map[string]interface{}{"status": "ok", "message": "done"}
	assert.Equal(t, obj, Normalize(obj))
}
