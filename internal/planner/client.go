// Package planner calls the external planning webhook and normalises what it
// returns into a stable shape for API clients.
package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTimeout = 220 * time.Second

var (
	ErrUpstream = errors.New("planning service unavailable")
	ErrTimeout  = errors.New("planning request timed out")
)

// RequiredFields must be present and non-empty in every plan request.
var RequiredFields = []string{"projectInfo", "teamMembers", "projectRequirements", "sprintConfiguration"}

type Config struct {
	WebhookURL string
	Timeout    time.Duration
	Breaker    BreakerConfig
	HTTPClient *http.Client
	Logger     log.FieldLogger
	Tracer     trace.TracerProvider
}

type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	breaker *CircuitBreaker
	logger  log.FieldLogger
	tracer  trace.Tracer
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.GetTracerProvider()
	}
	return &Client{
		url:     cfg.WebhookURL,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		breaker: NewCircuitBreaker(cfg.Breaker),
		logger:  cfg.Logger,
		tracer:  cfg.Tracer.Tracer("scrumboard/backend/planner"),
	}
}

func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// MissingFields lists the required fields absent from payload or set to a
// zero value.
func MissingFields(payload map[string]interface{}) []string {
	var missing []string
	for _, field := range RequiredFields {
		if isEmpty(payload[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

// GeneratePlan posts payload to the webhook and returns the normalised result.
// Failures wrap ErrUpstream, ErrTimeout or ErrCircuitOpen.
func (c *Client) GeneratePlan(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
	ctx, span := c.tracer.Start(ctx, "planner.GeneratePlan")
	defer span.End()

	var result interface{}
	err := c.breaker.Execute(func() error {
		var err error
		result, err = c.post(ctx, payload)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WithError(err).Warn("planning webhook call failed")
		return nil, err
	}
	return Normalize(result), nil
}

func (c *Client) post(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode plan request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.WithFields(log.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("planning webhook responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return decodeBody(raw), nil
}

// decodeBody treats an empty body as success and passes non-JSON text
// through as the message.
func decodeBody(raw []byte) interface{} {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return map[string]interface{}{"status": "ok", "message": "Workflow completed successfully"}
	}
	var v interface{}
	if err := sonic.UnmarshalString(text, &v); err != nil {
		return map[string]interface{}{"status": "ok", "message": string(raw)}
	}
	return v
}

// Normalize reduces webhook output to {agentes: [...]} when it carries agent
// or backlog data. An array yields its first element.
func Normalize(v interface{}) interface{} {
	if arr, ok := v.([]interface{}); ok {
		if len(arr) == 0 {
			return map[string]interface{}{}
		}
		v = arr[0]
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if agentes, ok := obj["agentes"]; ok && !isEmpty(agentes) {
		return map[string]interface{}{"agentes": agentes}
	}
	if backlog, ok := obj["backlog"]; ok && !isEmpty(backlog) {
		return map[string]interface{}{
			"agentes": []interface{}{
				map[string]interface{}{"agente": "Agente", "backlog": backlog},
			},
		}
	}
	return obj
}
