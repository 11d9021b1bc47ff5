// Package client talks to the gradebook API and implements the grading
// workflow collaborators on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradebook/internal/domain/grading"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	"github.com/okian/gradebook/pkg/metrics"
)

const (
	defaultTimeout     = 15 * time.Second
	idempotencyHeader  = "Idempotency-Key"
	maxResponseBody    = 8 << 20
	genericSaveMessage = "save failed"
)

// ErrRemote reports a request the server answered with an error envelope or
// an unexpected status.
var ErrRemote = errors.New("remote error")

// Client calls the gradebook API.
type Client struct {
	baseURL string
	http    *http.Client
	newKey  func() string
}

var _ grading.Collaborators = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithKeyGenerator overrides how idempotency keys are produced.
func WithKeyGenerator(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.newKey = gen
		}
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:9080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: u.String(),
		http:    &http.Client{Timeout: defaultTimeout},
		newKey:  uuid.NewString,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Code  string          `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Curricula lists curricula.
func (c *Client) Curricula(ctx context.Context) ([]model.Curriculum, error) {
	var out []model.Curriculum
	return out, c.get(ctx, "/api/curricula", &out)
}

// AcademicYears lists academic years.
func (c *Client) AcademicYears(ctx context.Context) ([]model.AcademicYear, error) {
	var out []model.AcademicYear
	return out, c.get(ctx, "/api/academic-years", &out)
}

// LoadSchedules implements grading.Collaborators.
func (c *Client) LoadSchedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error) {
	var out []model.Schedule
	path := "/api/curricula/" + url.PathEscape(curriculumID) + "/schedules?academic_year_id=" + url.QueryEscape(academicYearID)
	return out, c.timed(ctx, "schedules", path, &out)
}

// LoadEvaluations implements grading.Collaborators.
func (c *Client) LoadEvaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error) {
	var out []model.Evaluation
	return out, c.timed(ctx, "evaluations", "/api/schedules/"+url.PathEscape(scheduleID)+"/evaluations", &out)
}

// LoadEvaluationSheet implements grading.Collaborators.
func (c *Client) LoadEvaluationSheet(ctx context.Context, evaluationID string) (model.Sheet, error) {
	var out model.Sheet
	return out, c.timed(ctx, "sheet", "/api/evaluations/"+url.PathEscape(evaluationID)+"/sheet", &out)
}

// Statistics fetches the statistics of an evaluation.
func (c *Client) Statistics(ctx context.Context, evaluationID string) (model.EvaluationStatistics, error) {
	var out model.EvaluationStatistics
	return out, c.get(ctx, "/api/evaluations/"+url.PathEscape(evaluationID)+"/statistics", &out)
}

// SaveGrades implements grading.Collaborators. Every call carries a fresh
// idempotency key. A 4xx error envelope becomes a rejected SaveResult; other
// failures are returned as errors.
func (c *Client) SaveGrades(ctx context.Context, evaluationID string, entries []model.GradeEntry) (model.SaveResult, error) {
	body, err := json.Marshal(struct {
		Grades []model.GradeEntry `json:"grades"`
	}{Grades: entries})
	if err != nil {
		return model.SaveResult{}, fmt.Errorf("encode grades: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/evaluations/"+url.PathEscape(evaluationID)+"/grades", bytes.NewReader(body))
	if err != nil {
		return model.SaveResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, c.newKey())

	status, env, err := c.do(req)
	if err != nil {
		return model.SaveResult{}, err
	}
	if types.ParseResultCode(env.Code) != types.ResultSuccess {
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			msg := env.Error
			if msg == "" {
				msg = genericSaveMessage
			}
			return model.Rejected(msg), nil
		}
		return model.SaveResult{}, remoteError(status, env.Error)
	}
	var data struct {
		Saved    int  `json:"saved"`
		Replayed bool `json:"replayed"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return model.SaveResult{}, fmt.Errorf("%w: decode save result: %w", ErrRemote, err)
		}
	}
	res := model.Saved(data.Saved)
	res.Replayed = data.Replayed
	return res, nil
}

func (c *Client) timed(ctx context.Context, tier, path string, out any) error {
	start := time.Now()
	err := c.get(ctx, path, out)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordCollaboratorLoad(tier, outcome, float64(time.Since(start).Milliseconds()))
	return err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	status, env, err := c.do(req)
	if err != nil {
		return err
	}
	if types.ParseResultCode(env.Code) != types.ResultSuccess {
		return remoteError(status, env.Error)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrRemote, path, err)
	}
	return nil
}

// do sends req and decodes the envelope. Transport failures and bodies that
// are not an envelope are errors.
func (c *Client) do(req *http.Request) (int, envelope, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, envelope{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, envelope{}, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Code == "" {
		return resp.StatusCode, envelope{}, remoteError(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode, env, nil
}

func remoteError(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%w: %d %s", ErrRemote, status, msg)
}
