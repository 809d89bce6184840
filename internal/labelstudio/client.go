// Package labelstudio mirrors tasks into the Label Studio annotation
// platform and retrieves human corrections back.
//
// The platform hands out short-lived access tokens in exchange for a
// long-lived refresh credential. One client instance owns one token
// and refreshes it under a lock, so concurrent calls for different
// tasks never observe a half-written token.
package labelstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"transcript-hub/internal/apperr"
	"transcript-hub/internal/domain"
)

// tokenMargin is deliberately shorter than the platform's stated
// five-minute token lifetime so calls never race expiry.
const tokenMargin = 4*time.Minute + 30*time.Second

// transcriptionFromName is the annotation schema field carrying
// per-segment transcription text.
const transcriptionFromName = "transcription"

// Config holds the connection settings for one platform project.
type Config struct {
	BaseURL      string
	RefreshToken string
	ProjectID    int64
	PageSize     int
}

// Client is a resilient Label Studio API client with token lifecycle
// management. Safe for concurrent use.
type Client struct {
	cfg   Config
	httpc *http.Client
	now   func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient constructs a client for one project.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 30 * time.Second},
		now:   time.Now,
	}
}

// refreshAccessToken exchanges the refresh credential for a fresh
// access token. Callers must hold c.mu.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	payload, err := json.Marshal(refreshRequest{Refresh: c.cfg.RefreshToken})
	if err != nil {
		return fmt.Errorf("encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/token/refresh", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeAuth, err, "token refresh failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.CodeAuth, err, "read refresh response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.New(apperr.CodeAuth, "token refresh failed: %d - %s", resp.StatusCode, string(body))
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Access == "" {
		return apperr.New(apperr.CodeAuth, "token refresh returned no access token")
	}

	c.accessToken = parsed.Access
	c.tokenExpiry = c.now().Add(tokenMargin)
	return nil
}

// token returns a valid access token, refreshing when missing or
// expired. Check, refresh, and read happen under one lock.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken == "" || !c.now().Before(c.tokenExpiry) {
		if err := c.refreshAccessToken(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

// forceRefresh drops the cached token and fetches a new one.
func (c *Client) forceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshAccessToken(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

// do performs one authenticated JSON call. An unauthorized response
// triggers exactly one token refresh and retry; a second unauthorized
// response is surfaced as a fatal auth error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	status, respBody, err := c.send(ctx, method, path, query, body, token)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		token, err = c.forceRefresh(ctx)
		if err != nil {
			return err
		}
		status, respBody, err = c.send(ctx, method, path, query, body, token)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return apperr.New(apperr.CodeAuth, "unauthorized after token refresh: %s %s", method, path)
		}
	}

	if status == http.StatusNotFound {
		return apperr.New(apperr.CodeNotFound, "%s %s: not found", method, path)
	}
	if status < 200 || status > 299 {
		return apperr.New(apperr.CodeUpstream, "%s %s: %d - %s", method, path, status, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperr.Wrap(apperr.CodeUpstream, err, "decode response of %s %s", method, path)
		}
	}
	return nil
}

// send performs one HTTP round trip with the given bearer token.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.CodeUpstream, err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.CodeUpstream, err, "read response of %s %s", method, path)
	}
	return resp.StatusCode, respBody, nil
}

// CreateTaskParams is the input for mirroring one task.
type CreateTaskParams struct {
	AudioURL string
	Segments []domain.Segment
	TaskID   string
	Filename string
}

// validSegment rejects malformed bounds before building predictions.
func validSegment(seg domain.Segment) bool {
	if math.IsNaN(seg.Start) || math.IsNaN(seg.End) || math.IsInf(seg.Start, 0) || math.IsInf(seg.End, 0) {
		return false
	}
	return seg.Start >= 0 && seg.Start < seg.End
}

// CreateTask mirrors a task into the platform via the bulk-import
// endpoint and resolves the created task's identity.
//
// The single-task create endpoint silently drops pre-annotations, so
// import is required for predictions to persist. Import does not
// return the created id; identity resolution queries recent project
// tasks for the embedded internal task id.
func (c *Client) CreateTask(ctx context.Context, params CreateTaskParams) (Created, error) {
	if len(params.Segments) == 0 {
		return Created{}, apperr.New(apperr.CodeValidation, "no segments available, task must be transcribed before mirroring")
	}

	valid := lo.Filter(params.Segments, func(seg domain.Segment, _ int) bool {
		return validSegment(seg)
	})

	items := lo.Map(valid, func(seg domain.Segment, _ int) PredictionItem {
		return PredictionItem{
			FromName: transcriptionFromName,
			ToName:   "audio",
			Type:     "textarea",
			Value: predictionValue{
				Start: seg.Start,
				End:   seg.End,
				Text:  []string{seg.Text},
			},
		}
	})

	// All-invalid segment lists still import, just without predictions;
	// the empty array keeps the platform from rejecting a null field.
	predictions := make([]prediction, 0, 1)
	if len(items) > 0 {
		predictions = append(predictions, prediction{
			ModelVersion: "whisper-1",
			Score:        0.95,
			Result:       items,
		})
	}

	payload := []importTask{{
		Data: taskData{
			Audio:    params.AudioURL,
			TaskID:   params.TaskID,
			Filename: params.Filename,
		},
		Predictions: predictions,
	}}

	var imported ImportResponse
	importPath := fmt.Sprintf("/api/projects/%d/import", c.cfg.ProjectID)
	if err := c.do(ctx, http.MethodPost, importPath, nil, payload, &imported); err != nil {
		return Created{}, err
	}

	id, err := c.resolveTaskID(ctx, params.TaskID)
	if err != nil {
		return Created{}, err
	}
	return Created{ID: id, URL: fmt.Sprintf("%s/tasks/%d", c.cfg.BaseURL, id)}, nil
}

// resolveTaskID finds the imported task among recently created project
// tasks. Duplicate imports are possible, so of the tasks carrying our
// internal id it prefers one holding predictions, breaking ties by
// newest creation time. When no task carries the id, the same rule is
// applied over the whole queried page; this can pick a neighbor's task
// under concurrent imports, a known race inherited from the platform's
// id-less import response.
func (c *Client) resolveTaskID(ctx context.Context, internalTaskID string) (int64, error) {
	query := url.Values{"page_size": []string{fmt.Sprintf("%d", c.cfg.PageSize)}}

	var page taskPage
	listPath := fmt.Sprintf("/api/projects/%d/tasks", c.cfg.ProjectID)
	if err := c.do(ctx, http.MethodGet, listPath, query, nil, &page); err != nil {
		return 0, err
	}

	matches := lo.Filter(page.Tasks, func(task QueriedTask, _ int) bool {
		return task.Data.TaskID == internalTaskID
	})
	if len(matches) == 0 {
		matches = page.Tasks
	}
	if len(matches) == 0 {
		return 0, apperr.New(apperr.CodeUpstream, "no platform task found after import of %s", internalTaskID)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if (a.TotalPredictions > 0) != (b.TotalPredictions > 0) {
			return a.TotalPredictions > 0
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return matches[0].ID, nil
}

// GetTask reads one platform task.
func (c *Client) GetTask(ctx context.Context, taskID int64) (QueriedTask, error) {
	var task QueriedTask
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d", taskID), nil, nil, &task)
	return task, err
}

// GetAnnotations returns the raw annotation list for a platform task.
func (c *Client) GetAnnotations(ctx context.Context, taskID int64) ([]Annotation, error) {
	var annotations []Annotation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/annotations", taskID), nil, nil, &annotations)
	return annotations, err
}

// UpdateTask applies a generic partial patch to a platform task.
func (c *Client) UpdateTask(ctx context.Context, taskID int64, patch any) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/tasks/%d", taskID), nil, patch, nil)
}

// DeleteTask removes a platform task. A task that is already absent
// counts as success: internal and platform records can be deleted
// independently.
func (c *Client) DeleteTask(ctx context.Context, taskID int64) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", taskID), nil, nil, nil)
	if apperr.IsNotFound(err) {
		return nil
	}
	return err
}

// GetProject reads the configured project's metadata.
func (c *Client) GetProject(ctx context.Context) (Project, error) {
	var project Project
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d", c.cfg.ProjectID), nil, nil, &project)
	return project, err
}

// ReviewURL builds the project data view URL for a platform task.
func (c *Client) ReviewURL(taskID int64) string {
	return fmt.Sprintf("%s/projects/%d/data?tab=1&task=%d", c.cfg.BaseURL, c.cfg.ProjectID, taskID)
}
