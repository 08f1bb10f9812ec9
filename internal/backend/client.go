// Package backend talks to the course platform that owns courses, question
// banks, and created tests. The composer only depends on the Service
// interface; transport details live in HTTPClient.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mind-engage/testcraft/internal/bank"
	"github.com/mind-engage/testcraft/internal/compose"
)

type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateTestRequest carries the committed composition. Questions are the
// effective (override-resolved) views in display order; the platform owns
// rendering and export from here.
type CreateTestRequest struct {
	Title     string                      `json:"title"`
	Config    compose.TestConfig          `json:"config"`
	Questions []compose.EffectiveQuestion `json:"questions"`
}

type Service interface {
	ListCourses(ctx context.Context) ([]Course, error)
	ListBanks(ctx context.Context, courseID string) ([]bank.Node, error)
	CreateTest(ctx context.Context, courseID string, req CreateTestRequest) (testID string, err error)
}

// HTTPClient is the production Service over the platform's REST API.
type HTTPClient struct {
	BaseURL string
	Token   string // bearer token for the platform API
	HTTP    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) ListCourses(ctx context.Context) ([]Course, error) {
	var out []Course
	if err := c.getJSON(ctx, "/api/courses", &out); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) ListBanks(ctx context.Context, courseID string) ([]bank.Node, error) {
	var out []bank.Node
	path := "/api/courses/" + url.PathEscape(courseID) + "/banks"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) CreateTest(ctx context.Context, courseID string, req CreateTestRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("create test: %w", err)
	}
	path := "/api/courses/" + url.PathEscape(courseID) + "/tests"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("create test: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", httpError("create test", resp)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("create test decode: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create test: platform returned no id")
	}
	return created.ID, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError("get "+path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func httpError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%s: platform returned %d: %s", op, resp.StatusCode, msg)
}
