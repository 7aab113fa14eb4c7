package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"importdesk/internal/core"
	applog "importdesk/internal/log"
)

const maxResponseBody = 32 << 20

// Client talks to the expense tracker REST API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *applog.Logger
}

var _ Backend = (*Client)(nil)

// New builds a client whose mutating requests go through a CSRFTransport.
func New(cfg Config, logger *applog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	if logger == nil {
		logger = applog.Discard()
	}

	transport := NewCSRFTransport(cfg.Transport, cfg.endpoint("/api/csrf-token"), logger)
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.timeout(), Transport: transport},
		logger: logger.WithComponent(applog.ComponentBackend),
	}, nil
}

// ParseCSV posts the file as multipart field "csv".
func (c *Client) ParseCSV(ctx context.Context, filename string, r io.Reader) (ParseResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("csv", filename)
	if err != nil {
		return ParseResult{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return ParseResult{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return ParseResult{}, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint("/api/import/csv"), &buf)
	if err != nil {
		return ParseResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, status, err := c.do(req, FallbackUpload)
	if err != nil {
		return ParseResult{}, err
	}

	var payload parseResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return ParseResult{}, &APIError{Status: status, Message: errorMessage(body, FallbackUpload), Err: err}
	}

	count := len(payload.Expenses)
	if payload.Count != nil {
		count = *payload.Count
	}
	summary := core.Summarize(payload.Expenses)
	return ParseResult{
		UploadResult: core.UploadResult{
			Message: payload.Message,
			Count:   count,
			Total:   core.NewAmount(summary.Total),
		},
		Filename: payload.Filename,
		Expenses: payload.Expenses,
	}, nil
}

// ConfirmImport posts the records as a JSON array.
func (c *Client) ConfirmImport(ctx context.Context, records []core.PreviewExpense) (core.ConfirmResult, error) {
	if records == nil {
		records = []core.PreviewExpense{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return core.ConfirmResult{}, fmt.Errorf("encode records: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint("/api/import/confirm"), bytes.NewReader(data))
	if err != nil {
		return core.ConfirmResult{}, fmt.Errorf("build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req, FallbackConfirm)
	if err != nil {
		return core.ConfirmResult{}, err
	}

	var payload confirmResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.ConfirmResult{}, &APIError{Status: status, Message: errorMessage(body, FallbackConfirm), Err: err}
	}

	result := core.ConfirmResult{Message: payload.Message, Count: len(records), Total: payload.Total}
	if payload.Count != nil {
		result.Count = *payload.Count
	}
	if result.Total.IsMissing() {
		result.Total = core.NewAmount(core.Summarize(records).Total)
	}
	return result, nil
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.getJSON(ctx, "/api/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) ListExpenses(ctx context.Context, page, limit int) (ExpensePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out ExpensePage
	if err := c.getJSON(ctx, "/api/expenses?"+q.Encode(), &out); err != nil {
		return ExpensePage{}, err
	}
	return out, nil
}

func (c *Client) ListRules(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	if err := c.getJSON(ctx, "/api/categorization-rules", &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) CreateRule(ctx context.Context, in RuleInput) (Rule, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return Rule{}, fmt.Errorf("encode rule: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint("/api/categorization-rules"), bytes.NewReader(data))
	if err != nil {
		return Rule{}, fmt.Errorf("build rule request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req, FallbackRequest)
	if err != nil {
		return Rule{}, err
	}
	var rule Rule
	if err := json.Unmarshal(body, &rule); err != nil {
		return Rule{}, &APIError{Status: status, Message: errorMessage(body, FallbackRequest), Err: err}
	}
	return rule, nil
}

func (c *Client) DeleteRule(ctx context.Context, id int) error {
	path := "/api/categorization-rules/" + strconv.Itoa(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	_, _, err = c.do(req, FallbackRequest)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	body, status, err := c.do(req, FallbackRequest)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &APIError{Status: status, Message: errorMessage(body, FallbackRequest), Err: err}
	}
	return nil
}

// do sends req and returns the body of a 2xx answer. Anything else becomes an
// *APIError; transport failures are wrapped.
func (c *Client) do(req *http.Request, fallback string) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(req.Context(), "backend request failed",
			applog.FieldMethod, req.Method, applog.FieldPath, req.URL.Path, applog.FieldError, err)
		return nil, 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(req.Context(), "backend request",
		applog.FieldMethod, req.Method,
		applog.FieldPath, req.URL.Path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, parseError(resp, fallback)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, &APIError{Status: resp.StatusCode, Message: fallback, Err: err}
	}
	return body, resp.StatusCode, nil
}
