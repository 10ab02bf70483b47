package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/metrics"
	"github.com/jonathan/model-builder/internal/schemas"
	"github.com/jonathan/model-builder/internal/types"
	schemadocs "github.com/jonathan/model-builder/schemas"
)

// Operation names used in errors, logs and metrics
const (
	OpUploadDataset = "upload_dataset"
	OpListDatasets  = "list_datasets"
	OpExtractIntent = "extract_intent"
	OpTrain         = "train"
	OpGetModel      = "get_model"
	OpDeleteModel   = "delete_model"
)

const maxResponseBytes = 8 << 20

// Options configures New
type Options struct {
	BaseURL  string
	APIToken string

	// Timeout bounds each request; zero leaves it to the caller's context
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client talks to the ML backend REST API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiToken   string
	timeout    time.Duration
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a backend client
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base URL required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL:    baseURL,
		apiToken:   strings.TrimSpace(opts.APIToken),
		timeout:    opts.Timeout,
		httpClient: hc,
		log:        log,
	}, nil
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string { return c.baseURL }

// UploadDataset creates a dataset record from a file (POST /datasets/).
func (c *Client) UploadDataset(ctx context.Context, req UploadRequest) (*types.Dataset, error) {
	if req.File == nil {
		return nil, &APIError{Operation: OpUploadDataset, Message: "no file attached"}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fileName := req.FileName
	if fileName == "" {
		fileName = "dataset.csv"
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, &APIError{Operation: OpUploadDataset, Message: "failed to build upload", Cause: err}
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return nil, &APIError{Operation: OpUploadDataset, Message: "failed to read upload", Cause: err}
	}
	name := req.Name
	if name == "" {
		name = fileName
	}
	fields := map[string]string{
		"name":        name,
		"description": req.Description,
		"project":     strconv.Itoa(req.ProjectID),
	}
	for _, key := range []string{"name", "description", "project"} {
		if err := mw.WriteField(key, fields[key]); err != nil {
			return nil, &APIError{Operation: OpUploadDataset, Message: "failed to build upload", Cause: err}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, &APIError{Operation: OpUploadDataset, Message: "failed to build upload", Cause: err}
	}

	var out types.Dataset
	if err := c.do(ctx, OpUploadDataset, http.MethodPost, "/datasets/", mw.FormDataContentType(), &buf, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDatasets returns one page of a project's datasets (GET /datasets/?project=&page=).
// A page below 1 requests the first page.
func (c *Client) ListDatasets(ctx context.Context, projectID, page int) (*types.DatasetPage, error) {
	q := url.Values{}
	q.Set("project", strconv.Itoa(projectID))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}

	var out types.DatasetPage
	if err := c.do(ctx, OpListDatasets, http.MethodGet, "/datasets/?"+q.Encode(), "", nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractIntent asks the backend to derive an intent from a prompt (POST /extract-intent/).
// success:false is returned as an *APIError even when the status is 2xx.
func (c *Client) ExtractIntent(ctx context.Context, req ExtractIntentRequest) (*ExtractIntentResponse, error) {
	var out ExtractIntentResponse
	if err := c.doJSON(ctx, OpExtractIntent, http.MethodPost, "/extract-intent/", req, &out, schemadocs.ExtractionResponse); err != nil {
		return nil, err
	}
	return &out, nil
}

// Train compiles the intent into a plan and runs it (POST /train/).
func (c *Client) Train(ctx context.Context, req TrainRequest) (*TrainResponse, error) {
	var out TrainResponse
	if err := c.doJSON(ctx, OpTrain, http.MethodPost, "/train/", req, &out, schemadocs.TrainingResponse); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetModel fetches a model record (GET /models/{id}/).
func (c *Client) GetModel(ctx context.Context, id int) (*types.ModelRecord, error) {
	var out types.ModelRecord
	if err := c.do(ctx, OpGetModel, http.MethodGet, fmt.Sprintf("/models/%d/", id), "", nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteModel removes a model record (DELETE /models/{id}/).
func (c *Client) DeleteModel(ctx context.Context, id int) error {
	return c.do(ctx, OpDeleteModel, http.MethodDelete, fmt.Sprintf("/models/%d/", id), "", nil, nil, "")
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any, schema string) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return &APIError{Operation: op, Message: "failed to encode request", Cause: err}
	}
	return c.do(ctx, op, method, path, "application/json", &buf, out, schema)
}

// do sends one request. It never retries; callers decide on retry policy
// using APIError.Transport.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any, schema string) (err error) {
	start := time.Now()
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		metrics.BackendRequestCount.WithLabelValues(op, outcomeLabel(err)).Inc()
		if err != nil {
			c.log.Warn("backend request failed", "operation", op, "method", method, "path", path, "error", err)
			return
		}
		c.log.Debug("backend request", "operation", op, "method", method, "path", path, "duration_ms", time.Since(start).Milliseconds())
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Operation: op, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Operation: op, Transport: true, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Operation: op, Status: resp.StatusCode, Transport: true, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Operation: op, Status: resp.StatusCode, Message: parseErrorBody(raw)}
	}
	if out == nil {
		return nil
	}

	if schema != "" {
		doc, err := schemadocs.Get(schema)
		if err != nil {
			return &APIError{Operation: op, Status: resp.StatusCode, Message: "malformed response", Cause: err}
		}
		if err := schemas.ValidateJSONBytes(doc, raw); err != nil {
			// a failed envelope may still carry a usable error message
			if msg := parseErrorBody(raw); msg != "" && !successful(raw) {
				return &APIError{Operation: op, Status: resp.StatusCode, Message: msg}
			}
			return &APIError{Operation: op, Status: resp.StatusCode, Message: "malformed response", Cause: err}
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Operation: op, Status: resp.StatusCode, Message: "malformed response", Cause: err}
	}

	if env, ok := out.(envelope); ok && !env.succeeded() {
		return &APIError{Operation: op, Status: resp.StatusCode, Message: strings.TrimSpace(env.failureMessage())}
	}
	return nil
}

func successful(raw []byte) bool {
	var body struct {
		Success bool `json:"success"`
	}
	return json.Unmarshal(raw, &body) == nil && body.Success
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransport(err):
		return "transport"
	default:
		return "rejected"
	}
}
