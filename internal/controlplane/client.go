package controlplane

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

	"github.com/virtualdesk/fleet-console/internal/domain"
)

// Client defines the interface for talking to the fleet control-plane.
type Client interface {
	ListResources(ctx context.Context, filter domain.ResourceFilter) ([]*domain.Resource, error)
	GetResource(ctx context.Context, id string) (*domain.Resource, error)
	CostSummary(ctx context.Context) (*domain.CostSummary, error)
	ListFindings(ctx context.Context, severity domain.FindingSeverity) ([]*domain.Finding, error)

	// SubmitBatch posts a bulk operation to the given action endpoint and
	// returns the control-plane assigned batch ID.
	SubmitBatch(ctx context.Context, endpoint string, req *SubmitRequest) (string, error)
	// BatchStatus fetches the current status of an in-flight batch.
	BatchStatus(ctx context.Context, batchID string) (*BatchStatus, error)
	// CancelBatch requests best-effort cancellation. Advisory: in-flight
	// items on the remote side may still complete.
	CancelBatch(ctx context.Context, batchID string) error
}

// SubmitRequest is the wire format for a batch submission.
type SubmitRequest struct {
	ResourceIDs []string          `json:"resourceIds"`
	Action      string            `json:"action"`
	Options     map[string]string `json:"options,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// submitResponse is the expected 2xx response body for a submission.
type submitResponse struct {
	BatchID string `json:"batchId"`
}

// BatchStatus is the wire format of the per-batch status endpoint.
type BatchStatus struct {
	Status     domain.BatchState    `json:"status"`
	Completed  int                  `json:"completed"`
	Successful int                  `json:"successful"`
	Failed     int                  `json:"failed"`
	Skipped    int                  `json:"skipped"`
	Results    []domain.ItemOutcome `json:"results"`
}

// HTTPClient talks to a live control-plane service.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// New creates a control-plane client for the given base URL and API token.
func New(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient creates a control-plane client that delegates
// authentication to the supplied HTTP client (e.g. an OAuth2 token source).
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// maxErrorBody caps how much of an error response we keep.
const maxErrorBody = 4 << 10

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// getJSON performs a GET and decodes a 2xx JSON response into out.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("control-plane returned %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListResources lists fleet resources matching the filter.
func (c *HTTPClient) ListResources(ctx context.Context, filter domain.ResourceFilter) ([]*domain.Resource, error) {
	q := url.Values{}
	if filter.State != "" {
		q.Set("state", string(filter.State))
	}
	if filter.Pool != "" {
		q.Set("pool", filter.Pool)
	}
	if filter.Region != "" {
		q.Set("region", filter.Region)
	}
	if filter.Query != "" {
		q.Set("q", filter.Query)
	}
	path := "/resources"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resources []*domain.Resource
	if err := c.getJSON(ctx, path, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// GetResource fetches one resource by ID.
func (c *HTTPClient) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	var resource domain.Resource
	if err := c.getJSON(ctx, "/resources/"+url.PathEscape(id), &resource); err != nil {
		return nil, err
	}
	return &resource, nil
}

// CostSummary fetches the fleet cost aggregation.
func (c *HTTPClient) CostSummary(ctx context.Context) (*domain.CostSummary, error) {
	var summary domain.CostSummary
	if err := c.getJSON(ctx, "/costs/summary", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListFindings fetches IAM/security findings, optionally by severity.
func (c *HTTPClient) ListFindings(ctx context.Context, severity domain.FindingSeverity) ([]*domain.Finding, error) {
	path := "/findings"
	if severity != "" {
		path += "?severity=" + url.QueryEscape(string(severity))
	}
	var findings []*domain.Finding
	if err := c.getJSON(ctx, path, &findings); err != nil {
		return nil, err
	}
	return findings, nil
}

// SubmitBatch posts the submission and returns the assigned batch ID. Any
// transport failure or non-2xx response yields a *domain.SubmissionError;
// submissions are never retried here.
func (c *HTTPClient) SubmitBatch(ctx context.Context, endpoint string, subReq *SubmitRequest) (string, error) {
	body, err := json.Marshal(subReq)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &domain.SubmissionError{Action: subReq.Action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &domain.SubmissionError{
			Action:     subReq.Action,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", &domain.SubmissionError{Action: subReq.Action, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if sr.BatchID == "" {
		return "", &domain.SubmissionError{Action: subReq.Action, Err: fmt.Errorf("control-plane returned no batch ID")}
	}
	return sr.BatchID, nil
}

// BatchStatus fetches the status of one batch. Errors here are treated as
// transient by the tracker; they do not carry submission semantics.
func (c *HTTPClient) BatchStatus(ctx context.Context, batchID string) (*BatchStatus, error) {
	var status BatchStatus
	if err := c.getJSON(ctx, "/bulk-operations/"+url.PathEscape(batchID)+"/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CancelBatch fires a cancellation request. No response body is required.
func (c *HTTPClient) CancelBatch(ctx context.Context, batchID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/bulk-operations/"+url.PathEscape(batchID)+"/cancel", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("control-plane returned %d for cancel", resp.StatusCode)
	}
	return nil
}
