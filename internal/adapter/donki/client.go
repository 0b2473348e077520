package donki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
	"github.com/couchcryptid/cme-data-etl/internal/observability"
	"github.com/couchcryptid/cme-data-etl/internal/pipeline"
)

// DefaultBaseURL is the CME analysis endpoint of NASA's DONKI API.
const DefaultBaseURL = "https://api.nasa.gov/DONKI/CMEAnalysis"

// Fixed query filters applied to every request.
const (
	minSpeed       = "500"
	minHalfAngle   = "30"
	catalog        = "ALL"
	mostAccurate   = "true"
	maxBodyBytes   = 32 << 20
	maxErrorDetail = 512
)

// Archiver stores raw API responses for later inspection.
type Archiver interface {
	Archive(ctx context.Context, resp domain.RawResponse) error
}

// StatusError is returned when the API answers with anything but 200 OK.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorDetail {
		body = body[:maxErrorDetail] + "..."
	}
	return fmt.Sprintf("donki API error: status %d: %s", e.StatusCode, body)
}

// Client implements pipeline.Extractor against the DONKI CMEAnalysis API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	archiver   Archiver
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithArchiver stores every raw response body through a. Archive failures are
// logged and never fail the extraction.
func WithArchiver(a Archiver) Option {
	return func(c *Client) { c.archiver = a }
}

// NewClient creates a DONKI client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract fetches the CME analyses in the lookback window ending at date and
// builds the raw batch. It makes exactly one request and never retries.
func (c *Client) Extract(ctx context.Context, date domain.ProcessDate) (pipeline.ExtractResult, error) {
	window := date.Window()
	fullURL, redacted, err := c.requestURL(window)
	if err != nil {
		return pipeline.ExtractResult{}, err
	}
	res := pipeline.ExtractResult{Window: window, URL: redacted}
	c.logger.Info("requesting DONKI CME analyses", "url", redacted)

	body, status, err := c.get(ctx, fullURL, redacted)
	if err != nil {
		return res, err
	}
	res.StatusCode = status

	c.logger.Debug("DONKI response", "status", status, "bytes", len(body), "body", string(body))
	c.archive(ctx, domain.RawResponse{
		ProcessDate: date.String(),
		URL:         redacted,
		StatusCode:  status,
		Body:        string(body),
		FetchedAt:   domain.Now(),
	})

	if status != http.StatusOK {
		return res, &StatusError{StatusCode: status, Body: string(body)}
	}

	records, err := decode(body)
	if err != nil {
		return res, err
	}
	batch, err := domain.NewRawBatch(records)
	if err != nil {
		return res, err
	}
	res.Records = batch
	return res, nil
}

func (c *Client) requestURL(w domain.Window) (full, redacted string, err error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", "", fmt.Errorf("parse DONKI base URL: %w", err)
	}
	params := url.Values{
		"startDate":        {w.Start.String()},
		"endDate":          {w.End.String()},
		"mostAccurateOnly": {mostAccurate},
		"speed":            {minSpeed},
		"halfAngle":        {minHalfAngle},
		"catalog":          {catalog},
		"api_key":          {c.apiKey},
	}
	u.RawQuery = params.Encode()
	full = u.String()

	params.Set("api_key", "REDACTED")
	u.RawQuery = params.Encode()
	return full, u.String(), nil
}

func (c *Client) get(ctx context.Context, fullURL, redacted string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := domain.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("error", start)
		// url.Error carries the request URL, which contains the API key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redacted
		}
		return nil, 0, fmt.Errorf("donki request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read donki response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) observe(status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.APIRequestDuration.WithLabelValues(status).Observe(domain.Since(start).Seconds())
}

func (c *Client) archive(ctx context.Context, resp domain.RawResponse) {
	if c.archiver == nil {
		return
	}
	outcome := "success"
	if err := c.archiver.Archive(ctx, resp); err != nil {
		outcome = "error"
		c.logger.Warn("archive raw response failed", "error", err)
	}
	if c.metrics != nil {
		c.metrics.ArchiveWrites.WithLabelValues(outcome).Inc()
	}
}

// decode parses the response array. DONKI answers an empty window with either
// "[]" or an empty body; both yield an empty batch.
func decode(body []byte) ([]domain.RawCME, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []domain.RawCME{}, nil
	}
	var records []domain.RawCME
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode donki response: %w", err)
	}
	return records, nil
}

var _ pipeline.Extractor = (*Client)(nil)
