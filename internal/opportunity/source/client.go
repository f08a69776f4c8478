// Package source provides the HTTP client for the external reporting source.
// It is the only place that knows the source's wire format; everything else
// works with the Opportunity shape.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/platform/config"
	"slamonitor_backend/platform/logger"
)

// Client is the HTTP client for the reporting source.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// Record is one raw row as returned by the reporting source.
type Record struct {
	OrderNo      string `json:"orderNo"`
	CustomerName string `json:"name"`
	Address      string `json:"address"`
	Supervisor   string `json:"supervisor"`
	CreatedAt    string `json:"createTime"`
	Organization string `json:"orgName"`
	StatusCode   int    `json:"statusCode"`
}

type listResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    []Record `json:"data"`
}

// New creates a new reporting-source client.
func New(cfg config.ReportSourceConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GetReportAPIURL(), "/"),
		apiKey:     cfg.GetReportAPIKey(),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// FetchOpen returns all currently open/monitored opportunities.
func (c *Client) FetchOpen(ctx context.Context) ([]opportunity.Opportunity, error) {
	reqURL := c.baseURL + "/api/v1/opportunities/open"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report source request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("report source returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload listResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode report source response: %w", err)
	}
	if payload.Code != 0 {
		return nil, fmt.Errorf("report source error %d: %s", payload.Code, payload.Message)
	}

	return c.mapRecords(payload.Data), nil
}

// mapRecords converts raw rows to opportunities. Rows with missing required
// fields or unknown status codes are skipped, not fatal.
func (c *Client) mapRecords(records []Record) []opportunity.Opportunity {
	results := make([]opportunity.Opportunity, 0, len(records))
	for _, rec := range records {
		if rec.OrderNo == "" || rec.Organization == "" {
			c.log.Warn("report source row missing required fields", "orderNo", rec.OrderNo, "organization", rec.Organization)
			continue
		}

		status, ok := statusFromCode(rec.StatusCode)
		if !ok {
			c.log.Warn("report source row has unknown status code", "orderNo", rec.OrderNo, "statusCode", rec.StatusCode)
			continue
		}

		createdAt, err := parseSourceTime(rec.CreatedAt)
		if err != nil {
			c.log.Warn("report source row has invalid create time", "orderNo", rec.OrderNo, "createTime", rec.CreatedAt)
			continue
		}

		results = append(results, opportunity.Opportunity{
			OrderNo:      rec.OrderNo,
			CustomerName: rec.CustomerName,
			Address:      rec.Address,
			Organization: rec.Organization,
			Supervisor:   rec.Supervisor,
			Status:       status,
			CreatedAt:    createdAt,
		})
	}
	return results
}

func statusFromCode(code int) (opportunity.Status, bool) {
	switch code {
	case 1:
		return opportunity.StatusPendingAppointment, true
	case 2:
		return opportunity.StatusNotVisiting, true
	case 3:
		return opportunity.StatusAppointed, true
	case 4:
		return opportunity.StatusCompleted, true
	case 5:
		return opportunity.StatusCancelled, true
	default:
		return "", false
	}
}

func parseSourceTime(value string) (time.Time, error) {
	// The source reports local wall-clock time without a zone.
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", value)
}
