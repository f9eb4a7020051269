package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// Client runs GAQL queries against the Google Ads REST API (searchStream).
type Client struct {
	baseURL        string
	customerID     string
	developerToken string
	tokenSource    func(ctx context.Context) (string, error)
	httpClient     *http.Client
	logger         *logging.Logger
}

// NewClient builds the Google Ads client. tokenSource supplies a fresh OAuth
// access token per call.
func NewClient(customerID, developerToken string, tokenSource func(ctx context.Context) (string, error), logger *logging.Logger) (*Client, error) {
	if customerID == "" || developerToken == "" {
		return nil, errors.New("ads: customer id and developer token required")
	}
	if tokenSource == nil {
		return nil, errors.New("ads: token source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:        "https://googleads.googleapis.com/v18",
		customerID:     strings.ReplaceAll(customerID, "-", ""),
		developerToken: developerToken,
		tokenSource:    tokenSource,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         logger,
	}, nil
}

// CampaignStats is one campaign row from the Ads API.
type CampaignStats struct {
	CampaignID   string `json:"campaignId"`
	CampaignName string `json:"campaignName"`
	Impressions  int64  `json:"impressions"`
	Clicks       int64  `json:"clicks"`
	CostMicros   int64  `json:"costMicros"`
}

type searchStreamBatch struct {
	Results []struct {
		Campaign struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		} `json:"campaign"`
		Metrics struct {
			Impressions json.Number `json:"impressions"`
			Clicks      json.Number `json:"clicks"`
			CostMicros  json.Number `json:"costMicros"`
		} `json:"metrics"`
	} `json:"results"`
}

// FetchCampaignStats pulls per-campaign spend for a date window.
func (c *Client) FetchCampaignStats(ctx context.Context, from, to time.Time) ([]CampaignStats, error) {
	gaql := fmt.Sprintf(`
		SELECT campaign.id, campaign.name, metrics.impressions, metrics.clicks, metrics.cost_micros
		FROM campaign
		WHERE segments.date BETWEEN '%s' AND '%s'
		AND campaign.status = 'ENABLED'`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	batches, err := c.searchStream(ctx, gaql)
	if err != nil {
		return nil, err
	}

	var out []CampaignStats
	for _, batch := range batches {
		for _, row := range batch.Results {
			stats := CampaignStats{
				CampaignID:   row.Campaign.ID.String(),
				CampaignName: row.Campaign.Name,
			}
			stats.Impressions, _ = row.Metrics.Impressions.Int64()
			stats.Clicks, _ = row.Metrics.Clicks.Int64()
			stats.CostMicros, _ = row.Metrics.CostMicros.Int64()
			out = append(out, stats)
		}
	}
	return out, nil
}

func (c *Client) searchStream(ctx context.Context, gaql string) ([]searchStreamBatch, error) {
	token, err := c.tokenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("ads: token source failed: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"query": gaql})
	if err != nil {
		return nil, fmt.Errorf("ads: query encode failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s/customers/%s/googleAds:searchStream", c.baseURL, c.customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ads: request build failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("developer-token", c.developerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ads: api unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ads: api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var batches []searchStreamBatch
	if err := json.Unmarshal(raw, &batches); err != nil {
		return nil, fmt.Errorf("ads: response decode failed: %w", err)
	}
	return batches, nil
}
