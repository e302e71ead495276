package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/pkg/logger"
	"github.com/socialpulse/pkg/ratelimit"
)

// RawItem is one provider-native dataset entry. Its shape is
// platform-specific and opaque here; the mapper layer extracts what it
// understands.
type RawItem = json.RawMessage

// Client talks to the external scraping provider. Scraping is a two-phase
// protocol: StartJob kicks off a run now, and the materialized dataset is
// fetched later when the provider signals completion out of band. The two
// calls share no state beyond the ids the provider hands back.
type Client struct {
	baseURL     string
	token       string
	actors      map[string]string
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a new provider API client
func NewClient(cfg config.ProviderConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		actors:  cfg.Actors,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("provider"),
	}
}

// do performs an HTTP request with authentication and rate limiting
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterProvider); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	// Prepare request body
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Msg("Making provider API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.log.Debug().
		Int("status", resp.StatusCode).
		Msg("Provider API response")

	return resp, nil
}

// startJobRequest is the provider's run-creation payload
type startJobRequest struct {
	Target string `json:"target"`
	Limit  int    `json:"limit"`
}

// startJobResponse is the provider's run-creation response
type startJobResponse struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

// StartJob starts an asynchronous scrape run for one target and returns the
// provider-side job id. The job id is only logged for correlation; the
// completed dataset arrives later through the webhook boundary.
func (c *Client) StartJob(ctx context.Context, platform, target string, limit int) (string, error) {
	actor, ok := c.actors[platform]
	if !ok {
		return "", fmt.Errorf("no provider actor configured for platform %q", platform)
	}

	resp, err := c.do(ctx, http.MethodPost, "/actors/"+actor+"/runs", startJobRequest{
		Target: target,
		Limit:  limit,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &StartError{
			Platform:   platform,
			Target:     target,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var result startJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode run response: %w", err)
	}

	c.log.Info().
		Str("platform", platform).
		Str("target", target).
		Str("job_id", result.Data.ID).
		Str("dataset_id", result.Data.DefaultDatasetID).
		Msg("Scrape job started")

	return result.Data.ID, nil
}

// FetchDataset retrieves all items of a completed scrape run's dataset
func (c *Client) FetchDataset(ctx context.Context, datasetID string) ([]RawItem, error) {
	log := c.log.WithDataset(datasetID)

	resp, err := c.do(ctx, http.MethodGet, "/datasets/"+datasetID+"/items", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &FetchError{
			DatasetID:  datasetID,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var items []RawItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", datasetID, err)
	}

	log.Info().
		Int("items", len(items)).
		Msg("Fetched dataset")

	return items, nil
}
