package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rumble-backup/internal/utils"
	"rumble-backup/pkg/models"
)

// StatusResponse mirrors the /api/status payload.
type StatusResponse struct {
	Running   bool                 `json:"running"`
	Channel   string               `json:"channel"`
	StartedAt *time.Time           `json:"started_at"`
	LastRun   *time.Time           `json:"last_run"`
	LastError string               `json:"last_error"`
	Channels  []models.ChannelInfo `json:"channels"`
}

// Client talks to the backup server's JSON API.
type Client struct {
	baseURL string
	http    *utils.HTTPClient
}

// NewClient creates an API client for the given server address.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: utils.NewHTTPClient(utils.ClientConfig{
			Timeout: 10 * time.Second,
		}),
	}
}

// Status fetches the run state and enriched channel list.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.http.Get(c.baseURL+"/api/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("unparsable status: %w", err)
	}
	return &status, nil
}

// StartBackup triggers a run for all configured channels. A 409 means one is
// already active.
func (c *Client) StartBackup() error {
	resp, err := c.http.Post(c.baseURL+"/api/backup", "application/json", bytes.NewReader([]byte("{}")), nil)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("a backup run is already active")
	default:
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
}
