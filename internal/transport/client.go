// Package transport submits engagement snapshots to the collector.
// Each snapshot is one JSON POST, attempted once.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/svchittilla/gamemycourse/internal/models"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxInFlight = 4
	maxResponseBytes   = 1 << 20
)

type Config struct {
	// SnapshotURL receives periodic snapshots. Empty disables delivery.
	SnapshotURL string
	// IngestURL receives the final snapshot of a session.
	IngestURL   string
	Timeout     time.Duration
	MaxInFlight int64
	Logger      *slog.Logger
}

type Client struct {
	http     *http.Client
	config   Config
	inFlight *semaphore.Weighted
	logger   *slog.Logger
}

func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = DefaultMaxInFlight
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		http:     &http.Client{Timeout: config.Timeout},
		config:   config,
		inFlight: semaphore.NewWeighted(config.MaxInFlight),
		logger:   config.Logger,
	}
}

// Send posts snapshot to url and decodes the collector reply. A reply
// without a score is not an error.
func (c *Client) Send(ctx context.Context, url string, snapshot models.Snapshot) (models.IngestResponse, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return models.IngestResponse{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.IngestResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.IngestResponse{}, fmt.Errorf("failed to send snapshot: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.IngestResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.IngestResponse{}, fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	var reply models.IngestResponse
	if len(bytes.TrimSpace(data)) == 0 {
		return reply, nil
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return models.IngestResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return reply, nil
}

// Ingest sends a final snapshot synchronously.
func (c *Client) Ingest(ctx context.Context, snapshot models.Snapshot) (models.IngestResponse, error) {
	if c.config.IngestURL == "" {
		return models.IngestResponse{}, fmt.Errorf("no ingest url configured")
	}
	return c.Send(ctx, c.config.IngestURL, snapshot)
}

// Deliver sends a periodic snapshot in the background. When MaxInFlight
// sends are outstanding the snapshot is dropped; nothing is queued or
// retried.
func (c *Client) Deliver(snapshot models.Snapshot) {
	if c.config.SnapshotURL == "" {
		c.logger.Debug("snapshot delivery disabled", "session_id", snapshot.SessionID)
		return
	}
	if !c.inFlight.TryAcquire(1) {
		c.logger.Warn("dropping snapshot, too many deliveries in flight", "session_id", snapshot.SessionID)
		return
	}
	go func() {
		defer c.inFlight.Release(1)
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
		defer cancel()

		reply, err := c.Send(ctx, c.config.SnapshotURL, snapshot)
		if err != nil {
			c.logger.Warn("snapshot delivery failed", "session_id", snapshot.SessionID, "error", err)
			return
		}
		c.logger.Debug("snapshot delivered", "session_id", snapshot.SessionID, "status", reply.Status, "score", Score(reply))
	}()
}

// Score renders the optional collector score for logs and replies.
func Score(reply models.IngestResponse) string {
	if reply.PredictedEngagement == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", *reply.PredictedEngagement)
}
