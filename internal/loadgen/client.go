package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/gradestats/internal/adapters/mq/broker"
	"github.com/okian/gradestats/internal/domain/aggregate"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/scoring"
	"github.com/okian/gradestats/internal/domain/types"
)

// Submitter delivers one record to the service.
type Submitter interface {
	Submit(ctx context.Context, r model.ScoreRecord) (string, error)
}

// Client talks to the grade service over HTTP.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	RecordID  string `json:"record_id"`
	Duplicate bool   `json:"duplicate"`
}

// Submit POSTs r to /grades and classifies the response.
func (c *Client) Submit(ctx context.Context, r model.ScoreRecord) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/grades", bytes.NewReader(body))
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return OutcomeFailed, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return OutcomeFailed, err
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return OutcomeAccepted, nil
	case http.StatusOK:
		var ack ackResponse
		if err := json.Unmarshal(data, &ack); err == nil && !ack.Duplicate {
			return OutcomeAccepted, nil
		}
		return OutcomeDuplicate, nil
	default:
		return OutcomeFailed, fmt.Errorf("POST /grades: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", nil)
}

// GlobalStats fetches GET /grades/stats.
func (c *Client) GlobalStats(ctx context.Context) (types.Statistics, error) {
	var st types.Statistics
	err := c.getJSON(ctx, "/grades/stats", &st)
	return st, err
}

// ClassStats fetches GET /grades/stats/{id}.
func (c *Client) ClassStats(ctx context.Context, classID string) (types.Statistics, error) {
	var st types.Statistics
	err := c.getJSON(ctx, "/grades/stats/"+url.PathEscape(classID), &st)
	return st, err
}

// Records reads the persisted record count from GET /status.
func (c *Client) Records(ctx context.Context) (int, error) {
	var status struct {
		Records int `json:"records"`
	}
	err := c.getJSON(ctx, "/status", &status)
	return status.Records, err
}

// Engine builds an aggregation engine with the weights and strictness the
// service reports on GET /status. Missing weights keep their defaults.
func (c *Client) Engine(ctx context.Context) (*aggregate.Engine, error) {
	var status struct {
		Weights map[string]float64 `json:"weights"`
		Strict  bool               `json:"strict"`
	}
	if err := c.getJSON(ctx, "/status", &status); err != nil {
		return nil, err
	}
	opts := make([]scoring.Option, 0, len(status.Weights))
	for name, w := range status.Weights {
		opts = append(opts, scoring.WithWeight(model.Category(name), w))
	}
	policy := scoring.NewPolicy(opts...)
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("service weights: %w", err)
	}
	engineOpts := []aggregate.Option{aggregate.WithPolicy(policy)}
	if status.Strict {
		engineOpts = append(engineOpts, aggregate.WithStrict())
	}
	return aggregate.New(engineOpts...), nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// Publisher submits records through the AMQP broker. The service acks
// asynchronously, so every published record counts as accepted.
type Publisher struct {
	pub *broker.Publisher
}

// NewPublisher connects to the broker.
func NewPublisher(amqpURL, queue string) (*Publisher, error) {
	p, err := broker.NewPublisher(amqpURL, queue)
	if err != nil {
		return nil, err
	}
	return &Publisher{pub: p}, nil
}

// Submit publishes r.
func (p *Publisher) Submit(ctx context.Context, r model.ScoreRecord) (string, error) {
	if err := p.pub.Publish(ctx, r); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeAccepted, nil
}

// Close closes the broker connection.
func (p *Publisher) Close() error {
	return p.pub.Close()
}
