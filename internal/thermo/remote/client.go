package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/gbseg/internal/thermo"
)

// Options configure a Client. Field tags allow decoding from the generic
// oracle options map of a sweep configuration.
type Options struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

// Client is a thermo.Oracle backed by a remote equilibrium service.
type Client struct {
	base   string
	token  string
	client *http.Client
}

// New creates a client. Timeout defaults to 30s.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("remote oracle URL cannot be empty")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(opts.URL, "/"),
		token:  opts.Token,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Configure validates the system with the service and returns a session.
func (c *Client) Configure(ctx context.Context, sys thermo.System) (thermo.Session, error) {
	status, body, err := c.post(ctx, "/systems", encodeSystem(sys))
	if err != nil {
		return nil, &thermo.ConfigurationError{Database: sys.Database, Err: err}
	}
	if status != http.StatusOK {
		return nil, &thermo.ConfigurationError{Database: sys.Database, Reason: serviceError(status, body)}
	}
	return thermo.NewSession(sys, c.evaluate), nil
}

func (c *Client) evaluate(ctx context.Context, sys thermo.System, conds thermo.ConditionSet) (thermo.Equilibrium, error) {
	req := equilibriumRequest{
		systemRequest: encodeSystem(sys),
		Conditions:    conds.Named(),
		Properties:    properties(sys.Elements),
	}

	status, body, err := c.post(ctx, "/equilibria", req)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK, http.StatusUnprocessableEntity:
	default:
		return nil, fmt.Errorf("equilibrium service: %s", serviceError(status, body))
	}

	var resp equilibriumResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode equilibrium response: %w", err)
	}
	if status == http.StatusUnprocessableEntity || !resp.Converged {
		return nil, thermo.NotConverged("%s", resp.Error)
	}

	values := make(thermo.ValueMap, len(resp.Values))
	for name, v := range resp.Values {
		p, err := thermo.ParseProperty(name)
		if err != nil {
			return nil, fmt.Errorf("equilibrium service returned %w", err)
		}
		values[p] = v
	}
	return values, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func serviceError(status int, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Sprintf("HTTP %d: %s", status, msg)
	}
	return fmt.Sprintf("HTTP %d", status)
}

var _ thermo.Oracle = (*Client)(nil)
