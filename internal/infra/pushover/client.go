package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"home-hub/internal/infra"
)

const defaultEndpoint = "https://api.pushover.net/1/messages.json"

type Config struct {
	Token   string
	UserKey string
	Title   string
	// Endpoint overrides the Pushover messages URL.
	Endpoint string
}

// Client sends voice feedback to a phone through Pushover. With no token or
// user key configured Notify does nothing.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Title == "" {
		cfg.Title = "Home Hub"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.Token != "" && c.cfg.UserKey != ""
}

func (c *Client) Notify(ctx context.Context, message string) error {
	if !c.Enabled() {
		return nil
	}

	data := url.Values{}
	data.Set("token", c.cfg.Token)
	data.Set("user", c.cfg.UserKey)
	data.Set("message", message)
	data.Set("title", c.cfg.Title)
	body := data.Encode()

	return infra.WithRetry(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(body))
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending notification: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("pushover error: %s", resp.Status)
			if infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return err
			}
			return infra.Permanent(err)
		}
		return nil
	})
}
