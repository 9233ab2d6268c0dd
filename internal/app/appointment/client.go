// Package appointment reads scheduled session details for display.
package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/domain"
)

var ErrNotFound = errors.New("session not found")

type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient reads from endpoint/<id>.
func NewClient(endpoint string, timeout time.Duration, hc *http.Client) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{endpoint: strings.TrimRight(endpoint, "/"), timeout: timeout, httpClient: hc}
}

func (c *Client) Get(ctx context.Context, id string) (domain.SessionDetails, error) {
	if id == "" {
		return domain.SessionDetails{}, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+url.PathEscape(id), nil)
	if err != nil {
		return domain.SessionDetails{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SessionDetails{}, fmt.Errorf("fetch session %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.SessionDetails{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return domain.SessionDetails{}, fmt.Errorf("fetch session %s: status %d", id, resp.StatusCode)
	}

	var d domain.SessionDetails
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return domain.SessionDetails{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	log.Debug().Str("module", "appointment").Str("session_id", id).Str("title", d.Title).Msg("session details")
	return d, nil
}
