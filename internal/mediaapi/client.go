// Package mediaapi talks to the remote media API that publishes episode
// metadata for a site.
package mediaapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"episode-desk/internal/models"
)

const defaultTimeout = 15 * time.Second

// Client fetches episode listings from the media API.
type Client struct {
	base      *url.URL
	subdomain string
	http      *http.Client
	logger    zerolog.Logger
}

// New creates a Client for base (e.g. "http://media.plusp.lu") and the
// site's subdomain. A nil httpClient gets a default with a timeout.
func New(base, subdomain string, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, errors.New("media api base url is empty")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse media api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("media api base url %q must be absolute", base)
	}

	subdomain = strings.Trim(strings.TrimSpace(subdomain), "/")
	if subdomain == "" {
		return nil, errors.New("media api subdomain is empty")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		base:      parsed,
		subdomain: subdomain,
		http:      httpClient,
		logger:    logger,
	}, nil
}

// AllURL is the endpoint listing every episode of the site.
func (c *Client) AllURL() string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(c.subdomain) + "/all"
	u.RawQuery = ""
	return u.String()
}

// FetchAll downloads and decodes every episode of the site.
func (c *Client) FetchAll(ctx context.Context) ([]models.Episode, error) {
	endpoint := c.AllURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	episodes, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("url", endpoint).
		Int("episodes", len(episodes)).
		Dur("elapsed", time.Since(start)).
		Msg("fetched episodes")
	return episodes, nil
}
