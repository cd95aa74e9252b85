package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public free dictionary API
	DefaultBaseURL = "https://api.dictionaryapi.dev/api/v2/entries/en"
	// DefaultTimeout bounds a single lookup
	DefaultTimeout = 10 * time.Second

	maxBodySize = 4 << 20
)

// Config holds dictionary client configuration
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables throttling
	Burst             int
	UserAgent         string
	HTTPClient        *http.Client
}

// Client fetches word meanings from the dictionary API, one request per word
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewClient creates a new dictionary client
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		limiter:   limiter,
		logger:    logger,
	}
}

// Lookup fetches the meanings of word.
//
// Every failure is a *LookupError. Transport errors and timeouts are
// KindTransient; non-2xx responses and unparseable bodies are KindPermanent.
func (c *Client) Lookup(ctx context.Context, word string) ([]Meaning, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &LookupError{Word: word, Kind: KindTransient, Err: err}
		}
	}

	endpoint := c.baseURL + "/" + url.PathEscape(word)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &LookupError{Word: word, Kind: KindPermanent, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Dictionary request failed",
			slog.String("word", word),
			slog.Duration("latency", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, &LookupError{Word: word, Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &LookupError{Word: word, Kind: KindTransient, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debug("Dictionary response received",
		slog.String("word", word),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LookupError{Word: word, Kind: KindPermanent, StatusCode: resp.StatusCode}
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &LookupError{Word: word, Kind: KindPermanent, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(entries) == 0 {
		return nil, &LookupError{Word: word, Kind: KindPermanent, Err: errors.New("empty entry list")}
	}

	return entries[0].Meanings, nil
}
