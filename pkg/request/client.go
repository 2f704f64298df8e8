package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sotomaque/emoji-map-sub000/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("EmojiMap/%s (github.com/sotomaque/emoji-map-sub000)", version.Version)

// Client performs HTTP calls against the places backend. Every in-flight
// call is registered so CancelActive can abort the lot at once.
type Client struct {
	httpClient *http.Client
	reqLog     *slog.Logger

	mu     sync.Mutex
	active map[uint64]context.CancelFunc
	nextID uint64
}

// New creates a Client. timeout is the transport-level ceiling per call;
// orchestrated fetches are normally cancelled earlier through their
// context. reqLog receives one line per attempt; nil uses the default
// logger.
func New(timeout time.Duration, reqLog *slog.Logger) *Client {
	if reqLog == nil {
		reqLog = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		reqLog:     reqLog,
		active:     make(map[uint64]context.CancelFunc),
	}
}

// Get performs a GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil)
}

// Post performs a POST with a JSON body and returns the raw response body.
func (c *Client) Post(ctx context.Context, u string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	if _, err := url.ParseRequestURI(u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	callCtx, cancel := context.WithCancel(ctx)
	id := c.register(cancel)
	defer c.unregister(id)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := Classify(err)
		c.reqLog.Warn("request failed",
			"method", method, "url", redactKey(u),
			"elapsed", time.Since(start), "err", classified)
		return nil, classified
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Classify(err)
	}

	c.reqLog.Info("request",
		"method", method, "url", redactKey(u),
		"status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg := apiMessage(data); msg != "" {
			return nil, &APIError{Message: msg}
		}
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if len(data) == 0 {
		return nil, ErrNoData
	}
	return data, nil
}

// apiMessage extracts a backend-supplied error message, when present.
func apiMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Error
}

// redactKey hides the API key in logged URLs.
func redactKey(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

func (c *Client) register(cancel context.CancelFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.active[c.nextID] = cancel
	return c.nextID
}

func (c *Client) unregister(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, id)
}

// CancelActive aborts every call currently in flight. The affected calls
// return ErrRequestCancelled.
func (c *Client) CancelActive() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.active))
	for _, cancel := range c.active {
		cancels = append(cancels, cancel)
	}
	c.active = make(map[uint64]context.CancelFunc)
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// ActiveCount returns the number of calls currently in flight.
func (c *Client) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
