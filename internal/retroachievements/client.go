// Package retroachievements is a client of the RetroAchievements web API.
package retroachievements

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/victornm/raboard/internal/domain"
)

const (
	DefaultBaseURL     = "https://retroachievements.org"
	defaultTimeout     = 15 * time.Second
	defaultMaxBodySize = 10 << 20

	gameInfoAndUserProgressPath = "/API/API_GetGameInfoAndUserProgress.php"
)

// TransientError is a failure that may succeed when retried: transport errors and non-2xx responses.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a response that was transported successfully but cannot be interpreted.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether retrying err is pointless.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

type Config struct {
	BaseURL  string
	Username string
	APIKey   string
	// RateLimit is the maximum number of requests per second, unlimited when <= 0.
	RateLimit float64
	Burst     int
	Timeout   time.Duration
	// MaxBodySize bounds the size of a response body, in bytes.
	MaxBodySize int64

	HTTPClient *http.Client
}

type Client struct {
	base     string
	username string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	maxBody  int64
}

func NewClient(c Config) *Client {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	hc := c.HTTPClient
	if hc == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit, burst := rate.Inf, c.Burst
	if c.RateLimit > 0 {
		limit = rate.Limit(c.RateLimit)
	}
	if burst <= 0 {
		burst = 1
	}

	maxBody := c.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}

	return &Client{
		base:     base,
		username: c.Username,
		apiKey:   c.APIKey,
		http:     hc,
		limiter:  rate.NewLimiter(limit, burst),
		maxBody:  maxBody,
	}
}

// HasCredentials reports whether both the API username and key are configured.
func (c *Client) HasCredentials() bool {
	return c.username != "" && c.apiKey != ""
}

// ProfileImage returns the avatar URL of a user.
func (c *Client) ProfileImage(h domain.Handle) string {
	return fmt.Sprintf("%s/UserPic/%s.png", c.base, url.PathEscape(string(h)))
}

// ProfileURL returns the profile page URL of a user.
func (c *Client) ProfileURL(h domain.Handle) string {
	return fmt.Sprintf("%s/user/%s", c.base, url.PathEscape(string(h)))
}

// GetGameInfoAndUserProgress returns the game metadata and the achievements of the game,
// annotated with the progress of the target user.
func (c *Client) GetGameInfoAndUserProgress(ctx context.Context, gameID string, target domain.Handle) (*Payload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{
		"z": {c.username},
		"y": {c.apiKey},
		"g": {gameID},
		"u": {string(target)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+gameInfoAndUserProgressPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	slog.DebugContext(ctx, "retroachievements: requesting game progress", "game_id", gameID, "handle", target)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &PermanentError{Err: fmt.Errorf("body too large: more than %d bytes", c.maxBody)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransientError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", http.StatusText(resp.StatusCode)),
		}
	}

	return DecodePayload(body)
}
