// Package codeforces implements the Codeforces public API client.
// It fetches the profile, rating history and recent submissions of a handle
// and classifies every failure as either unavailable (transient) or
// rejected (the API answered with a non-OK status).
package codeforces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultBaseURL is the public Codeforces API root.
	DefaultBaseURL = "https://codeforces.com/api"

	// DefaultSubmissionCount is how many recent submissions user.status returns.
	DefaultSubmissionCount = 500

	maxResponseBytes = 32 << 20
)

// ClientConfig contains configuration for the Codeforces API client.
type ClientConfig struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// CallTimeout bounds every single HTTP call. Exceeding it is "unavailable".
	CallTimeout time.Duration

	// SubmissionCount is the count parameter for user.status.
	SubmissionCount int

	// RateLimiterConfig for API rate limiting.
	RateLimiterConfig RateLimiterConfig

	// BreakerFailureThreshold opens the circuit after this many consecutive
	// unavailable calls. Zero disables the breaker.
	BreakerFailureThreshold int

	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration

	// HTTPClient is used for requests. Defaults to a plain http.Client.
	HTTPClient *http.Client

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:                 DefaultBaseURL,
		CallTimeout:             15 * time.Second,
		SubmissionCount:         DefaultSubmissionCount,
		RateLimiterConfig:       DefaultRateLimiterConfig(),
		BreakerFailureThreshold: 5,
		BreakerCooldown:         time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Codeforces API client. It is safe for concurrent use.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
}

// NewClient creates a new Codeforces API client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.SubmissionCount <= 0 {
		config.SubmissionCount = DefaultSubmissionCount
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	c := &Client{
		config:      config,
		httpClient:  config.HTTPClient,
		logger:      config.Logger.With("component", "codeforces_client"),
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
	}

	if config.BreakerFailureThreshold > 0 {
		c.breaker = circuitbreaker.New("codeforces-api",
			circuitbreaker.WithFailureThreshold(config.BreakerFailureThreshold),
			circuitbreaker.WithCooldown(config.BreakerCooldown),
			circuitbreaker.WithIsFailure(func(err error) bool {
				return errors.Is(err, shared.ErrRemoteUnavailable)
			}),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				c.logger.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			}),
		)
	}

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// API METHODS
// ══════════════════════════════════════════════════════════════════════════════

// UserInfo fetches the profile of a handle via user.info.
func (c *Client) UserInfo(ctx context.Context, handle student.Handle) (student.Profile, error) {
	users, err := call[[]UserDTO](ctx, c, "user.info", url.Values{"handles": {handle.String()}})
	if err != nil {
		return student.Profile{}, err
	}
	if len(users) == 0 {
		return student.Profile{}, shared.NewDomainError("codeforces", "user.info", shared.ErrRemoteRejected,
			"no user returned for handle "+handle.String())
	}
	return ProfileFromDTO(users[0]), nil
}

// UserRating fetches the rated contest history via user.rating.
func (c *Client) UserRating(ctx context.Context, handle student.Handle) ([]student.RatingChange, error) {
	changes, err := call[[]RatingChangeDTO](ctx, c, "user.rating", url.Values{"handle": {handle.String()}})
	if err != nil {
		return nil, err
	}
	return RatingChangesFromDTO(changes), nil
}

// UserStatus fetches the most recent submissions, newest first, via user.status.
func (c *Client) UserStatus(ctx context.Context, handle student.Handle, count int) ([]student.Submission, error) {
	if count <= 0 {
		count = c.config.SubmissionCount
	}
	subs, err := call[[]SubmissionDTO](ctx, c, "user.status", url.Values{
		"handle": {handle.String()},
		"count":  {strconv.Itoa(count)},
	})
	if err != nil {
		return nil, err
	}
	return SubmissionsFromDTO(subs), nil
}

// FetchAccount runs the three calls concurrently. The first failure cancels
// the other two and is returned as is.
func (c *Client) FetchAccount(ctx context.Context, handle student.Handle) (*student.Account, error) {
	var acct student.Account

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.UserInfo(gctx, handle)
		acct.Profile = p
		return err
	})
	g.Go(func() error {
		r, err := c.UserRating(gctx, handle)
		acct.Contests = r
		return err
	})
	g.Go(func() error {
		s, err := c.UserStatus(gctx, handle, c.config.SubmissionCount)
		acct.Submissions = s
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &acct, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// call performs one API method through the rate limiter and circuit breaker.
func call[T any](ctx context.Context, c *Client, method string, params url.Values) (T, error) {
	var result T

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return result, unavailable(method, "rate limiter wait failed", err)
	}

	do := func(ctx context.Context) error {
		var err error
		result, err = doSingleRequest[T](ctx, c, method, params)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, do)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			err = unavailable(method, "circuit open", err)
		}
	} else {
		err = do(ctx)
	}
	return result, err
}

// doSingleRequest performs a single HTTP call bounded by CallTimeout.
func doSingleRequest[T any](ctx context.Context, c *Client, method string, params url.Values) (T, error) {
	var zero T

	if c.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
		defer cancel()
	}

	fullURL := c.config.BaseURL + "/" + method + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return zero, unavailable(method, "create request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, unavailable(method, "http request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return zero, unavailable(method, "read response", err)
	}

	c.logger.Debug("codeforces api call",
		"method", method,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return zero, unavailable(method, fmt.Sprintf("http status %d", resp.StatusCode), nil)
	}

	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, unavailable(method, fmt.Sprintf("decode response (http status %d)", resp.StatusCode), err)
	}

	if env.Status != StatusOK {
		comment := env.Comment
		if comment == "" {
			comment = "status " + env.Status
		}
		return zero, shared.NewDomainError("codeforces", method, shared.ErrRemoteRejected, comment)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return zero, unavailable(method, fmt.Sprintf("http status %d", resp.StatusCode), nil)
	}

	return env.Result, nil
}

func unavailable(method, message string, err error) error {
	return shared.WrapError("codeforces", method, shared.ErrRemoteUnavailable, message, err)
}
