package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/macrolens/internal/common"
	"golang.org/x/time/rate"
)

// Retry defaults used when the pipeline config leaves a value unset
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMultiplier  = 2.0
	DefaultMaxDelay    = 2 * time.Minute
)

// RetryConfig bounds how often a collaborator call is attempted.
// Delays double from BaseDelay (with Multiplier 2) and are capped at MaxDelay.
// A non-nil Limiter gates every attempt, including the first.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Limiter     *rate.Limiter
}

// NewRetryConfig builds the retry policy from the pipeline section.
// rate_limit is the minimum gap between calls; "0s" disables the limiter.
func NewRetryConfig(cfg *common.PipelineConfig) RetryConfig {
	rc := RetryConfig{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   common.ParseDurationOr(cfg.RetryBaseDelay, DefaultBaseDelay),
		Multiplier:  DefaultMultiplier,
		MaxDelay:    DefaultMaxDelay,
	}
	if gap, err := time.ParseDuration(strings.TrimSpace(cfg.RateLimit)); err == nil && gap > 0 {
		rc.Limiter = rate.NewLimiter(rate.Every(gap), 1)
	}
	return rc.withDefaults()
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	return c
}

// Backoff returns the wait before retry number attempt (1-based): BaseDelay * Multiplier^(attempt-1)
func (c RetryConfig) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	d := float64(c.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= c.Multiplier
		if d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	if time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an error that retrying cannot fix
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the context ends
// or MaxAttempts is reached. The last error is returned wrapped.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return lastErr
			}
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := cfg.Backoff(attempt)
		if IsRateLimitError(lastErr) {
			if hint := ExtractRetryDelay(lastErr); hint > wait {
				wait = hint
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// IsRateLimitError matches 429 / RESOURCE_EXHAUSTED / rate limit responses from either provider
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs"
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses an API-suggested delay from the error text, or returns 0
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
