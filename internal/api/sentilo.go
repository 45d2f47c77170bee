package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/bcnfacilities/sentiflow/internal/models"
)

var (
	ErrRequest   = errors.New("error making sentilo request")
	ErrStatus    = errors.New("error status from sentilo")
	ErrNoToken   = errors.New("no token available for sensor")
	ErrRateLimit = errors.New("rate limiter rejected request")
)

// observationsResponse mirrors the Sentilo /data response envelope.
type observationsResponse struct {
	Observations []models.RawObservation `json:"observations"`
}

// TokenSource resolves an env-var name to a credential. Indirection
// keeps the fetcher testable without touching the process environment.
type TokenSource func(envName string) string

// Fetcher downloads raw observations from a Sentilo platform. Counter
// sensors request a deep window (a day of history), instantaneous
// sensors only the latest reading.
type Fetcher struct {
	baseURL   string
	limitDeep int
	limitLive int
	tokens    TokenSource
	limiter   *rate.Limiter
	client    *http.Client
	logger    *logrus.Logger
}

// FetcherConfig holds the knobs for one Sentilo endpoint.
type FetcherConfig struct {
	BaseURL        string        `mapstructure:"url"`
	LimitDeep      int           `mapstructure:"limit_energy"`
	LimitLive      int           `mapstructure:"limit_instant"`
	RequestTimeout time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// NewFetcher builds a Fetcher. Zero limits fall back to the values the
// building's dashboard expects (a ~2 day energy window, latest-only for
// live sensors).
func NewFetcher(cfg FetcherConfig, tokens TokenSource, logger *logrus.Logger) *Fetcher {
	if cfg.LimitDeep <= 0 {
		cfg.LimitDeep = 250
	}
	if cfg.LimitLive <= 0 {
		cfg.LimitLive = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5.0
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}

	return &Fetcher{
		baseURL:   cfg.BaseURL,
		limitDeep: cfg.LimitDeep,
		limitLive: cfg.LimitLive,
		tokens:    tokens,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:    logger,
	}
}

// Fetch downloads the raw observations for one sensor, newest first as
// Sentilo delivers them. Ordering is left to the series builder.
func (f *Fetcher) Fetch(ctx context.Context, desc models.SensorDescriptor, kind models.Kind) ([]models.RawObservation, error) {
	token := f.tokens(desc.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("%w: %s (env %s)", ErrNoToken, desc.ID, desc.TokenEnv)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimit, err)
	}

	limit := f.limitLive
	if kind == models.KindInterval {
		limit = f.limitDeep
	}

	endpoint := fmt.Sprintf("%s/%s/%s", f.baseURL,
		url.PathEscape(desc.Provider), url.PathEscape(desc.ID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	req.Header.Set("IDENTITY_KEY", token)
	req.Header.Set("Accept", "application/json")

	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", "desc")
	req.URL.RawQuery = q.Encode()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: got %d for %s", ErrStatus, resp.StatusCode, desc.ID)
	}

	var envelope observationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response for %s: %v", desc.ID, err)
	}

	f.logger.WithFields(logrus.Fields{
		"sensor":       desc.ID,
		"provider":     desc.Provider,
		"observations": len(envelope.Observations),
	}).Debug("Fetched observations")

	return envelope.Observations, nil
}

// EnvTokenSource reads credentials from the process environment via the
// given lookup, trimming whitespace the way operators paste tokens.
func EnvTokenSource(getenv func(string) string) TokenSource {
	return func(envName string) string {
		if envName == "" {
			return ""
		}
		return strings.TrimSpace(getenv(envName))
	}
}
