// Package caixa fetches Lotofácil contest results from the public results
// API.
package caixa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the results API root.
	DefaultBaseURL = "https://loteriascaixa-api.herokuapp.com/api"

	defaultBulkTimeout    = 20 * time.Second
	defaultContestTimeout = 5 * time.Second
	defaultMaxContests    = 3400
	defaultMinChecked     = 100
	defaultFailureRate    = 0.10
	defaultRateLimit      = 10.0
	defaultBurst          = 5
	maxResponseBytes      = 32 << 20
)

// errStatus marks a non-2xx response.
var errStatus = errors.New("unexpected status")

// Client fetches contest results.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	bulkTimeout    time.Duration
	contestTimeout time.Duration
	maxContests    int
	minChecked     int
	failureRate    float64
	logger         *slog.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting for per-contest requests.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeouts sets the bulk and per-contest request timeouts.
func WithTimeouts(bulk, contest time.Duration) ClientOption {
	return func(c *Client) {
		if bulk > 0 {
			c.bulkTimeout = bulk
		}
		if contest > 0 {
			c.contestTimeout = contest
		}
	}
}

// WithFallback tunes the per-contest fallback: how many contests to try and
// the failure rate that aborts the walk once minChecked requests were made.
func WithFallback(maxContests, minChecked int, failureRate float64) ClientOption {
	return func(c *Client) {
		if maxContests > 0 {
			c.maxContests = maxContests
		}
		if minChecked > 0 {
			c.minChecked = minChecked
		}
		if failureRate > 0 {
			c.failureRate = failureRate
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a results API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:        rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		bulkTimeout:    defaultBulkTimeout,
		contestTimeout: defaultContestTimeout,
		maxContests:    defaultMaxContests,
		minChecked:     defaultMinChecked,
		failureRate:    defaultFailureRate,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "caixa"))
	return c
}

// FetchAll returns every valid contest ordered by contest number. It tries
// the bulk endpoint first and falls back to walking contests one by one.
// Records that are not 15 distinct numbers in [1,25] are dropped.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Draw, error) {
	draws, err := c.fetchBulk(ctx)
	if err == nil && len(draws) > 0 {
		c.logger.InfoContext(ctx, "caixa: fetched contests from bulk endpoint", slog.Int("draws", len(draws)))
		return draws, nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "caixa: bulk endpoint failed, falling back to per-contest fetch",
			slog.String("error", err.Error()))
	} else {
		c.logger.WarnContext(ctx, "caixa: bulk endpoint returned no valid contests, falling back")
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("caixa: fetch all: %w", ctx.Err())
	}

	draws, err = c.fetchEach(ctx)
	if err != nil {
		return nil, err
	}
	if len(draws) == 0 {
		return nil, fmt.Errorf("caixa: fetch all: %w", domain.ErrDataSourceUnavailable)
	}
	return draws, nil
}

// FetchContest returns a single contest.
func (c *Client) FetchContest(ctx context.Context, contest int) (domain.Draw, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Draw{}, fmt.Errorf("caixa: rate limit: %w", err)
	}
	body, err := c.get(ctx, "/lotofacil/"+strconv.Itoa(contest), c.contestTimeout)
	if err != nil {
		return domain.Draw{}, err
	}
	var r contestResult
	if err := json.Unmarshal(body, &r); err != nil {
		return domain.Draw{}, fmt.Errorf("caixa: decode contest %d: %w", contest, err)
	}
	d, err := toDraw(r)
	if err != nil {
		return domain.Draw{}, fmt.Errorf("caixa: contest %d: %w", contest, err)
	}
	return d, nil
}

func (c *Client) fetchBulk(ctx context.Context) ([]domain.Draw, error) {
	body, err := c.get(ctx, "/lotofacil", c.bulkTimeout)
	if err != nil {
		return nil, err
	}
	results, dropped, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	draws := make([]domain.Draw, 0, len(results))
	for _, r := range results {
		d, err := toDraw(r)
		if err != nil {
			dropped++
			continue
		}
		draws = append(draws, d)
	}
	if dropped > 0 {
		c.logger.WarnContext(ctx, "caixa: dropped invalid contests", slog.Int("dropped", dropped))
	}
	return normalise(draws), nil
}

func (c *Client) fetchEach(ctx context.Context) ([]domain.Draw, error) {
	var (
		draws  []domain.Draw
		failed int
		n      int
	)
	for n = 1; n <= c.maxContests; n++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("caixa: fetch contests: %w", err)
		}
		d, err := c.FetchContest(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("caixa: fetch contests: %w", ctx.Err())
			}
			failed++
			c.logger.DebugContext(ctx, "caixa: contest fetch failed",
				slog.Int("contest", n),
				slog.String("error", err.Error()),
			)
		} else {
			draws = append(draws, d)
		}

		if n >= c.minChecked && float64(failed)/float64(n) > c.failureRate {
			c.logger.WarnContext(ctx, "caixa: stopping per-contest fetch on high failure rate",
				slog.Int("attempted", n),
				slog.Int("failed", failed),
			)
			break
		}
	}
	c.logger.InfoContext(ctx, "caixa: per-contest fetch finished",
		slog.Int("draws", len(draws)),
		slog.Int("failed", failed),
	)
	return normalise(draws), nil
}

// get performs a GET with its own timeout and returns the body of a JSON
// 2xx response.
func (c *Client) get(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("caixa: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caixa: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("caixa: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("caixa: GET %s: %w: HTTP %d", path, errStatus, resp.StatusCode)
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		return nil, fmt.Errorf("caixa: GET %s: unexpected content type %q", path, resp.Header.Get("Content-Type"))
	}
	return body, nil
}

func toDraw(r contestResult) (domain.Draw, error) {
	contest, ok := r.contest()
	if !ok || r.Data == nil || r.Dezenas == nil {
		return domain.Draw{}, fmt.Errorf("%w: missing concurso, data or dezenas", domain.ErrInvalidCombination)
	}
	nums := make([]int, len(r.Dezenas))
	for i, d := range r.Dezenas {
		nums[i] = int(d)
	}
	slices.Sort(nums)
	d := domain.Draw{
		Contest:   contest,
		Date:      *r.Data,
		Numbers:   nums,
		FetchedAt: time.Now().UTC(),
	}
	if err := d.Validate(); err != nil {
		return domain.Draw{}, err
	}
	return d, nil
}

// normalise orders draws by contest and drops duplicate contests.
func normalise(draws []domain.Draw) []domain.Draw {
	slices.SortStableFunc(draws, func(a, b domain.Draw) int { return a.Contest - b.Contest })
	return slices.CompactFunc(draws, func(a, b domain.Draw) bool { return a.Contest == b.Contest })
}
