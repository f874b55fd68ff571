// Package alpaca reads stock market data from the Alpaca Market Data API v2.
//
// Requests authenticate with static key headers, so a rejected key is
// reported as an authentication error without any refresh. The free tier
// serves the IEX feed only and allows 200 requests per minute; the client
// paces itself to that quota unless configured otherwise.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"infolio/internal/common/config"
	"infolio/internal/common/errors"
	commonhttp "infolio/internal/common/http"
	"infolio/internal/common/logging"
	"infolio/internal/common/ratelimit"
	"infolio/internal/common/utils"
	"infolio/internal/common/validation"
)

const (
	DefaultBaseURL           = "https://data.alpaca.markets/v2"
	DefaultTimeout           = 30 * time.Second
	DefaultTimeframe         = "1Day"
	DefaultRequestsPerMinute = 200
	// DefaultBatchDays is the window TimeseriesBars requests at once
	DefaultBatchDays = 30

	headerKeyID     = "APCA-API-KEY-ID"
	headerSecretKey = "APCA-API-SECRET-KEY"
)

// Config holds Alpaca connection settings
type Config struct {
	config.BaseConnConfig

	APIKey    string `json:"api_key" validate:"required"`
	SecretKey string `json:"secret_key" validate:"required"`
	BaseURL   string `json:"base_url"`
	// Feed defaults to iex
	Feed string `json:"feed" validate:"omitempty,oneof=iex sip"`
	// RequestsPerMinute paces requests client side. Zero uses the default,
	// a negative value disables pacing.
	RequestsPerMinute int `json:"requests_per_minute"`
}

// Client is an Alpaca market data client. It is safe for concurrent use.
type Client struct {
	http   *commonhttp.Client
	feed   string
	logger logging.Logger
	now    func() time.Time
}

// New creates a client. opts are applied to the underlying executor after
// the provider defaults.
func New(cfg Config, logger logging.Logger, opts ...commonhttp.Option) (*Client, error) {
	if err := validation.NewValidatorWithPrefix("alpaca").Struct(cfg).Error(); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Feed == "" {
		cfg.Feed = FeedIEX
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	cfg.SetConnectionDefaults(DefaultTimeout)
	logger = logging.OrNop(logger)

	base := []commonhttp.Option{
		commonhttp.WithLogger(logger),
		commonhttp.WithName("alpaca"),
	}
	if cfg.RequestsPerMinute > 0 {
		limiter, err := ratelimit.NewLocalLimiter(ratelimit.PerMinute(cfg.RequestsPerMinute))
		if err != nil {
			return nil, err
		}
		base = append(base, commonhttp.WithRateLimiter(limiter))
	}

	executor, err := commonhttp.NewClient(commonhttp.Config{
		BaseConnConfig: cfg.BaseConnConfig,
		BaseURL:        cfg.BaseURL,
		Headers: map[string]string{
			"Accept":        "application/json",
			headerKeyID:     cfg.APIKey,
			headerSecretKey: cfg.SecretKey,
		},
	}, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:   executor,
		feed:   cfg.Feed,
		logger: logger.WithFields(logging.String("provider", "alpaca")),
		now:    time.Now,
	}, nil
}

// LatestBars returns the most recent minute bar per symbol
func (c *Client) LatestBars(ctx context.Context, symbols []string, feed string) ([]Bar, error) {
	params, err := c.symbolParams(symbols, feed)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Fetching latest bars", logging.Int("symbols", len(symbols)))

	var resp latestBarsResponse
	if err := c.get(ctx, "stocks/bars/latest", params, &resp); err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(resp.Bars))
	for symbol, bar := range resp.Bars {
		bars = append(bars, bar.bar(symbol))
	}
	sortBars(bars)

	c.logger.Info("Retrieved latest bars", logging.Int("count", len(bars)))
	return bars, nil
}

// HistoricalBars returns every bar of q, following next_page_token until
// the API reports no further page.
func (c *Client) HistoricalBars(ctx context.Context, q BarsQuery) ([]Bar, error) {
	q = c.normalize(q)
	v := validation.NewValidator().Struct(q)
	if q.Start.IsZero() {
		v.Validate(func() error { return fmt.Errorf("start is required") })
	} else if q.End.Before(q.Start) {
		v.Validate(func() error { return fmt.Errorf("end must not be before start") })
	}
	if err := v.Error(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(q.Symbols, ","))
	params.Set("start", q.Start.Format(DateLayout))
	params.Set("end", q.End.Format(DateLayout))
	params.Set("timeframe", q.Timeframe)
	params.Set("feed", q.Feed)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	c.logger.Info("Fetching historical bars",
		logging.Int("symbols", len(q.Symbols)),
		logging.String("start", params.Get("start")),
		logging.String("end", params.Get("end")),
		logging.String("timeframe", q.Timeframe))

	var (
		bars  []Bar
		pages int
		seen  = map[string]bool{}
	)
	for {
		var page barsPage
		if err := c.get(ctx, "stocks/bars", params, &page); err != nil {
			return nil, err
		}
		pages++

		for symbol, wire := range page.Bars {
			for _, b := range wire {
				bars = append(bars, b.bar(symbol))
			}
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		token := *page.NextPageToken
		if seen[token] {
			return nil, errors.InternalError(fmt.Sprintf("pagination repeated page token %q", token), nil)
		}
		seen[token] = true
		params.Set("page_token", token)

		c.logger.Debug("Fetching next page",
			logging.Int("page", pages+1),
			logging.Int("bars_so_far", len(bars)))
	}

	sortBars(bars)
	c.logger.Info("Retrieved historical bars",
		logging.Int("count", len(bars)),
		logging.Int("pages", pages))
	return bars, nil
}

// TimeseriesBars walks q.Start to q.End in windows of batchDays days and
// hands each non-empty window to yield. A window that fails is logged and
// skipped; an error from yield stops the walk.
func (c *Client) TimeseriesBars(ctx context.Context, q BarsQuery, batchDays int, yield func([]Bar) error) error {
	if batchDays <= 0 {
		batchDays = DefaultBatchDays
	}
	q = c.normalize(q)
	if q.Start.IsZero() || q.End.Before(q.Start) {
		return errors.ValidationError("timeseries needs a start date not after the end date")
	}

	batches := 0
	for _, w := range utils.DayWindows(q.Start, q.End, batchDays) {
		if err := ctx.Err(); err != nil {
			return err
		}

		window := q
		window.Start, window.End = w.Start, w.End
		bars, err := c.HistoricalBars(ctx, window)
		if err != nil {
			c.logger.Error("Failed to fetch bar window", err,
				logging.String("start", w.Start.Format(DateLayout)),
				logging.String("end", w.End.Format(DateLayout)))
			continue
		}
		if len(bars) == 0 {
			continue
		}

		batches++
		if err := yield(bars); err != nil {
			return err
		}
	}

	c.logger.Info("Completed timeseries fetch", logging.Int("batches", batches))
	return nil
}

// Snapshots returns the latest trade, quote and previous close per symbol
func (c *Client) Snapshots(ctx context.Context, symbols []string, feed string) ([]Snapshot, error) {
	params, err := c.symbolParams(symbols, feed)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Fetching snapshots", logging.Int("symbols", len(symbols)))

	var raw map[string]json.RawMessage
	if err := c.get(ctx, "stocks/snapshots", params, &raw); err != nil {
		return nil, err
	}

	// older responses nest the map under "snapshots"
	if nested, ok := raw["snapshots"]; ok {
		raw = nil
		if err := json.Unmarshal(nested, &raw); err != nil {
			return nil, errors.InternalError("failed to decode snapshots", err)
		}
	}

	snapshots := make([]Snapshot, 0, len(raw))
	for symbol, body := range raw {
		var wire wireSnapshot
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, errors.InternalError(fmt.Sprintf("failed to decode snapshot for %s", symbol), err)
		}
		snapshots = append(snapshots, wire.snapshot(symbol))
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Symbol < snapshots[j].Symbol })

	c.logger.Info("Retrieved snapshots", logging.Int("count", len(snapshots)))
	return snapshots, nil
}

// CloseOn returns the closing price of symbol on date. found is false when
// the market has no bar for that day.
func (c *Client) CloseOn(ctx context.Context, symbol string, date time.Time) (price float64, found bool, err error) {
	bars, err := c.HistoricalBars(ctx, BarsQuery{
		Symbols: []string{symbol},
		Start:   date,
		End:     date,
	})
	if err != nil {
		return 0, false, err
	}
	if len(bars) == 0 {
		return 0, false, nil
	}
	return bars[0].Close, true, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	resp, err := c.http.Get(ctx, endpoint, params, nil)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

func (c *Client) symbolParams(symbols []string, feed string) (url.Values, error) {
	if feed == "" {
		feed = c.feed
	}
	symbols = upper(symbols)

	if err := validation.NewValidator().
		Var(symbols, "required,min=1,dive,required", "symbols").
		RequireOneOf(feed, []string{FeedIEX, FeedSIP}, "feed").
		Error(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("feed", feed)
	return params, nil
}

func (c *Client) normalize(q BarsQuery) BarsQuery {
	q.Symbols = upper(q.Symbols)
	if q.Timeframe == "" {
		q.Timeframe = DefaultTimeframe
	}
	if q.Feed == "" {
		q.Feed = c.feed
	}
	if !q.Start.IsZero() {
		q.Start = utils.DayUTC(q.Start)
	}
	if q.End.IsZero() {
		q.End = c.now()
	}
	q.End = utils.DayUTC(q.End)
	return q
}

func upper(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}

func sortBars(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Symbol != bars[j].Symbol {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}
