// Package currencybeacon reads exchange rates from the Currency Beacon API.
//
// Rates are mid-market and refreshed hourly upstream. Historical end-of-day
// rates go back to 1995.
package currencybeacon

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"infolio/internal/common/auth"
	"infolio/internal/common/config"
	"infolio/internal/common/errors"
	commonhttp "infolio/internal/common/http"
	"infolio/internal/common/logging"
	"infolio/internal/common/utils"
	"infolio/internal/common/validation"
)

const (
	DefaultBaseURL = "https://api.currencybeacon.com/v1"
	DefaultTimeout = 10 * time.Second
	DefaultBase    = "USD"
	// DefaultBatchDays is the number of days TimeseriesRates hands over at once
	DefaultBatchDays = 7
)

// Config holds Currency Beacon connection settings
type Config struct {
	config.BaseConnConfig

	APIKey  string
	BaseURL string
}

// Client is a Currency Beacon API client. It is safe for concurrent use.
type Client struct {
	http   *commonhttp.Client
	logger logging.Logger
	now    func() time.Time
}

// New creates a client authenticating with "Authorization: Bearer <api key>".
// opts are applied to the underlying executor after the provider defaults.
func New(cfg Config, logger logging.Logger, opts ...commonhttp.Option) (*Client, error) {
	if err := validation.NewValidatorWithPrefix("currencybeacon").
		RequireString(cfg.APIKey, "api_key").
		Error(); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.SetConnectionDefaults(DefaultTimeout)
	logger = logging.OrNop(logger)

	strategy := auth.NewAPIKeyStrategy(auth.APIKeyConfig{
		KeyName: "Authorization",
		APIKey:  cfg.APIKey,
		Prefix:  "Bearer ",
	})

	base := []commonhttp.Option{
		commonhttp.WithAuth(strategy),
		commonhttp.WithLogger(logger),
		commonhttp.WithName("currencybeacon"),
	}
	executor, err := commonhttp.NewClient(commonhttp.Config{
		BaseConnConfig: cfg.BaseConnConfig,
		BaseURL:        cfg.BaseURL,
		Headers:        map[string]string{"Accept": "application/json"},
	}, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	// the key is static, write it before the first request
	executor.Reauthenticate(context.Background())

	return &Client{
		http:   executor,
		logger: logger.WithFields(logging.String("provider", "currencybeacon")),
		now:    time.Now,
	}, nil
}

// LatestRates returns the current rates for q.Base
func (c *Client) LatestRates(ctx context.Context, q RatesQuery) ([]Rate, error) {
	q = normalizeRates(q)
	if err := validation.NewValidator().Struct(q).Error(); err != nil {
		return nil, err
	}

	c.logger.Info("Fetching latest rates",
		logging.String("base", q.Base),
		logging.Strings("symbols", q.Symbols))

	var env ratesEnvelope
	if err := c.get(ctx, "latest", ratesParams(q), &env); err != nil {
		return nil, err
	}

	timestamp := c.parseTimestamp(env.Meta.LastUpdatedAt)
	rates := buildRates(env, timestamp.Format(DateLayout), timestamp)

	c.logger.Info("Retrieved latest rates", logging.Int("count", len(rates)))
	return rates, nil
}

// HistoricalRates returns end-of-day rates for date. Historical rates carry
// midnight UTC of the returned date as their timestamp.
func (c *Client) HistoricalRates(ctx context.Context, date time.Time, q RatesQuery) ([]Rate, error) {
	q = normalizeRates(q)
	if err := validation.NewValidator().Struct(q).Error(); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, errors.ValidationError("date is required")
	}

	day := date.Format(DateLayout)
	c.logger.Info("Fetching historical rates",
		logging.String("date", day),
		logging.String("base", q.Base))

	params := ratesParams(q)
	params.Set("date", day)

	var env ratesEnvelope
	if err := c.get(ctx, "historical", params, &env); err != nil {
		return nil, err
	}

	if env.Response.Date != "" {
		parsed, err := time.Parse(DateLayout, env.Response.Date)
		if err != nil {
			return nil, errors.InternalError(fmt.Sprintf("unexpected date %q in historical response", env.Response.Date), err)
		}
		day = parsed.Format(DateLayout)
	}
	midnight, _ := time.Parse(DateLayout, day)

	rates := buildRates(env, day, midnight.UTC())
	c.logger.Info("Retrieved historical rates",
		logging.String("date", day),
		logging.Int("count", len(rates)))
	return rates, nil
}

// TimeseriesRates fetches historical rates for every day from start to end
// inclusive and hands them to yield in batches of batchDays days. A day that
// fails is logged and skipped; an error from yield stops the walk.
func (c *Client) TimeseriesRates(ctx context.Context, start, end time.Time, q RatesQuery, batchDays int, yield func([]Rate) error) error {
	if batchDays <= 0 {
		batchDays = DefaultBatchDays
	}
	windows := utils.DayWindows(start, end, batchDays)
	if len(windows) == 0 {
		return errors.ValidationError("end date must not be before start date")
	}

	batches := 0
	for _, window := range windows {
		var batch []Rate
		for day := window.Start; !day.After(window.End); day = day.AddDate(0, 0, 1) {
			if err := ctx.Err(); err != nil {
				return err
			}
			rates, err := c.HistoricalRates(ctx, day, q)
			if err != nil {
				c.logger.Error("Failed to fetch rates for day", err,
					logging.String("date", day.Format(DateLayout)))
				continue
			}
			batch = append(batch, rates...)
		}

		if len(batch) == 0 {
			continue
		}
		batches++
		if err := yield(batch); err != nil {
			return err
		}
	}

	c.logger.Info("Completed time series fetch", logging.Int("batches", batches))
	return nil
}

// Convert converts an amount at the latest rate. The rate is derived from the
// converted amount and is zero for a zero amount.
func (c *Client) Convert(ctx context.Context, q ConvertQuery) (*Conversion, error) {
	q.From = strings.ToUpper(q.From)
	q.To = strings.ToUpper(q.To)
	if err := validation.NewValidator().Struct(q).Error(); err != nil {
		return nil, err
	}

	c.logger.Info("Converting currency",
		logging.String("from", q.From),
		logging.String("to", q.To),
		logging.Any("amount", q.Amount))

	params := url.Values{}
	params.Set("from", q.From)
	params.Set("to", q.To)
	params.Set("amount", strconv.FormatFloat(q.Amount, 'f', -1, 64))

	var env convertEnvelope
	if err := c.get(ctx, "convert", params, &env); err != nil {
		return nil, err
	}

	conversion := &Conversion{
		From:            q.From,
		To:              q.To,
		Amount:          q.Amount,
		ConvertedAmount: env.Response.Value,
		Timestamp:       c.parseTimestamp(env.Meta.LastUpdatedAt),
	}
	if q.Amount != 0 {
		conversion.Rate = env.Response.Value / q.Amount
	}
	return conversion, nil
}

// Currencies lists supported currencies of the given type, "fiat" when empty
func (c *Client) Currencies(ctx context.Context, currencyType string) ([]Currency, error) {
	if currencyType == "" {
		currencyType = TypeFiat
	}
	if err := validation.NewValidator().
		RequireOneOf(currencyType, []string{TypeFiat, TypeCrypto}, "currency type").
		Error(); err != nil {
		return nil, err
	}

	var env currenciesEnvelope
	if err := c.get(ctx, "currencies", url.Values{"type": {currencyType}}, &env); err != nil {
		return nil, err
	}

	currencies := make([]Currency, 0, len(env.Response))
	for _, item := range env.Response {
		currencies = append(currencies, Currency{
			Code:      string(item.ID),
			Name:      item.Name,
			ShortCode: item.ShortCode,
			Symbol:    item.Symbol,
		})
	}

	c.logger.Info("Retrieved currencies",
		logging.String("type", currencyType),
		logging.Int("count", len(currencies)))
	return currencies, nil
}

// RateForPair returns a single rate, the latest one when date is zero
func (c *Client) RateForPair(ctx context.Context, base, target string, date time.Time) (float64, error) {
	q := RatesQuery{Base: base, Symbols: []string{target}}

	var (
		rates []Rate
		err   error
	)
	if date.IsZero() {
		rates, err = c.LatestRates(ctx, q)
	} else {
		rates, err = c.HistoricalRates(ctx, date, q)
	}
	if err != nil {
		return 0, err
	}

	for _, r := range rates {
		if strings.EqualFold(r.Target, target) {
			return r.Rate, nil
		}
	}
	return 0, errors.ValidationError(fmt.Sprintf("no rate found for %s/%s", strings.ToUpper(base), strings.ToUpper(target)))
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	resp, err := c.http.Get(ctx, endpoint, params, nil)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

// parseTimestamp falls back to now when the API omits or garbles the time
func (c *Client) parseTimestamp(value string) time.Time {
	if value != "" {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			return ts.UTC()
		}
		c.logger.Debug("Unparsable last_updated_at, using current time", logging.String("value", value))
	}
	return c.now().UTC()
}

func normalizeRates(q RatesQuery) RatesQuery {
	if q.Base == "" {
		q.Base = DefaultBase
	}
	q.Base = strings.ToUpper(q.Base)
	symbols := make([]string, 0, len(q.Symbols))
	for _, s := range q.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(s)))
	}
	q.Symbols = symbols
	return q
}

func ratesParams(q RatesQuery) url.Values {
	params := url.Values{}
	params.Set("base", q.Base)
	if len(q.Symbols) > 0 {
		params.Set("symbols", strings.Join(q.Symbols, ","))
	}
	return params
}

func buildRates(env ratesEnvelope, day string, timestamp time.Time) []Rate {
	rates := make([]Rate, 0, len(env.Response.Rates))
	for target, value := range env.Response.Rates {
		rates = append(rates, Rate{
			Base:      env.Response.Base,
			Target:    target,
			Rate:      value,
			Date:      day,
			Timestamp: timestamp,
		})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].Target < rates[j].Target })
	return rates
}
