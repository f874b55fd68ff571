package cli

import (
	"github.com/spf13/cobra"

	commonhttp "infolio/internal/common/http"
	"infolio/internal/providers/alpaca"
)

func newBarsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bars",
		Short: "Stock market data from Alpaca",
		Long: `Query the Alpaca Market Data API. Requires API__ALPACA__API_KEY and
API__ALPACA__SECRET_KEY.

Output is JSON on stdout.`,
	}

	cmd.AddCommand(
		newBarsLatestCommand(s),
		newBarsHistoricalCommand(s),
		newBarsSnapshotCommand(s),
	)
	return cmd
}

func alpacaClient(a *app) (*alpaca.Client, error) {
	if err := a.cfg.RequireAlpaca(); err != nil {
		return nil, err
	}

	// zero in the environment turns pacing off
	perMinute := a.cfg.AlpacaRequestsPerMinute
	if perMinute == 0 {
		perMinute = -1
	}

	opts := a.executorOptions("alpaca")
	limiter, err := a.sharedLimiter("alpaca", perMinute)
	if err != nil {
		return nil, err
	}
	if limiter != nil {
		opts = append(opts, commonhttp.WithRateLimiter(limiter))
	}

	return alpaca.New(alpaca.Config{
		BaseConnConfig:    a.connConfig(),
		APIKey:            a.cfg.AlpacaAPIKey,
		SecretKey:         a.cfg.AlpacaSecretKey,
		BaseURL:           a.cfg.AlpacaBaseURL,
		RequestsPerMinute: perMinute,
	}, a.logger, opts...)
}

func newBarsLatestCommand(s *session) *cobra.Command {
	var (
		symbols []string
		feed    string
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Latest minute bar per symbol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := alpacaClient(s.app)
			if err != nil {
				return err
			}
			bars, err := client.LatestBars(cmd.Context(), symbols, feed)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bars)
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "ticker symbols")
	cmd.Flags().StringVar(&feed, "feed", "", "iex or sip (default iex)")
	_ = cmd.MarkFlagRequired("symbols")
	return cmd
}

func newBarsHistoricalCommand(s *session) *cobra.Command {
	var (
		q          alpaca.BarsQuery
		start, end string
	)

	cmd := &cobra.Command{
		Use:   "historical",
		Short: "Historical bars over a date range, all pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if q.Start, err = parseDate("start", start); err != nil {
				return err
			}
			if end != "" {
				if q.End, err = parseDate("end", end); err != nil {
					return err
				}
			}

			client, err := alpacaClient(s.app)
			if err != nil {
				return err
			}
			bars, err := client.HistoricalBars(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bars)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&q.Symbols, "symbols", nil, "ticker symbols")
	f.StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	f.StringVar(&end, "end", "", "last day, YYYY-MM-DD (default today)")
	f.StringVar(&q.Timeframe, "timeframe", alpaca.DefaultTimeframe, "bar size, e.g. 1Min, 1Hour, 1Day")
	f.StringVar(&q.Feed, "feed", "", "iex or sip (default iex)")
	f.IntVar(&q.Limit, "limit", 0, "bars per page, API default when zero")
	_ = cmd.MarkFlagRequired("symbols")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newBarsSnapshotCommand(s *session) *cobra.Command {
	var (
		symbols []string
		feed    string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Latest trade, quote and previous close per symbol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := alpacaClient(s.app)
			if err != nil {
				return err
			}
			snapshots, err := client.Snapshots(cmd.Context(), symbols, feed)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snapshots)
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbols", nil, "ticker symbols")
	cmd.Flags().StringVar(&feed, "feed", "", "iex or sip (default iex)")
	_ = cmd.MarkFlagRequired("symbols")
	return cmd
}
