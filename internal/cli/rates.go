package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"infolio/internal/providers/currencybeacon"
)

func newRatesCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Exchange rates from Currency Beacon",
		Long: `Query Currency Beacon. Requires API__CURRENCY_BEACON__API_KEY.

Output is JSON on stdout.`,
	}

	cmd.AddCommand(
		newRatesLatestCommand(s),
		newRatesHistoricalCommand(s),
		newRatesConvertCommand(s),
		newRatesCurrenciesCommand(s),
	)
	return cmd
}

func currencyBeacon(a *app) (*currencybeacon.Client, error) {
	if err := a.cfg.RequireCurrencyBeacon(); err != nil {
		return nil, err
	}
	return currencybeacon.New(currencybeacon.Config{
		BaseConnConfig: a.connConfig(),
		APIKey:         a.cfg.CurrencyBeaconAPIKey,
		BaseURL:        a.cfg.CurrencyBeaconBaseURL,
	}, a.logger, a.executorOptions("currencybeacon")...)
}

func newRatesLatestCommand(s *session) *cobra.Command {
	var q currencybeacon.RatesQuery

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Latest rates for a base currency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := currencyBeacon(s.app)
			if err != nil {
				return err
			}
			rates, err := client.LatestRates(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rates)
		},
	}

	cmd.Flags().StringVar(&q.Base, "base", currencybeacon.DefaultBase, "base currency")
	cmd.Flags().StringSliceVar(&q.Symbols, "symbols", nil, "target currencies, all when empty")
	return cmd
}

func newRatesHistoricalCommand(s *session) *cobra.Command {
	var (
		q    currencybeacon.RatesQuery
		date string
	)

	cmd := &cobra.Command{
		Use:   "historical",
		Short: "End-of-day rates for a past date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day, err := parseDate("date", date)
			if err != nil {
				return err
			}
			client, err := currencyBeacon(s.app)
			if err != nil {
				return err
			}
			rates, err := client.HistoricalRates(cmd.Context(), day, q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rates)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD")
	cmd.Flags().StringVar(&q.Base, "base", currencybeacon.DefaultBase, "base currency")
	cmd.Flags().StringSliceVar(&q.Symbols, "symbols", nil, "target currencies, all when empty")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newRatesConvertCommand(s *session) *cobra.Command {
	var q currencybeacon.ConvertQuery

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an amount at the latest rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := currencyBeacon(s.app)
			if err != nil {
				return err
			}
			conversion, err := client.Convert(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), conversion)
		},
	}

	cmd.Flags().StringVar(&q.From, "from", "", "source currency")
	cmd.Flags().StringVar(&q.To, "to", "", "target currency")
	cmd.Flags().Float64Var(&q.Amount, "amount", 1, "amount to convert")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newRatesCurrenciesCommand(s *session) *cobra.Command {
	var currencyType string

	cmd := &cobra.Command{
		Use:   "currencies",
		Short: "List supported currencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := currencyBeacon(s.app)
			if err != nil {
				return err
			}
			currencies, err := client.Currencies(cmd.Context(), currencyType)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), currencies)
		},
	}

	cmd.Flags().StringVar(&currencyType, "type", currencybeacon.TypeFiat, "fiat or crypto")
	return cmd
}

func parseDate(flag, value string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", flag, value)
	}
	return day, nil
}
