package cli

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	commonconfig "infolio/internal/common/config"
	commonhttp "infolio/internal/common/http"
	"infolio/internal/common/logging"
)

type requestOptions struct {
	params       []string
	headers      []string
	form         []string
	data         string
	xml          string
	authType     string
	authSettings []string
	timeout      time.Duration
	maxRetries   int
	refreshAhead time.Duration
	include      bool
}

func newRequestCommand(s *session) *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "request METHOD BASE_URL ENDPOINT",
		Short: "Send one request through the retrying executor",
		Long: `Send one request through the retrying executor and print the response body.

Bad requests fail at once, rate limited requests wait for Retry-After and
network failures are retried. With --auth-type, a 401 response triggers one
credential refresh before the request is reissued.

Examples:
  infolio request GET https://api.example.com/v1 /widgets --param limit=10
  infolio request POST https://api.example.com /token --form grant_type=client_credentials
  infolio request GET https://api.example.com /me --auth-type oauth2 \
    --auth token_url=https://auth.example.com/token --auth client_id=app \
    --auth client_secret=s3cret --auth refresh_token=r1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, s.app, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.params, "param", "p", nil, "query parameter key=value (repeatable)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "request header Name=value (repeatable)")
	f.StringArrayVar(&opts.form, "form", nil, "form field key=value (repeatable), sent form encoded")
	f.StringVarP(&opts.data, "data", "d", "", "raw request body, sent verbatim")
	f.StringVar(&opts.xml, "xml", "", "XML document appended to the query as XML=<value>")
	f.StringVar(&opts.authType, "auth-type", commonconfig.AuthTypeNone, "credential strategy: none, apikey, bearer, oauth2, password, refresh_token")
	f.StringArrayVar(&opts.authSettings, "auth", nil, "strategy setting key=value (repeatable)")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-attempt timeout, overrides HTTP_TIMEOUT (default 5s)")
	f.IntVar(&opts.maxRetries, "max-retries", 0, "attempt bound, overrides HTTP_MAX_RETRIES")
	f.DurationVar(&opts.refreshAhead, "refresh-ahead", 0, "refresh expiring credentials this long before expiry")
	f.BoolVarP(&opts.include, "include", "i", false, "print status line and response headers")
	cmd.MarkFlagsMutuallyExclusive("data", "form")

	return cmd
}

func runRequest(cmd *cobra.Command, a *app, opts *requestOptions, args []string) error {
	method, baseURL, endpoint := strings.ToUpper(args[0]), args[1], args[2]

	params, err := parseValues("param", opts.params)
	if err != nil {
		return err
	}
	headers, err := parsePairs("header", opts.headers)
	if err != nil {
		return err
	}
	settings, err := parsePairs("auth", opts.authSettings)
	if err != nil {
		return err
	}

	var body interface{}
	switch {
	case opts.data != "":
		body = opts.data
	case len(opts.form) > 0:
		form, err := parseValues("form", opts.form)
		if err != nil {
			return err
		}
		body = form
	}

	conn := a.connConfig()
	if opts.timeout > 0 {
		conn.Timeout = opts.timeout
	}
	if opts.maxRetries > 0 {
		conn.RetryMax = opts.maxRetries
	}

	clientOpts := a.executorOptions(hostOf(baseURL))
	strategy, err := a.auth.Build(commonconfig.AuthConfig{Type: opts.authType, Settings: settings})
	if err != nil {
		return err
	}
	if strategy != nil {
		clientOpts = append(clientOpts, commonhttp.WithAuth(strategy))
		if opts.refreshAhead > 0 {
			clientOpts = append(clientOpts, commonhttp.WithProactiveRefresh(opts.refreshAhead))
		}
	}

	client, err := commonhttp.NewClient(commonhttp.Config{
		BaseConnConfig: conn,
		BaseURL:        baseURL,
	}, clientOpts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if strategy != nil && !client.Reauthenticate(ctx) {
		a.logger.Warn("Initial authentication failed, sending request without credentials",
			logging.String("strategy", strategy.Type()))
	}

	resp, err := client.Execute(ctx, commonhttp.Request{
		Method:   method,
		Endpoint: endpoint,
		Params:   params,
		Body:     body,
		Headers:  headers,
		XMLQuery: opts.xml,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.include {
		fmt.Fprintf(out, "HTTP %d (%d requests, %s)\n", resp.StatusCode, resp.Attempts, resp.Duration.Round(time.Millisecond))
		for name, values := range resp.Header {
			for _, v := range values {
				fmt.Fprintf(out, "%s: %s\n", name, v)
			}
		}
		fmt.Fprintln(out)
	}
	_, err = out.Write(resp.Body)
	if err == nil && len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		_, err = fmt.Fprintln(out)
	}
	return err
}

// parseValues keeps repeated keys, unlike parsePairs
func parseValues(flag string, pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--%s expects key=value, got %q", flag, pair)
		}
		values.Add(strings.TrimSpace(key), value)
	}
	return values, nil
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
