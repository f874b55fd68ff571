package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"infolio/internal/common/errors"
)

// maxTokenResponse caps how much of a token endpoint response is read.
const maxTokenResponse = 1 << 20

// tokenRequest is one form POST to a token endpoint.
type tokenRequest struct {
	url      string
	form     url.Values
	headers  map[string]string
	username string
	password string
	basic    bool
}

// post sends the request and decodes a JSON object response.
func (r tokenRequest) post(ctx context.Context, client *http.Client) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, strings.NewReader(r.form.Encode()))
	if err != nil {
		return nil, errors.InternalError("failed to create token request", err)
	}

	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if r.basic {
		req.SetBasicAuth(r.username, r.password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.TransportError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, errors.TransportError("failed to read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.HTTPStatusError(resp.StatusCode, body)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.InternalError("failed to parse token response", err)
	}
	return data, nil
}

// stringField returns a non-empty string value from a token response
func stringField(data map[string]interface{}, field string) (string, bool) {
	s, ok := data[field].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// secondsField reads a lifetime that providers send either as a number or a string
func secondsField(data map[string]interface{}, field string) (time.Duration, bool) {
	switch v := data[field].(type) {
	case float64:
		return time.Duration(v) * time.Second, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	default:
		return 0, false
	}
}

// jwtExpiry reads the exp claim without verifying the signature. The token
// is only inspected to schedule a refresh, never trusted.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// missingField builds the error logged when a token response lacks the token
func missingField(field string) error {
	return errors.AuthenticationFailedError(fmt.Sprintf("token response has no %q field", field), nil)
}
