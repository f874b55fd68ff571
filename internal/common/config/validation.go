package config

import (
	"fmt"
	"strings"

	"infolio/internal/common/errors"
	"infolio/internal/common/validation"
)

// ValidateBaseConn checks the connection bounds.
func ValidateBaseConn(c BaseConnConfig, v *validation.Validator) {
	if c.Timeout <= 0 {
		v.Validate(func() error {
			return errors.ConfigError("timeout must be positive")
		})
	}
	v.RequirePositive(c.RetryMax, "retry_max")
}

// ValidateAuthConfig checks that auth names a supported strategy and carries
// the settings that strategy requires.
func ValidateAuthConfig(auth AuthConfig, v *validation.Validator) {
	if auth.Type == "" {
		return
	}

	v.RequireOneOf(auth.Type, AuthTypes, "authentication.type")

	required := func(keys ...string) {
		for _, k := range keys {
			v.RequireString(auth.Settings[k], "authentication.settings."+k)
		}
	}

	switch auth.Type {
	case AuthTypeAPIKey:
		required("key_name", "api_key")
	case AuthTypeBearer:
		required("client_id", "client_secret")
		v.RequireURL(auth.Settings["token_url"], "authentication.settings.token_url")
	case AuthTypeOAuth2:
		required("client_id", "client_secret", "refresh_token")
		v.RequireURL(auth.Settings["token_url"], "authentication.settings.token_url")
	case AuthTypePassword:
		required("username", "password")
		v.RequireURL(auth.Settings["login_url"], "authentication.settings.login_url")
	case AuthTypeRefreshToken:
		required("refresh_token")
		v.RequireURL(auth.Settings["token_url"], "authentication.settings.token_url")
	}

	for name := range auth.ExtraHeaders() {
		if strings.ContainsAny(name, " \t:") {
			v.Validate(func() error {
				return errors.ConfigError(fmt.Sprintf("authentication.settings.header.%s is not a valid header name", name))
			})
		}
	}
}
