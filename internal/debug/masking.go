// Copyright (c) 2024 OData MCP Contributors
// SPDX-License-Identifier: MIT

// Package debug keeps credentials out of diagnostics: URL masking for log
// fields and a JSON-lines trace of codec operations.
package debug

import (
	"net/url"
	"strings"
)

// SensitiveKeys contains query parameter names whose values are masked.
// Paging and delta tokens match "token"; pre-signed media links match "sig".
var SensitiveKeys = []string{
	"password", "passwd", "pwd", "secret",
	"token", "api_key", "apikey", "api-key",
	"auth", "credential", "sig", "signature",
}

// MaskPassword completely masks a password, returning "***"
func MaskPassword(password string) string {
	if len(password) == 0 {
		return ""
	}
	return "***"
}

// MaskToken masks a token, showing only the last 8 characters
// For tokens of 8 characters or fewer, returns "****"
func MaskToken(token string) string {
	if len(token) == 0 {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-8:]
}

// MaskURL removes sensitive information from an absolute or relative URL
// - Masks the password in userinfo (user:password@host)
// - Masks values of sensitive query parameters, keeping parameter order
func MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	modified := false
	// url.UserPassword would percent-escape the mask, so userinfo is spliced back in by hand
	userinfo := ""
	if parsed.User != nil {
		if pass, hasPass := parsed.User.Password(); hasPass {
			userinfo = url.User(parsed.User.Username()).String() + ":" + MaskPassword(pass)
			parsed.User = nil
			modified = true
		}
	}

	if parsed.RawQuery != "" {
		pairs := strings.Split(parsed.RawQuery, "&")
		for i, pair := range pairs {
			key, value, found := strings.Cut(pair, "=")
			if !found || value == "" {
				continue
			}
			name, err := url.QueryUnescape(key)
			if err != nil {
				name = key
			}
			if IsSensitiveKey(name) {
				pairs[i] = key + "=" + MaskToken(value)
				modified = true
			}
		}
		parsed.RawQuery = strings.Join(pairs, "&")
	}

	if !modified {
		return rawURL
	}
	masked := parsed.String()
	if userinfo != "" {
		if i := strings.Index(masked, "//"); i >= 0 {
			masked = masked[:i+2] + userinfo + "@" + masked[i+2:]
		}
	}
	return masked
}

// IsSensitiveKey checks if a key name indicates sensitive data
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range SensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}
