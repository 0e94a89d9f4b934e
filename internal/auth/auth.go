// Package auth implements the optional shared-secret gate on the session
// TCP listener (C11), adapted from a gRPC interceptor to a plain first-frame
// check since the session transport is raw TCP, not gRPC.
package auth

import (
	"crypto/subtle"
	"log/slog"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Secret  string
}

// Check reports whether a session's first `start` control message satisfies
// the configured gate. When auth is disabled (default for local use), every
// token is accepted without inspecting it. Comparison is constant-time for
// equal-length inputs, so timing does not reveal a matching prefix; a token
// of a different length is rejected immediately.
func Check(cfg Config, token string, logger *slog.Logger, remoteAddr string) bool {
	if !cfg.Enabled {
		return true
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Secret)) == 1 {
		return true
	}
	logger.Warn("auth: rejected session, bad or missing auth_token", "remote_addr", remoteAddr, "token_prefix", truncateToken(token))
	return false
}

func truncateToken(token string) string {
	if len(token) > 10 {
		return token[:10] + "..."
	}
	return token
}
