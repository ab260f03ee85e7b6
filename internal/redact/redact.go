// SPDX-License-Identifier: MIT

// Package redact strips credentials from argument vectors and log fields.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sentinel replaces redacted values.
const Sentinel = "[REDACTED]"

// sensitiveFlags are argv flags whose following element is a credential.
var sensitiveFlags = map[string]struct{}{
	"--cookies":  {},
	"--password": {},
	"--username": {},
}

// headerPrefixes identify inline header-shaped strings carrying credentials.
var headerPrefixes = []string{
	"authorization:",
	"cookie:",
	"x-api-key:",
}

// Argv returns a copy of argv with credential values replaced by Sentinel.
// The flag names themselves are kept so operators can still see which
// credentials were supplied.
func Argv(argv []string) []string {
	out := make([]string, len(argv))
	redactNext := false
	for i, arg := range argv {
		switch {
		case redactNext:
			out[i] = Sentinel
			redactNext = false
		case isSensitiveFlag(arg):
			out[i] = arg
			redactNext = true
		case isHeaderShaped(arg):
			name, _, _ := strings.Cut(arg, ":")
			out[i] = name + ": " + Sentinel
		default:
			out[i] = arg
		}
	}
	return out
}

func isSensitiveFlag(arg string) bool {
	_, ok := sensitiveFlags[arg]
	return ok
}

func isHeaderShaped(arg string) bool {
	lower := strings.ToLower(strings.TrimSpace(arg))
	for _, p := range headerPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// Text replaces every occurrence of secret in s with Sentinel. Empty secrets
// leave s untouched.
func Text(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, Sentinel)
}

// KeyIdentity derives the loggable identity of an API key: the first 8 hex
// characters of its SHA-256. The raw key never appears in logs.
func KeyIdentity(key string) string {
	if key == "" {
		return "empty"
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}
