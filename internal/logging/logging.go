// Package logging builds the zap loggers used by the binaries and provides
// helpers for keeping secrets out of log lines.
package logging

import (
	"net"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger when env is "production" and a
// colored development logger otherwise.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

// MaskIP keeps the first two IPv4 octets or the first four IPv6 groups.
// Example: 192.168.1.100 -> 192.168.*.*
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if strings.Contains(ip, ".") {
		parts := strings.Split(ip, ".")
		if len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}

	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}

	return "***"
}

// MaskSecret shows the first and last two characters.
// Example: "secret123" -> "se***23"
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}

// Credential is a zap field carrying a masked credential.
func Credential(key, credential string) zap.Field {
	return zap.String(key, MaskSecret(credential))
}

// IP is a zap field carrying a masked address.
func IP(key, ip string) zap.Field {
	return zap.String(key, MaskIP(ip))
}

// MaskIdentifier masks a rate-limit or code identifier such as "ip:10.1.2.3"
// or "login:alice@example.com". A scope prefix before the first colon is kept
// unless the whole value is an address.
func MaskIdentifier(id string) string {
	if net.ParseIP(id) != nil {
		return MaskIP(id)
	}
	scope, rest, ok := strings.Cut(id, ":")
	if !ok {
		return MaskSecret(id)
	}
	if net.ParseIP(rest) != nil {
		return scope + ":" + MaskIP(rest)
	}
	return scope + ":" + MaskSecret(rest)
}

// Identifier is a zap field carrying a masked identifier.
func Identifier(key, id string) zap.Field {
	return zap.String(key, MaskIdentifier(id))
}
