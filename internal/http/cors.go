package http

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// createCORSMiddleware returns nil when CORS is disabled or no origin is configured.
//
// CORS is off by default: devices and the marketplace backend call the API directly. A
// browser dashboard polling reseal status is the case it exists for. No credentials are
// accepted cross-origin.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	if allowOriginsStr == "" {
		logger.Warn("CORS enabled but no origins configured - CORS will not be applied")
		return nil
	}

	origins, rejected := parseOrigins(allowOriginsStr)
	if len(rejected) > 0 {
		logger.Warn("ignoring invalid CORS origins", slog.Any("origins", rejected))
	}
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no valid origins found")
		return nil
	}

	logger.Info("CORS enabled",
		slog.Int("origin_count", len(origins)),
		slog.Any("origins", origins))

	config := cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			"GET",
			"POST",
		},
		AllowHeaders: []string{
			"Content-Type",
			"X-Request-Id",
		},
		ExposeHeaders: []string{
			"X-Request-Id",
			"Retry-After",
		},
		MaxAge: 12 * time.Hour,
	}

	return cors.New(config)
}

// parseOrigins splits a comma-separated origin list. An origin must be an absolute http or
// https URL without path, query or credentials; a trailing slash is dropped. Wildcards are
// rejected. Duplicates are kept once, in first-seen order.
func parseOrigins(originsStr string) (origins, rejected []string) {
	seen := make(map[string]struct{})
	for _, part := range strings.Split(originsStr, ",") {
		raw := strings.TrimSpace(part)
		if raw == "" {
			continue
		}

		origin, ok := normalizeOrigin(raw)
		if !ok {
			rejected = append(rejected, raw)
			continue
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins, rejected
}

func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil || u.Host == "" || strings.Contains(u.Host, "*") {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return "", false
	}
	return u.Scheme + "://" + strings.ToLower(u.Host), true
}
