package api

import (
	"net/http"
	"time"

	"factoryplan/internal/buildinfo"
)

// DebugJSON reports build metadata and the non-secret parts of the running configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":               s.Cfg.Port,
			"rateRps":            s.Cfg.RateRPS,
			"rateBurst":          s.Cfg.RateBurst,
			"webhookMaxAttempts": s.Cfg.WebhookMaxAttempts,
			"solver":             s.Cfg.Solver,
			"logFormat":          s.Cfg.LogFormat,
			"logLevel":           s.Cfg.LogLevel,
			"hasDatabaseUrl":     s.Cfg.DatabaseURL != "",
			"hasRedisUrl":        s.Cfg.RedisURL != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
