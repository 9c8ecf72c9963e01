package middleware

import (
	"log/slog"
	"net/http"

	"holdings-server/internal/shared/config"

	"github.com/rs/cors"
)

var allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}

type CORSMiddleware struct {
	*cors.Cors
}

// NewCORS allows credentialed requests from the frontend only
func NewCORS(cfg config.FrontendConfig, logger *slog.Logger) *CORSMiddleware {
	allowedOrigins := []string{cfg.URL}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		Debug:            cfg.CORSDebug,
	})

	logger.Info("CORS middleware configured",
		"allowed_origins", allowedOrigins,
		"allowed_methods", allowedMethods,
		"debug_mode", cfg.CORSDebug,
	)

	return &CORSMiddleware{c}
}

func (c *CORSMiddleware) Middleware(h http.Handler) http.Handler {
	return c.Cors.Handler(h)
}
